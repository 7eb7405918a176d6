package harness

import (
	"context"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/solana"
)

// Nft is the set of accounts that make up one minted item.
type Nft struct {
	Mint     solana.PublicKey
	Holder   solana.PublicKey
	Metadata solana.PublicKey
	Edition  solana.PublicKey
}

// Records derives the metadata and edition addresses of mint.
func Records(mint, holder solana.PublicKey) (*Nft, error) {
	md, _, err := solana.FindMetadataAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "derive metadata address")
	}
	ed, _, err := solana.FindMasterEditionAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "derive edition address")
	}
	return &Nft{Mint: mint, Holder: holder, Metadata: md, Edition: ed}, nil
}

// InitializeNft creates the mint account minter with owner as authority.
func (h *Harness) InitializeNft(ctx context.Context, owner, minter *solana.Keypair) error {
	_, err := h.Send(ctx, nft.InstructionInitializeNft, owner,
		[]solana.Instruction{nft.InitializeNft(owner.PublicKey, minter.PublicKey)}, minter)
	return err
}

// CreateHolder creates the holder account of user for mint and returns its
// address.
func (h *Harness) CreateHolder(ctx context.Context, user *solana.Keypair, mint solana.PublicKey) (solana.PublicKey, error) {
	ix, holder, err := nft.CreateNftHolder(user.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "build create_nft_holder")
	}
	if _, err := h.Send(ctx, nft.InstructionCreateNftHolder, user, []solana.Instruction{ix}); err != nil {
		return holder, err
	}
	return holder, nil
}

// MintNft mints the unit of mint into holder and describes it with args.
func (h *Harness) MintNft(ctx context.Context, authority *solana.Keypair, mint, holder solana.PublicKey, args nft.MetadataArgs) error {
	ix, err := nft.MintNft(authority.PublicKey, mint, holder, args)
	if err != nil {
		return errors.Wrap(err, "build mint_nft")
	}
	_, err = h.Send(ctx, nft.InstructionMintNft, authority, []solana.Instruction{ix})
	return err
}

// CreateNft initializes minter, creates the authority's holder and mints
// into it in a single instruction.
func (h *Harness) CreateNft(ctx context.Context, authority, minter *solana.Keypair, args nft.MetadataArgs) (*Nft, error) {
	ix, holder, err := nft.CreateNft(authority.PublicKey, minter.PublicKey, args)
	if err != nil {
		return nil, errors.Wrap(err, "build create_nft")
	}
	if _, err := h.Send(ctx, nft.InstructionCreateNft, authority, []solana.Instruction{ix}, minter); err != nil {
		return nil, err
	}
	return Records(minter.PublicKey, holder)
}

// UpdateMetadata replaces name, symbol and uri of the metadata of mint.
func (h *Harness) UpdateMetadata(ctx context.Context, authority *solana.Keypair, mint solana.PublicKey, args nft.MetadataArgs) error {
	ix, err := nft.UpdateNftMetadata(authority.PublicKey, mint, args)
	if err != nil {
		return errors.Wrap(err, "build update_nft_metadata")
	}
	_, err = h.Send(ctx, nft.InstructionUpdateNftMetadata, authority, []solana.Instruction{ix})
	return err
}

// Transfer moves the unit of mint from sender to recipient.
func (h *Harness) Transfer(ctx context.Context, authority *solana.Keypair, mint, sender, recipient solana.PublicKey) error {
	_, err := h.Send(ctx, nft.InstructionTransferNft, authority,
		[]solana.Instruction{nft.TransferNft(authority.PublicKey, mint, sender, recipient)})
	return err
}
