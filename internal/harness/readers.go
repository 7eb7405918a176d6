package harness

import (
	"context"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/programs/metadata"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/solana"
)

// Reader errors.
var (
	ErrAccountMissing = errors.New("account does not exist")
	ErrWrongOwner     = errors.New("account has unexpected owner")
)

func (h *Harness) load(ctx context.Context, addr, owner solana.PublicKey) (*solana.AccountInfo, error) {
	info, err := h.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "get account %s", addr)
	}
	if info == nil {
		return nil, errors.Wrapf(ErrAccountMissing, "%s", addr)
	}
	if info.Owner != owner {
		return nil, errors.Wrapf(ErrWrongOwner, "%s owned by %s, want %s", addr, info.Owner, owner)
	}
	return info, nil
}

// Mint decodes the mint account at addr.
func (h *Harness) Mint(ctx context.Context, addr solana.PublicKey) (*token.Mint, error) {
	info, err := h.load(ctx, addr, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	m, err := token.UnpackMint(info.Data)
	return m, errors.Wrapf(err, "decode mint %s", addr)
}

// Holder decodes the token account at addr.
func (h *Harness) Holder(ctx context.Context, addr solana.PublicKey) (*token.Account, error) {
	info, err := h.load(ctx, addr, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	a, err := token.UnpackAccount(info.Data)
	return a, errors.Wrapf(err, "decode holder %s", addr)
}

// Balance returns the unit count of the holder at addr.
func (h *Harness) Balance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	a, err := h.Holder(ctx, addr)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}

// Metadata decodes the metadata record of mint.
func (h *Harness) Metadata(ctx context.Context, mint solana.PublicKey) (*metadata.Metadata, error) {
	addr, _, err := solana.FindMetadataAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "derive metadata address")
	}
	info, err := h.load(ctx, addr, solana.MetadataProgramID)
	if err != nil {
		return nil, err
	}
	md, err := metadata.UnpackMetadata(info.Data)
	return md, errors.Wrapf(err, "decode metadata %s", addr)
}

// Edition decodes the master edition of mint.
func (h *Harness) Edition(ctx context.Context, mint solana.PublicKey) (*metadata.MasterEdition, error) {
	addr, _, err := solana.FindMasterEditionAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "derive edition address")
	}
	info, err := h.load(ctx, addr, solana.MetadataProgramID)
	if err != nil {
		return nil, err
	}
	ed, err := metadata.UnpackMasterEdition(info.Data)
	return ed, errors.Wrapf(err, "decode edition %s", addr)
}

// Snapshot is everything readable about one mint.
type Snapshot struct {
	Mint     solana.PublicKey
	State    *token.Mint
	Metadata *metadata.Metadata // nil before the first mint
	Edition  *metadata.MasterEdition
	History  []solana.SignatureInfo
}

// Inspect reads the mint, its records and its transaction history. Missing
// metadata and edition are reported as nil.
func (h *Harness) Inspect(ctx context.Context, mint solana.PublicKey, historyLimit int) (*Snapshot, error) {
	state, err := h.Mint(ctx, mint)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Mint: mint, State: state}

	if snap.Metadata, err = h.Metadata(ctx, mint); err != nil && !errors.Is(err, ErrAccountMissing) {
		return nil, err
	}
	if snap.Edition, err = h.Edition(ctx, mint); err != nil && !errors.Is(err, ErrAccountMissing) {
		return nil, err
	}

	snap.History, err = h.rpc.GetSignaturesForAddress(ctx, mint, &solana.SignaturesOpts{Limit: historyLimit})
	if err != nil {
		return nil, errors.Wrapf(err, "history of %s", mint)
	}
	return snap, nil
}
