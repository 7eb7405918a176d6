// Package nft implements the NFT lifecycle program. It creates single-supply
// mints, holder accounts, metadata and master editions through calls into the
// token, associated token and metadata programs, and moves the unit between
// holders.
package nft

import (
	"crypto/sha256"

	"github.com/near/borsh-go"

	"solana-nft-lab/internal/solana"
)

// ProgramID is the address of the lifecycle program.
var ProgramID = solana.MustParsePublicKey("7ghLrtu6EqZuRcNQX5cvWp8THJ6tgfbSXEAKZ8GhVRy4")

// MintLamports funds a new mint account.
const MintLamports = 10_000_000

// SellerFeeBasisPoints is written into every metadata record.
const SellerFeeBasisPoints = 1

// Instruction names, as hashed into discriminators.
const (
	InstructionInitializeNft     = "initialize_nft"
	InstructionCreateNftHolder   = "create_nft_holder"
	InstructionMintNft           = "mint_nft"
	InstructionTransferNft       = "transfer_nft"
	InstructionCreateNft         = "create_nft"
	InstructionUpdateNftMetadata = "update_nft_metadata"
)

// Discriminator is the first 8 bytes of sha256("global:<name>").
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// MetadataArgs is the argument list of mint, create and update.
type MetadataArgs struct {
	Name   string
	Symbol string
	URI    string
}

func encode(name string, args interface{}) ([]byte, error) {
	d := Discriminator(name)
	if args == nil {
		return d[:], nil
	}
	body, err := borsh.Serialize(args)
	if err != nil {
		return nil, err
	}
	return append(d[:], body...), nil
}

func noArgs(name string) []byte {
	data, _ := encode(name, nil)
	return data
}

// InitializeNft creates and initializes minter with owner as mint and
// freeze authority. Both must sign.
func InitializeNft(owner, minter solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ProgramID, noArgs(InstructionInitializeNft),
		solana.NewAccountMeta(owner, true),
		solana.NewAccountMeta(minter, true),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
	)
}

// CreateNftHolder creates the associated token account of user for minter
// and returns its address.
func CreateNftHolder(user, minter solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	holder, _, err := solana.FindAssociatedTokenAddress(user, minter)
	if err != nil {
		return solana.Instruction{}, solana.PublicKey{}, err
	}
	return solana.NewInstruction(ProgramID, noArgs(InstructionCreateNftHolder),
		solana.NewAccountMeta(user, true),
		solana.NewAccountMeta(minter, false),
		solana.NewAccountMeta(holder, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.AssociatedTokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
	), holder, nil
}

type derived struct {
	metadata solana.PublicKey
	edition  solana.PublicKey
}

func deriveRecords(minter solana.PublicKey) (derived, error) {
	md, _, err := solana.FindMetadataAddress(minter)
	if err != nil {
		return derived{}, err
	}
	ed, _, err := solana.FindMasterEditionAddress(minter)
	if err != nil {
		return derived{}, err
	}
	return derived{metadata: md, edition: ed}, nil
}

// MintNft mints the single unit of minter into holder and creates its
// metadata and master edition. authority must be the mint authority.
func MintNft(authority, minter, holder solana.PublicKey, args MetadataArgs) (solana.Instruction, error) {
	d, err := deriveRecords(minter)
	if err != nil {
		return solana.Instruction{}, err
	}
	data, err := encode(InstructionMintNft, args)
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(ProgramID, data,
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(minter, false),
		solana.NewAccountMeta(holder, false),
		solana.NewAccountMeta(d.metadata, false),
		solana.NewAccountMeta(d.edition, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
		solana.NewReadonlyAccountMeta(solana.MetadataProgramID, false),
	), nil
}

// TransferNft moves the unit of mint from sender to recipient. authority
// must own sender.
func TransferNft(authority, mint, sender, recipient solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ProgramID, noArgs(InstructionTransferNft),
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(sender, false),
		solana.NewAccountMeta(recipient, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
	)
}

// CreateNft performs InitializeNft, CreateNftHolder for authority and MintNft
// in one instruction. It returns the holder address.
func CreateNft(authority, minter solana.PublicKey, args MetadataArgs) (solana.Instruction, solana.PublicKey, error) {
	holder, _, err := solana.FindAssociatedTokenAddress(authority, minter)
	if err != nil {
		return solana.Instruction{}, solana.PublicKey{}, err
	}
	d, err := deriveRecords(minter)
	if err != nil {
		return solana.Instruction{}, solana.PublicKey{}, err
	}
	data, err := encode(InstructionCreateNft, args)
	if err != nil {
		return solana.Instruction{}, solana.PublicKey{}, err
	}
	return solana.NewInstruction(ProgramID, data,
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(minter, true),
		solana.NewAccountMeta(holder, false),
		solana.NewAccountMeta(d.metadata, false),
		solana.NewAccountMeta(d.edition, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.AssociatedTokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
		solana.NewReadonlyAccountMeta(solana.MetadataProgramID, false),
	), holder, nil
}

// UpdateNftMetadata replaces name, symbol and uri of the metadata of mint.
// authority must be the update authority.
func UpdateNftMetadata(authority, mint solana.PublicKey, args MetadataArgs) (solana.Instruction, error) {
	md, _, err := solana.FindMetadataAddress(mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	data, err := encode(InstructionUpdateNftMetadata, args)
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(ProgramID, data,
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(md, false),
		solana.NewReadonlyAccountMeta(solana.MetadataProgramID, false),
	), nil
}
