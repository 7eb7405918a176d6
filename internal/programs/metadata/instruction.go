package metadata

import (
	"github.com/near/borsh-go"

	"solana-nft-lab/internal/solana"
)

// Instruction tags, encoded as the first data byte.
const (
	InstructionUpdateMetadataAccountV2 uint8 = 15
	InstructionCreateMasterEditionV3   uint8 = 17
	InstructionCreateMetadataAccountV3 uint8 = 33
)

// CollectionDetails is the V1 variant of the collection details enum.
type CollectionDetails struct {
	Variant uint8
	Size    uint64
}

type createMetadataAccountArgsV3 struct {
	Tag               uint8
	Data              DataV2
	IsMutable         bool
	CollectionDetails *CollectionDetails
}

type createMasterEditionArgs struct {
	Tag       uint8
	MaxSupply *uint64
}

type updateMetadataAccountArgsV2 struct {
	Tag                 uint8
	Data                *DataV2
	UpdateAuthority     *[32]uint8
	PrimarySaleHappened *bool
	IsMutable           *bool
}

func encode(args interface{}) ([]byte, error) {
	return borsh.Serialize(args)
}

// Argument decoding is done by hand: borsh-go reads a None option as a
// pointer to the zero value.

func decodeCreateMetadataAccountArgsV3(data []byte) (createMetadataAccountArgsV3, error) {
	r := &decoder{buf: data}
	args := createMetadataAccountArgsV3{Tag: r.u8()}
	args.Data = decodeDataV2(r)
	args.IsMutable = r.boolean()
	if r.option() {
		args.CollectionDetails = &CollectionDetails{Variant: r.u8(), Size: r.u64()}
	}
	return args, r.err
}

func decodeCreateMasterEditionArgs(data []byte) (createMasterEditionArgs, error) {
	r := &decoder{buf: data}
	args := createMasterEditionArgs{Tag: r.u8()}
	if r.option() {
		v := r.u64()
		args.MaxSupply = &v
	}
	return args, r.err
}

func decodeUpdateMetadataAccountArgsV2(data []byte) (updateMetadataAccountArgsV2, error) {
	r := &decoder{buf: data}
	args := updateMetadataAccountArgsV2{Tag: r.u8()}
	if r.option() {
		d := decodeDataV2(r)
		args.Data = &d
	}
	if r.option() {
		var k [32]uint8
		copy(k[:], r.bytes(32))
		args.UpdateAuthority = &k
	}
	if r.option() {
		v := r.boolean()
		args.PrimarySaleHappened = &v
	}
	if r.option() {
		v := r.boolean()
		args.IsMutable = &v
	}
	return args, r.err
}

func decodeDataV2(r *decoder) DataV2 {
	d := DataV2{Name: r.str(), Symbol: r.str(), URI: r.str(), SellerFeeBasisPoints: r.u16()}
	if r.option() {
		n := int(r.u32())
		if n*creatorLen > r.remaining() {
			r.fail("creator count %d", n)
			return d
		}
		creators := make([]Creator, n)
		for i := range creators {
			copy(creators[i].Address[:], r.bytes(32))
			creators[i].Verified = r.boolean()
			creators[i].Share = r.u8()
		}
		d.Creators = &creators
	}
	if r.option() {
		d.Collection = &Collection{Verified: r.boolean()}
		copy(d.Collection.Key[:], r.bytes(32))
	}
	if r.option() {
		d.Uses = &Uses{UseMethod: r.u8(), Remaining: r.u64(), Total: r.u64()}
	}
	return d
}

// CreateMetadataAccountV3Accounts names the accounts of CreateMetadataAccountV3.
type CreateMetadataAccountV3Accounts struct {
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
	// UpdateAuthorityIsSigner is required to mark creators verified.
	UpdateAuthorityIsSigner bool
}

// CreateMetadataAccountV3 creates the metadata record of a mint.
func CreateMetadataAccountV3(accts CreateMetadataAccountV3Accounts, data DataV2, isMutable bool) (solana.Instruction, error) {
	metadata, _, err := solana.FindMetadataAddress(accts.Mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	body, err := encode(createMetadataAccountArgsV3{
		Tag:       InstructionCreateMetadataAccountV3,
		Data:      data,
		IsMutable: isMutable,
	})
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(solana.MetadataProgramID, body,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(accts.Mint, false),
		solana.NewReadonlyAccountMeta(accts.MintAuthority, true),
		solana.NewAccountMeta(accts.Payer, true),
		solana.NewReadonlyAccountMeta(accts.UpdateAuthority, accts.UpdateAuthorityIsSigner),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
	), nil
}

// CreateMasterEditionV3Accounts names the accounts of CreateMasterEditionV3.
type CreateMasterEditionV3Accounts struct {
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
}

// CreateMasterEditionV3 turns a one-token mint into a master edition. The
// mint and freeze authorities move to the edition account.
func CreateMasterEditionV3(accts CreateMasterEditionV3Accounts, maxSupply *uint64) (solana.Instruction, error) {
	metadata, _, err := solana.FindMetadataAddress(accts.Mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	edition, _, err := solana.FindMasterEditionAddress(accts.Mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	body, err := encode(createMasterEditionArgs{Tag: InstructionCreateMasterEditionV3, MaxSupply: maxSupply})
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(solana.MetadataProgramID, body,
		solana.NewAccountMeta(edition, false),
		solana.NewAccountMeta(accts.Mint, false),
		solana.NewReadonlyAccountMeta(accts.UpdateAuthority, true),
		solana.NewReadonlyAccountMeta(accts.MintAuthority, true),
		solana.NewAccountMeta(accts.Payer, true),
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
	), nil
}

// UpdateMetadataAccountV2Args lists the optional changes of an update.
// Nil fields are left as they are.
type UpdateMetadataAccountV2Args struct {
	Data                *DataV2
	UpdateAuthority     *solana.PublicKey
	PrimarySaleHappened *bool
	IsMutable           *bool
}

// UpdateMetadataAccountV2 changes a metadata record. Data, when set,
// replaces the whole record data including creators.
func UpdateMetadataAccountV2(metadata, updateAuthority solana.PublicKey, args UpdateMetadataAccountV2Args) (solana.Instruction, error) {
	wire := updateMetadataAccountArgsV2{
		Tag:                 InstructionUpdateMetadataAccountV2,
		Data:                args.Data,
		PrimarySaleHappened: args.PrimarySaleHappened,
		IsMutable:           args.IsMutable,
	}
	if args.UpdateAuthority != nil {
		k := [32]uint8(*args.UpdateAuthority)
		wire.UpdateAuthority = &k
	}
	body, err := encode(wire)
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(solana.MetadataProgramID, body,
		solana.NewAccountMeta(metadata, false),
		solana.NewReadonlyAccountMeta(updateAuthority, true),
	), nil
}
