package token

import (
	"github.com/near/borsh-go"

	"solana-nft-lab/internal/solana"
)

// Instruction tags, encoded as the first data byte.
const (
	InstructionInitializeMint    uint8 = 0
	InstructionInitializeAccount uint8 = 1
	InstructionTransfer          uint8 = 3
	InstructionSetAuthority      uint8 = 6
	InstructionMintTo            uint8 = 7
)

// AuthorityType selects the authority changed by SetAuthority.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
)

func (a AuthorityType) String() string {
	switch a {
	case AuthorityMintTokens:
		return "MintTokens"
	case AuthorityFreezeAccount:
		return "FreezeAccount"
	case AuthorityAccountOwner:
		return "AccountOwner"
	case AuthorityCloseAccount:
		return "CloseAccount"
	}
	return "Unknown"
}

// Optional keys use a one byte tag in instruction data, which is the borsh
// encoding of a pointer. borsh-go decodes a None tag as a pointer to the
// zero key, so optional arguments are decoded with readOptionKey.

type initializeMintArgs struct {
	Tag             uint8
	Decimals        uint8
	MintAuthority   [32]uint8
	FreezeAuthority *[32]uint8
}

type amountArgs struct {
	Tag    uint8
	Amount uint64
}

type setAuthorityArgs struct {
	Tag           uint8
	AuthorityType uint8
	NewAuthority  *[32]uint8
}

func encode(args interface{}) []byte {
	data, err := borsh.Serialize(args)
	if err != nil {
		panic(err)
	}
	return data
}

// readOptionKey decodes a tagged optional key and returns the bytes after it.
func readOptionKey(b []byte) (*solana.PublicKey, []byte, error) {
	if len(b) == 0 {
		return nil, nil, ErrInvalidInstruction
	}
	switch b[0] {
	case 0:
		return nil, b[1:], nil
	case 1:
		if len(b) < 33 {
			return nil, nil, ErrInvalidInstruction
		}
		pk := solana.PublicKey(b[1:33])
		return &pk, b[33:], nil
	}
	return nil, nil, ErrInvalidInstruction
}

func decodeInitializeMint(data []byte) (decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey, err error) {
	if len(data) < 34 {
		return 0, mintAuthority, nil, ErrInvalidInstruction
	}
	decimals = data[1]
	mintAuthority = solana.PublicKey(data[2:34])
	freezeAuthority, _, err = readOptionKey(data[34:])
	return decimals, mintAuthority, freezeAuthority, err
}

func decodeSetAuthority(data []byte) (AuthorityType, *solana.PublicKey, error) {
	if len(data) < 2 {
		return 0, nil, ErrInvalidInstruction
	}
	newAuthority, _, err := readOptionKey(data[2:])
	return AuthorityType(data[1]), newAuthority, err
}

func optKey(pk *solana.PublicKey) *[32]uint8 {
	if pk == nil {
		return nil
	}
	k := [32]uint8(*pk)
	return &k
}

// InitializeMint initializes a freshly allocated mint account.
func InitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.TokenProgramID,
		encode(initializeMintArgs{
			Tag:             InstructionInitializeMint,
			Decimals:        decimals,
			MintAuthority:   mintAuthority,
			FreezeAuthority: optKey(freezeAuthority),
		}),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
	)
}

// InitializeAccount initializes a token account for mint held by owner.
func InitializeAccount(account, mint, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.TokenProgramID,
		[]byte{InstructionInitializeAccount},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
	)
}

// Transfer moves amount tokens between accounts of the same mint.
func Transfer(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(solana.TokenProgramID,
		encode(amountArgs{Tag: InstructionTransfer, Amount: amount}),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// SetAuthority replaces or removes an authority of a mint or token account.
func SetAuthority(account, currentAuthority solana.PublicKey, authorityType AuthorityType, newAuthority *solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.TokenProgramID,
		encode(setAuthorityArgs{
			Tag:           InstructionSetAuthority,
			AuthorityType: uint8(authorityType),
			NewAuthority:  optKey(newAuthority),
		}),
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

// MintTo mints amount new tokens into destination.
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(solana.TokenProgramID,
		encode(amountArgs{Tag: InstructionMintTo, Amount: amount}),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}
