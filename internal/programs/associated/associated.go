// Package associated implements the associated token account program, which
// creates the canonical token account of a wallet for a mint at an address
// derived from both.
package associated

import (
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Instruction tags. Empty data also means Create.
const (
	InstructionCreate           uint8 = 0
	InstructionCreateIdempotent uint8 = 1
)

// Address returns the associated token account of wallet for mint.
func Address(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	return addr, err
}

func build(tag uint8, payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	ata, err := Address(wallet, mint)
	if err != nil {
		return solana.Instruction{}, err
	}
	return solana.NewInstruction(solana.AssociatedTokenProgramID,
		[]byte{tag},
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(ata, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(solana.SystemProgramID, false),
		solana.NewReadonlyAccountMeta(solana.TokenProgramID, false),
		solana.NewReadonlyAccountMeta(solana.RentSysvarID, false),
	), nil
}

// Create builds an instruction creating the associated token account of
// wallet for mint, funded by payer. It fails if the account exists.
func Create(payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	return build(InstructionCreate, payer, wallet, mint)
}

// CreateIdempotent is Create that succeeds when the account already exists
// with the expected owner and mint.
func CreateIdempotent(payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	return build(InstructionCreateIdempotent, payer, wallet, mint)
}

// Program is the associated token account program.
type Program struct{}

// New returns the associated token account program.
func New() *Program { return &Program{} }

var _ runtime.Program = (*Program)(nil)

func (p *Program) ID() solana.PublicKey { return solana.AssociatedTokenProgramID }
func (p *Program) Name() string         { return "associated-token" }

func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	idempotent := false
	switch {
	case len(data) == 0 || (len(data) == 1 && data[0] == InstructionCreate):
	case len(data) == 1 && data[0] == InstructionCreateIdempotent:
		idempotent = true
	default:
		return runtime.ErrInvalidInstructionData
	}

	if err := ic.RequireAccounts(7); err != nil {
		return err
	}
	accts := ic.Accounts()
	payer, ata, wallet, mint := accts[0].PublicKey, accts[1].PublicKey, accts[2].PublicKey, accts[3].PublicKey
	if accts[5].PublicKey != solana.TokenProgramID {
		return runtime.ErrIncorrectProgramID
	}

	derived, bump, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil || derived != ata {
		ic.Log("Error: Associated address does not match seed derivation")
		return runtime.ErrInvalidSeeds
	}

	if idempotent {
		existing, err := ic.Load(ata)
		if err != nil {
			return err
		}
		if existing != nil && existing.Owner == solana.TokenProgramID {
			acct, err := token.UnpackAccount(existing.Data)
			if err != nil {
				return runtime.ErrInvalidAccountData
			}
			if acct.Owner != wallet {
				ic.Log("Error: owner does not match")
				return runtime.ErrIllegalOwner
			}
			if acct.Mint != mint {
				return runtime.ErrInvalidAccountData
			}
			return nil
		}
	}

	ic.Log("Create")
	seeds := [][]byte{wallet[:], solana.TokenProgramID[:], mint[:], {bump}}
	if err := ic.Invoke(
		system.CreateAccount(payer, ata, runtime.RentExemptMinimum(token.AccountSize), token.AccountSize, solana.TokenProgramID),
		seeds,
	); err != nil {
		return err
	}

	ic.Log("Initialize the associated token account")
	return ic.Invoke(token.InitializeAccount(ata, mint, wallet))
}
