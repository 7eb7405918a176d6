package system

import (
	"encoding/binary"

	"github.com/near/borsh-go"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Program is the system program.
type Program struct{}

// New returns the system program.
func New() *Program { return &Program{} }

var _ runtime.Program = (*Program)(nil)

func (p *Program) ID() solana.PublicKey { return solana.SystemProgramID }
func (p *Program) Name() string         { return "system" }

// Process dispatches on the instruction tag.
func (p *Program) Process(ic *runtime.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return runtime.ErrInvalidInstructionData
	}
	tag, body := binary.LittleEndian.Uint32(data), data[4:]

	switch tag {
	case InstructionCreateAccount:
		var args createAccountArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.createAccount(ic, args)
	case InstructionAssign:
		var args assignArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.assign(ic, args)
	case InstructionTransfer:
		var args transferArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.transfer(ic, args)
	case InstructionAllocate:
		var args allocateArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.allocate(ic, args)
	default:
		return runtime.ErrInvalidInstructionData
	}
}

func (p *Program) createAccount(ic *runtime.InvokeContext, args createAccountArgs) error {
	if err := ic.RequireAccounts(2); err != nil {
		return err
	}
	from, to := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey
	if from == to {
		return runtime.ErrInvalidArgument
	}

	toAcct, err := ic.Load(to)
	if err != nil {
		return err
	}
	if inUse(toAcct) {
		ic.Log("Create Account: account Address { address: %s, base: None } already in use", to)
		return ErrAccountAlreadyInUse
	}
	if args.Space > MaxPermittedDataLength {
		return ErrInvalidAccountDataLength
	}
	if !ic.IsSigner(to) {
		ic.Log("Create Account: account %s must sign", to)
		return runtime.ErrMissingRequiredSignature
	}

	if err := p.debit(ic, from, args.Lamports); err != nil {
		return err
	}
	return ic.Store(to, &domain.Account{
		Lamports: args.Lamports,
		Owner:    solana.PublicKey(args.Owner),
		Data:     make([]byte, args.Space),
	})
}

func (p *Program) assign(ic *runtime.InvokeContext, args assignArgs) error {
	if err := ic.RequireAccounts(1); err != nil {
		return err
	}
	addr := ic.Accounts()[0].PublicKey

	acct, err := ic.Load(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &domain.Account{Owner: solana.SystemProgramID}
	}
	owner := solana.PublicKey(args.Owner)
	if acct.Owner == owner {
		return nil
	}
	if !ic.IsSigner(addr) {
		ic.Log("Assign: account %s must sign", addr)
		return runtime.ErrMissingRequiredSignature
	}

	acct.Owner = owner
	return ic.Store(addr, acct)
}

func (p *Program) transfer(ic *runtime.InvokeContext, args transferArgs) error {
	if err := ic.RequireAccounts(2); err != nil {
		return err
	}
	from, to := ic.Accounts()[0].PublicKey, ic.Accounts()[1].PublicKey

	if err := p.debit(ic, from, args.Lamports); err != nil {
		return err
	}

	toAcct, err := ic.Load(to)
	if err != nil {
		return err
	}
	if toAcct == nil {
		toAcct = &domain.Account{Owner: solana.SystemProgramID}
	}
	toAcct.Lamports += args.Lamports
	return ic.Store(to, toAcct)
}

func (p *Program) allocate(ic *runtime.InvokeContext, args allocateArgs) error {
	if err := ic.RequireAccounts(1); err != nil {
		return err
	}
	addr := ic.Accounts()[0].PublicKey

	if !ic.IsSigner(addr) {
		ic.Log("Allocate: account %s must sign", addr)
		return runtime.ErrMissingRequiredSignature
	}
	acct, err := ic.Load(addr)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &domain.Account{Owner: solana.SystemProgramID}
	}
	if len(acct.Data) > 0 || acct.Owner != solana.SystemProgramID {
		ic.Log("Allocate: account %s already in use", addr)
		return ErrAccountAlreadyInUse
	}
	if args.Space > MaxPermittedDataLength {
		return ErrInvalidAccountDataLength
	}

	acct.Data = make([]byte, args.Space)
	return ic.Store(addr, acct)
}

// debit takes lamports from a signing, data-free system account.
func (p *Program) debit(ic *runtime.InvokeContext, from solana.PublicKey, lamports uint64) error {
	if !ic.IsSigner(from) {
		ic.Log("Transfer: `from` account %s must sign", from)
		return runtime.ErrMissingRequiredSignature
	}

	acct, err := ic.Load(from)
	if err != nil {
		return err
	}
	if acct == nil {
		acct = &domain.Account{Owner: solana.SystemProgramID}
	}
	if len(acct.Data) > 0 {
		ic.Log("Transfer: `from` must not carry data")
		return runtime.ErrInvalidArgument
	}
	if acct.Lamports < lamports {
		ic.Log("Transfer: insufficient lamports %d, need %d", acct.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}

	acct.Lamports -= lamports
	return ic.Store(from, acct)
}

func inUse(acct *domain.Account) bool {
	return acct != nil && (acct.Lamports > 0 || len(acct.Data) > 0 || acct.Owner != solana.SystemProgramID)
}
