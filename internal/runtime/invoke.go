package runtime

import (
	"bytes"
	"context"
	"fmt"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/ledger"
	"solana-nft-lab/internal/solana"
)

// MaxInvokeDepth bounds nested cross-program invocations; the top-level
// instruction runs at depth 1.
const MaxInvokeDepth = 4

// execution is the state shared by every instruction of one transaction.
type execution struct {
	rt     *Runtime
	view   *ledger.View
	logs   []string
	events []domain.NftEvent
}

// InvokeContext is what a program sees while it processes one instruction.
// Programs may only touch the accounts passed to the instruction.
type InvokeContext struct {
	ctx       context.Context
	exec      *execution
	programID solana.PublicKey
	accounts  []solana.AccountMeta
	depth     int
}

func (ic *InvokeContext) Context() context.Context       { return ic.ctx }
func (ic *InvokeContext) ProgramID() solana.PublicKey    { return ic.programID }
func (ic *InvokeContext) Accounts() []solana.AccountMeta { return ic.accounts }
func (ic *InvokeContext) Depth() int                     { return ic.depth }

// Account returns the i-th instruction account.
func (ic *InvokeContext) Account(i int) (solana.AccountMeta, error) {
	if i < 0 || i >= len(ic.accounts) {
		return solana.AccountMeta{}, ErrNotEnoughAccountKeys
	}
	return ic.accounts[i], nil
}

// RequireAccounts fails with ErrNotEnoughAccountKeys unless at least n accounts were passed.
func (ic *InvokeContext) RequireAccounts(n int) error {
	if len(ic.accounts) < n {
		return ErrNotEnoughAccountKeys
	}
	return nil
}

func (ic *InvokeContext) meta(addr solana.PublicKey) (solana.AccountMeta, bool) {
	var (
		found bool
		m     solana.AccountMeta
	)
	// An account may be listed more than once; privileges are the union.
	for _, a := range ic.accounts {
		if a.PublicKey != addr {
			continue
		}
		if !found {
			m, found = a, true
			continue
		}
		m.IsSigner = m.IsSigner || a.IsSigner
		m.IsWritable = m.IsWritable || a.IsWritable
	}
	return m, found
}

// IsSigner reports whether addr signed this instruction.
func (ic *InvokeContext) IsSigner(addr solana.PublicKey) bool {
	m, ok := ic.meta(addr)
	return ok && m.IsSigner
}

// IsWritable reports whether addr is writable in this instruction.
func (ic *InvokeContext) IsWritable(addr solana.PublicKey) bool {
	m, ok := ic.meta(addr)
	return ok && m.IsWritable
}

// Load returns a copy of the account at addr, or nil if it does not exist.
func (ic *InvokeContext) Load(addr solana.PublicKey) (*domain.Account, error) {
	if _, ok := ic.meta(addr); !ok {
		return nil, ErrMissingAccount
	}
	return ic.exec.view.Get(ic.ctx, addr)
}

// Store writes acct at addr after checking the account modification rules:
// the account must be writable, only its owner may change its data, owner or
// debit it, and anyone may credit it. A missing account counts as an empty
// system-owned one.
func (ic *InvokeContext) Store(addr solana.PublicKey, acct *domain.Account) error {
	m, ok := ic.meta(addr)
	if !ok {
		return ErrMissingAccount
	}

	prior, err := ic.exec.view.Get(ic.ctx, addr)
	if err != nil {
		return err
	}
	if prior == nil {
		prior = &domain.Account{Owner: solana.SystemProgramID}
	}

	dataChanged := !bytes.Equal(prior.Data, acct.Data)
	switch {
	case !m.IsWritable && dataChanged:
		return ErrReadonlyDataModified
	case !m.IsWritable && prior.Lamports != acct.Lamports:
		return ErrReadonlyLamportChange
	case !m.IsWritable && prior.Owner != acct.Owner:
		return ErrModifiedProgramID
	case prior.Executable != acct.Executable:
		return ErrModifiedProgramID
	case prior.Owner != acct.Owner && prior.Owner != ic.programID:
		return ErrModifiedProgramID
	case dataChanged && prior.Owner != ic.programID:
		return ErrExternalDataModified
	case acct.Lamports < prior.Lamports && prior.Owner != ic.programID:
		return ErrExternalLamportSpend
	}

	ic.exec.view.Set(addr, acct)
	return nil
}

// Log appends a "Program log:" line to the transaction logs.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.exec.logs = append(ic.exec.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// Emit records a lifecycle event. The runtime fills in id, signature, slot,
// ordering and timestamp once the transaction commits.
func (ic *InvokeContext) Emit(e domain.NftEvent) {
	ic.exec.events = append(ic.exec.events, e)
}

// Invoke calls another program. Every account of ix must have been passed to
// the calling instruction with at least the requested privileges; signerSeeds
// let the caller sign for addresses derived from its own program id. Writes
// made by a failing callee are rolled back before the error is returned.
func (ic *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth >= MaxInvokeDepth {
		return ErrCallDepth
	}
	if _, ok := ic.meta(ix.Program); !ok {
		return ErrMissingAccount
	}

	pdaSigners := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(ic.programID, seeds...)
		if err != nil {
			return ErrInvalidSeeds
		}
		pdaSigners[pda] = true
	}

	for _, a := range ix.Accounts {
		caller, ok := ic.meta(a.PublicKey)
		if !ok {
			return ErrMissingAccount
		}
		if a.IsWritable && !caller.IsWritable {
			return ErrPrivilegeEscalation
		}
		if a.IsSigner && !caller.IsSigner && !pdaSigners[a.PublicKey] {
			return ErrPrivilegeEscalation
		}
	}

	prog, ok := ic.exec.rt.program(ix.Program)
	if !ok {
		return ErrUnsupportedProgramID
	}

	callee := &InvokeContext{
		ctx:       ic.ctx,
		exec:      ic.exec,
		programID: ix.Program,
		accounts:  ix.Accounts,
		depth:     ic.depth + 1,
	}

	restore := ic.exec.view.OpIndex()
	if err := ic.exec.run(callee, prog, ix.Data); err != nil {
		ic.exec.view.Rollback(restore)
		return err
	}
	return nil
}

// run processes one instruction and writes the invoke/result log lines.
func (e *execution) run(ic *InvokeContext, prog Program, data []byte) error {
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [%d]", prog.ID(), ic.depth))

	err := prog.Process(ic, data)
	e.rt.metrics.RecordInstruction(prog.Name(), err)
	if err != nil {
		e.logs = append(e.logs, fmt.Sprintf("Program %s failed: %s", prog.ID(), err))
		return err
	}

	e.logs = append(e.logs, fmt.Sprintf("Program %s success", prog.ID()))
	return nil
}
