package solana

import "sort"

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool

	isPayer   bool
	isProgram bool
}

// NewAccountMeta returns a writable account meta.
func NewAccountMeta(pk PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only account meta.
func NewReadonlyAccountMeta(pk PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: isSigner}
}

// Instruction is a program invocation before compilation into a message.
type Instruction struct {
	Program  PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{Program: program, Accounts: accounts, Data: data}
}

// CompiledInstruction references accounts by index into the message.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// sortAccountMetas orders accounts by the message rules: payer first,
// signers before non-signers, writable before read-only, programs last.
func sortAccountMetas(accounts []AccountMeta) {
	sort.SliceStable(accounts, func(i, j int) bool {
		a, b := accounts[i], accounts[j]
		if a.isPayer != b.isPayer {
			return a.isPayer
		}
		if a.isProgram != b.isProgram {
			return !a.isProgram
		}
		if a.IsSigner != b.IsSigner {
			return a.IsSigner
		}
		if a.IsWritable != b.IsWritable {
			return a.IsWritable
		}
		return a.PublicKey.Compare(b.PublicKey) < 0
	})
}

// mergeAccountMetas removes duplicates, promoting permissions to the
// strongest requested.
func mergeAccountMetas(accounts []AccountMeta) []AccountMeta {
	index := make(map[PublicKey]int, len(accounts))
	merged := make([]AccountMeta, 0, len(accounts))

	for _, a := range accounts {
		i, ok := index[a.PublicKey]
		if !ok {
			index[a.PublicKey] = len(merged)
			merged = append(merged, a)
			continue
		}
		m := &merged[i]
		m.IsSigner = m.IsSigner || a.IsSigner
		m.IsWritable = m.IsWritable || a.IsWritable
		m.isPayer = m.isPayer || a.isPayer
		// An account used both as program and as data account is not a pure program.
		m.isProgram = m.isProgram && a.isProgram
	}
	return merged
}
