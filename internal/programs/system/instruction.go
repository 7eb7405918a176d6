// Package system implements the builtin system program: account creation,
// ownership assignment and lamport transfers.
package system

import (
	"encoding/binary"

	"github.com/near/borsh-go"

	"solana-nft-lab/internal/solana"
)

// Instruction tags, encoded as little-endian u32.
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
	InstructionAllocate      uint32 = 8
)

// MaxPermittedDataLength caps account data size.
const MaxPermittedDataLength = 10 * 1024 * 1024

type createAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    [32]uint8
}

type assignArgs struct {
	Owner [32]uint8
}

type transferArgs struct {
	Lamports uint64
}

type allocateArgs struct {
	Space uint64
}

func encode(tag uint32, args interface{}) []byte {
	body, err := borsh.Serialize(args)
	if err != nil {
		// Arg structs are fixed-size; serialization cannot fail.
		panic(err)
	}
	data := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(data, tag)
	return append(data, body...)
}

// CreateAccount funds a new account from payer and assigns it to owner.
// Both payer and the new account must sign.
func CreateAccount(payer, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID,
		encode(InstructionCreateAccount, createAccountArgs{Lamports: lamports, Space: space, Owner: owner}),
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(newAccount, true),
	)
}

// Assign changes the owner of a system account.
func Assign(account, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID,
		encode(InstructionAssign, assignArgs{Owner: owner}),
		solana.NewAccountMeta(account, true),
	)
}

// Transfer moves lamports between accounts.
func Transfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID,
		encode(InstructionTransfer, transferArgs{Lamports: lamports}),
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// Allocate sets the data size of an empty system account.
func Allocate(account solana.PublicKey, space uint64) solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID,
		encode(InstructionAllocate, allocateArgs{Space: space}),
		solana.NewAccountMeta(account, true),
	)
}
