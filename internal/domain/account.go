package domain

import "solana-nft-lab/internal/solana"

// Account is a ledger entry keyed by its address.
// Corresponds to the accounts table in PostgreSQL.
type Account struct {
	Lamports   uint64           // balance
	Owner      solana.PublicKey // program allowed to modify Data
	Executable bool             // program accounts only
	Data       []byte           // program-defined layout
	RentEpoch  uint64           // epoch of last rent collection
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// Info converts to the RPC representation.
func (a *Account) Info() *solana.AccountInfo {
	return &solana.AccountInfo{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}
}

// AccountChange is one write of a committed transaction.
type AccountChange struct {
	Address solana.PublicKey
	Account *Account // nil deletes the account
}
