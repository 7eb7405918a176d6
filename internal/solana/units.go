package solana

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL uint64 = 1_000_000_000

var solExp = decimal.NewFromInt(int64(LamportsPerSOL))

// LamportsToSOL converts lamports to SOL without float rounding.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(solExp)
}

// SOLToLamports converts a SOL amount to lamports, truncating sub-lamport digits.
func SOLToLamports(sol decimal.Decimal) uint64 {
	l := sol.Mul(solExp).Truncate(0)
	if l.Sign() < 0 {
		return 0
	}
	return l.BigInt().Uint64()
}
