// Package programs lists the builtin programs of the local cluster.
package programs

import (
	"solana-nft-lab/internal/programs/associated"
	"solana-nft-lab/internal/programs/metadata"
	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
)

// Builtins returns a fresh instance of every builtin program.
func Builtins() []runtime.Program {
	return []runtime.Program{
		system.New(),
		token.New(),
		associated.New(),
		metadata.New(),
		nft.New(),
	}
}
