// Command nftlab runs a local cluster hosting the NFT lifecycle program and
// drives the lifecycle against it or against a remote cluster.
//
// Usage:
//
//	nftlab serve [--listen :8899] [--backend memory|pebble|postgres]
//	nftlab scenario [names...] [--local] [--report out.md] [--csv out.csv]
//	nftlab deploy --keypair id.json [--name ...] [--symbol ...] [--uri ...]
//	nftlab inspect <mint> [--history 20]
//	nftlab migrate [--postgres] [--clickhouse]
//	nftlab keygen --outfile id.json
package main

import (
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
