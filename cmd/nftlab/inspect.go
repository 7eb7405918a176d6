package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/solana"
)

type inspectCmdOptions struct {
	Local   bool
	History int
}

func NewInspectCommand(root *rootOptions) *cobra.Command {
	opts := &inspectCmdOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <mint>",
		Short: "Show a mint, its metadata, its edition and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectHandler(root, opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Local, "local", false, "read from an in-process validator over the configured ledger")
	flags.IntVar(&opts.History, "history", 20, "number of recent signatures to show")

	return cmd
}

func inspectHandler(root *rootOptions, opts *inspectCmdOptions, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mint, err := solana.ParsePublicKey(args[0])
	if err != nil {
		return err
	}

	c, err := root.connect(ctx, opts.Local)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.Inspect(ctx, mint, opts.History)
	if err != nil {
		return err
	}
	info, err := c.RPC().GetAccountInfo(ctx, mint)
	if err != nil {
		return err
	}
	var lamports uint64
	if info != nil {
		lamports = info.Lamports
	}

	return printSnapshot(cmd.OutOrStdout(), snap, lamports)
}

func printSnapshot(out io.Writer, snap *harness.Snapshot, lamports uint64) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "mint\t%s\n", snap.Mint)
	fmt.Fprintf(w, "rent\t%s SOL\n", solana.LamportsToSOL(lamports))
	fmt.Fprintf(w, "supply\t%d\n", snap.State.Supply)
	fmt.Fprintf(w, "decimals\t%d\n", snap.State.Decimals)
	fmt.Fprintf(w, "mint authority\t%s\n", optionalKey(snap.State.MintAuthority))
	fmt.Fprintf(w, "freeze authority\t%s\n", optionalKey(snap.State.FreezeAuthority))

	if md := snap.Metadata; md != nil {
		fmt.Fprintf(w, "name\t%s\n", md.Name)
		fmt.Fprintf(w, "symbol\t%s\n", md.Symbol)
		fmt.Fprintf(w, "uri\t%s\n", md.URI)
		fmt.Fprintf(w, "update authority\t%s\n", md.UpdateAuthority)
		fmt.Fprintf(w, "seller fee\t%d bps\n", md.SellerFeeBasisPoints)
		fmt.Fprintf(w, "mutable\t%t\n", md.IsMutable)
	} else {
		fmt.Fprintf(w, "metadata\t-\n")
	}
	if ed := snap.Edition; ed != nil {
		maxSupply := "unlimited"
		if ed.MaxSupply != nil {
			maxSupply = fmt.Sprint(*ed.MaxSupply)
		}
		fmt.Fprintf(w, "edition\tsupply %d, max %s\n", ed.Supply, maxSupply)
	} else {
		fmt.Fprintf(w, "edition\t-\n")
	}

	for _, h := range snap.History {
		status := "ok"
		if h.Err != nil {
			status = h.Err.Error()
		}
		when := "-"
		if h.BlockTime != nil {
			when = time.Unix(*h.BlockTime, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "tx\t%s\tslot %d\t%s\t%s\n", h.Signature, h.Slot, when, status)
	}
	return w.Flush()
}

func optionalKey(k *solana.PublicKey) string {
	if k == nil {
		return "-"
	}
	return k.String()
}
