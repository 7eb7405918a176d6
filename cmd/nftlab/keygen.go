package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"solana-nft-lab/internal/solana"
)

type keygenCmdOptions struct {
	Outfile string
	Force   bool
}

func NewKeygenCommand() *cobra.Command {
	opts := &keygenCmdOptions{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file in the solana CLI format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return keygenHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Outfile, "outfile", "o", "", "path of the keypair file")
	flags.BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("outfile")

	return cmd
}

func keygenHandler(opts *keygenCmdOptions, cmd *cobra.Command, _ []string) error {
	if !opts.Force {
		if _, err := os.Stat(opts.Outfile); err == nil {
			return errors.Errorf("%s exists, use --force to overwrite", opts.Outfile)
		}
	}

	kp, err := solana.NewKeypair()
	if err != nil {
		return err
	}
	if err := solana.SaveKeypairFile(opts.Outfile, kp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pubkey: %s\n", kp.PublicKey)
	return nil
}
