package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/scenario"
	"solana-nft-lab/internal/solana"
)

type deployCmdOptions struct {
	Local     bool
	Keypair   string
	Airdrop   string
	MinterOut string
	Name      string
	Symbol    string
	URI       string
	InitOnly  bool
}

func NewDeployCommand(root *rootOptions) *cobra.Command {
	opts := &deployCmdOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create and mint one NFT with createNft and print its accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deployHandler(root, opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Local, "local", false, "deploy to an in-process validator instead of --rpc-endpoint")
	flags.StringVar(&opts.Keypair, "keypair", "", "authority keypair file, a fresh funded wallet when empty")
	flags.StringVar(&opts.Airdrop, "airdrop", "0", "SOL to airdrop to the authority first")
	flags.StringVar(&opts.MinterOut, "minter-out", "", "save the generated minter keypair to this file")
	flags.StringVar(&opts.Name, "name", "TestNFT", "metadata name")
	flags.StringVar(&opts.Symbol, "symbol", "TestNFT", "metadata symbol")
	flags.StringVar(&opts.URI, "uri", scenario.ExampleURI, "metadata URI")
	flags.BoolVar(&opts.InitOnly, "init-only", false, "only run initializeNft, leaving supply at zero")

	return cmd
}

func deployHandler(root *rootOptions, opts *deployCmdOptions, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := root.log.With(zap.String("cmd", "deploy"))
	out := cmd.OutOrStdout()

	airdrop, err := decimal.NewFromString(opts.Airdrop)
	if err != nil {
		return errors.Wrapf(err, "--airdrop %q", opts.Airdrop)
	}

	c, err := root.connect(ctx, opts.Local)
	if err != nil {
		return err
	}
	defer c.Close()

	var authority *solana.Keypair
	if opts.Keypair != "" {
		if authority, err = solana.LoadKeypairFile(opts.Keypair); err != nil {
			return err
		}
		if lamports := solana.SOLToLamports(airdrop); lamports > 0 {
			if err := c.Fund(ctx, authority.PublicKey, lamports); err != nil {
				return err
			}
		}
	} else {
		lamports := solana.SOLToLamports(airdrop)
		if lamports == 0 {
			lamports = solana.LamportsPerSOL
		}
		if authority, err = c.Wallet(ctx, lamports); err != nil {
			return err
		}
	}

	minter, err := solana.NewKeypair()
	if err != nil {
		return errors.Wrap(err, "generate minter")
	}
	if opts.MinterOut != "" {
		if err := solana.SaveKeypairFile(opts.MinterOut, minter); err != nil {
			return err
		}
	}
	log.Info("deploying",
		zap.Stringer("authority", authority.PublicKey),
		zap.Stringer("mint", minter.PublicKey),
		zap.Bool("init_only", opts.InitOnly),
	)

	if opts.InitOnly {
		if err := c.InitializeNft(ctx, authority, minter); err != nil {
			return err
		}
		fmt.Fprintf(out, "authority  %s\nmint       %s\n", authority.PublicKey, minter.PublicKey)
		return nil
	}

	item, err := c.CreateNft(ctx, authority, minter, nft.MetadataArgs{
		Name:   opts.Name,
		Symbol: opts.Symbol,
		URI:    opts.URI,
	})
	if err != nil {
		return err
	}

	balance, err := c.RPC().GetBalance(ctx, authority.PublicKey)
	if err != nil {
		return errors.Wrap(err, "authority balance")
	}
	fmt.Fprintf(out, "authority  %s (%s SOL)\n", authority.PublicKey, solana.LamportsToSOL(balance))
	fmt.Fprintf(out, "mint       %s\n", item.Mint)
	fmt.Fprintf(out, "holder     %s\n", item.Holder)
	fmt.Fprintf(out, "metadata   %s\n", item.Metadata)
	fmt.Fprintf(out, "edition    %s\n", item.Edition)
	return nil
}
