package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-nft-lab/internal/rpcserver"
	"solana-nft-lab/internal/validator"
)

// forceExitAfter bounds graceful shutdown once a signal arrives.
const forceExitAfter = 30 * time.Second

func NewServeCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local validator and serve its JSON-RPC API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveHandler(root, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", "", "JSON-RPC listen address, E.g. `:8899`")
	flags.String("backend", "", "ledger backend (memory, pebble, postgres)")
	flags.String("pebble-path", "", "pebble ledger directory")
	flags.Bool("clickhouse", false, "record lifecycle events in ClickHouse")

	bindFlag(root.v, "server.listen", flags.Lookup("listen"))
	bindFlag(root.v, "ledger.backend", flags.Lookup("backend"))
	bindFlag(root.v, "ledger.pebble_path", flags.Lookup("pebble-path"))
	bindFlag(root.v, "clickhouse.enabled", flags.Lookup("clickhouse"))

	return cmd
}

func serveHandler(root *rootOptions, cmd *cobra.Command, _ []string) error {
	log := root.log.With(zap.String("cmd", "serve"))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	v, err := validator.New(ctx, root.cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := v.Close(); err != nil {
			log.Warn("close validator", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
			return
		}

		// A second signal, or a shutdown that hangs, ends the process.
		select {
		case sig := <-sigCh:
			log.Warn("forcing shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(forceExitAfter):
			log.Error("shutdown timed out", zap.Duration("after", forceExitAfter))
			os.Exit(1)
		}
	}()

	log.Info("validator serving",
		zap.String("listen", root.cfg.Server.Listen),
		zap.Stringer("faucet", v.Faucet.PublicKey),
	)
	return rpcserver.New(v, log).ListenAndServe(ctx, root.cfg.Server.Listen)
}
