package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"solana-nft-lab/internal/config"
	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/validator"
)

// rootOptions is the state shared by every sub-command. cfg and log are
// filled in before any RunE executes.
type rootOptions struct {
	configFile string

	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the nftlab command tree.
func NewRootCommand() *cobra.Command {
	root := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:          "nftlab",
		Short:        "Local Solana cluster and client for the NFT lifecycle program",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return root.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if root.log != nil {
				_ = root.log.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&root.configFile, "config", "", "config file, E.g. `./nftlab.yaml`")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("rpc-endpoint", "", "cluster JSON-RPC endpoint")
	flags.String("ws-endpoint", "", "cluster WebSocket endpoint, empty to poll for confirmations")

	bindFlag(root.v, "log.level", flags.Lookup("log-level"))
	bindFlag(root.v, "log.format", flags.Lookup("log-format"))
	bindFlag(root.v, "rpc.endpoint", flags.Lookup("rpc-endpoint"))
	bindFlag(root.v, "rpc.ws_endpoint", flags.Lookup("ws-endpoint"))

	cmd.AddCommand(
		NewServeCommand(root),
		NewScenarioCommand(root),
		NewDeployCommand(root),
		NewInspectCommand(root),
		NewMigrateCommand(root),
		NewKeygenCommand(),
		NewVersionCommand(),
	)
	return cmd
}

func (r *rootOptions) init() error {
	cfg, err := config.Load(r.v, r.configFile)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	r.cfg, r.log = cfg, log
	return nil
}

// cluster is a harness plus whatever it holds open.
type cluster struct {
	*harness.Harness
	closers []func() error
}

func (c *cluster) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// connect returns a harness over an in-process validator when local is set,
// otherwise over the configured RPC and WebSocket endpoints.
func (r *rootOptions) connect(ctx context.Context, local bool) (*cluster, error) {
	if local {
		v, err := validator.New(ctx, r.cfg, r.log)
		if err != nil {
			return nil, errors.Wrap(err, "start local validator")
		}
		return &cluster{
			Harness: harness.New(v.Client(), r.log),
			closers: []func() error{v.Close},
		}, nil
	}

	rpc := solana.NewHTTPClient(r.cfg.RPC.Endpoint,
		solana.WithTimeout(r.cfg.RPC.Timeout),
		solana.WithMaxRetries(r.cfg.RPC.MaxRetries),
		solana.WithCommitment(r.cfg.RPC.Commitment),
		solana.WithObserver(func(method string, _ error, d time.Duration) {
			observability.DefaultMetrics.RecordRPCLatency(method, d.Seconds())
		}),
	)
	opts := []harness.Option{harness.WithCommitment(r.cfg.RPC.Commitment)}
	c := &cluster{}

	if r.cfg.RPC.WSEndpoint != "" {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = r.cfg.RPC.Commitment
		ws, err := solana.NewWSClient(ctx, r.cfg.RPC.WSEndpoint, &wsCfg, r.log)
		if err != nil {
			return nil, errors.Wrapf(err, "connect %s", r.cfg.RPC.WSEndpoint)
		}
		opts = append(opts, harness.WithSubscriptions(ws))
		c.closers = append(c.closers, ws.Close)
	}

	c.Harness = harness.New(rpc, r.log, opts...)
	return c, nil
}

// bindFlag ties a command flag to a config key. Bind only fails on a nil
// flag, which is a programming error.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
