package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-nft-lab/internal/storage/migrations"
	pgstore "solana-nft-lab/internal/storage/postgres"
)

type migrateCmdOptions struct {
	Postgres   bool
	Clickhouse bool
}

func NewMigrateCommand(root *rootOptions) *cobra.Command {
	opts := &migrateCmdOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL ledger and ClickHouse event schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateHandler(root, opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Postgres, "postgres", true, "migrate postgres.dsn")
	flags.BoolVar(&opts.Clickhouse, "clickhouse", true, "migrate clickhouse.dsn")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("clickhouse-dsn", "", "ClickHouse connection string")

	bindFlag(root.v, "postgres.dsn", flags.Lookup("postgres-dsn"))
	bindFlag(root.v, "clickhouse.dsn", flags.Lookup("clickhouse-dsn"))

	return cmd
}

func migrateHandler(root *rootOptions, opts *migrateCmdOptions, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := root.log.With(zap.String("cmd", "migrate"))

	if !opts.Postgres && !opts.Clickhouse {
		return errors.New("nothing to migrate: both --postgres and --clickhouse are off")
	}

	if opts.Postgres {
		if root.cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is not set")
		}
		pool, err := pgstore.NewPool(ctx, root.cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		err = migrations.RunPostgresMigrations(ctx, pool, log)
		pool.Close()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "postgres: up to date")
	}

	if opts.Clickhouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, root.cfg.Clickhouse.DSN, log)
		if err != nil {
			return err
		}
		if err := conn.Close(); err != nil {
			log.Warn("close clickhouse", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "clickhouse: up to date")
	}
	return nil
}
