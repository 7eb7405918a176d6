package migrations

import (
	"context"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, log *zap.Logger) error {
	files, err := List(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", file)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return errors.Wrapf(err, "apply migration %s", file)
		}
		log.Info("applied migration", zap.String("dialect", "postgres"), zap.String("file", file))
	}

	return nil
}
