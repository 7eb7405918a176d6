package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	chstore "solana-nft-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn if needed and
// applies the embedded schema. The returned connection points at that
// database and belongs to the caller.
func RunClickhouseMigrations(ctx context.Context, dsn string, log *zap.Logger) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, errors.Wrap(err, "connect clickhouse db")
	}
	if err := applyClickhouse(ctx, conn, log); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return errors.Wrap(err, "connect clickhouse admin")
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return errors.Wrapf(err, "create database %s", dbName)
	}
	return nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, log *zap.Logger) error {
	files, err := List(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", file)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			return errors.Wrapf(err, "migration %s", file)
		}
		// The native protocol takes one statement per Exec.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "apply migration %s", file)
			}
		}
		log.Info("applied migration", zap.String("dialect", "clickhouse"), zap.String("file", file))
	}
	return nil
}

// splitStatements cuts a script at top-level semicolons after dropping
// "--" comment lines. A semicolon inside a quoted literal is rejected rather
// than parsed, so schema files must keep literals free of them.
func splitStatements(script string) ([]string, error) {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}
	body := strings.Join(kept, "\n")

	var (
		stmts   []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\'':
			if inQuote && i+1 < len(body) && body[i+1] == '\'' {
				i++
				continue
			}
			inQuote = !inQuote
		case ';':
			if inQuote {
				return nil, errors.Errorf("semicolon inside string literal at offset %d", i)
			}
			if stmt := strings.TrimSpace(body[start:i]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(body[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse clickhouse dsn")
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return db, nil
}
