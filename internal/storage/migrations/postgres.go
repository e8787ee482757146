package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunPostgresMigrations applies every embedded PostgreSQL migration, each in
// its own transaction. Migrations are written with IF NOT EXISTS, so
// re-running is a no-op.
func RunPostgresMigrations(ctx context.Context, db TxBeginner) error {
	migrations, err := Load(Postgres)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		tx, err := db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}
