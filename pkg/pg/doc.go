// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// Connect opens a *pgxpool.Pool from a Config parsed out of PG_* environment
// variables, retrying while the database comes up. Migrate runs goose
// migrations from an fs.FS, usually an embed.FS owned by the store that needs
// the schema. Healthcheck adapts the pool to a func(context.Context) error
// probe.
//
// Transactions travel in the context: InTx begins one and binds it with
// WithTx, and Conn picks the bound transaction or falls back to the pool.
// Stores written against Conn take row locks that last until the surrounding
// request commits.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, log); err != nil {
//		return err
//	}
//
//	err = pg.InTx(ctx, pool, func(ctx context.Context) error {
//		_, err := pg.Conn(ctx, pool).Exec(ctx, "SELECT 1")
//		return err
//	})
//
// The error helpers (IsNotFoundError, IsDuplicateKeyError and friends) wrap
// the pgx and SQLSTATE checks that show up in every store.
package pg
