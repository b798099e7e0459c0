// Package pgutil holds postgres connection plumbing shared by the bot, the
// migrate CLI, and the integration tests.
package pgutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/promptcash/paybot/pkg/config"
)

// ConnectDB opens a bun connection to the configured database and verifies
// it with a ping.
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(cfg.SSLMode == "disable"),
	)

	db := bun.NewDB(sql.OpenDB(connector), pgdialect.New())
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database %s: %w", cfg.Database, err)
	}
	return db, nil
}
