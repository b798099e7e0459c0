package botdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/promptcash/paybot/pkg/ledger"
	mghelper "github.com/promptcash/paybot/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating users table...")
		if err := mghelper.CreateSchema(ctx, db, &ledger.UserDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &ledger.UserDao{}, "platform_id"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledger.UserDao{}, "handle", "phone")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping users table...")
		return mghelper.DropTables(ctx, db, &ledger.UserDao{})
	})
}
