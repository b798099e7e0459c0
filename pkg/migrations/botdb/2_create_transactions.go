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
		log.Println("creating transactions table...")
		if err := mghelper.CreateSchema(ctx, db, &ledger.TransactionDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &ledger.TransactionDao{}, "hash"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledger.TransactionDao{},
			"from_user_id", "to_user_id", "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transactions table...")
		return mghelper.DropTables(ctx, db, &ledger.TransactionDao{})
	})
}
