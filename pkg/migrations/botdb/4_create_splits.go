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
		log.Println("creating split_payments and split_participants tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&ledger.SplitPaymentDao{}, &ledger.SplitParticipantDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &ledger.SplitPaymentDao{},
			"creator_id", "status"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledger.SplitParticipantDao{},
			"split_id", "user_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping split tables...")
		return mghelper.DropTables(ctx, db,
			&ledger.SplitParticipantDao{}, &ledger.SplitPaymentDao{})
	})
}
