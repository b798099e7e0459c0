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
		log.Println("creating payment_requests table...")
		if err := mghelper.CreateSchema(ctx, db, &ledger.PaymentRequestDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &ledger.PaymentRequestDao{},
			"payer_id", "requester_id", "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping payment_requests table...")
		return mghelper.DropTables(ctx, db, &ledger.PaymentRequestDao{})
	})
}
