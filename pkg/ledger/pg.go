package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/internal/metrics"
	"github.com/promptcash/paybot/pkg/payments"
)

type pgStore struct {
	db         *bun.DB
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ Store = (*pgStore)(nil)

// NewStore creates the postgres ledger. Writes retry up to retries times with
// retryDelay backoff before surfacing ErrBookkeepingDelayed.
func NewStore(db *bun.DB, retries int, retryDelay time.Duration, logger *zap.Logger) Store {
	if retries < 1 {
		retries = 1
	}
	return &pgStore{db: db, retries: retries, retryDelay: retryDelay, logger: logger}
}

// withRetry runs a write with bounded attempts and a short backoff. Context
// cancellation stops immediately; exhaustion is labeled ErrBookkeepingDelayed
// so callers can distinguish "record is late" from "operation failed".
func (s *pgStore) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt < s.retries {
			metrics.LedgerRetries.WithLabelValues(op).Inc()
			s.logger.Warn("Ledger write failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrBookkeepingDelayed, op, lastErr)
}

func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *pgStore) CreateUser(ctx context.Context, usr *payments.User) error {
	dao := toUserDao(usr)
	err := s.withRetry(ctx, "create_user", func(ctx context.Context) error {
		_, err := s.db.NewInsert().Model(dao).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	usr.ID = dao.ID
	usr.CreatedAt = dao.CreatedAt
	return nil
}

func (s *pgStore) userWhere(ctx context.Context, clause string, args ...any) (*payments.User, error) {
	dao := new(UserDao)
	err := s.db.NewSelect().Model(dao).Where(clause, args...).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(dao), nil
}

func (s *pgStore) UserByID(ctx context.Context, id int64) (*payments.User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *pgStore) UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error) {
	return s.userWhere(ctx, "platform_id = ?", platformID)
}

func (s *pgStore) UserByHandle(ctx context.Context, handle string) (*payments.User, error) {
	return s.userWhere(ctx, "lower(handle) = ?", strings.ToLower(handle))
}

func (s *pgStore) UserByPhone(ctx context.Context, phone string) (*payments.User, error) {
	return s.userWhere(ctx, "phone = ?", phone)
}

func (s *pgStore) ListUsers(ctx context.Context) ([]*payments.User, error) {
	var daos []*UserDao
	if err := s.db.NewSelect().Model(&daos).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*payments.User, 0, len(daos))
	for _, dao := range daos {
		users = append(users, toUser(dao))
	}
	return users, nil
}

func (s *pgStore) AddTotals(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error {
	return s.withRetry(ctx, "add_totals", func(ctx context.Context) error {
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if fromUserID != nil {
				if _, err := tx.NewUpdate().Model((*UserDao)(nil)).
					Set("total_sent = total_sent + ?", amount.String()).
					Where("id = ?", *fromUserID).
					Exec(ctx); err != nil {
					return err
				}
			}
			if toUserID != nil {
				if _, err := tx.NewUpdate().Model((*UserDao)(nil)).
					Set("total_received = total_received + ?", amount.String()).
					Where("id = ?", *toUserID).
					Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ---- transactions ----

func (s *pgStore) CreateTransaction(ctx context.Context, tx *payments.Transaction) error {
	dao := toTransactionDao(tx)
	err := s.withRetry(ctx, "create_transaction", func(ctx context.Context) error {
		_, err := s.db.NewInsert().Model(dao).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	tx.ID = dao.ID
	tx.CreatedAt = dao.CreatedAt
	return nil
}

func (s *pgStore) SettleTransaction(ctx context.Context, hash string, status payments.TxStatus) error {
	return s.withRetry(ctx, "settle_transaction", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*TransactionDao)(nil)).
			Set("status = ?", string(status)).
			Set("updated_at = ?", time.Now()).
			Where("hash = ? AND status = ?", hash, string(payments.TxStatusPending)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

func (s *pgStore) TransactionsForUser(ctx context.Context, userID int64, limit int) ([]*payments.Transaction, error) {
	var daos []*TransactionDao
	err := s.db.NewSelect().Model(&daos).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txs := make([]*payments.Transaction, 0, len(daos))
	for _, dao := range daos {
		txs = append(txs, toTransaction(dao))
	}
	return txs, nil
}

// ---- payment requests ----

func (s *pgStore) CreatePaymentRequest(ctx context.Context, req *payments.PaymentRequest) error {
	dao := toRequestDao(req)
	err := s.withRetry(ctx, "create_request", func(ctx context.Context) error {
		_, err := s.db.NewInsert().Model(dao).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create payment request: %w", err)
	}
	req.ID = dao.ID
	req.CreatedAt = dao.CreatedAt
	return nil
}

// PaymentRequest reads a request, lazily expiring it when the expiry
// timestamp has passed. No background sweep is required.
func (s *pgStore) PaymentRequest(ctx context.Context, id int64) (*payments.PaymentRequest, error) {
	dao := new(PaymentRequestDao)
	err := s.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}

	req := toRequest(dao)
	if req.Expired(time.Now()) {
		if err := s.TransitionRequest(ctx, id, payments.RequestStatusExpired); err != nil && !errors.Is(err, ErrNoRows) {
			return nil, err
		}
		req.Status = payments.RequestStatusExpired
	}
	return req, nil
}

func (s *pgStore) TransitionRequest(ctx context.Context, id int64, status payments.RequestStatus) error {
	return s.withRetry(ctx, "transition_request", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*PaymentRequestDao)(nil)).
			Set("status = ?", string(status)).
			Where("id = ? AND status = ?", id, string(payments.RequestStatusPending)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

// ---- splits ----

func (s *pgStore) CreateSplit(ctx context.Context, split *payments.SplitPayment) error {
	err := s.withRetry(ctx, "create_split", func(ctx context.Context) error {
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			dao := toSplitDao(split)
			if _, err := tx.NewInsert().Model(dao).Exec(ctx); err != nil {
				return err
			}
			split.ID = dao.ID
			split.CreatedAt = dao.CreatedAt

			for _, p := range split.Participants {
				p.SplitID = dao.ID
				pdao := toParticipantDao(p)
				if _, err := tx.NewInsert().Model(pdao).Exec(ctx); err != nil {
					return err
				}
				p.ID = pdao.ID
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create split: %w", err)
	}
	return nil
}

func (s *pgStore) Split(ctx context.Context, id int64) (*payments.SplitPayment, error) {
	dao := new(SplitPaymentDao)
	err := s.db.NewSelect().Model(dao).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}

	var pdaos []*SplitParticipantDao
	err = s.db.NewSelect().Model(&pdaos).
		Where("split_id = ?", id).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get split participants: %w", err)
	}

	return toSplit(dao, pdaos), nil
}

// SetParticipantStatus moves one participant along the response state
// machine: accept from pending (re-accepts are idempotent), decline from
// pending only. Paid is terminal and written only by MarkParticipantPaid.
// Returns ErrNoRows when the row does not exist or is not in an eligible
// state.
func (s *pgStore) SetParticipantStatus(ctx context.Context, splitID, userID int64, status payments.ParticipantStatus) error {
	from := []string{string(payments.ParticipantStatusPending)}
	if status == payments.ParticipantStatusAccepted {
		from = append(from, string(payments.ParticipantStatusAccepted))
	}
	return s.withRetry(ctx, "set_participant_status", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*SplitParticipantDao)(nil)).
			Set("status = ?", string(status)).
			Where("split_id = ? AND user_id = ? AND status IN (?)", splitID, userID, bun.In(from)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

func (s *pgStore) MarkParticipantPaid(ctx context.Context, splitID, userID int64, paidAt time.Time) error {
	return s.withRetry(ctx, "mark_participant_paid", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*SplitParticipantDao)(nil)).
			Set("status = ?", string(payments.ParticipantStatusPaid)).
			Set("paid_at = ?", paidAt).
			Where("split_id = ? AND user_id = ?", splitID, userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

func (s *pgStore) CompleteSplit(ctx context.Context, id int64, completedAt time.Time) error {
	return s.withRetry(ctx, "complete_split", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*SplitPaymentDao)(nil)).
			Set("status = ?", string(payments.SplitStatusCompleted)).
			Set("completed_at = ?", completedAt).
			Where("id = ? AND status = ?", id, string(payments.SplitStatusActive)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

func (s *pgStore) CancelSplit(ctx context.Context, id int64) error {
	return s.withRetry(ctx, "cancel_split", func(ctx context.Context) error {
		res, err := s.db.NewUpdate().Model((*SplitPaymentDao)(nil)).
			Set("status = ?", string(payments.SplitStatusCancelled)).
			Where("id = ? AND status = ?", id, string(payments.SplitStatusActive)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNoRows
		}
		return nil
	})
}

// ---- analytics ----

func (s *pgStore) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	stats := &Stats{Volume: make(map[string]decimal.Decimal)}

	users, err := s.db.NewSelect().Model((*UserDao)(nil)).
		Where("created_at BETWEEN ? AND ?", from, to).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	stats.Users = int64(users)

	txs, err := s.db.NewSelect().Model((*TransactionDao)(nil)).
		Where("created_at BETWEEN ? AND ?", from, to).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	stats.Transactions = int64(txs)

	var volumes []struct {
		Token  string `bun:"token"`
		Volume string `bun:"volume"`
	}
	err = s.db.NewSelect().Model((*TransactionDao)(nil)).
		ColumnExpr("token").
		ColumnExpr("COALESCE(SUM(amount), 0) AS volume").
		Where("status = ?", string(payments.TxStatusConfirmed)).
		Where("created_at BETWEEN ? AND ?", from, to).
		GroupExpr("token").
		Scan(ctx, &volumes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate volume: %w", err)
	}
	for _, v := range volumes {
		stats.Volume[v.Token] = mustDecimal(v.Volume)
	}

	splits, err := s.db.NewSelect().Model((*SplitPaymentDao)(nil)).
		Where("status = ?", string(payments.SplitStatusActive)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active splits: %w", err)
	}
	stats.ActiveSplits = int64(splits)

	return stats, nil
}
