// Package ledger is the durable record of users, transactions, payment
// requests, and splits. All writes tolerate transient contention through a
// bounded retry; multi-row writes are all-or-nothing.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/pkg/payments"
)

// ErrBookkeepingDelayed labels the rare condition where a write kept failing
// after the retry budget. The payment itself is unaffected; only its record
// is late.
var ErrBookkeepingDelayed = errors.New("payment succeeded but bookkeeping delayed")

// ErrNoRows is returned by status transitions that matched no row, either
// because the record does not exist or it already left the required state.
var ErrNoRows = errors.New("no matching rows")

// Stats are windowed aggregate analytics for the health surface.
type Stats struct {
	Users        int64
	Transactions int64
	Volume       map[string]decimal.Decimal
	ActiveSplits int64
}

// UserStore defines user persistence. Lookups return (nil, nil) when no user
// matches.
type UserStore interface {
	CreateUser(ctx context.Context, usr *payments.User) error
	UserByID(ctx context.Context, id int64) (*payments.User, error)
	UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error)
	UserByHandle(ctx context.Context, handle string) (*payments.User, error)
	UserByPhone(ctx context.Context, phone string) (*payments.User, error)
	ListUsers(ctx context.Context) ([]*payments.User, error)
	// AddTotals moves the running sent/received totals after a confirmed
	// transaction. Either side may be nil for external counterparties.
	AddTotals(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error
}

// TransactionStore defines the append-only transaction record.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *payments.Transaction) error
	// SettleTransaction transitions pending -> confirmed|failed exactly once.
	SettleTransaction(ctx context.Context, hash string, status payments.TxStatus) error
	TransactionsForUser(ctx context.Context, userID int64, limit int) ([]*payments.Transaction, error)
}

// RequestStore defines payment request persistence. Expiry is lazy: reads
// mark a pending request expired once its expiry timestamp has passed.
type RequestStore interface {
	CreatePaymentRequest(ctx context.Context, req *payments.PaymentRequest) error
	PaymentRequest(ctx context.Context, id int64) (*payments.PaymentRequest, error)
	// TransitionRequest moves a pending request to a terminal state.
	// Returns ErrNoRows when the request was not pending.
	TransitionRequest(ctx context.Context, id int64, status payments.RequestStatus) error
}

// SplitStore defines split payment persistence.
type SplitStore interface {
	// CreateSplit persists the split and all its participants in one
	// transaction; on any failure nothing is written.
	CreateSplit(ctx context.Context, split *payments.SplitPayment) error
	Split(ctx context.Context, id int64) (*payments.SplitPayment, error)
	// SetParticipantStatus updates one participant's status. Accept is
	// reachable from pending or accepted, decline from pending only; paid
	// is terminal. Returns ErrNoRows when the row does not exist or is not
	// in an eligible state.
	SetParticipantStatus(ctx context.Context, splitID, userID int64, status payments.ParticipantStatus) error
	// MarkParticipantPaid stamps the paid timestamp alongside the status.
	MarkParticipantPaid(ctx context.Context, splitID, userID int64, paidAt time.Time) error
	// CompleteSplit transitions active -> completed exactly once; returns
	// ErrNoRows when the split was not active.
	CompleteSplit(ctx context.Context, id int64, completedAt time.Time) error
	// CancelSplit transitions active -> cancelled.
	CancelSplit(ctx context.Context, id int64) error
}

// Store is the full ledger surface.
type Store interface {
	UserStore
	TransactionStore
	RequestStore
	SplitStore
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
	Ping(ctx context.Context) error
}
