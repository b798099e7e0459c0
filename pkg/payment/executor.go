// Package payment implements the single-payment flow: prepare, await
// explicit confirmation, execute on chain, record in the ledger.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/internal/metrics"
	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/confirm"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/ledger"
	"github.com/promptcash/paybot/pkg/notify"
	"github.com/promptcash/paybot/pkg/payments"
	"github.com/promptcash/paybot/pkg/resolve"
	"github.com/promptcash/paybot/pkg/wallet"
)

// Store is the narrow ledger surface the executor needs.
type Store interface {
	CreateUser(ctx context.Context, usr *payments.User) error
	UserByID(ctx context.Context, id int64) (*payments.User, error)
	UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error)
	CreateTransaction(ctx context.Context, tx *payments.Transaction) error
	SettleTransaction(ctx context.Context, hash string, status payments.TxStatus) error
	TransactionsForUser(ctx context.Context, userID int64, limit int) ([]*payments.Transaction, error)
	AddTotals(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error
	CreatePaymentRequest(ctx context.Context, req *payments.PaymentRequest) error
	PaymentRequest(ctx context.Context, id int64) (*payments.PaymentRequest, error)
	TransitionRequest(ctx context.Context, id int64, status payments.RequestStatus) error
}

// Prepared describes a payment now awaiting confirmation.
type Prepared struct {
	ConfirmationID string
	Entry          *confirm.Entry
	Fee            decimal.Decimal
	Balance        decimal.Decimal
}

// Result is the outcome of a confirmed payment. BookkeepingDelayed is set
// when the on-chain transfer succeeded but the ledger record is late; it is
// informational and never turns the payment into a failure.
type Result struct {
	Tx                 *payments.Transaction
	Receipt            *chain.Receipt
	BookkeepingDelayed bool
}

// Options tunes the executor.
type Options struct {
	// RequestExpiry bounds how long a payment request stays payable.
	RequestExpiry time.Duration
	// DailyLimit is the spend ceiling applied to new users at registration.
	DailyLimit decimal.Decimal
}

// Executor coordinates resolution, balance checks, confirmation, on-chain
// execution, and recording for single payments.
type Executor struct {
	store    Store
	chain    chain.Client
	wallets  *wallet.Manager
	resolver *resolve.Resolver
	cache    *confirm.Cache
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger
}

// NewExecutor wires the payment flow.
func NewExecutor(
	store Store,
	chainClient chain.Client,
	wallets *wallet.Manager,
	resolver *resolve.Resolver,
	cache *confirm.Cache,
	notifier notify.Notifier,
	opts Options,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		store:    store,
		chain:    chainClient,
		wallets:  wallets,
		resolver: resolver,
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

// Prepare resolves the recipient, checks the sender's live balance, and
// parks the payment in the confirmation cache. Nothing moves on chain here.
func (e *Executor) Prepare(ctx context.Context, sender *payments.User, in intent.Intent) (*Prepared, error) {
	if sender.DailyLimit.IsPositive() && in.Amount.GreaterThan(sender.DailyLimit) {
		return nil, apperrors.InvalidInputError(nil,
			fmt.Sprintf("That exceeds your spend limit of %s %s per payment.",
				sender.DailyLimit.String(), in.Token))
	}

	resolved, err := e.resolver.Resolve(ctx, in.Recipient)
	if err != nil {
		return nil, err
	}

	balance, err := e.chain.GetBalance(ctx, sender.WalletAddress)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err,
			"I couldn't reach the network to check your balance. Please try again in a moment.")
	}
	if balance.LessThan(in.Amount) {
		return nil, apperrors.InsufficientFundsError(nil,
			fmt.Sprintf("Insufficient balance: you have %s %s but tried to send %s %s. Top up and try again.",
				balance.String(), in.Token, in.Amount.String(), in.Token))
	}

	entry := &confirm.Entry{
		UserID:      sender.ID,
		Amount:      in.Amount,
		Token:       in.Token,
		ToAddress:   resolved.Address,
		DisplayName: resolved.DisplayName,
		Message:     in.Message,
	}
	if resolved.User != nil {
		id := resolved.User.ID
		entry.ToUserID = &id
	}
	confirmationID := e.cache.Put(entry)

	return &Prepared{
		ConfirmationID: confirmationID,
		Entry:          entry,
		Fee:            e.chain.EstimateFee(ctx),
		Balance:        balance,
	}, nil
}

// Confirm consumes the pending entry and executes the transfer. A missing,
// already-consumed, or expired ID always reads as "expired, please resend".
// Once the transfer is broadcast, ledger trouble is logged and retried but
// never reported as payment failure.
func (e *Executor) Confirm(ctx context.Context, sender *payments.User, confirmationID string) (*Result, error) {
	entry, ok := e.cache.TakeOwned(confirmationID, sender.ID)
	if !ok {
		return nil, apperrors.ExpiredError(nil,
			"That confirmation has expired. Please resend the payment command.")
	}

	key, err := e.wallets.SigningKey(sender)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("signing key: %w", err))
	}

	receipt, err := e.chain.Transfer(ctx, key, entry.ToAddress, entry.Amount)
	if err != nil {
		// Broadcast never happened; funds did not move.
		return nil, apperrors.DependencyFailureError(err,
			"The network rejected the transfer before it was sent. Your funds were not moved; please try again.")
	}

	result := &Result{Receipt: receipt}
	result.Tx, result.BookkeepingDelayed = e.record(ctx, sender, entry, receipt, payments.TxTypeSend)

	if entry.RequestID != 0 {
		if err := e.store.TransitionRequest(ctx, entry.RequestID, payments.RequestStatusPaid); err != nil &&
			!errors.Is(err, ledger.ErrNoRows) {
			e.logger.Warn("Payment request transition failed after payment",
				zap.Int64("request_id", entry.RequestID),
				zap.Error(err))
		}
	}

	e.notifyRecipient(ctx, sender, entry, receipt)

	metrics.PaymentsTotal.WithLabelValues(string(payments.TxTypeSend), string(receipt.Status)).Inc()
	amountF, _ := entry.Amount.Float64()
	metrics.PaymentAmount.WithLabelValues(entry.Token).Observe(amountF)

	return result, nil
}

// record writes the transaction and updates totals. Failures are logged and
// surfaced only as a delayed-bookkeeping flag.
func (e *Executor) record(ctx context.Context, sender *payments.User, entry *confirm.Entry, receipt *chain.Receipt, txType payments.TxType) (*payments.Transaction, bool) {
	senderID := sender.ID
	tx := &payments.Transaction{
		Hash:       receipt.Hash,
		FromUserID: &senderID,
		ToUserID:   entry.ToUserID,
		ToAddress:  entry.ToAddress,
		Amount:     entry.Amount,
		Token:      entry.Token,
		Status:     receipt.Status,
		Type:       txType,
		Message:    entry.Message,
	}
	if receipt.Mocked {
		tx.Metadata = map[string]string{"mocked": "true"}
	}

	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		e.logger.Error("Transfer recorded on chain but ledger write failed",
			zap.String("tx_hash", receipt.Hash),
			zap.String("amount", entry.Amount.String()),
			zap.Error(err))
		return tx, true
	}

	if receipt.Status == payments.TxStatusConfirmed {
		if err := e.store.AddTotals(ctx, tx.FromUserID, tx.ToUserID, entry.Amount); err != nil {
			e.logger.Warn("Totals update failed",
				zap.String("tx_hash", receipt.Hash),
				zap.Error(err))
			return tx, true
		}
	}
	return tx, false
}

func (e *Executor) notifyRecipient(ctx context.Context, sender *payments.User, entry *confirm.Entry, receipt *chain.Receipt) {
	if entry.ToUserID == nil {
		return
	}
	recipient, err := e.store.UserByID(ctx, *entry.ToUserID)
	if err != nil || recipient == nil {
		return
	}

	text := fmt.Sprintf("You received %s %s from %s.\nTx: %s",
		entry.Amount.String(), entry.Token, displayName(sender), receipt.Hash)
	if entry.Message != "" {
		text += "\n\"" + entry.Message + "\""
	}

	if err := e.notifier.Send(ctx, recipient.PlatformID, notify.Outbound{Text: text}); err != nil {
		e.logger.Warn("Recipient notification failed",
			zap.Int64("recipient", recipient.PlatformID),
			zap.Error(err))
	}
}

// Cancel drops a pending confirmation. Reports whether one was dropped.
func (e *Executor) Cancel(sender *payments.User, confirmationID string) bool {
	_, ok := e.cache.TakeOwned(confirmationID, sender.ID)
	return ok
}

// Balance reads the sender's live balance. The mocked flag tells callers to
// label the figure as simulated.
func (e *Executor) Balance(ctx context.Context, usr *payments.User) (decimal.Decimal, bool, error) {
	start := time.Now()
	balance, err := e.chain.GetBalance(ctx, usr.WalletAddress)
	metrics.ChainRequestDuration.WithLabelValues("get_balance").Observe(time.Since(start).Seconds())
	if err != nil {
		return decimal.Zero, false, apperrors.DependencyFailureError(err,
			"I couldn't reach the network to check your balance. Please try again in a moment.")
	}
	return balance, e.chain.Mocked(), nil
}

// History lists the user's most recent transactions.
func (e *Executor) History(ctx context.Context, usr *payments.User, limit int) ([]*payments.Transaction, error) {
	return e.store.TransactionsForUser(ctx, usr.ID, limit)
}

// faucetCreditor is implemented by the mock chain.
type faucetCreditor interface {
	Credit(address string, amount decimal.Decimal)
}

// Faucet tops up the user's wallet. Only available in mock mode; real funds
// cannot be conjured.
func (e *Executor) Faucet(ctx context.Context, usr *payments.User, amount decimal.Decimal) (*payments.Transaction, error) {
	creditor, ok := e.chain.(faucetCreditor)
	if !ok {
		return nil, apperrors.InvalidInputError(nil,
			"The faucet is only available on the test network.")
	}
	creditor.Credit(usr.WalletAddress, amount)

	userID := usr.ID
	tx := &payments.Transaction{
		Hash:      "faucet-" + uuid.NewString(),
		ToUserID:  &userID,
		ToAddress: usr.WalletAddress,
		Amount:    amount,
		Token:     payments.NativeToken,
		Status:    payments.TxStatusConfirmed,
		Type:      payments.TxTypeFaucet,
		Metadata:  map[string]string{"mocked": "true"},
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		e.logger.Warn("Faucet record failed", zap.Error(err))
	}
	metrics.PaymentsTotal.WithLabelValues(string(payments.TxTypeFaucet), string(tx.Status)).Inc()
	return tx, nil
}
