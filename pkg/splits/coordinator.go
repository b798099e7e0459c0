// Package splits coordinates multi-party bill splitting: create, collect
// accept/decline responses, and settle on chain once everyone has accepted.
package splits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/internal/metrics"
	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/ledger"
	"github.com/promptcash/paybot/pkg/notify"
	"github.com/promptcash/paybot/pkg/payments"
	"github.com/promptcash/paybot/pkg/resolve"
	"github.com/promptcash/paybot/pkg/wallet"
)

// Store is the narrow ledger surface the coordinator needs.
type Store interface {
	UserByID(ctx context.Context, id int64) (*payments.User, error)
	CreateTransaction(ctx context.Context, tx *payments.Transaction) error
	AddTotals(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error
	CreateSplit(ctx context.Context, split *payments.SplitPayment) error
	Split(ctx context.Context, id int64) (*payments.SplitPayment, error)
	SetParticipantStatus(ctx context.Context, splitID, userID int64, status payments.ParticipantStatus) error
	MarkParticipantPaid(ctx context.Context, splitID, userID int64, paidAt time.Time) error
	CompleteSplit(ctx context.Context, id int64, completedAt time.Time) error
	CancelSplit(ctx context.Context, id int64) error
}

// Coordinator manages split payments. All check-then-act sequences for a
// split run under that split's lock, so concurrent final accepts settle once.
type Coordinator struct {
	store    Store
	chain    chain.Client
	wallets  *wallet.Manager
	resolver *resolve.Resolver
	notifier notify.Notifier
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewCoordinator wires the split flow.
func NewCoordinator(
	store Store,
	chainClient chain.Client,
	wallets *wallet.Manager,
	resolver *resolve.Resolver,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		chain:    chainClient,
		wallets:  wallets,
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (c *Coordinator) lock(splitID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[splitID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[splitID] = l
	}
	return l
}

func (c *Coordinator) dropLock(splitID int64) {
	c.mu.Lock()
	delete(c.locks, splitID)
	c.mu.Unlock()
}

// Create resolves every participant, persists the split with equal shares in
// one write, and notifies the participants. Any resolution failure aborts the
// whole split; nothing is persisted and nobody is notified.
func (c *Coordinator) Create(ctx context.Context, creator *payments.User, in intent.Intent) (*payments.SplitPayment, error) {
	if len(in.Recipients) == 0 {
		return nil, apperrors.InvalidInputError(nil, "A split needs at least one other person.")
	}

	seen := map[int64]bool{creator.ID: true}
	var members []*payments.User
	for _, token := range in.Recipients {
		resolved, err := c.resolver.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		if resolved.User == nil {
			return nil, apperrors.InvalidInputError(nil,
				fmt.Sprintf("%s is not a registered user, so they can't join a split.", token))
		}
		if seen[resolved.User.ID] {
			continue
		}
		seen[resolved.User.ID] = true
		members = append(members, resolved.User)
	}
	if len(members) == 0 {
		return nil, apperrors.InvalidInputError(nil, "A split needs at least one other person.")
	}

	share := payments.EqualShare(in.Amount, len(members))
	split := &payments.SplitPayment{
		CreatorID:   creator.ID,
		TotalAmount: in.Amount,
		Token:       in.Token,
		Description: in.Message,
		Status:      payments.SplitStatusActive,
	}
	for _, m := range members {
		split.Participants = append(split.Participants, &payments.SplitParticipant{
			UserID:     m.ID,
			AmountOwed: share,
			Status:     payments.ParticipantStatusPending,
		})
	}
	if err := c.store.CreateSplit(ctx, split); err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("create split: %w", err))
	}
	metrics.SplitsTotal.WithLabelValues("created").Inc()

	text := fmt.Sprintf("%s wants to split %s %s with you. Your share is %s %s.",
		displayName(creator), split.TotalAmount.String(), split.Token, share.String(), split.Token)
	if split.Description != "" {
		text += "\n\"" + split.Description + "\""
	}
	out := notify.Outbound{
		Text: text,
		Actions: [][]notify.Action{{
			{Label: "Accept", Data: fmt.Sprintf("split_accept:%d", split.ID)},
			{Label: "Decline", Data: fmt.Sprintf("split_decline:%d", split.ID)},
		}},
	}
	for _, m := range members {
		if err := c.notifier.Send(ctx, m.PlatformID, out); err != nil {
			c.logger.Warn("Split invitation failed",
				zap.Int64("split_id", split.ID),
				zap.Int64("participant", m.ID),
				zap.Error(err))
		}
	}
	return split, nil
}

// Accept records the participant's acceptance and, if this was the last one
// outstanding, settles the split. The all-accepted check and settlement run
// under the split's lock so two racing final accepts settle exactly once.
func (c *Coordinator) Accept(ctx context.Context, usr *payments.User, splitID int64) (*payments.SplitPayment, error) {
	l := c.lock(splitID)
	l.Lock()
	defer l.Unlock()

	split, member, err := c.activeSplitFor(ctx, usr, splitID)
	if err != nil {
		return nil, err
	}
	switch member.Status {
	case payments.ParticipantStatusPaid:
		// Share already settled. Re-tapping the button must not reopen it.
		return split, nil
	case payments.ParticipantStatusDeclined:
		return nil, apperrors.InvalidInputError(nil, "You've already declined this split.")
	}

	if err := c.store.SetParticipantStatus(ctx, splitID, usr.ID, payments.ParticipantStatusAccepted); err != nil {
		if errors.Is(err, ledger.ErrNoRows) {
			return nil, apperrors.NotFoundError(nil, "You're not part of this split.")
		}
		return nil, apperrors.GeneralError(fmt.Errorf("accept split: %w", err))
	}
	metrics.SplitsTotal.WithLabelValues("accepted").Inc()

	split, err = c.store.Split(ctx, splitID)
	if err != nil || split == nil {
		return nil, apperrors.GeneralError(fmt.Errorf("reload split: %w", err))
	}
	if split.AllAccepted() {
		c.settle(ctx, split)
	}
	return split, nil
}

/// Decline records the refusal and tells the creator. The split stays active:
// the creator decides whether to re-invite or cancel. Only a still-pending
// participant may decline.
func (c *Coordinator) Decline(ctx context.Context, usr *payments.User, splitID int64) error {
	l := c.lock(splitID)
	l.Lock()
	defer l.Unlock()

	split, member, err := c.activeSplitFor(ctx, usr, splitID)
	if err != nil {
		return err
	}
	if member.Status != payments.ParticipantStatusPending {
		return apperrors.InvalidInputError(nil, "You've already responded to this split.")
	}

	if err := c.store.SetParticipantStatus(ctx, splitID, usr.ID, payments.ParticipantStatusDeclined); err != nil {
		if errors.Is(err, ledger.ErrNoRows) {
			return apperrors.NotFoundError(nil, "You're not part of this split.")
		}
		return apperrors.GeneralError(fmt.Errorf("decline split: %w", err))
	}
	metrics.SplitsTotal.WithLabelValues("declined").Inc()

	creator, err := c.store.UserByID(ctx, split.CreatorID)
	if err != nil || creator == nil {
		return nil
	}
	text := fmt.Sprintf("%s declined the %s %s split.",
		displayName(usr), split.TotalAmount.String(), split.Token)
	if err := c.notifier.Send(ctx, creator.PlatformID, notify.Outbound{Text: text}); err != nil {
		c.logger.Warn("Split decline notification failed",
			zap.Int64("split_id", splitID),
			zap.Error(err))
	}
	return nil
}

// Cancel closes an active split. Only the creator may cancel.
func (c *Coordinator) Cancel(ctx context.Context, usr *payments.User, splitID int64) error {
	l := c.lock(splitID)
	l.Lock()
	defer l.Unlock()

	split, err := c.store.Split(ctx, splitID)
	if err != nil {
		return apperrors.GeneralError(fmt.Errorf("split lookup: %w", err))
	}
	if split == nil || split.CreatorID != usr.ID {
		return apperrors.NotFoundError(nil, "I couldn't find that split.")
	}
	if split.Status != payments.SplitStatusActive {
		return apperrors.ExpiredError(nil, "This split is already closed.")
	}
	if err := c.store.CancelSplit(ctx, splitID); err != nil {
		return apperrors.GeneralError(fmt.Errorf("cancel split: %w", err))
	}
	metrics.SplitsTotal.WithLabelValues("cancelled").Inc()
	c.dropLock(splitID)

	for _, p := range split.Participants {
		member, err := c.store.UserByID(ctx, p.UserID)
		if err != nil || member == nil {
			continue
		}
		text := fmt.Sprintf("The %s %s split was cancelled.", split.TotalAmount.String(), split.Token)
		if err := c.notifier.Send(ctx, member.PlatformID, notify.Outbound{Text: text}); err != nil {
			c.logger.Warn("Split cancel notification failed",
				zap.Int64("split_id", splitID),
				zap.Error(err))
		}
	}
	return nil
}

// Status returns the split as persisted.
func (c *Coordinator) Status(ctx context.Context, splitID int64) (*payments.SplitPayment, error) {
	split, err := c.store.Split(ctx, splitID)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("split lookup: %w", err))
	}
	if split == nil {
		return nil, apperrors.NotFoundError(nil, "I couldn't find that split.")
	}
	return split, nil
}

// settle moves each accepted share on chain and closes the split. Runs under
// the split lock. A share whose transfer fails stays accepted and the split
// stays active; the next accept (or a retried one) picks it up again.
func (c *Coordinator) settle(ctx context.Context, split *payments.SplitPayment) {
	creator, err := c.store.UserByID(ctx, split.CreatorID)
	if err != nil || creator == nil {
		c.logger.Error("Split settlement aborted: creator lookup failed",
			zap.Int64("split_id", split.ID),
			zap.Error(err))
		return
	}

	allPaid := true
	for _, p := range split.Participants {
		if p.Status == payments.ParticipantStatusPaid {
			continue
		}
		if err := c.settleShare(ctx, split, p, creator); err != nil {
			c.logger.Error("Split share settlement failed",
				zap.Int64("split_id", split.ID),
				zap.Int64("participant", p.UserID),
				zap.Error(err))
			allPaid = false
		}
	}
	if !allPaid {
		return
	}

	now := time.Now()
	if err := c.store.CompleteSplit(ctx, split.ID, now); err != nil {
		if !errors.Is(err, ledger.ErrNoRows) {
			c.logger.Error("Split completion write failed",
				zap.Int64("split_id", split.ID),
				zap.Error(err))
		}
		return
	}
	split.Status = payments.SplitStatusCompleted
	split.CompletedAt = &now
	metrics.SplitsTotal.WithLabelValues("completed").Inc()
	c.dropLock(split.ID)

	text := fmt.Sprintf("Your %s %s split is settled. Everyone has paid their share.",
		split.TotalAmount.String(), split.Token)
	if err := c.notifier.Send(ctx, creator.PlatformID, notify.Outbound{Text: text}); err != nil {
		c.logger.Warn("Split completion notification failed",
			zap.Int64("split_id", split.ID),
			zap.Error(err))
	}
}

func (c *Coordinator) settleShare(ctx context.Context, split *payments.SplitPayment, p *payments.SplitParticipant, creator *payments.User) error {
	member, err := c.store.UserByID(ctx, p.UserID)
	if err != nil || member == nil {
		return fmt.Errorf("participant lookup: %w", err)
	}
	key, err := c.wallets.SigningKey(member)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	receipt, err := c.chain.Transfer(ctx, key, creator.WalletAddress, p.AmountOwed)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	memberID := member.ID
	creatorID := creator.ID
	tx := &payments.Transaction{
		Hash:       receipt.Hash,
		FromUserID: &memberID,
		ToUserID:   &creatorID,
		ToAddress:  creator.WalletAddress,
		Amount:     p.AmountOwed,
		Token:      split.Token,
		Status:     receipt.Status,
		Type:       payments.TxTypeSplit,
		Metadata:   map[string]string{"split_id": fmt.Sprintf("%d", split.ID)},
	}
	if receipt.Mocked {
		tx.Metadata["mocked"] = "true"
	}
	if err := c.store.CreateTransaction(ctx, tx); err != nil {
		// The transfer is on chain; the record is late but the share is paid.
		c.logger.Error("Split settlement recorded on chain but ledger write failed",
			zap.String("tx_hash", receipt.Hash),
			zap.Error(err))
	} else if receipt.Status == payments.TxStatusConfirmed {
		if err := c.store.AddTotals(ctx, tx.FromUserID, tx.ToUserID, p.AmountOwed); err != nil {
			c.logger.Warn("Totals update failed",
				zap.String("tx_hash", receipt.Hash),
				zap.Error(err))
		}
	}

	if err := c.store.MarkParticipantPaid(ctx, split.ID, p.UserID, time.Now()); err != nil {
		c.logger.Error("Participant paid mark failed",
			zap.Int64("split_id", split.ID),
			zap.Int64("participant", p.UserID),
			zap.Error(err))
	}
	p.Status = payments.ParticipantStatusPaid
	metrics.PaymentsTotal.WithLabelValues(string(payments.TxTypeSplit), string(receipt.Status)).Inc()
	return nil
}

// activeSplitFor loads a split, checks it is still open, and returns the
// caller's participant row.
func (c *Coordinator) activeSplitFor(ctx context.Context, usr *payments.User, splitID int64) (*payments.SplitPayment, *payments.SplitParticipant, error) {
	split, err := c.store.Split(ctx, splitID)
	if err != nil {
		return nil, nil, apperrors.GeneralError(fmt.Errorf("split lookup: %w", err))
	}
	if split == nil {
		return nil, nil, apperrors.NotFoundError(nil, "I couldn't find that split.")
	}
	if split.Status != payments.SplitStatusActive {
		return nil, nil, apperrors.ExpiredError(nil, "This split is already closed.")
	}
	for _, p := range split.Participants {
		if p.UserID == usr.ID {
			return split, p, nil
		}
	}
	return nil, nil, apperrors.NotFoundError(nil, "You're not part of this split.")
}

func displayName(usr *payments.User) string {
	if usr.Handle != "" {
		return "@" + usr.Handle
	}
	return fmt.Sprintf("user %d", usr.PlatformID)
}
