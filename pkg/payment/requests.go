package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/confirm"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/ledger"
	"github.com/promptcash/paybot/pkg/notify"
	"github.com/promptcash/paybot/pkg/payments"
)

// CreateRequest records a payment request against a known user and notifies
// them. Requests cannot target raw addresses: there is nobody to ask.
func (e *Executor) CreateRequest(ctx context.Context, requester *payments.User, in intent.Intent) (*payments.PaymentRequest, error) {
	resolved, err := e.resolver.Resolve(ctx, in.Recipient)
	if err != nil {
		return nil, err
	}
	if resolved.User == nil {
		return nil, apperrors.InvalidInputError(nil,
			fmt.Sprintf("%s is not a registered user, so I can't request money from them.", in.Recipient))
	}
	if resolved.User.ID == requester.ID {
		return nil, apperrors.InvalidInputError(nil, "You can't request money from yourself.")
	}

	req := &payments.PaymentRequest{
		RequesterID: requester.ID,
		PayerID:     resolved.User.ID,
		Amount:      in.Amount,
		Token:       in.Token,
		Message:     in.Message,
		Status:      payments.RequestStatusPending,
		ExpiresAt:   time.Now().Add(e.opts.RequestExpiry),
	}
	if err := e.store.CreatePaymentRequest(ctx, req); err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("create payment request: %w", err))
	}

	from := requester.Handle
	if from != "" {
		from = "@" + from
	} else {
		from = "Someone"
	}
	text := fmt.Sprintf("%s requests %s %s from you.", from, req.Amount.String(), req.Token)
	if req.Message != "" {
		text += "\n\"" + req.Message + "\""
	}
	out := notify.Outbound{
		Text: text,
		Actions: [][]notify.Action{{
			{Label: "Pay", Data: fmt.Sprintf("req_pay:%d", req.ID)},
			{Label: "Decline", Data: fmt.Sprintf("req_decline:%d", req.ID)},
		}},
	}
	if err := e.notifier.Send(ctx, resolved.User.PlatformID, out); err != nil {
		e.logger.Warn("Payment request notification failed",
			zap.Int64("request_id", req.ID),
			zap.Error(err))
	}
	return req, nil
}

// PayRequest turns an open request into a pending confirmation for the payer.
// The payment itself still goes through the usual confirm step.
func (e *Executor) PayRequest(ctx context.Context, payer *payments.User, requestID int64) (*Prepared, error) {
	req, err := e.openRequest(ctx, payer, requestID)
	if err != nil {
		return nil, err
	}

	requester, err := e.store.UserByID(ctx, req.RequesterID)
	if err != nil || requester == nil {
		return nil, apperrors.GeneralError(fmt.Errorf("requester lookup: %w", err))
	}

	balance, err := e.chain.GetBalance(ctx, payer.WalletAddress)
	if err != nil {
		return nil, apperrors.DependencyFailureError(err,
			"I couldn't reach the network to check your balance. Please try again in a moment.")
	}
	if balance.LessThan(req.Amount) {
		return nil, apperrors.InsufficientFundsError(nil,
			fmt.Sprintf("Insufficient balance: you have %s %s but the request is for %s %s.",
				balance.String(), req.Token, req.Amount.String(), req.Token))
	}

	requesterID := requester.ID
	entry := &confirm.Entry{
		UserID:      payer.ID,
		Amount:      req.Amount,
		Token:       req.Token,
		ToAddress:   requester.WalletAddress,
		ToUserID:    &requesterID,
		DisplayName: displayName(requester),
		Message:     req.Message,
		RequestID:   req.ID,
	}
	confirmationID := e.cache.Put(entry)

	return &Prepared{
		ConfirmationID: confirmationID,
		Entry:          entry,
		Fee:            e.chain.EstimateFee(ctx),
		Balance:        balance,
	}, nil
}

// DeclineRequest closes an open request and tells the requester.
func (e *Executor) DeclineRequest(ctx context.Context, payer *payments.User, requestID int64) error {
	req, err := e.openRequest(ctx, payer, requestID)
	if err != nil {
		return err
	}
	if err := e.store.TransitionRequest(ctx, req.ID, payments.RequestStatusDeclined); err != nil {
		if errors.Is(err, ledger.ErrNoRows) {
			return apperrors.ExpiredError(nil, "This request is no longer open.")
		}
		return apperrors.GeneralError(fmt.Errorf("decline request: %w", err))
	}

	requester, err := e.store.UserByID(ctx, req.RequesterID)
	if err != nil || requester == nil {
		return nil
	}
	text := fmt.Sprintf("%s declined your request for %s %s.",
		displayName(payer), req.Amount.String(), req.Token)
	if err := e.notifier.Send(ctx, requester.PlatformID, notify.Outbound{Text: text}); err != nil {
		e.logger.Warn("Decline notification failed",
			zap.Int64("request_id", req.ID),
			zap.Error(err))
	}
	return nil
}

// openRequest loads a request and checks it is still payable by this payer.
// The store already applies lazy expiry on read.
func (e *Executor) openRequest(ctx context.Context, payer *payments.User, requestID int64) (*payments.PaymentRequest, error) {
	req, err := e.store.PaymentRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("request lookup: %w", err))
	}
	if req == nil || req.PayerID != payer.ID {
		return nil, apperrors.NotFoundError(nil, "I couldn't find that payment request.")
	}
	switch req.Status {
	case payments.RequestStatusPending:
		return req, nil
	case payments.RequestStatusExpired:
		return nil, apperrors.ExpiredError(nil, "This request has expired.")
	default:
		return nil, apperrors.ExpiredError(nil, "This request is no longer open.")
	}
}

func displayName(usr *payments.User) string {
	if usr.Handle != "" {
		return "@" + usr.Handle
	}
	return fmt.Sprintf("user %d", usr.PlatformID)
}
