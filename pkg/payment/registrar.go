package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/payments"
)

// EnsureUser returns the account for a platform identity, creating it with a
// fresh custodial wallet on first contact. The created flag tells callers to
// send a welcome message.
func (e *Executor) EnsureUser(ctx context.Context, platformID int64, handle, phone string) (*payments.User, bool, error) {
	usr, err := e.store.UserByPlatformID(ctx, platformID)
	if err != nil {
		return nil, false, apperrors.GeneralError(fmt.Errorf("user lookup: %w", err))
	}
	if usr != nil {
		return usr, false, nil
	}

	address, encryptedKey, err := e.wallets.CreateWallet(platformID)
	if err != nil {
		return nil, false, apperrors.GeneralError(fmt.Errorf("wallet creation: %w", err))
	}

	usr = &payments.User{
		PlatformID:    platformID,
		Handle:        handle,
		Phone:         phone,
		WalletAddress: address,
		EncryptedKey:  encryptedKey,
		DailyLimit:    e.opts.DailyLimit,
	}
	if err := e.store.CreateUser(ctx, usr); err != nil {
		// Lost a race with a concurrent first message from the same user.
		existing, lookupErr := e.store.UserByPlatformID(ctx, platformID)
		if lookupErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, apperrors.GeneralError(fmt.Errorf("user creation: %w", err))
	}

	e.logger.Info("Registered new user",
		zap.Int64("platform_id", platformID),
		zap.String("wallet", address))
	return usr, true, nil
}
