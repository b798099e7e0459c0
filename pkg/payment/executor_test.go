package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/confirm"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/payments"
	"github.com/promptcash/paybot/pkg/resolve"
	"github.com/promptcash/paybot/pkg/wallet"
)

const testSecret = "test-secret"

func newTestUser(t *testing.T, id, platformID int64, handle string) *payments.User {
	t.Helper()
	address, encryptedKey, err := wallet.NewManager(testSecret).CreateWallet(platformID)
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	return &payments.User{
		ID:            id,
		PlatformID:    platformID,
		Handle:        handle,
		WalletAddress: address,
		EncryptedKey:  encryptedKey,
		DailyLimit:    decimal.NewFromInt(1000),
	}
}

type testRig struct {
	executor *Executor
	store    *MockStore
	chain    *MockChain
	notifier *MockNotifier
	cache    *confirm.Cache
}

func newTestRig(t *testing.T, store *MockStore, chainMock *MockChain, users ...*payments.User) *testRig {
	t.Helper()
	notifier := &MockNotifier{}
	cache := confirm.NewCache(10*time.Minute, time.Minute)
	executor := NewExecutor(
		store,
		chainMock,
		wallet.NewManager(testSecret),
		resolve.NewResolver(fixedDirectory(users), nil, nil),
		cache,
		notifier,
		Options{RequestExpiry: 24 * time.Hour, DailyLimit: decimal.NewFromInt(1000)},
		zap.NewNop(),
	)
	return &testRig{executor: executor, store: store, chain: chainMock, notifier: notifier, cache: cache}
}

func sendIntent(amount string, recipient string) intent.Intent {
	return intent.Intent{
		Kind:      intent.KindSend,
		Amount:    decimal.RequireFromString(amount),
		Token:     "PC",
		Recipient: recipient,
	}
}

func TestPrepareAndConfirm_HappyPath(t *testing.T) {
	ctx := context.Background()
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")

	var recorded *payments.Transaction
	store := &MockStore{
		CreateTransactionFunc: func(_ context.Context, tx *payments.Transaction) error {
			recorded = tx
			return nil
		},
		UserByIDFunc: func(_ context.Context, id int64) (*payments.User, error) {
			if id == recipient.ID {
				return recipient, nil
			}
			return nil, nil
		},
	}
	transferred := false
	chainMock := &MockChain{
		TransferFunc: func(_ context.Context, _ []byte, to string, amount decimal.Decimal) (*chain.Receipt, error) {
			transferred = true
			if to != recipient.WalletAddress {
				t.Errorf("transfer to %s, want %s", to, recipient.WalletAddress)
			}
			if amount.String() != "5" {
				t.Errorf("transfer amount = %s, want 5", amount)
			}
			return &chain.Receipt{Hash: "0xfeed", Status: payments.TxStatusConfirmed}, nil
		},
	}
	rig := newTestRig(t, store, chainMock, sender, recipient)

	prepared, err := rig.executor.Prepare(ctx, sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if prepared.ConfirmationID == "" {
		t.Fatal("no confirmation ID")
	}
	if transferred {
		t.Fatal("transfer executed before confirmation")
	}

	res, err := rig.executor.Confirm(ctx, sender, prepared.ConfirmationID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !transferred {
		t.Error("transfer not executed")
	}
	if res.BookkeepingDelayed {
		t.Error("bookkeeping flagged delayed")
	}
	if recorded == nil || recorded.Hash != "0xfeed" || recorded.Type != payments.TxTypeSend {
		t.Errorf("recorded tx = %+v", recorded)
	}
	if len(rig.notifier.Sent) != 1 || rig.notifier.Sent[0].PlatformID != recipient.PlatformID {
		t.Errorf("recipient notification = %+v", rig.notifier.Sent)
	}
}

func TestPrepare_InsufficientBalance(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	chainMock := &MockChain{
		GetBalanceFunc: func(context.Context, string) (decimal.Decimal, error) {
			return decimal.NewFromInt(2), nil
		},
	}
	rig := newTestRig(t, &MockStore{}, chainMock, sender, recipient)

	_, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if !apperrors.Is(err, apperrors.CategoryInsufficientFunds) {
		t.Fatalf("err = %v, want insufficient funds", err)
	}
	if rig.cache.Len() != 0 {
		t.Error("entry cached despite early termination")
	}
}

func TestPrepare_UnknownRecipient(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender)

	_, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@nobody"))
	if !apperrors.Is(err, apperrors.CategoryNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if rig.cache.Len() != 0 {
		t.Error("entry cached despite early termination")
	}
}

func TestPrepare_ExceedsDailyLimit(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	sender.DailyLimit = decimal.NewFromInt(10)
	recipient := newTestUser(t, 2, 222, "bob")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender, recipient)

	_, err := rig.executor.Prepare(context.Background(), sender, sendIntent("50", "@bob"))
	if !apperrors.Is(err, apperrors.CategoryInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestConfirm_UnknownOrConsumedID(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	transfers := 0
	chainMock := &MockChain{
		TransferFunc: func(context.Context, []byte, string, decimal.Decimal) (*chain.Receipt, error) {
			transfers++
			return &chain.Receipt{Hash: "0xfeed", Status: payments.TxStatusConfirmed}, nil
		},
	}
	rig := newTestRig(t, &MockStore{}, chainMock, sender, recipient)

	_, err := rig.executor.Confirm(context.Background(), sender, "never-issued")
	if !apperrors.Is(err, apperrors.CategoryExpired) {
		t.Fatalf("err = %v, want expired", err)
	}

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if _, err := rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID); err != nil {
		t.Fatalf("first Confirm failed: %v", err)
	}
	// Double-tap on the confirm button: the second press must not pay again.
	if _, err := rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID); !apperrors.Is(err, apperrors.CategoryExpired) {
		t.Fatalf("second Confirm err = %v, want expired", err)
	}
	if transfers != 1 {
		t.Errorf("transfers = %d, want exactly 1", transfers)
	}
}

func TestConfirm_OtherUsersEntry(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	mallory := newTestUser(t, 3, 333, "mallory")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender, recipient, mallory)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	_, err = rig.executor.Confirm(context.Background(), mallory, prepared.ConfirmationID)
	if !apperrors.Is(err, apperrors.CategoryExpired) {
		t.Fatalf("err = %v, want expired", err)
	}

	// The failed attempt must not burn the entry: the owner still confirms.
	res, err := rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID)
	if err != nil {
		t.Fatalf("owner Confirm after foreign attempt: %v", err)
	}
	if res.Receipt == nil || res.Receipt.Status != payments.TxStatusConfirmed {
		t.Fatalf("result = %+v, want a confirmed receipt", res)
	}
}

func TestCancel_OtherUsersEntry(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	mallory := newTestUser(t, 3, 333, "mallory")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender, recipient, mallory)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if rig.executor.Cancel(mallory, prepared.ConfirmationID) {
		t.Fatal("Cancel succeeded for the wrong user")
	}
	if !rig.executor.Cancel(sender, prepared.ConfirmationID) {
		t.Fatal("owner Cancel failed after a foreign attempt")
	}
}

func TestConfirm_TransferFailureIsSafe(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	recordCalls := 0
	store := &MockStore{
		CreateTransactionFunc: func(context.Context, *payments.Transaction) error {
			recordCalls++
			return nil
		},
	}
	chainMock := &MockChain{
		TransferFunc: func(context.Context, []byte, string, decimal.Decimal) (*chain.Receipt, error) {
			return nil, errors.New("nonce too low")
		},
	}
	rig := newTestRig(t, store, chainMock, sender, recipient)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	_, err = rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID)
	if !apperrors.Is(err, apperrors.CategoryDependencyFailure) {
		t.Fatalf("err = %v, want dependency failure", err)
	}
	if recordCalls != 0 {
		t.Error("failed broadcast must not be recorded")
	}
}

// Ledger trouble after a broadcast payment is reported as delayed
// bookkeeping, never as payment failure.
func TestConfirm_LedgerFailureStillSucceeds(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	store := &MockStore{
		CreateTransactionFunc: func(context.Context, *payments.Transaction) error {
			return errors.New("connection reset")
		},
	}
	rig := newTestRig(t, store, &MockChain{}, sender, recipient)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	res, err := rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID)
	if err != nil {
		t.Fatalf("Confirm failed despite successful broadcast: %v", err)
	}
	if !res.BookkeepingDelayed {
		t.Error("BookkeepingDelayed not set")
	}
}

// A confirmation-wait timeout yields a pending receipt: success to the user,
// no totals movement until the transaction settles.
func TestConfirm_PendingReceipt(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	totalsCalls := 0
	store := &MockStore{
		AddTotalsFunc: func(context.Context, *int64, *int64, decimal.Decimal) error {
			totalsCalls++
			return nil
		},
	}
	chainMock := &MockChain{
		TransferFunc: func(context.Context, []byte, string, decimal.Decimal) (*chain.Receipt, error) {
			return &chain.Receipt{Hash: "0xslow", Status: payments.TxStatusPending}, nil
		},
	}
	rig := newTestRig(t, store, chainMock, sender, recipient)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	res, err := rig.executor.Confirm(context.Background(), sender, prepared.ConfirmationID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if res.Tx.Status != payments.TxStatusPending {
		t.Errorf("status = %s, want pending", res.Tx.Status)
	}
	if totalsCalls != 0 {
		t.Error("totals moved for an unsettled transaction")
	}
}

func TestCancel(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	recipient := newTestUser(t, 2, 222, "bob")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender, recipient)

	prepared, err := rig.executor.Prepare(context.Background(), sender, sendIntent("5", "@bob"))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if !rig.executor.Cancel(sender, prepared.ConfirmationID) {
		t.Error("Cancel failed for a pending confirmation")
	}
	if rig.executor.Cancel(sender, prepared.ConfirmationID) {
		t.Error("Cancel succeeded twice")
	}
}

func TestEnsureUser(t *testing.T) {
	created := map[int64]*payments.User{}
	var nextID int64
	store := &MockStore{
		UserByPlatformIDFunc: func(_ context.Context, platformID int64) (*payments.User, error) {
			return created[platformID], nil
		},
		CreateUserFunc: func(_ context.Context, usr *payments.User) error {
			nextID++
			usr.ID = nextID
			created[usr.PlatformID] = usr
			return nil
		},
	}
	rig := newTestRig(t, store, &MockChain{})

	usr, isNew, err := rig.executor.EnsureUser(context.Background(), 555, "carol", "")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if !isNew {
		t.Error("first contact not reported as new")
	}
	if usr.WalletAddress == "" || usr.EncryptedKey == "" {
		t.Error("wallet not provisioned at registration")
	}

	again, isNew, err := rig.executor.EnsureUser(context.Background(), 555, "carol", "")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if isNew {
		t.Error("second contact reported as new")
	}
	if again.ID != usr.ID {
		t.Error("second contact returned a different user")
	}
}

func TestFaucet_RealChainRefuses(t *testing.T) {
	sender := newTestUser(t, 1, 111, "alice")
	rig := newTestRig(t, &MockStore{}, &MockChain{}, sender)

	_, err := rig.executor.Faucet(context.Background(), sender, decimal.NewFromInt(10))
	if !apperrors.Is(err, apperrors.CategoryInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}
