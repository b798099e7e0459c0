package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/notify"
	"github.com/promptcash/paybot/pkg/payments"
)

// MockStore is a function-field mock of the executor's ledger surface.
type MockStore struct {
	CreateUserFunc           func(ctx context.Context, usr *payments.User) error
	UserByIDFunc             func(ctx context.Context, id int64) (*payments.User, error)
	UserByPlatformIDFunc     func(ctx context.Context, platformID int64) (*payments.User, error)
	CreateTransactionFunc    func(ctx context.Context, tx *payments.Transaction) error
	SettleTransactionFunc    func(ctx context.Context, hash string, status payments.TxStatus) error
	TransactionsForUserFunc  func(ctx context.Context, userID int64, limit int) ([]*payments.Transaction, error)
	AddTotalsFunc            func(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error
	CreatePaymentRequestFunc func(ctx context.Context, req *payments.PaymentRequest) error
	PaymentRequestFunc       func(ctx context.Context, id int64) (*payments.PaymentRequest, error)
	TransitionRequestFunc    func(ctx context.Context, id int64, status payments.RequestStatus) error
}

func (m *MockStore) CreateUser(ctx context.Context, usr *payments.User) error {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, usr)
	}
	return nil
}

func (m *MockStore) UserByID(ctx context.Context, id int64) (*payments.User, error) {
	if m.UserByIDFunc != nil {
		return m.UserByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStore) UserByPlatformID(ctx context.Context, platformID int64) (*payments.User, error) {
	if m.UserByPlatformIDFunc != nil {
		return m.UserByPlatformIDFunc(ctx, platformID)
	}
	return nil, nil
}

func (m *MockStore) CreateTransaction(ctx context.Context, tx *payments.Transaction) error {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, tx)
	}
	return nil
}

func (m *MockStore) SettleTransaction(ctx context.Context, hash string, status payments.TxStatus) error {
	if m.SettleTransactionFunc != nil {
		return m.SettleTransactionFunc(ctx, hash, status)
	}
	return nil
}

func (m *MockStore) TransactionsForUser(ctx context.Context, userID int64, limit int) ([]*payments.Transaction, error) {
	if m.TransactionsForUserFunc != nil {
		return m.TransactionsForUserFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *MockStore) AddTotals(ctx context.Context, fromUserID, toUserID *int64, amount decimal.Decimal) error {
	if m.AddTotalsFunc != nil {
		return m.AddTotalsFunc(ctx, fromUserID, toUserID, amount)
	}
	return nil
}

func (m *MockStore) CreatePaymentRequest(ctx context.Context, req *payments.PaymentRequest) error {
	if m.CreatePaymentRequestFunc != nil {
		return m.CreatePaymentRequestFunc(ctx, req)
	}
	return nil
}

func (m *MockStore) PaymentRequest(ctx context.Context, id int64) (*payments.PaymentRequest, error) {
	if m.PaymentRequestFunc != nil {
		return m.PaymentRequestFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStore) TransitionRequest(ctx context.Context, id int64, status payments.RequestStatus) error {
	if m.TransitionRequestFunc != nil {
		return m.TransitionRequestFunc(ctx, id, status)
	}
	return nil
}

// MockChain is a function-field mock of the chain boundary.
type MockChain struct {
	GetBalanceFunc  func(ctx context.Context, address string) (decimal.Decimal, error)
	TransferFunc    func(ctx context.Context, privateKey []byte, to string, amount decimal.Decimal) (*chain.Receipt, error)
	EstimateFeeFunc func(ctx context.Context) decimal.Decimal
}

func (m *MockChain) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, address)
	}
	return decimal.NewFromInt(100), nil
}

func (m *MockChain) Transfer(ctx context.Context, privateKey []byte, to string, amount decimal.Decimal) (*chain.Receipt, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, privateKey, to, amount)
	}
	return &chain.Receipt{Hash: "0xabc", Status: payments.TxStatusConfirmed}, nil
}

func (m *MockChain) EstimateFee(ctx context.Context) decimal.Decimal {
	if m.EstimateFeeFunc != nil {
		return m.EstimateFeeFunc(ctx)
	}
	return decimal.Zero
}

func (m *MockChain) Mocked() bool { return false }

// MockNotifier records outbound notifications.
type MockNotifier struct {
	Sent []sentMessage
}

type sentMessage struct {
	PlatformID int64
	Text       string
}

func (m *MockNotifier) Send(_ context.Context, platformID int64, out notify.Outbound) error {
	m.Sent = append(m.Sent, sentMessage{PlatformID: platformID, Text: out.Text})
	return nil
}

// fixedDirectory implements resolve.Directory over a fixed user list.
type fixedDirectory []*payments.User

func (d fixedDirectory) UserByHandle(_ context.Context, handle string) (*payments.User, error) {
	for _, u := range d {
		if strings.EqualFold(u.Handle, handle) {
			return u, nil
		}
	}
	return nil, nil
}

func (d fixedDirectory) UserByPhone(_ context.Context, phone string) (*payments.User, error) {
	for _, u := range d {
		if u.Phone != "" && u.Phone == phone {
			return u, nil
		}
	}
	return nil, nil
}

func (d fixedDirectory) UserByPlatformID(_ context.Context, id int64) (*payments.User, error) {
	for _, u := range d {
		if u.PlatformID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (d fixedDirectory) ListUsers(context.Context) ([]*payments.User, error) {
	return d, nil
}
