package splits

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/ledger"
	"github.com/promptcash/paybot/pkg/notify"
	"github.com/promptcash/paybot/pkg/payments"
)

// memStore is a stateful in-memory split store. It enforces the same status
// guards as the postgres implementation so settlement races are observable.
type memStore struct {
	mu          sync.Mutex
	users       map[int64]*payments.User
	splits      map[int64]*payments.SplitPayment
	txs         []*payments.Transaction
	completions int
	nextID      int64

	createTxErr error
}

func newMemStore(users ...*payments.User) *memStore {
	s := &memStore{
		users:  make(map[int64]*payments.User),
		splits: make(map[int64]*payments.SplitPayment),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) UserByID(_ context.Context, id int64) (*payments.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *memStore) CreateTransaction(_ context.Context, tx *payments.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createTxErr != nil {
		return s.createTxErr
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *memStore) AddTotals(context.Context, *int64, *int64, decimal.Decimal) error {
	return nil
}

func (s *memStore) CreateSplit(_ context.Context, split *payments.SplitPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	split.ID = s.nextID
	split.CreatedAt = time.Now()
	for i, p := range split.Participants {
		p.ID = int64(i + 1)
		p.SplitID = split.ID
	}
	s.splits[split.ID] = clone(split)
	return nil
}

func (s *memStore) Split(_ context.Context, id int64) (*payments.SplitPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[id]
	if !ok {
		return nil, nil
	}
	return clone(split), nil
}

func (s *memStore) SetParticipantStatus(_ context.Context, splitID, userID int64, status payments.ParticipantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[splitID]
	if !ok {
		return ledger.ErrNoRows
	}
	for _, p := range split.Participants {
		if p.UserID != userID {
			continue
		}
		eligible := p.Status == payments.ParticipantStatusPending ||
			(status == payments.ParticipantStatusAccepted && p.Status == payments.ParticipantStatusAccepted)
		if !eligible {
			return ledger.ErrNoRows
		}
		p.Status = status
		return nil
	}
	return ledger.ErrNoRows
}

func (s *memStore) MarkParticipantPaid(_ context.Context, splitID, userID int64, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[splitID]
	if !ok {
		return ledger.ErrNoRows
	}
	for _, p := range split.Participants {
		if p.UserID == userID {
			p.Status = payments.ParticipantStatusPaid
			p.PaidAt = &paidAt
			return nil
		}
	}
	return ledger.ErrNoRows
}

func (s *memStore) CompleteSplit(_ context.Context, id int64, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[id]
	if !ok || split.Status != payments.SplitStatusActive {
		return ledger.ErrNoRows
	}
	split.Status = payments.SplitStatusCompleted
	split.CompletedAt = &completedAt
	s.completions++
	return nil
}

func (s *memStore) CancelSplit(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	split, ok := s.splits[id]
	if !ok || split.Status != payments.SplitStatusActive {
		return ledger.ErrNoRows
	}
	split.Status = payments.SplitStatusCancelled
	return nil
}

func (s *memStore) transactions() []*payments.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*payments.Transaction(nil), s.txs...)
}

func (s *memStore) completionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions
}

func clone(split *payments.SplitPayment) *payments.SplitPayment {
	out := *split
	out.Participants = nil
	for _, p := range split.Participants {
		cp := *p
		out.Participants = append(out.Participants, &cp)
	}
	return &out
}

// MockNotifier records outbound notifications.
type MockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	PlatformID int64
	Text       string
	Actions    [][]notify.Action
}

func (m *MockNotifier) Send(_ context.Context, platformID int64, out notify.Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{PlatformID: platformID, Text: out.Text, Actions: out.Actions})
	return nil
}

func (m *MockNotifier) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// mockChain is a function-field chain client. Defaults to confirming every
// transfer with a unique hash.
type mockChain struct {
	mu        sync.Mutex
	transfers []transferCall

	TransferFunc func(to string, amount decimal.Decimal) (*chain.Receipt, error)
}

type transferCall struct {
	To     string
	Amount decimal.Decimal
}

func (m *mockChain) GetBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

func (m *mockChain) Transfer(_ context.Context, _ []byte, to string, amount decimal.Decimal) (*chain.Receipt, error) {
	m.mu.Lock()
	n := len(m.transfers)
	m.transfers = append(m.transfers, transferCall{To: to, Amount: amount})
	m.mu.Unlock()

	if m.TransferFunc != nil {
		return m.TransferFunc(to, amount)
	}
	return &chain.Receipt{
		Hash:   fmt.Sprintf("0xsplit%d", n),
		Status: payments.TxStatusConfirmed,
	}, nil
}

func (m *mockChain) EstimateFee(context.Context) decimal.Decimal {
	return decimal.Zero
}

func (m *mockChain) Mocked() bool { return false }

func (m *mockChain) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
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
