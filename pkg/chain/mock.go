package chain

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/payments"
)

// MockClient is the degraded/disconnected mode of the chain boundary. Every
// result is clearly tagged as mocked so the rest of the system keeps working
// for demos and tests without a reachable node.
type MockClient struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	seed     decimal.Decimal
	logger   *zap.Logger
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock chain where every address starts with the
// given seed balance.
func NewMockClient(seedBalance decimal.Decimal, logger *zap.Logger) *MockClient {
	return &MockClient{
		balances: make(map[string]decimal.Decimal),
		seed:     seedBalance,
		logger:   logger,
	}
}

// Mocked reports whether results are fabricated. Always true here.
func (c *MockClient) Mocked() bool { return true }

// GetBalance returns the mock balance, seeding unseen addresses.
func (c *MockClient) GetBalance(_ context.Context, address string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(address), nil
}

func (c *MockClient) balance(address string) decimal.Decimal {
	key := strings.ToLower(address)
	if _, ok := c.balances[key]; !ok {
		c.balances[key] = c.seed
	}
	return c.balances[key]
}

// Transfer moves mock funds and fabricates a confirmed receipt with a
// recognizable mock- prefixed hash.
func (c *MockClient) Transfer(_ context.Context, privateKey []byte, to string, amount decimal.Decimal) (*Receipt, error) {
	from := ""
	if key, err := crypto.ToECDSA(privateKey); err == nil {
		from = crypto.PubkeyToAddress(key.PublicKey).Hex()
	}

	c.mu.Lock()
	if from != "" {
		c.balances[strings.ToLower(from)] = c.balance(from).Sub(amount)
	}
	c.balances[strings.ToLower(to)] = c.balance(to).Add(amount)
	c.mu.Unlock()

	hash := "mock-" + uuid.NewString()
	c.logger.Debug("Mock transfer executed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", hash))

	return &Receipt{Hash: hash, Status: payments.TxStatusConfirmed, Fee: decimal.Zero, Mocked: true}, nil
}

// Credit adds mock funds to an address (faucet support).
func (c *MockClient) Credit(address string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[strings.ToLower(address)] = c.balance(address).Add(amount)
}

// EstimateFee always returns zero in mock mode.
func (c *MockClient) EstimateFee(context.Context) decimal.Decimal {
	return decimal.Zero
}
