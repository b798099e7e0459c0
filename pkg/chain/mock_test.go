package chain

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/payments"
)

func testKey(t *testing.T) ([]byte, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return crypto.FromECDSA(key), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestMockClient_SeedsBalances(t *testing.T) {
	c := NewMockClient(decimal.NewFromInt(100), zap.NewNop())

	balance, err := c.GetBalance(context.Background(), "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.String() != "100" {
		t.Errorf("balance = %s, want 100", balance)
	}
}

func TestMockClient_TransferMovesFunds(t *testing.T) {
	c := NewMockClient(decimal.NewFromInt(100), zap.NewNop())
	key, from := testKey(t)
	to := "0x2222222222222222222222222222222222222222"

	receipt, err := c.Transfer(context.Background(), key, to, decimal.NewFromInt(30))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if receipt.Status != payments.TxStatusConfirmed {
		t.Errorf("status = %s, want confirmed", receipt.Status)
	}
	if !receipt.Mocked {
		t.Error("receipt not tagged as mocked")
	}
	if !strings.HasPrefix(receipt.Hash, "mock-") {
		t.Errorf("hash = %s, want mock- prefix", receipt.Hash)
	}

	fromBal, _ := c.GetBalance(context.Background(), from)
	toBal, _ := c.GetBalance(context.Background(), to)
	if fromBal.String() != "70" {
		t.Errorf("sender balance = %s, want 70", fromBal)
	}
	if toBal.String() != "130" {
		t.Errorf("recipient balance = %s, want 130", toBal)
	}
}

func TestMockClient_Credit(t *testing.T) {
	c := NewMockClient(decimal.Zero, zap.NewNop())
	addr := "0x3333333333333333333333333333333333333333"

	c.Credit(addr, decimal.NewFromInt(10))
	balance, _ := c.GetBalance(context.Background(), addr)
	if balance.String() != "10" {
		t.Errorf("balance = %s, want 10", balance)
	}
}

func TestDial_EmptyURLFallsBackToMock(t *testing.T) {
	c := Dial(context.Background(), "", Options{}, zap.NewNop())
	if !c.Mocked() {
		t.Error("expected mock client for empty RPC URL")
	}
}
