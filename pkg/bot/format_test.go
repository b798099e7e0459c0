package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/pkg/chain"
	"github.com/promptcash/paybot/pkg/confirm"
	"github.com/promptcash/paybot/pkg/payment"
	"github.com/promptcash/paybot/pkg/payments"
)

func TestConfirmText(t *testing.T) {
	p := &payment.Prepared{
		ConfirmationID: "abc",
		Entry: &confirm.Entry{
			Amount:      decimal.RequireFromString("5"),
			Token:       payments.NativeToken,
			DisplayName: "@alice",
			Message:     "lunch",
		},
		Fee: decimal.RequireFromString("0.0001"),
	}

	got := confirmText(p)
	for _, want := range []string{"Send 5 PC to @alice?", "\"lunch\"", "0.0001"} {
		if !strings.Contains(got, want) {
			t.Errorf("confirmText() = %q, missing %q", got, want)
		}
	}

	p.Entry.Message = ""
	if got := confirmText(p); strings.Contains(got, "\"") {
		t.Errorf("confirmText() without a message = %q, want no quoted line", got)
	}
}

func TestConfirmKeyboard(t *testing.T) {
	kb := confirmKeyboard("abc")
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard layout = %+v, want one row of two buttons", kb.InlineKeyboard)
	}
	if got := *kb.InlineKeyboard[0][0].CallbackData; got != "confirm:abc" {
		t.Errorf("confirm callback = %q", got)
	}
	if got := *kb.InlineKeyboard[0][1].CallbackData; got != "cancel:abc" {
		t.Errorf("cancel callback = %q", got)
	}
}

func TestResultText(t *testing.T) {
	tx := &payments.Transaction{
		Amount: decimal.RequireFromString("5"),
		Token:  payments.NativeToken,
	}

	tests := []struct {
		name    string
		receipt *chain.Receipt
		want    string
	}{
		{"Confirmed", &chain.Receipt{Hash: "0xaaa", Status: payments.TxStatusConfirmed}, "Sent 5 PC."},
		{"Pending", &chain.Receipt{Hash: "0xbbb", Status: payments.TxStatusPending}, "awaiting confirmation"},
		{"Failed", &chain.Receipt{Hash: "0xccc", Status: payments.TxStatusFailed}, "rejected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := resultText(&payment.Result{Tx: tx, Receipt: tc.receipt})
			if !strings.Contains(got, tc.want) {
				t.Errorf("resultText() = %q, missing %q", got, tc.want)
			}
			if !strings.Contains(got, tc.receipt.Hash) {
				t.Errorf("resultText() = %q, missing the tx hash", got)
			}
		})
	}

	mocked := resultText(&payment.Result{
		Tx:      tx,
		Receipt: &chain.Receipt{Hash: "mock-1", Status: payments.TxStatusConfirmed, Mocked: true},
	})
	if !strings.Contains(mocked, "(simulated)") {
		t.Errorf("resultText() for a mocked receipt = %q, want the simulated tag", mocked)
	}
}

func TestHistoryText(t *testing.T) {
	if got := historyText(nil, 1); got != "No payments yet." {
		t.Errorf("historyText(nil) = %q", got)
	}

	me := int64(1)
	other := int64(2)
	txs := []*payments.Transaction{
		{FromUserID: &me, ToUserID: &other, Amount: decimal.RequireFromString("5"),
			Token: payments.NativeToken, Status: payments.TxStatusConfirmed, CreatedAt: time.Now()},
		{FromUserID: &other, ToUserID: &me, Amount: decimal.RequireFromString("3"),
			Token: payments.NativeToken, Status: payments.TxStatusConfirmed, CreatedAt: time.Now()},
	}
	got := historyText(txs, me)
	if !strings.Contains(got, "sent 5 PC") {
		t.Errorf("historyText() = %q, missing the outgoing line", got)
	}
	if !strings.Contains(got, "received 3 PC") {
		t.Errorf("historyText() = %q, missing the incoming line", got)
	}
}

func TestPriceText(t *testing.T) {
	if got := priceText("PC", decimal.RequireFromString("1"), true); got != "1 PC = $1.00" {
		t.Errorf("priceText() = %q", got)
	}
	if got := priceText("USDT", decimal.Zero, false); !strings.Contains(got, "don't have a price") {
		t.Errorf("priceText() unknown = %q", got)
	}
}

func TestBalanceText(t *testing.T) {
	got := balanceText(decimal.RequireFromString("42.5"), payments.NativeToken, false)
	if got != "Balance: 42.5 PC" {
		t.Errorf("balanceText() = %q", got)
	}
	if got := balanceText(decimal.Zero, payments.NativeToken, true); !strings.Contains(got, "(simulated)") {
		t.Errorf("balanceText() mocked = %q, want the simulated tag", got)
	}
}
