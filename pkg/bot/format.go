package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/pkg/payment"
	"github.com/promptcash/paybot/pkg/payments"
	"github.com/promptcash/paybot/pkg/resolve"
)

const helpText = `I move money for you. Try:

send 5 PC to @alice - pay someone
request 10 PC from @bob - ask for money
split 30 PC between @alice @bob - share a bill
balance - check your wallet
history - recent payments
deposit - show your wallet address
price - current token price
faucet - free test funds`

func confirmText(p *payment.Prepared) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Send %s %s to %s?", p.Entry.Amount.String(), p.Entry.Token, p.Entry.DisplayName)
	if p.Entry.Message != "" {
		fmt.Fprintf(&b, "\n\"%s\"", p.Entry.Message)
	}
	fmt.Fprintf(&b, "\nEstimated fee: %s %s", p.Fee.String(), p.Entry.Token)
	return b.String()
}

func confirmKeyboard(confirmationID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", "confirm:"+confirmationID),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel:"+confirmationID),
		),
	)
}

func quickActionsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Balance", "menu:balance"),
			tgbotapi.NewInlineKeyboardButtonData("History", "menu:history"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Deposit", "menu:deposit"),
			tgbotapi.NewInlineKeyboardButtonData("Help", "menu:help"),
		),
	)
}

func resultText(res *payment.Result) string {
	var b strings.Builder
	switch res.Receipt.Status {
	case payments.TxStatusConfirmed:
		fmt.Fprintf(&b, "Sent %s %s.", res.Tx.Amount.String(), res.Tx.Token)
	case payments.TxStatusPending:
		fmt.Fprintf(&b, "Your payment of %s %s was submitted and is awaiting confirmation.",
			res.Tx.Amount.String(), res.Tx.Token)
	default:
		fmt.Fprintf(&b, "The network rejected your payment of %s %s. Your balance may still be charged the fee.",
			res.Tx.Amount.String(), res.Tx.Token)
	}
	fmt.Fprintf(&b, "\nTx: %s", res.Receipt.Hash)
	if res.Receipt.Mocked {
		b.WriteString("\n(simulated)")
	}
	return b.String()
}

func historyText(txs []*payments.Transaction, userID int64) string {
	if len(txs) == 0 {
		return "No payments yet."
	}
	var b strings.Builder
	b.WriteString("Recent payments:\n")
	for _, tx := range txs {
		direction := "received"
		if tx.FromUserID != nil && *tx.FromUserID == userID {
			direction = "sent"
		}
		fmt.Fprintf(&b, "%s  %s %s %s (%s)\n",
			tx.CreatedAt.Format("Jan 2 15:04"), direction, tx.Amount.String(), tx.Token, tx.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func balanceText(balance fmt.Stringer, token string, mocked bool) string {
	text := fmt.Sprintf("Balance: %s %s", balance.String(), token)
	if mocked {
		text += " (simulated)"
	}
	return text
}

func priceText(token string, price decimal.Decimal, known bool) string {
	if !known {
		return fmt.Sprintf("I don't have a price for %s.", token)
	}
	return fmt.Sprintf("1 %s = $%s", token, price.StringFixed(2))
}

func depositText(usr *payments.User) string {
	return fmt.Sprintf("Your wallet address:\n%s\n\nSend %s to this address to top up.",
		usr.WalletAddress, payments.NativeToken)
}

func welcomeText(usr *payments.User) string {
	return fmt.Sprintf("Welcome! I created a wallet for you.\nAddress: %s\n\n%s",
		usr.WalletAddress, helpText)
}

func unrecognizedText() string {
	return "I didn't understand that. Here are some things I can do, or type \"help\".\n\n" +
		resolve.SupportedFormats
}
