// Package bot is the Telegram boundary: it turns chat updates into engine
// calls and engine results into chat replies.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/internal/metrics"
	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/intent"
	"github.com/promptcash/paybot/pkg/payments"
	"github.com/promptcash/paybot/pkg/splits"

	"github.com/promptcash/paybot/pkg/payment"
)

const defaultHistoryLimit = 10

// Options tunes the handler.
type Options struct {
	// FaucetAmount is credited per faucet command in mock chain mode.
	FaucetAmount decimal.Decimal
	// TokenPrices are static display prices (symbol -> USD).
	TokenPrices map[string]decimal.Decimal
}

// Handler routes Telegram updates to the payment engine. Each update is
// handled in its own goroutine; all cross-update state lives in the engine.
type Handler struct {
	api         *tgbotapi.BotAPI
	parser      *intent.Parser
	executor    *payment.Executor
	coordinator *splits.Coordinator
	opts        Options
	logger      *zap.Logger
}

func NewHandler(
	api *tgbotapi.BotAPI,
	parser *intent.Parser,
	executor *payment.Executor,
	coordinator *splits.Coordinator,
	opts Options,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		api:         api,
		parser:      parser,
		executor:    executor,
		coordinator: coordinator,
		opts:        opts,
		logger:      logger,
	}
}

// Run long-polls Telegram until the context is cancelled. updateTimeout is
// the long-poll timeout in seconds.
func (h *Handler) Run(ctx context.Context, updateTimeout int) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = updateTimeout
	updates := h.api.GetUpdatesChan(cfg)

	h.logger.Info("Bot started", zap.String("username", h.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			return
		case upd := <-updates:
			go h.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes one update end to end.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		h.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	if !msg.Chat.IsPrivate() {
		return
	}
	metrics.UpdatesTotal.WithLabelValues("message").Inc()

	usr, created, err := h.executor.EnsureUser(ctx, msg.From.ID, msg.From.UserName, "")
	if err != nil {
		h.logger.Error("User registration failed",
			zap.Int64("platform_id", msg.From.ID),
			zap.Error(err))
		h.reply(msg.Chat.ID, "Something went wrong on my side. Please try again.")
		return
	}
	if created {
		h.reply(msg.Chat.ID, welcomeText(usr))
		if !strings.HasPrefix(strings.TrimSpace(msg.Text), "/start") {
			h.handleText(ctx, msg.Chat.ID, usr, msg.Text)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/start") {
		h.reply(msg.Chat.ID, helpText)
		return
	}
	h.handleText(ctx, msg.Chat.ID, usr, text)
}

func (h *Handler) handleText(ctx context.Context, chatID int64, usr *payments.User, text string) {
	in, err := h.parser.Parse(text)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}

	switch in.Kind {
	case intent.KindSend:
		h.handleSend(ctx, chatID, usr, in)
	case intent.KindRequest:
		h.handleRequest(ctx, chatID, usr, in)
	case intent.KindSplit:
		h.handleSplit(ctx, chatID, usr, in)
	case intent.KindBalance:
		h.handleBalance(ctx, chatID, usr)
	case intent.KindHistory:
		h.handleHistory(ctx, chatID, usr)
	case intent.KindDeposit:
		h.reply(chatID, depositText(usr))
	case intent.KindFaucet:
		h.handleFaucet(ctx, chatID, usr)
	case intent.KindPrice:
		h.handlePrice(chatID, in.Token)
	case intent.KindHelp:
		h.reply(chatID, helpText)
	default:
		h.replyWithKeyboard(chatID, unrecognizedText(), quickActionsKeyboard())
	}
}

func (h *Handler) handleSend(ctx context.Context, chatID int64, usr *payments.User, in intent.Intent) {
	prepared, err := h.executor.Prepare(ctx, usr, in)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.replyWithKeyboard(chatID, confirmText(prepared), confirmKeyboard(prepared.ConfirmationID))
}

func (h *Handler) handleRequest(ctx context.Context, chatID int64, usr *payments.User, in intent.Intent) {
	req, err := h.executor.CreateRequest(ctx, usr, in)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, "Request sent for "+req.Amount.String()+" "+req.Token+". I'll let you know when they respond.")
}

func (h *Handler) handleSplit(ctx context.Context, chatID int64, usr *payments.User, in intent.Intent) {
	split, err := h.coordinator.Create(ctx, usr, in)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	share := payments.EqualShare(split.TotalAmount, len(split.Participants))
	h.reply(chatID, "Split created. Everyone owes "+share.String()+" "+split.Token+
		"; I'll collect once they all accept.")
}

func (h *Handler) handleBalance(ctx context.Context, chatID int64, usr *payments.User) {
	balance, mocked, err := h.executor.Balance(ctx, usr)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, balanceText(balance, payments.NativeToken, mocked))
}

func (h *Handler) handleHistory(ctx context.Context, chatID int64, usr *payments.User) {
	txs, err := h.executor.History(ctx, usr, defaultHistoryLimit)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, historyText(txs, usr.ID))
}

func (h *Handler) handlePrice(chatID int64, token string) {
	price, ok := h.opts.TokenPrices[token]
	h.reply(chatID, priceText(token, price, ok))
}

func (h *Handler) handleFaucet(ctx context.Context, chatID int64, usr *payments.User) {
	tx, err := h.executor.Faucet(ctx, usr, h.opts.FaucetAmount)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, "Topped up "+tx.Amount.String()+" "+tx.Token+". (simulated)")
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("Reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := h.api.Send(msg); err != nil {
		h.logger.Warn("Reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
