package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	apperrors "github.com/promptcash/paybot/pkg/app/errors"
	"github.com/promptcash/paybot/pkg/payments"
)

// handleCallback routes inline button presses. The ack is best-effort: a
// stale callback (old message, restarted bot) is answered and otherwise
// ignored.
func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := h.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			h.logger.Debug("Callback ack failed", zap.Error(err))
		}
	}()

	if q.From == nil || q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID

	usr, _, err := h.executor.EnsureUser(ctx, q.From.ID, q.From.UserName, "")
	if err != nil {
		h.logger.Error("User registration failed on callback",
			zap.Int64("platform_id", q.From.ID),
			zap.Error(err))
		return
	}

	action, arg, _ := strings.Cut(q.Data, ":")
	switch action {
	case "confirm":
		h.callbackConfirm(ctx, chatID, usr, arg)
	case "cancel":
		if h.executor.Cancel(usr, arg) {
			h.reply(chatID, "Payment cancelled. Nothing was sent.")
		} else {
			h.reply(chatID, "That confirmation has expired. Please resend the payment command.")
		}
	case "split_accept":
		h.callbackSplitAccept(ctx, chatID, usr, arg)
	case "split_decline":
		h.callbackSplitDecline(ctx, chatID, usr, arg)
	case "req_pay":
		h.callbackRequestPay(ctx, chatID, usr, arg)
	case "req_decline":
		h.callbackRequestDecline(ctx, chatID, usr, arg)
	case "menu":
		h.callbackMenu(ctx, chatID, usr, arg)
	default:
		h.logger.Debug("Unknown callback", zap.String("data", q.Data))
	}
}

func (h *Handler) callbackConfirm(ctx context.Context, chatID int64, usr *payments.User, confirmationID string) {
	res, err := h.executor.Confirm(ctx, usr, confirmationID)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, resultText(res))
}

func (h *Handler) callbackSplitAccept(ctx context.Context, chatID int64, usr *payments.User, arg string) {
	splitID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	split, err := h.coordinator.Accept(ctx, usr, splitID)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	if split.Status == payments.SplitStatusCompleted {
		h.reply(chatID, "You're in. Everyone accepted, so your share has been paid.")
		return
	}
	h.reply(chatID, "You're in. I'll collect your share once everyone accepts.")
}

func (h *Handler) callbackSplitDecline(ctx context.Context, chatID int64, usr *payments.User, arg string) {
	splitID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	if err := h.coordinator.Decline(ctx, usr, splitID); err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, "Declined. I've let the organizer know.")
}

func (h *Handler) callbackRequestPay(ctx context.Context, chatID int64, usr *payments.User, arg string) {
	requestID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	prepared, err := h.executor.PayRequest(ctx, usr, requestID)
	if err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.replyWithKeyboard(chatID, confirmText(prepared), confirmKeyboard(prepared.ConfirmationID))
}

func (h *Handler) callbackRequestDecline(ctx context.Context, chatID int64, usr *payments.User, arg string) {
	requestID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	if err := h.executor.DeclineRequest(ctx, usr, requestID); err != nil {
		h.reply(chatID, apperrors.UserMessage(err))
		return
	}
	h.reply(chatID, "Declined.")
}

func (h *Handler) callbackMenu(ctx context.Context, chatID int64, usr *payments.User, arg string) {
	switch arg {
	case "balance":
		h.handleBalance(ctx, chatID, usr)
	case "history":
		h.handleHistory(ctx, chatID, usr)
	case "deposit":
		h.reply(chatID, depositText(usr))
	case "help":
		h.reply(chatID, helpText)
	}
}
