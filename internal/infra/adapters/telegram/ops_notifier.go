package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"companion-billing/internal/config"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*OpsNotifier)(nil)

// sender is the subset of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// OpsNotifier posts reconciliation items and settlements to the admin chat.
type OpsNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewOpsNotifier(cfg *config.TelegramConfig, logger *zerolog.Logger) (*OpsNotifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.AdminChatID == 0 {
		return nil, errors.New("telegram admin_chat_id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newOpsNotifier(bot, cfg.AdminChatID, logger), nil
}

func newOpsNotifier(bot sender, chatID int64, logger *zerolog.Logger) *OpsNotifier {
	l := logger.With().Str("component", "OpsNotifier").Logger()
	return &OpsNotifier{bot: bot, chatID: chatID, log: &l}
}

func (n *OpsNotifier) NotifyReconciliation(ctx context.Context, item *model.ReconciliationItem) error {
	if item == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ Reconciliation needed: %s\n", item.Reason)
	fmt.Fprintf(&b, "Transfer: %s\n", item.TransferRef)
	if item.PaymentRequestID != nil {
		fmt.Fprintf(&b, "Request: %s\n", *item.PaymentRequestID)
	}
	fmt.Fprintf(&b, "Expected: %s\nReceived: %s\n", formatVND(item.ExpectedAmount), formatVND(item.ReceivedAmount))
	fmt.Fprintf(&b, "Description: %s", item.Description)
	return n.send(ctx, b.String())
}

func (n *OpsNotifier) NotifySettled(ctx context.Context, p *model.PaymentRequest) error {
	if p == nil {
		return nil
	}
	text := fmt.Sprintf("✅ Settled %s %s/%s for %s (%s)",
		p.ID, p.Kind, p.TargetEntitlementID, p.SubjectID, formatVND(p.Amount))
	return n.send(ctx, text)
}

func (n *OpsNotifier) send(ctx context.Context, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("telegram send failed")
		return err
	}
	return nil
}

// formatVND renders 1234567 as "1.234.567 ₫".
func formatVND(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out) + " ₫"
	}
	return string(out) + " ₫"
}
