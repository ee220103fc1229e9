// Package telegram forwards canonical messages to a Telegram chat as a
// secondary delivery channel.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Zentik-notifier/backend-sub001/internal/notification"
	logx "github.com/Zentik-notifier/backend-sub001/pkg/logx"
)

type Config struct {
	Enabled  bool
	Token    string
	ChatID   int64
	ThreadID int
}

type Forwarder struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

// New builds the forwarder. Returns (nil, nil) when the channel is disabled
// so callers can treat it as absent.
func New(cfg Config, log logx.Logger) (*Forwarder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	// Send-only bot: no poller, updates are never consumed.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Forwarder{
		cfg: cfg,
		log: log.With(logx.String("component", "telegram.forwarder")),
		bot: bot,
	}, nil
}

// Send renders the message as Telegram text. SILENT messages are delivered
// without a notification sound.
func (f *Forwarder) Send(ctx context.Context, m notification.Message) error {
	if f == nil {
		return nil
	}
	_ = ctx

	var b strings.Builder
	b.WriteString(severityPrefix(m.DeliveryType))
	b.WriteString(m.Title)
	if m.Subtitle != "" {
		b.WriteString("\n")
		b.WriteString(m.Subtitle)
	}
	if m.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(m.Body)
	}
	if m.TapAction != nil && m.TapAction.Type == notification.ActionNavigate {
		b.WriteString("\n")
		b.WriteString(m.TapAction.Value)
	}

	opts := &tele.SendOptions{
		ThreadID:              f.cfg.ThreadID,
		DisableWebPagePreview: true,
		DisableNotification:   m.DeliveryType == notification.DeliverySilent,
	}

	start := time.Now()
	_, err := f.bot.Send(&tele.Chat{ID: f.cfg.ChatID}, b.String(), opts)
	if err != nil {
		f.log.Warn("telegram forward failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return err
	}
	f.log.Debug("telegram forward sent", logx.Int64("chat_id", f.cfg.ChatID))
	return nil
}

func severityPrefix(dt notification.DeliveryType) string {
	switch dt {
	case notification.DeliveryCritical:
		return "🚨 "
	case notification.DeliverySilent:
		return ""
	}
	return "ℹ️ "
}
