// Package notify dispatches alert and anomaly notifications to Telegram
// chats and user-configured webhooks.
package notify

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// TelegramNotifier sends messages through the Telegram Bot API. Disabled
// (all sends no-op) when no bot token is configured.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	enabled bool
}

// NewTelegramNotifier creates a notifier. An empty token yields a disabled
// notifier rather than an error so deployments without Telegram still run.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	if token == "" {
		return &TelegramNotifier{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("✅ Telegram notifier ready")
	return &TelegramNotifier{bot: bot, enabled: true}, nil
}

// Enabled reports whether a bot token is configured
func (n *TelegramNotifier) Enabled() bool { return n.enabled }

// Send posts an HTML-formatted message to a chat
func (n *TelegramNotifier) Send(chatID int64, html string) error {
	if !n.enabled {
		return nil
	}
	if chatID == 0 {
		return fmt.Errorf("telegram chat id not set")
	}
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

// FormatAlert renders an alert firing as Telegram HTML
func FormatAlert(alertName, question string, price float64, detail string) string {
	return fmt.Sprintf(
		"🔔 <b>Alert: %s</b>\n%s\nPrice: <code>%.4f</code>\n%s\n<i>%s</i>",
		escapeHTML(alertName), escapeHTML(question), price, escapeHTML(detail),
		time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
	)
}

// FormatAnomaly renders a heat-board anomaly as Telegram HTML
func FormatAnomaly(question, kind string, severity string, score float64) string {
	icon := "📈"
	if severity == "critical" {
		icon = "🚨"
	}
	return fmt.Sprintf(
		"%s <b>Anomaly (%s)</b>\n%s\nHeat score: <code>%.1f</code>\nSeverity: %s",
		icon, escapeHTML(kind), escapeHTML(question), score, severity,
	)
}

func escapeHTML(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '&':
			out = append(out, []rune("&amp;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
