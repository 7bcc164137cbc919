// Telegram implementation of the transport Client.
package transport

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Telegram's global bot send budget is ~30 messages/second; each client's
// limiter paces that bot's outbound traffic well under it.
const (
	sendsPerSecond = 20
	sendBurst      = 5
)

// TelegramClient wraps one bot token. Sends are paced by a token bucket and
// bounded by the HTTP client's timeout.
type TelegramClient struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewTelegramClient authenticates a bot token. The timeout bounds every
// outbound API call.
func NewTelegramClient(token string, timeout time.Duration) (*TelegramClient, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &TelegramClient{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), sendBurst),
	}, nil
}

// Username returns the authenticated bot's username.
func (c *TelegramClient) Username() string { return c.api.Self.UserName }

// API exposes the underlying client for the update loop.
func (c *TelegramClient) API() *tgbotapi.BotAPI { return c.api }

// SendMessage delivers plain text to a chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendMessageWithButton delivers text with a single URL button.
func (c *TelegramClient) SendMessageWithButton(ctx context.Context, chatID int64, text string, button Button) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL),
		),
	)
	_, err := c.api.Send(msg)
	return err
}

// NewFleet authenticates every configured token and returns the slot-keyed
// client set. Slots without tokens are simply absent from the fleet.
func NewFleet(tokens map[int]string, timeout time.Duration) (Fleet, error) {
	fleet := Fleet{}
	for slot, token := range tokens {
		c, err := NewTelegramClient(token, timeout)
		if err != nil {
			return nil, err
		}
		fleet[slot] = c
	}
	return fleet, nil
}
