// Package transport abstracts the chat-platform send path. The bot fleet is
// modeled as a capability: a process holds a set of clients keyed by slot and
// may dispatch through any of them, which is how a greeting is sent from bot
// N while code runs under bot M.
package transport

import (
	"context"
	"errors"
)

// ErrNoSuchSlot is returned when dispatching through a slot the process has
// no token for.
var ErrNoSuchSlot = errors.New("no transport client for slot")

// Button is a single URL button attached below a message.
type Button struct {
	Text string
	URL  string
}

// Client sends messages on behalf of one bot identity.
type Client interface {
	// SendMessage delivers plain text to a chat. The context bounds the wait
	// for send pacing; the Telegram client bounds the API call itself with its
	// HTTP timeout.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendMessageWithButton delivers text with one URL button attached.
	SendMessageWithButton(ctx context.Context, chatID int64, text string, button Button) error
}

// Fleet is the slot-keyed set of transport clients available to a process.
type Fleet map[int]Client

// Send dispatches through the client owning the given slot.
func (f Fleet) Send(ctx context.Context, slot int, chatID int64, text string) error {
	c, ok := f[slot]
	if !ok {
		return ErrNoSuchSlot
	}
	return c.SendMessage(ctx, chatID, text)
}

// SendWithButton dispatches text plus a URL button through the given slot.
func (f Fleet) SendWithButton(ctx context.Context, slot int, chatID int64, text string, button Button) error {
	c, ok := f[slot]
	if !ok {
		return ErrNoSuchSlot
	}
	return c.SendMessageWithButton(ctx, chatID, text, button)
}

// Has reports whether the fleet holds a client for the slot.
func (f Fleet) Has(slot int) bool {
	_, ok := f[slot]
	return ok
}
