package engine

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/nandovm/chatcore/internal/model/chat"
)

var (
	// ErrEmptyMessage rejects a send with neither text nor attachment.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrNoActiveConversation rejects a send with no open conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// MessageSender posts one outbound message to the remote service and
// returns the server-confirmed message.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, text string, image *chat.ImageUpload) (chat.Message, error)
}

// Dispatcher validates and sends outbound messages tied to the active
// conversation, folding the confirmed result into engine state. There
// is no optimistic insert: a failed send leaves state untouched.
type Dispatcher struct {
	engine *Engine
	sender MessageSender
	typing *Debouncer
}

// NewDispatcher wires a dispatcher to the engine. typing may be nil.
func NewDispatcher(e *Engine, sender MessageSender, typing *Debouncer) *Dispatcher {
	return &Dispatcher{engine: e, sender: sender, typing: typing}
}

// Send posts text and/or a single image to the active conversation.
func (d *Dispatcher) Send(ctx context.Context, text string, image *chat.ImageUpload) (chat.Message, error) {
	if strings.TrimSpace(text) == "" && image == nil {
		return chat.Message{}, ErrEmptyMessage
	}
	conversationID, ok := d.engine.ActiveID()
	if !ok {
		return chat.Message{}, ErrNoActiveConversation
	}

	if d.typing != nil {
		d.typing.Stop()
	}

	msg, err := d.sender.SendMessage(ctx, conversationID, text, image)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "send message")
	}

	d.engine.ApplyOutboundMessageConfirmed(msg)
	return msg, nil
}
