// Package bridge routes named push-channel events to the conversation
// sync engine for the lifetime of one engine session.
package bridge

import (
	"encoding/json"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/nandovm/chatcore/internal/model/chat"
)

// EventSource is the subset of the push channel the bridge consumes.
type EventSource interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
}

// Sink is the engine surface the bridge drives.
type Sink interface {
	ApplyInboundMessage(msg chat.Message)
	ApplySeenReceipt(conversationID string, messageIDs []string)
	ApplyTypingSignal(conversationID, userID string, starting bool)
}

// Bridge owns the push-event subscription for one engine session.
// Attach registers exactly one handler per event kind; Close must run
// before a new bridge attaches to the same source, otherwise the same
// inbound event would be delivered twice.
type Bridge struct {
	source EventSource
	sink   Sink
}

// Attach subscribes the sink to the four inbound event kinds.
func Attach(source EventSource, sink Sink) *Bridge {
	b := &Bridge{source: source, sink: sink}
	source.On(chat.EventNewMessage, b.onNewMessage)
	source.On(chat.EventMessagesSeen, b.onMessagesSeen)
	source.On(chat.EventUserTyping, b.onUserTyping)
	source.On(chat.EventUserStoppedTyping, b.onUserStoppedTyping)
	return b
}

// Close deregisters every handler registered by Attach.
func (b *Bridge) Close() {
	b.source.Off(chat.EventNewMessage)
	b.source.Off(chat.EventMessagesSeen)
	b.source.Off(chat.EventUserTyping)
	b.source.Off(chat.EventUserStoppedTyping)
}

// Malformed payloads are dropped and logged; a bad push event must
// never take the session down.

func (b *Bridge) onNewMessage(data json.RawMessage) {
	var msg chat.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		jww.WARN.Printf("[bridge] dropping malformed newMessage: %v", err)
		return
	}
	if msg.ID == "" || msg.ConversationID == "" {
		jww.WARN.Printf("[bridge] dropping newMessage with missing ids")
		return
	}
	b.sink.ApplyInboundMessage(msg)
}

func (b *Bridge) onMessagesSeen(data json.RawMessage) {
	var ev chat.SeenEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		jww.WARN.Printf("[bridge] dropping malformed messagesSeen: %v", err)
		return
	}
	if ev.ConversationID == "" {
		jww.WARN.Printf("[bridge] dropping messagesSeen with missing chat id")
		return
	}
	b.sink.ApplySeenReceipt(ev.ConversationID, ev.MessageIDs)
}

func (b *Bridge) onUserTyping(data json.RawMessage) {
	if ev, ok := decodeTyping(data, chat.EventUserTyping); ok {
		b.sink.ApplyTypingSignal(ev.ConversationID, ev.UserID, true)
	}
}

func (b *Bridge) onUserStoppedTyping(data json.RawMessage) {
	if ev, ok := decodeTyping(data, chat.EventUserStoppedTyping); ok {
		b.sink.ApplyTypingSignal(ev.ConversationID, ev.UserID, false)
	}
}

func decodeTyping(data json.RawMessage, kind string) (chat.TypingEvent, bool) {
	var ev chat.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		jww.WARN.Printf("[bridge] dropping malformed %s: %v", kind, err)
		return chat.TypingEvent{}, false
	}
	if ev.ConversationID == "" || ev.UserID == "" {
		jww.WARN.Printf("[bridge] dropping %s with missing fields", kind)
		return chat.TypingEvent{}, false
	}
	return ev, true
}
