package bridge_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nandovm/chatcore/internal/bridge"
	"github.com/nandovm/chatcore/internal/model/chat"
)

type fakeSource struct {
	handlers map[string]func(json.RawMessage)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]func(json.RawMessage))}
}

func (f *fakeSource) On(event string, handler func(json.RawMessage)) {
	f.handlers[event] = handler
}

func (f *fakeSource) Off(event string) {
	delete(f.handlers, event)
}

func (f *fakeSource) fire(t *testing.T, event, payload string) {
	t.Helper()
	handler, ok := f.handlers[event]
	if !ok {
		t.Fatalf("no handler registered for %q", event)
	}
	handler(json.RawMessage(payload))
}

type sinkCall struct {
	kind   string
	conv   string
	user   string
	ids    []string
	typing bool
}

type fakeSink struct {
	calls []sinkCall
}

func (f *fakeSink) ApplyInboundMessage(msg chat.Message) {
	f.calls = append(f.calls, sinkCall{kind: "message", conv: msg.ConversationID, user: msg.Sender})
}

func (f *fakeSink) ApplySeenReceipt(conversationID string, messageIDs []string) {
	f.calls = append(f.calls, sinkCall{kind: "seen", conv: conversationID, ids: messageIDs})
}

func (f *fakeSink) ApplyTypingSignal(conversationID, userID string, starting bool) {
	f.calls = append(f.calls, sinkCall{kind: "typing", conv: conversationID, user: userID, typing: starting})
}

func TestAttachRegistersAllFourEventKinds(t *testing.T) {
	source := newFakeSource()
	bridge.Attach(source, &fakeSink{})

	for _, event := range []string{
		chat.EventNewMessage,
		chat.EventMessagesSeen,
		chat.EventUserTyping,
		chat.EventUserStoppedTyping,
	} {
		if _, ok := source.handlers[event]; !ok {
			t.Fatalf("expected handler for %q", event)
		}
	}
	require.Len(t, source.handlers, 4)
}

func TestCloseDeregistersEverything(t *testing.T) {
	source := newFakeSource()
	b := bridge.Attach(source, &fakeSink{})
	b.Close()
	require.Empty(t, source.handlers)
}

func TestNewMessageRouted(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}
	bridge.Attach(source, sink)

	source.fire(t, chat.EventNewMessage,
		`{"id":"m1","conversationId":"c1","sender":"alice","text":"hi","messageType":"text"}`)

	require.Len(t, sink.calls, 1)
	require.Equal(t, sinkCall{kind: "message", conv: "c1", user: "alice"}, sink.calls[0])
}

func TestMalformedPayloadsDropped(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}
	bridge.Attach(source, sink)

	source.fire(t, chat.EventNewMessage, `not json`)
	source.fire(t, chat.EventNewMessage, `{"text":"missing ids"}`)
	source.fire(t, chat.EventMessagesSeen, `{"messageIds":["m1"]}`)
	source.fire(t, chat.EventUserTyping, `{"chatId":"c1"}`)
	source.fire(t, chat.EventUserStoppedTyping, `[]`)

	require.Empty(t, sink.calls)
}

func TestSeenReceiptRouted(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}
	bridge.Attach(source, sink)

	source.fire(t, chat.EventMessagesSeen, `{"chatId":"c1","messageIds":["m1","m2"]}`)
	source.fire(t, chat.EventMessagesSeen, `{"chatId":"c1"}`)

	require.Len(t, sink.calls, 2)
	require.Equal(t, []string{"m1", "m2"}, sink.calls[0].ids)
	// Absent messageIds means "all of them".
	require.Nil(t, sink.calls[1].ids)
}

func TestTypingSignalsRouted(t *testing.T) {
	source := newFakeSource()
	sink := &fakeSink{}
	bridge.Attach(source, sink)

	source.fire(t, chat.EventUserTyping, `{"chatId":"c1","userId":"alice"}`)
	source.fire(t, chat.EventUserStoppedTyping, `{"chatId":"c1","userId":"alice"}`)

	require.Len(t, sink.calls, 2)
	require.True(t, sink.calls[0].typing)
	require.False(t, sink.calls[1].typing)
}
