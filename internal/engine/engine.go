package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/nandovm/chatcore/internal/model/chat"
)

// SnapshotFetcher retrieves the authoritative state of one conversation
// from the remote message service.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, conversationID string) (chat.Snapshot, error)
}

// ConversationCreator asks the remote service for a new or existing
// conversation handle with another user.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, otherUserID string) (string, error)
}

// ChannelSignaler emits room membership signals on the push channel.
type ChannelSignaler interface {
	JoinChat(conversationID string) error
	LeaveChat(conversationID string) error
}

// ActiveConversation is a read-only copy of the currently open
// conversation handed to the rendering layer.
type ActiveConversation struct {
	ConversationID    string
	Counterpart       chat.User
	Messages          []chat.Message
	CounterpartTyping bool
}

// Engine is the single source of truth for the conversation roster and
// the active conversation. Every mutation is applied one event at a
// time under the engine lock; network calls run outside it and their
// completions are guarded against conversation switches that happened
// in the meantime.
type Engine struct {
	self    string
	fetcher SnapshotFetcher
	creator ConversationCreator
	signals ChannelSignaler

	mu     sync.Mutex
	roster []chat.ConversationSummary
	active *activeState
	epoch  uint64

	now      func() time.Time
	onChange func()
}

type activeState struct {
	id     string
	user   chat.User
	msgs   []chat.Message
	typing bool
	loaded bool
}

// New creates an engine for the given local user.
func New(selfID string, fetcher SnapshotFetcher, creator ConversationCreator, signals ChannelSignaler) *Engine {
	return &Engine{
		self:    selfID,
		fetcher: fetcher,
		creator: creator,
		signals: signals,
		now:     time.Now,
	}
}

// SetOnChange registers a callback invoked after every state mutation,
// outside the engine lock. Must be set before the engine is shared.
func (e *Engine) SetOnChange(fn func()) { e.onChange = fn }

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
}

// LoadRoster replaces the roster with summaries fetched from the remote
// service, keeping UpdatedAt-descending order.
func (e *Engine) LoadRoster(summaries []chat.ConversationSummary) {
	e.mu.Lock()
	e.roster = make([]chat.ConversationSummary, len(summaries))
	copy(e.roster, summaries)
	sortRoster(e.roster)
	e.mu.Unlock()
	e.notify()
}

// SelectConversation makes id the active conversation: leaves the
// previous one, resets its unseen counter, joins the new room and
// fetches the snapshot. If the user switches again while the fetch is
// in flight the stale result is discarded.
func (e *Engine) SelectConversation(ctx context.Context, id string) error {
	e.mu.Lock()
	var prev string
	if e.active != nil {
		prev = e.active.id
	}
	e.epoch++
	myEpoch := e.epoch
	e.active = &activeState{id: id}
	e.resetUnseen(id)
	e.mu.Unlock()
	e.notify()

	if prev != "" {
		if err := e.signals.LeaveChat(prev); err != nil {
			jww.WARN.Printf("[engine] leaveChat %s: %v", prev, err)
		}
	}
	if err := e.signals.JoinChat(id); err != nil {
		jww.WARN.Printf("[engine] joinChat %s: %v", id, err)
	}

	snap, err := e.fetcher.FetchSnapshot(ctx, id)

	e.mu.Lock()
	if e.epoch != myEpoch {
		e.mu.Unlock()
		jww.DEBUG.Printf("[engine] discarding stale snapshot for %s", id)
		return nil
	}
	if err != nil {
		e.mu.Unlock()
		return errors.Wrapf(err, "load conversation %s", id)
	}
	e.active.user = snap.User
	e.active.msgs = append([]chat.Message(nil), snap.Messages...)
	e.active.loaded = true
	e.mu.Unlock()
	e.notify()
	return nil
}

// Deselect closes the active conversation, leaving its room and
// discarding its messages.
func (e *Engine) Deselect() {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		return
	}
	prev := e.active.id
	e.active = nil
	e.epoch++
	e.mu.Unlock()

	if err := e.signals.LeaveChat(prev); err != nil {
		jww.WARN.Printf("[engine] leaveChat %s: %v", prev, err)
	}
	e.notify()
}

// CreateConversation obtains a conversation handle with otherUserID and
// selects it.
func (e *Engine) CreateConversation(ctx context.Context, otherUserID string) (string, error) {
	id, err := e.creator.CreateConversation(ctx, otherUserID)
	if err != nil {
		return "", errors.Wrap(err, "create conversation")
	}
	return id, e.SelectConversation(ctx, id)
}

// ApplyInboundMessage folds a message pushed by the server into engine
// state. Delivery is idempotent: a message id is appended at most once.
func (e *Engine) ApplyInboundMessage(msg chat.Message) {
	e.mu.Lock()
	if e.active != nil && e.active.id == msg.ConversationID {
		e.appendActive(msg)
		// The user is looking at this conversation.
		e.touchRoster(msg, false)
	} else {
		e.touchRoster(msg, msg.Sender != e.self)
	}
	e.mu.Unlock()
	e.notify()
}

// ApplyOutboundMessageConfirmed folds a message the server confirmed in
// response to a local send. Never increments the unseen counter.
func (e *Engine) ApplyOutboundMessageConfirmed(msg chat.Message) {
	e.mu.Lock()
	if e.active != nil && e.active.id == msg.ConversationID {
		e.appendActive(msg)
	}
	e.touchRoster(msg, false)
	e.mu.Unlock()
	e.notify()
}

// ApplySeenReceipt marks the local user's messages in the active
// conversation as seen. A nil messageIDs marks all of them. No-op when
// conversationID is not the active conversation.
func (e *Engine) ApplySeenReceipt(conversationID string, messageIDs []string) {
	e.mu.Lock()
	if e.active == nil || e.active.id != conversationID {
		e.mu.Unlock()
		return
	}
	var idset map[string]struct{}
	if messageIDs != nil {
		idset = make(map[string]struct{}, len(messageIDs))
		for _, id := range messageIDs {
			idset[id] = struct{}{}
		}
	}
	now := e.now()
	for i := range e.active.msgs {
		m := &e.active.msgs[i]
		if m.Sender != e.self {
			continue
		}
		if idset != nil {
			if _, ok := idset[m.ID]; !ok {
				continue
			}
		}
		if !m.Seen {
			m.Seen = true
			t := now
			m.SeenAt = &t
		}
	}
	e.mu.Unlock()
	e.notify()
}

// ApplyTypingSignal updates the counterpart-typing flag. Signals for
// other conversations or echoed for the local user are ignored.
func (e *Engine) ApplyTypingSignal(conversationID, userID string, starting bool) {
	e.mu.Lock()
	if e.active == nil || e.active.id != conversationID || userID == e.self {
		e.mu.Unlock()
		return
	}
	e.active.typing = starting
	e.mu.Unlock()
	e.notify()
}

// Roster returns a copy of the ordered conversation list.
func (e *Engine) Roster() []chat.ConversationSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chat.ConversationSummary, len(e.roster))
	copy(out, e.roster)
	return out
}

// Active returns a copy of the active conversation state, or false when
// no conversation is open.
func (e *Engine) Active() (ActiveConversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ActiveConversation{}, false
	}
	msgs := make([]chat.Message, len(e.active.msgs))
	copy(msgs, e.active.msgs)
	return ActiveConversation{
		ConversationID:    e.active.id,
		Counterpart:       e.active.user,
		Messages:          msgs,
		CounterpartTyping: e.active.typing,
	}, true
}

// ActiveID returns the id of the open conversation, if any.
func (e *Engine) ActiveID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return "", false
	}
	return e.active.id, true
}

// CounterpartTyping reports whether the counterpart of the active
// conversation is currently typing.
func (e *Engine) CounterpartTyping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil && e.active.typing
}

// appendActive appends msg to the active message list unless the id is
// already present. Caller holds the lock.
func (e *Engine) appendActive(msg chat.Message) {
	for _, m := range e.active.msgs {
		if m.ID == msg.ID {
			return
		}
	}
	e.active.msgs = append(e.active.msgs, msg)
}
