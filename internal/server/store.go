// Package server is a local development implementation of the remote
// collaborators consumed by the chat client: the REST message service
// and the websocket push hub.
package server

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nandovm/chatcore/internal/model/chat"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotMember            = errors.New("user is not a conversation member")
)

// Store keeps users, conversations and messages in memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]chat.User
	convs map[string]*conversation
	msgs  map[string][]chat.Message
	pairs map[string]string // sorted member pair -> conversation id
}

type conversation struct {
	id      string
	members [2]string
	latest  chat.LatestMessage
	updated time.Time
	unseen  map[string]int
}

// NewStore bootstraps an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]chat.User),
		convs: make(map[string]*conversation),
		msgs:  make(map[string][]chat.Message),
		pairs: make(map[string]string),
	}
}

// UpsertUser records a user profile.
func (s *Store) UpsertUser(u chat.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// CreateConversation returns the conversation between two users,
// creating it on first contact.
func (s *Store) CreateConversation(a, b string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(a, b)
	if id, ok := s.pairs[key]; ok {
		return id
	}
	conv := &conversation{
		id:      uuid.NewString(),
		members: [2]string{a, b},
		updated: time.Now().UTC(),
		unseen:  map[string]int{a: 0, b: 0},
	}
	s.convs[conv.id] = conv
	s.pairs[key] = conv.id
	return conv.id
}

// Member reports whether userID participates in the conversation.
func (s *Store) Member(conversationID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[conversationID]
	return ok && (conv.members[0] == userID || conv.members[1] == userID)
}

// Counterpart returns the other member of a conversation.
func (s *Store) Counterpart(conversationID, userID string) (chat.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return chat.User{}, ErrConversationNotFound
	}
	other, ok := otherMember(conv, userID)
	if !ok {
		return chat.User{}, ErrNotMember
	}
	if u, ok := s.users[other]; ok {
		return u, nil
	}
	return chat.User{ID: other}, nil
}

// AppendMessage stores an outbound message, updates the conversation
// preview and charges the recipient's unseen counter.
func (s *Store) AppendMessage(conversationID, sender, text string, image *chat.Image) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return chat.Message{}, ErrConversationNotFound
	}
	recipient, ok := otherMember(conv, sender)
	if !ok {
		return chat.Message{}, ErrNotMember
	}

	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           strings.TrimSpace(text),
		Image:          image,
		Type:           chat.MessageText,
		CreatedAt:      time.Now().UTC(),
	}
	if image != nil {
		msg.Type = chat.MessageImage
	}

	s.msgs[conversationID] = append(s.msgs[conversationID], msg)
	conv.latest = chat.LatestMessage{Sender: sender, Text: msg.PreviewText()}
	conv.updated = msg.CreatedAt
	conv.unseen[recipient]++
	return msg, nil
}

// MarkSeen marks every message authored by the viewer's counterpart as
// seen and zeroes the viewer's unseen counter. Returns the ids of the
// counterpart-authored messages that transitioned, so the author can be
// sent a targeted receipt.
func (s *Store) MarkSeen(conversationID, viewer string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if _, ok := otherMember(conv, viewer); !ok {
		return nil, ErrNotMember
	}

	now := time.Now().UTC()
	var marked []string
	msgs := s.msgs[conversationID]
	for i := range msgs {
		m := &msgs[i]
		if m.Sender == viewer || m.Seen {
			continue
		}
		m.Seen = true
		t := now
		m.SeenAt = &t
		marked = append(marked, m.ID)
	}
	conv.unseen[viewer] = 0
	return marked, nil
}

// Snapshot returns the full history of a conversation plus the viewer's
// counterpart profile.
func (s *Store) Snapshot(conversationID, viewer string) (chat.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return chat.Snapshot{}, ErrConversationNotFound
	}
	other, ok := otherMember(conv, viewer)
	if !ok {
		return chat.Snapshot{}, ErrNotMember
	}

	msgs := make([]chat.Message, len(s.msgs[conversationID]))
	copy(msgs, s.msgs[conversationID])

	user, ok := s.users[other]
	if !ok {
		user = chat.User{ID: other}
	}
	return chat.Snapshot{Messages: msgs, User: user}, nil
}

// Summaries returns the viewer's roster ordered most recent first.
func (s *Store) Summaries(viewer string) []chat.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chat.ConversationSummary
	for _, conv := range s.convs {
		other, ok := otherMember(conv, viewer)
		if !ok {
			continue
		}
		counterpart, ok := s.users[other]
		if !ok {
			counterpart = chat.User{ID: other}
		}
		out = append(out, chat.ConversationSummary{
			ConversationID: conv.id,
			Counterpart:    counterpart,
			LatestMessage:  conv.latest,
			UpdatedAt:      conv.updated,
			UnseenCount:    conv.unseen[viewer],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func otherMember(conv *conversation, userID string) (string, bool) {
	switch userID {
	case conv.members[0]:
		return conv.members[1], true
	case conv.members[1]:
		return conv.members[0], true
	default:
		return "", false
	}
}
