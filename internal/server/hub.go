package server

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/nandovm/chatcore/internal/model/chat"
	"github.com/nandovm/chatcore/internal/transport"
)

// Hub relays push events between connected clients and tracks which
// conversation rooms each user has joined.
type Hub struct {
	store *Store

	mu      sync.RWMutex
	clients map[string]*client         // user id -> connection
	rooms   map[string]map[string]bool // conversation id -> joined users
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

// NewHub creates a hub backed by the store.
func NewHub(store *Store) *Hub {
	return &Hub{
		store:   store,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]bool),
	}
}

// Serve runs the connection for one user until it closes. A second
// connection for the same user replaces the first.
func (h *Hub) Serve(userID string, conn *websocket.Conn) {
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.clients[userID]; ok {
		old.conn.Close()
	}
	h.clients[userID] = c
	h.mu.Unlock()
	h.broadcastOnline()

	go c.writePump()
	c.readPump(h)

	h.mu.Lock()
	if h.clients[userID] == c {
		delete(h.clients, userID)
	}
	for _, users := range h.rooms {
		delete(users, userID)
	}
	h.mu.Unlock()
	close(c.done)
	h.broadcastOnline()
}

func (c *client) readPump(h *Hub) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			jww.WARN.Printf("[hub] dropping unparsable frame from %s: %v", c.userID, err)
			continue
		}
		h.dispatch(c.userID, env)
	}
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *Hub) dispatch(userID string, env transport.Envelope) {
	switch env.Event {
	case chat.EventJoinChat:
		var ev chat.RoomEvent
		if json.Unmarshal(env.Data, &ev) == nil && ev.ConversationID != "" {
			h.join(userID, ev.ConversationID)
		}
	case chat.EventLeaveChat:
		var ev chat.RoomEvent
		if json.Unmarshal(env.Data, &ev) == nil && ev.ConversationID != "" {
			h.leave(userID, ev.ConversationID)
		}
	case chat.EventTyping:
		h.relayTyping(userID, env.Data, chat.EventUserTyping)
	case chat.EventStopTyping:
		h.relayTyping(userID, env.Data, chat.EventUserStoppedTyping)
	default:
		jww.DEBUG.Printf("[hub] ignoring event %q from %s", env.Event, userID)
	}
}

// join marks the user present in the room and settles their unseen
// messages, pushing a targeted seen receipt back to the author.
func (h *Hub) join(userID, conversationID string) {
	if !h.store.Member(conversationID, userID) {
		return
	}
	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[string]bool)
	}
	h.rooms[conversationID][userID] = true
	h.mu.Unlock()

	marked, err := h.store.MarkSeen(conversationID, userID)
	if err != nil || len(marked) == 0 {
		return
	}
	if other, err := h.store.Counterpart(conversationID, userID); err == nil {
		h.sendTo(other.ID, chat.EventMessagesSeen, chat.SeenEvent{
			ConversationID: conversationID,
			MessageIDs:     marked,
		})
	}
}

func (h *Hub) leave(userID, conversationID string) {
	h.mu.Lock()
	if users, ok := h.rooms[conversationID]; ok {
		delete(users, userID)
	}
	h.mu.Unlock()
}

// relayTyping forwards a typing signal to the counterpart. Signals for
// conversations the sender is not a member of are dropped.
func (h *Hub) relayTyping(userID string, data json.RawMessage, outEvent string) {
	var ev chat.TypingEvent
	if json.Unmarshal(data, &ev) != nil || ev.ConversationID == "" {
		return
	}
	if !h.store.Member(ev.ConversationID, userID) {
		return
	}
	ev.UserID = userID
	if other, err := h.store.Counterpart(ev.ConversationID, userID); err == nil {
		h.sendTo(other.ID, outEvent, ev)
	}
}

// DeliverMessage pushes a stored message to both members. When the
// recipient currently has the conversation open the message is settled
// as seen right away and the sender gets a targeted receipt.
func (h *Hub) DeliverMessage(msg chat.Message) {
	recipient, err := h.store.Counterpart(msg.ConversationID, msg.Sender)
	if err != nil {
		return
	}

	h.mu.RLock()
	recipientJoined := h.rooms[msg.ConversationID][recipient.ID]
	h.mu.RUnlock()

	if recipientJoined {
		if marked, err := h.store.MarkSeen(msg.ConversationID, recipient.ID); err == nil && len(marked) > 0 {
			msg.Seen = true
			h.sendTo(msg.Sender, chat.EventMessagesSeen, chat.SeenEvent{
				ConversationID: msg.ConversationID,
				MessageIDs:     marked,
			})
		}
	}

	h.sendTo(recipient.ID, chat.EventNewMessage, msg)
	// Echo to the sender as well; the client dedups by message id.
	h.sendTo(msg.Sender, chat.EventNewMessage, msg)
}

func (h *Hub) sendTo(userID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(transport.Envelope{Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		jww.WARN.Printf("[hub] dropping %s for slow client %s", event, userID)
	}
}

func (h *Hub) broadcastOnline() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	targets := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		ids = append(ids, id)
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	sort.Strings(ids)

	data, _ := json.Marshal(chat.OnlineUsersEvent{UserIDs: ids})
	frame, _ := json.Marshal(transport.Envelope{Event: chat.EventOnlineUsers, Data: data})
	for _, c := range targets {
		select {
		case c.send <- frame:
		default:
		}
	}
}
