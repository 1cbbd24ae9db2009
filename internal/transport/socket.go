package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// ErrSocketClosed is returned by Emit after the connection is gone.
var ErrSocketClosed = errors.New("push channel closed")

// Handler consumes the raw payload of one named push event.
type Handler func(data json.RawMessage)

// Envelope is the wire frame for every push-channel message in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SocketOptions tune the push channel connection.
type SocketOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// DefaultSocketOptions returns the options used when none are given.
func DefaultSocketOptions() *SocketOptions {
	return &SocketOptions{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Socket is the process-wide duplex push channel. Inbound events are
// dispatched to handlers one at a time in arrival order, so handlers
// observe the transport's FIFO ordering.
type Socket struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string]Handler

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// DialSocket connects the push channel, authenticating the connection
// with the bearer token.
func DialSocket(ctx context.Context, rawURL, token string, opts *SocketOptions) (*Socket, error) {
	if opts == nil {
		opts = DefaultSocketOptions()
	}
	dialer := &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial failed")
	}

	s := &Socket{
		conn:     conn,
		handlers: make(map[string]Handler),
		out:      make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop(opts)
	return s, nil
}

// On registers the handler for a named event, replacing any previous
// registration.
func (s *Socket) On(event string, handler func(data json.RawMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// Off removes the handler for a named event.
func (s *Socket) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

// Emit sends a named event with a JSON payload.
func (s *Socket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "marshal %s payload", event)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	select {
	case s.out <- frame:
		return nil
	case <-s.done:
		return ErrSocketClosed
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done is closed once the connection is gone.
func (s *Socket) Done() <-chan struct{} { return s.done }

func (s *Socket) readLoop() {
	defer s.Close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				jww.INFO.Printf("[socket] connection closed: %v", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			jww.WARN.Printf("[socket] dropping unparsable frame: %v", err)
			continue
		}
		s.mu.Lock()
		handler := s.handlers[env.Event]
		s.mu.Unlock()
		if handler == nil {
			jww.DEBUG.Printf("[socket] no handler for event %q", env.Event)
			continue
		}
		handler(env.Data)
	}
}

func (s *Socket) writeLoop(opts *SocketOptions) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				jww.ERROR.Printf("[socket] write failed: %v", err)
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
