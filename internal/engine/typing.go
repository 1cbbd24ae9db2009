package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	jww "github.com/spf13/jwalterweatherman"
)

// DefaultQuietPeriod is how long the debouncer waits after the last
// keystroke before inferring that the user stopped typing.
const DefaultQuietPeriod = 2 * time.Second

// TypingSignaler carries typing signals to the push channel.
type TypingSignaler interface {
	Typing(conversationID, userID string) error
	StopTyping(conversationID, userID string) error
}

// Debouncer converts a rapid stream of local keystrokes into two
// rate-limited signals: one typing when composing starts and one
// stopTyping when the quiet period elapses or the user sends/leaves.
// At most one quiet timer is pending at a time; every keystroke
// replaces it.
type Debouncer struct {
	self    string
	signals TypingSignaler
	quiet   time.Duration
	clk     clock.Clock

	mu        sync.Mutex
	composing bool
	timer     *clock.Timer
	convID    string
}

// NewDebouncer creates a debouncer for the local user. A nil clk uses
// the wall clock; quiet <= 0 uses DefaultQuietPeriod.
func NewDebouncer(selfID string, signals TypingSignaler, quiet time.Duration, clk clock.Clock) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{self: selfID, signals: signals, quiet: quiet, clk: clk}
}

// Keystroke records that the composed text for a conversation changed.
// The typing signal is emitted only on the idle-to-composing
// transition; further keystrokes just reset the quiet timer.
func (d *Debouncer) Keystroke(conversationID, text string) {
	if conversationID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.composing && d.convID != conversationID {
		// Composing moved to another conversation mid-stream.
		d.stopLocked()
	}
	d.convID = conversationID

	if !d.composing && strings.TrimSpace(text) != "" {
		d.composing = true
		if err := d.signals.Typing(conversationID, d.self); err != nil {
			jww.WARN.Printf("[typing] emit typing: %v", err)
		}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clk.AfterFunc(d.quiet, d.quietExpired)
}

// Stop cancels the pending quiet timer and, if composing, emits
// stopTyping immediately. Called on explicit send and when the
// conversation view closes so the counterpart never keeps seeing a
// stale typing indicator.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.composing {
		return
	}
	d.composing = false
	if err := d.signals.StopTyping(d.convID, d.self); err != nil {
		jww.WARN.Printf("[typing] emit stopTyping: %v", err)
	}
}

func (d *Debouncer) quietExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timer = nil
	if !d.composing {
		return
	}
	d.composing = false
	if err := d.signals.StopTyping(d.convID, d.self); err != nil {
		jww.WARN.Printf("[typing] emit stopTyping: %v", err)
	}
}
