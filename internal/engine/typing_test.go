package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/nandovm/chatcore/internal/engine"
)

type signalRecorder struct {
	mu      sync.Mutex
	typing  []string
	stopped []string
}

func (r *signalRecorder) Typing(conversationID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, conversationID)
	return nil
}

func (r *signalRecorder) StopTyping(conversationID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, conversationID)
	return nil
}

func (r *signalRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.typing), len(r.stopped)
}

func TestDebounceEmitsOneTypingAndOneStop(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	// Keystrokes at t=0, 500 and 1000 ms, then silence.
	d.Keystroke("c1", "h")
	mock.Add(500 * time.Millisecond)
	d.Keystroke("c1", "he")
	mock.Add(500 * time.Millisecond)
	d.Keystroke("c1", "hel")

	typing, stopped := rec.counts()
	require.Equal(t, 1, typing)
	require.Equal(t, 0, stopped)

	// Quiet period elapses 2000 ms after the last keystroke.
	mock.Add(1999 * time.Millisecond)
	_, stopped = rec.counts()
	require.Equal(t, 0, stopped)

	mock.Add(1 * time.Millisecond)
	typing, stopped = rec.counts()
	require.Equal(t, 1, typing)
	require.Equal(t, 1, stopped)
}

func TestKeystrokeAfterQuietPeriodEmitsAgain(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	d.Keystroke("c1", "a")
	mock.Add(2 * time.Second)
	d.Keystroke("c1", "ab")
	mock.Add(2 * time.Second)

	typing, stopped := rec.counts()
	require.Equal(t, 2, typing)
	require.Equal(t, 2, stopped)
}

func TestStopEmitsImmediatelyAndCancelsTimer(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	d.Keystroke("c1", "draft")
	d.Stop()

	typing, stopped := rec.counts()
	require.Equal(t, 1, typing)
	require.Equal(t, 1, stopped)

	// The cancelled timer must not fire a second stop.
	mock.Add(5 * time.Second)
	_, stopped = rec.counts()
	require.Equal(t, 1, stopped)
}

func TestStopWhileIdleEmitsNothing(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	d.Stop()

	typing, stopped := rec.counts()
	require.Equal(t, 0, typing)
	require.Equal(t, 0, stopped)
}

func TestEmptyTextDoesNotEmitTyping(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	d.Keystroke("c1", "   ")
	mock.Add(2 * time.Second)

	typing, stopped := rec.counts()
	require.Equal(t, 0, typing)
	require.Equal(t, 0, stopped)
}

func TestSwitchingConversationMidComposeStopsFirst(t *testing.T) {
	mock := clock.NewMock()
	rec := &signalRecorder{}
	d := engine.NewDebouncer(self, rec, 2*time.Second, mock)

	d.Keystroke("c1", "hey")
	d.Keystroke("c2", "yo")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{"c1", "c2"}, rec.typing)
	require.Equal(t, []string{"c1"}, rec.stopped)
}
