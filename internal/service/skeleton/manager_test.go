package skeleton

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu   sync.Mutex
	msgs []any
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) WriteMessage(int, []byte) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.msgs...)
}

func TestBindPushUnbind(t *testing.T) {
	m := NewManager()
	conn := &fakeConn{}

	m.Bind("s1", conn)
	if !m.Push("s1", "hello") {
		t.Fatal("expected push to bound session to succeed")
	}

	// Unbind waits for the writer to drain.
	m.Unbind("s1")

	msgs := conn.messages()
	if len(msgs) != 1 || msgs[0] != "hello" {
		t.Fatalf("unexpected messages: %v", msgs)
	}

	if m.Push("s1", "late") {
		t.Fatal("expected push after unbind to report no subscriber")
	}
}

func TestPushUnknownSession(t *testing.T) {
	m := NewManager()
	if m.Push("nope", "msg") {
		t.Fatal("expected push to unknown session to return false")
	}
}

func TestRebindReplacesSubscriber(t *testing.T) {
	m := NewManager()
	first := &fakeConn{}
	second := &fakeConn{}

	m.Bind("s1", first)
	m.Bind("s1", second)

	m.Push("s1", "to-second")
	m.Unbind("s1")

	if msgs := second.messages(); len(msgs) != 1 || msgs[0] != "to-second" {
		t.Fatalf("expected replacement subscriber to receive message, got %v", msgs)
	}
	if msgs := first.messages(); len(msgs) != 0 {
		t.Fatalf("expected original subscriber to receive nothing, got %v", msgs)
	}
}

func TestPushDropsOldestWhenQueueFull(t *testing.T) {
	// Build a subscriber without a running writer so the queue backs up.
	sub := &Subscriber{
		sessionID: "s1",
		conn:      &fakeConn{},
		out:       make(chan any, 2),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	sub.Push("a")
	sub.Push("b")
	sub.Push("c")

	if len(sub.out) != 2 {
		t.Fatalf("expected bounded queue of 2, got %d", len(sub.out))
	}
	if got := <-sub.out; got != "b" {
		t.Fatalf("expected oldest message dropped, head is %v", got)
	}
	if got := <-sub.out; got != "c" {
		t.Fatalf("expected newest message retained, got %v", got)
	}
}

// stalledConn blocks inside WriteJSON until the connection is closed,
// mimicking a client that stops reading without dropping the socket.
type stalledConn struct {
	closeOnce sync.Once
	closed    chan struct{}
}

func newStalledConn() *stalledConn {
	return &stalledConn{closed: make(chan struct{})}
}

func (c *stalledConn) WriteJSON(any) error {
	<-c.closed
	return errors.New("use of closed network connection")
}

func (c *stalledConn) WriteMessage(int, []byte) error { return nil }

func (c *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (c *stalledConn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func TestUnbindReturnsOnceConnectionCloses(t *testing.T) {
	m := NewManager()
	conn := newStalledConn()

	m.Bind("s1", conn)
	m.Push("s1", "stall")

	unbindDone := make(chan struct{})
	go func() {
		m.Unbind("s1")
		close(unbindDone)
	}()

	// The writer is stuck inside WriteJSON, so unbind must still be
	// waiting on it.
	select {
	case <-unbindDone:
		t.Fatal("unbind returned while the writer was still stalled")
	case <-time.After(50 * time.Millisecond):
	}

	conn.Close()

	select {
	case <-unbindDone:
	case <-time.After(time.Second):
		t.Fatal("unbind did not return after the connection closed")
	}
}

func TestRebindReplacesStalledSubscriber(t *testing.T) {
	m := NewManager()
	stalled := newStalledConn()

	m.Bind("s1", stalled)
	m.Push("s1", "stall")

	rebound := make(chan struct{})
	go func() {
		m.Bind("s1", &fakeConn{})
		close(rebound)
	}()

	stalled.Close()

	select {
	case <-rebound:
	case <-time.After(time.Second):
		t.Fatal("rebind did not complete after the old connection closed")
	}
}

func TestUnbindIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Bind("s1", &fakeConn{})

	m.Unbind("s1")

	done := make(chan struct{})
	go func() {
		m.Unbind("s1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second unbind blocked")
	}
}
