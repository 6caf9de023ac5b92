package skeleton

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is the subset of *websocket.Conn the subscriber writes through,
// narrowed so tests can substitute a recording fake.
type conn interface {
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

const (
	// outboundQueueSize bounds per-session pending pushes. Frames are
	// fire-and-forget, so when a consumer falls behind the oldest result
	// is dropped instead of blocking the read loop.
	outboundQueueSize = 32

	pingInterval = 54 * time.Second

	// writeTimeout bounds every write so a stalled client cannot pin the
	// writer goroutine; stop() waits on that goroutine during unbind.
	writeTimeout = 10 * time.Second
)

// Manager maps session identifiers to their realtime subscriber. Binding is
// one subscriber per session; a new bind replaces (and stops) the old one.
type Manager struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewManager creates an empty connection registry.
func NewManager() *Manager {
	return &Manager{subs: make(map[string]*Subscriber)}
}

// Bind attaches a connection to a session id and starts its writer.
func (m *Manager) Bind(sessionID string, c conn) *Subscriber {
	sub := &Subscriber{
		sessionID: sessionID,
		conn:      c,
		out:       make(chan any, outboundQueueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	m.mu.Lock()
	old := m.subs[sessionID]
	m.subs[sessionID] = sub
	m.mu.Unlock()

	if old != nil {
		old.stop()
	}

	go sub.writeLoop()
	return sub
}

// Unbind detaches the session's subscriber and waits for its writer to
// drain pending messages. Unbinding an unknown session is a no-op.
func (m *Manager) Unbind(sessionID string) {
	m.mu.Lock()
	sub, ok := m.subs[sessionID]
	if ok {
		delete(m.subs, sessionID)
	}
	m.mu.Unlock()

	if ok {
		sub.stop()
	}
}

// Push delivers a message to the session's subscriber, if any.
func (m *Manager) Push(sessionID string, msg any) bool {
	m.mu.RLock()
	sub, ok := m.subs[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	sub.Push(msg)
	return true
}

// Subscriber owns all writes to one realtime connection. A single writer
// goroutine drains the bounded queue, which also keeps pings from racing
// payload writes.
type Subscriber struct {
	sessionID string
	conn      conn
	out       chan any
	done      chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
}

// Push enqueues a message without blocking. When the queue is full the
// oldest pending message is discarded to make room.
func (s *Subscriber) Push(msg any) {
	select {
	case s.out <- msg:
		return
	default:
	}

	select {
	case <-s.out:
		log.Printf("[skeleton] slow consumer, dropped oldest message session=%s", s.sessionID)
	default:
	}

	select {
	case s.out <- msg:
	default:
	}
}

// stop signals the writer to drain and waits for it to finish.
func (s *Subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *Subscriber) writeLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				log.Printf("[skeleton] write failed session=%s: %v", s.sessionID, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			// Drain whatever is still queued before terminating, so a
			// final confirmation is not cut off by the unbind.
			for {
				select {
				case msg := <-s.out:
					if err := s.write(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Subscriber) write(msg any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}
