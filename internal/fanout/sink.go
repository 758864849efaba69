package fanout

import (
	"errors"
	"sync"
)

var ErrSlowConsumer = errors.New("connection outbox full")
var ErrSinkClosed = errors.New("connection closed")

// Sink is one connection's outbound side. Deliver must not block.
type Sink interface {
	Deliver(payload []byte) error
	Close()
}

// ChanSink is a bounded outbox drained by a connection's writer goroutine.
type ChanSink struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func NewChanSink(buffer int) *ChanSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSink{ch: make(chan []byte, buffer)}
}

// C is closed once the sink is closed.
func (s *ChanSink) C() <-chan []byte { return s.ch }

func (s *ChanSink) Deliver(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
