// Package fanout keeps track of the live connections of each lobby and pushes
// encoded server messages to them.
package fanout

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry maps lobby id -> connection id -> sink. A sink that fails a
// delivery is pruned and closed on the spot; it is never retried.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]Sink
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{conns: make(map[string]map[string]Sink), log: log}
}

// Attach registers sink under connID, closing whatever was there before.
func (r *Registry) Attach(lobbyID, connID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.conns[lobbyID]
	if conns == nil {
		conns = make(map[string]Sink)
		r.conns[lobbyID] = conns
	}
	if old, ok := conns[connID]; ok && old != sink {
		old.Close()
	}
	conns[connID] = sink
}

func (r *Registry) Detach(lobbyID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.conns[lobbyID]
	if sink, ok := conns[connID]; ok {
		sink.Close()
		delete(conns, connID)
	}
	if len(conns) == 0 {
		delete(r.conns, lobbyID)
	}
}

// DetachAll closes every connection of a lobby.
func (r *Registry) DetachAll(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sink := range r.conns[lobbyID] {
		sink.Close()
	}
	delete(r.conns, lobbyID)
}

func (r *Registry) ConnectionCount(lobbyID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[lobbyID])
}

// Send delivers msg to a single connection.
func (r *Registry) Send(lobbyID, connID string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	r.mu.RLock()
	sink, ok := r.conns[lobbyID][connID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s: %w", connID, ErrSinkClosed)
	}

	if err := sink.Deliver(payload); err != nil {
		r.prune(lobbyID, map[string]Sink{connID: sink})
		return fmt.Errorf("connection %s: %w", connID, err)
	}
	return nil
}

// Broadcast encodes msg once and offers it to every connection of the lobby.
// All connections are attempted; the returned error combines every failure.
func (r *Registry) Broadcast(lobbyID string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	r.mu.RLock()
	targets := make(map[string]Sink, len(r.conns[lobbyID]))
	for id, sink := range r.conns[lobbyID] {
		targets[id] = sink
	}
	r.mu.RUnlock()

	var errs error
	failed := map[string]Sink{}
	for id, sink := range targets {
		if err := sink.Deliver(payload); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("connection %s: %w", id, err))
			failed[id] = sink
		}
	}

	if len(failed) > 0 {
		r.prune(lobbyID, failed)
		r.log.Warn("dropped connections during broadcast",
			zap.String("lobby", lobbyID),
			zap.Int("dropped", len(failed)),
			zap.Error(errs),
		)
	}
	return errs
}

// prune drops sinks that are still the ones registered under their id.
func (r *Registry) prune(lobbyID string, failed map[string]Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.conns[lobbyID]
	for id, sink := range failed {
		if conns[id] == sink {
			delete(conns, id)
		}
		sink.Close()
	}
	if len(conns) == 0 {
		delete(r.conns, lobbyID)
	}
}
