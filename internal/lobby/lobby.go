// Package lobby runs one goroutine per lobby. That goroutine owns the lobby's
// engine.State; everything that reads or changes it goes through the inbox.
package lobby

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/fanout"
	"github.com/jvlax/motord/internal/types"
)

// ErrClosed is returned once the lobby goroutine has stopped. Callers see it
// as a lobby that no longer exists.
var ErrClosed = fmt.Errorf("%w: lobby closed", engine.ErrLobbyNotFound)

// Publisher delivers encoded messages to a lobby's connections.
type Publisher interface {
	Attach(lobbyID, connID string, sink fanout.Sink)
	Detach(lobbyID, connID string)
	DetachAll(lobbyID string)
	Send(lobbyID, connID string, msg any) error
	Broadcast(lobbyID string, msg any) error
	ConnectionCount(lobbyID string) int
}

type Config struct {
	Initial   engine.State
	Words     engine.WordPicker
	Publisher Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

type Lobby struct {
	id      string
	inbox   chan Msg
	state   engine.State
	version int
	words   engine.WordPicker
	pub     Publisher
	log     *zap.Logger
	now     func() time.Time

	conns    map[string]string    // conn id -> player id
	lastSeen map[string]time.Time // player id -> last sign of life

	fuse    *time.Timer
	fuseGen uint64
	fuseSeq int

	// forkedTo is set between a play-again fork and its supersede or abort;
	// the state is frozen meanwhile.
	forkedTo string

	// jobs runs deliveries in order, outside the loop.
	jobs   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		id:       cfg.Initial.ID,
		inbox:    make(chan Msg, 64),
		state:    cfg.Initial,
		words:    cfg.Words,
		pub:      cfg.Publisher,
		log:      log.With(zap.String("lobby", cfg.Initial.ID)),
		now:      now,
		conns:    make(map[string]string),
		lastSeen: make(map[string]time.Time),
		jobs:     make(chan func(), 256),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, id := range cfg.Initial.Order {
		l.lastSeen[id] = now()
	}

	go l.dispatch()
	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.id }

// Expose the inbox so the hub and transports can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) dispatch() {
	for job := range l.jobs {
		job()
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Do:
				res := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case Attach:
				err := l.attach(msg)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Detach:
				l.detach(msg.ConnID)

			case Heartbeat:
				var err error
				if _, ok := l.state.Players[msg.PlayerID]; ok {
					l.lastSeen[msg.PlayerID] = l.now()
				} else {
					err = engine.ErrPlayerNotFound
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case fuseFired:
				// A pending fork re-arms on abort.
				if msg.gen != l.fuseGen || l.forkedTo != "" {
					break
				}
				l.apply(engine.Timeout{WordSeq: msg.seq})
				// Fired early by our clock: the word is still up, so arm again.
				if r := l.state.Round; r != nil && r.Seq == msg.seq && l.state.Phase == engine.PhasePlaying {
					l.fuseSeq = 0
					l.armFuse()
				}

			case Sweep:
				res := l.sweep(msg.Now, msg.Idle)
				msg.Reply <- res
				if res.Disposable {
					l.log.Info("empty lobby closed")
					l.shutdown()
					return
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: l.pub.ConnectionCount(l.id),
					State:      l.state,
				}

			case Fork:
				if l.forkedTo != "" {
					msg.Reply <- ForkResult{Err: l.moving()}
					break
				}
				st, err := engine.Fork(l.state, msg.PlayerID, msg.NewID)
				if err == nil {
					l.forkedTo = msg.NewID
				}
				msg.Reply <- ForkResult{State: st, Err: err}

			case AbortFork:
				if l.forkedTo != msg.NewID {
					break
				}
				l.forkedTo = ""
				l.fuseSeq = 0
				l.armFuse()
				l.log.Debug("fork abandoned", zap.String("next", msg.NewID))

			case Supersede:
				l.forkedTo = ""
				events, next := engine.Supersede(l.state, msg.NewID)
				l.commit(next, events)
				l.forget(next)
				l.log.Info("lobby superseded", zap.String("next", msg.NewID))
				if msg.Reply != nil {
					msg.Reply <- nil
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd engine.Command) Result {
	if l.forkedTo != "" {
		return Result{Version: l.version, Err: l.moving()}
	}
	events, next, err := engine.Apply(l.state, cmd, engine.Env{Words: l.words, Now: l.now()})
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("command", fmt.Sprintf("%T", cmd)),
			zap.String("player", engine.PlayerOf(cmd)),
			zap.Error(err),
		)
		return Result{Version: l.version, Err: err}
	}

	if len(events) == 0 {
		l.state = next
		return Result{Version: l.version}
	}
	l.commit(next, events)

	if pid := engine.PlayerOf(cmd); pid != "" {
		if _, ok := next.Players[pid]; ok {
			l.lastSeen[pid] = l.now()
		}
	}
	l.forget(next)
	return Result{Events: events, Version: l.version}
}

// commit installs next as the lobby state and queues the update for delivery.
func (l *Lobby) commit(next engine.State, events []engine.Event) {
	l.state = next
	l.version++
	l.armFuse()

	version, now := l.version, l.now()
	l.enqueue(func() {
		msg := types.UpdateMessage(version, events, types.Snapshot(next, l.pub.ConnectionCount(l.id), now))
		if err := l.pub.Broadcast(l.id, msg); err != nil {
			l.log.Debug("update not delivered everywhere", zap.Int("version", version), zap.Error(err))
		}
	})
}

// forget drops bookkeeping for players no longer in s, and their connections
// once they have seen the update announcing their departure.
func (l *Lobby) forget(s engine.State) {
	for pid := range l.lastSeen {
		if _, ok := s.Players[pid]; ok {
			continue
		}
		delete(l.lastSeen, pid)
		for connID, owner := range l.conns {
			if owner == pid {
				l.detach(connID)
			}
		}
	}
}

func (l *Lobby) attach(m Attach) error {
	if l.state.SupersededBy != "" {
		return fmt.Errorf("%w: moved to %s", engine.ErrLobbySuperseded, l.state.SupersededBy)
	}
	if l.forkedTo != "" {
		return l.moving()
	}
	if _, ok := l.state.Players[m.PlayerID]; !ok {
		return engine.ErrPlayerNotFound
	}

	l.conns[m.ConnID] = m.PlayerID
	l.lastSeen[m.PlayerID] = l.now()

	connID, sink := m.ConnID, m.Sink
	version, st, now := l.version, l.state, l.now()
	l.enqueue(func() {
		l.pub.Attach(l.id, connID, sink)
		msg := types.SnapshotMessage(version, types.Snapshot(st, l.pub.ConnectionCount(l.id), now))
		if err := l.pub.Send(l.id, connID, msg); err != nil {
			l.log.Warn("snapshot not delivered", zap.String("conn", connID), zap.Error(err))
		}
	})
	l.log.Debug("connection attached", zap.String("conn", connID), zap.String("player", m.PlayerID))
	return nil
}

func (l *Lobby) detach(connID string) {
	if _, ok := l.conns[connID]; !ok {
		return
	}
	delete(l.conns, connID)
	l.enqueue(func() { l.pub.Detach(l.id, connID) })
}

func (l *Lobby) moving() error {
	return fmt.Errorf("%w: moving to %s", engine.ErrLobbySuperseded, l.forkedTo)
}

// sweep removes players idle for longer than idle through the regular leave
// path, so host handover and pass completion behave exactly as on a leave.
func (l *Lobby) sweep(now time.Time, idle time.Duration) SweepResult {
	var res SweepResult
	for _, pid := range slices.Clone(l.state.Order) {
		if seen, ok := l.lastSeen[pid]; ok && now.Sub(seen) <= idle {
			continue
		}
		if r := l.apply(engine.Leave{PlayerID: pid}); r.Err == nil {
			res.Removed = append(res.Removed, pid)
			l.log.Info("idle player removed", zap.String("player", pid))
		}
	}
	res.Disposable = len(l.state.Players) == 0 && len(l.conns) == 0 && l.pub.ConnectionCount(l.id) == 0
	return res
}

// armFuse starts the timer for the word on screen. Each arming gets a new
// generation; fires from older generations are ignored.
func (l *Lobby) armFuse() {
	r := l.state.Round
	if l.state.Phase != engine.PhasePlaying || r == nil {
		l.stopFuse()
		return
	}
	if r.Seq == l.fuseSeq {
		return
	}

	l.stopFuse()
	gen, seq := l.fuseGen, r.Seq
	l.fuseSeq = seq
	l.fuse = time.AfterFunc(r.Deadline.Sub(l.now()), func() {
		select {
		case l.inbox <- fuseFired{gen: gen, seq: seq}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) stopFuse() {
	if l.fuse != nil {
		l.fuse.Stop()
		l.fuse = nil
	}
	l.fuseGen++
	l.fuseSeq = 0
}

func (l *Lobby) enqueue(job func()) { l.jobs <- job }

func (l *Lobby) shutdown() {
	l.stopFuse()
	id := l.id
	l.enqueue(func() { l.pub.DetachAll(id) })
	close(l.jobs)
	clear(l.conns)
	l.cancel()
	l.log.Debug("lobby stopped", zap.Int("version", l.version))
}
