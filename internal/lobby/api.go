package lobby

import (
	"context"
	"time"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/fanout"
)

func (l *Lobby) post(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, l *Lobby, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do applies cmd and returns once it has been committed or rejected.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	if err := l.post(ctx, Do{Cmd: cmd, Reply: reply}); err != nil {
		return Result{}, err
	}
	res, err := await(ctx, l, reply)
	if err != nil {
		return Result{}, err
	}
	return res, res.Err
}

func (l *Lobby) Attach(ctx context.Context, connID, playerID string, sink fanout.Sink) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, Attach{ConnID: connID, PlayerID: playerID, Sink: sink, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, l, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Detach is fire and forget; a closed lobby has already let go of everything.
func (l *Lobby) Detach(connID string) {
	_ = l.post(context.Background(), Detach{ConnID: connID})
}

func (l *Lobby) Heartbeat(ctx context.Context, playerID string) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, Heartbeat{PlayerID: playerID, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, l, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (l *Lobby) Sweep(ctx context.Context, now time.Time, idle time.Duration) (SweepResult, error) {
	reply := make(chan SweepResult, 1)
	if err := l.post(ctx, Sweep{Now: now, Idle: idle, Reply: reply}); err != nil {
		return SweepResult{}, err
	}
	return await(ctx, l, reply)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	return await(ctx, l, reply)
}

func (l *Lobby) Fork(ctx context.Context, playerID, newID string) (engine.State, error) {
	reply := make(chan ForkResult, 1)
	if err := l.post(ctx, Fork{PlayerID: playerID, NewID: newID, Reply: reply}); err != nil {
		return engine.State{}, err
	}
	res, err := await(ctx, l, reply)
	if err != nil {
		return engine.State{}, err
	}
	return res.State, res.Err
}

// AbortFork is fire and forget, like Detach.
func (l *Lobby) AbortFork(newID string) {
	_ = l.post(context.Background(), AbortFork{NewID: newID})
}

func (l *Lobby) Supersede(ctx context.Context, newID string) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, Supersede{NewID: newID, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, l, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (l *Lobby) Shutdown() {
	select {
	case l.inbox <- Shutdown{}:
	case <-l.done:
	}
}
