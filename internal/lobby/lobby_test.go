package lobby

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/catalog"
	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/fanout"
	wire "github.com/jvlax/motord/pkg/types"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.WordEntry{
		{Word: "summer", Difficulty: 2, Translations: map[string]string{"fr": "été", "sv": "sommar"}},
		{Word: "house", Difficulty: 2, Translations: map[string]string{"fr": "maison", "sv": "hus"}},
	}, [2]string{"fr", "sv"}, catalog.WithRand(func(int) int { return 0 }))
	require.NoError(t, err)
	return c
}

type fixture struct {
	l   *Lobby
	reg *fanout.Registry
	ctx context.Context
}

// newFixture starts a lobby hosted by "a" (French) with "b" (Swedish) ready.
func newFixture(t *testing.T, fuseSeconds int) fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	settings := engine.DefaultSettings()
	settings.FuseSeconds = fuseSeconds
	reg := fanout.NewRegistry(zap.NewNop())
	l := NewLobby(ctx, Config{
		Initial:   engine.NewState("ABC123", settings),
		Words:     testCatalog(t),
		Publisher: reg,
		Logger:    zap.NewNop(),
	})

	f := fixture{l: l, reg: reg, ctx: ctx}
	f.do(t, engine.Join{PlayerID: "a", Name: "Alice", Language: "fr"})
	f.do(t, engine.Join{PlayerID: "b", Name: "Bob", Language: "sv"})
	f.do(t, engine.SetReady{PlayerID: "b", Ready: true})
	return f
}

func (f fixture) do(t *testing.T, cmd engine.Command) Result {
	t.Helper()
	res, err := f.l.Do(f.ctx, cmd)
	require.NoError(t, err)
	return res
}

func (f fixture) attach(t *testing.T, connID, playerID string, buffer int) *fanout.ChanSink {
	t.Helper()
	sink := fanout.NewChanSink(buffer)
	require.NoError(t, f.l.Attach(f.ctx, connID, playerID, sink))
	return sink
}

// helper: receive one message with a timeout so tests never hang
func recvMessage(t *testing.T, sink *fanout.ChanSink, within time.Duration) wire.ServerMessage {
	t.Helper()
	select {
	case payload, ok := <-sink.C():
		if !ok {
			t.Fatalf("connection closed unexpectedly")
		}
		var msg wire.ServerMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return wire.ServerMessage{} // unreachable
	}
}

func recvNoMessage(t *testing.T, sink *fanout.ChanSink, within time.Duration) {
	t.Helper()
	select {
	case payload, ok := <-sink.C():
		if !ok {
			// closed: no further messages possible
			return
		}
		t.Fatalf("expected no message within %v, got %s", within, payload)
	case <-time.After(within):
	}
}

func hasEvent(msg wire.ServerMessage, eventType engine.EventType) bool {
	for _, e := range msg.Events {
		if e.Type == string(eventType) {
			return true
		}
	}
	return false
}

func TestLobby_AttachSendsSnapshotThenOrderedUpdates(t *testing.T) {
	f := newFixture(t, 30)
	out := f.attach(t, "c1", "b", 8)

	first := recvMessage(t, out, 200*time.Millisecond)
	assert.Equal(t, wire.MsgSnapshot, first.Type)
	assert.Equal(t, 3, first.Version)
	require.NotNil(t, first.Lobby)
	assert.Len(t, first.Lobby.Players, 2)

	res := f.do(t, engine.SetTarget{PlayerID: "a", Target: 3})
	assert.Equal(t, 4, res.Version)

	next := recvMessage(t, out, 200*time.Millisecond)
	assert.Equal(t, wire.MsgUpdate, next.Type)
	assert.Equal(t, 4, next.Version)
	assert.True(t, hasEvent(next, engine.EvtTargetChanged))
	assert.Equal(t, 3, next.Lobby.Settings.Target)
}

func TestLobby_RejectedCommandChangesNothing(t *testing.T) {
	f := newFixture(t, 30)
	out := f.attach(t, "c1", "a", 4)
	_ = recvMessage(t, out, 200*time.Millisecond)

	_, err := f.l.Do(f.ctx, engine.Start{PlayerID: "b"})
	require.ErrorIs(t, err, engine.ErrNotHost)

	// A no-op does not bump the version either.
	res := f.do(t, engine.SetReady{PlayerID: "a", Ready: false})
	assert.Equal(t, 3, res.Version)

	recvNoMessage(t, out, 100*time.Millisecond)
}

func TestLobby_AttachRequiresMembership(t *testing.T) {
	f := newFixture(t, 30)
	err := f.l.Attach(f.ctx, "c1", "stranger", fanout.NewChanSink(1))
	require.ErrorIs(t, err, engine.ErrPlayerNotFound)
}

func TestLobby_DropSlowClient(t *testing.T) {
	f := newFixture(t, 30)
	f.attach(t, "c1", "a", 1) // the snapshot fills the buffer

	f.do(t, engine.SetTarget{PlayerID: "a", Target: 4})

	require.Eventually(t, func() bool {
		v, err := f.l.View(f.ctx)
		return err == nil && v.NumClients == 0
	}, time.Second, 10*time.Millisecond)
}

func TestLobby_FuseFiresTimeout(t *testing.T) {
	f := newFixture(t, 1)
	out := f.attach(t, "c1", "a", 8)
	_ = recvMessage(t, out, 200*time.Millisecond)

	f.do(t, engine.Start{PlayerID: "a"})
	started := recvMessage(t, out, 200*time.Millisecond)
	require.True(t, hasEvent(started, engine.EvtGameStarted))
	require.NotNil(t, started.Lobby.Round)
	firstWord := started.Lobby.Round.Word

	timedOut := recvMessage(t, out, 2*time.Second)
	require.True(t, hasEvent(timedOut, engine.EvtWordTimedOut))
	assert.Equal(t, started.Version+1, timedOut.Version)
	assert.Equal(t, 2, timedOut.Lobby.Round.Seq)
	require.Len(t, timedOut.Lobby.History, 1)
	assert.Equal(t, firstWord, timedOut.Lobby.History[0].Word)
	assert.Equal(t, "timed_out", timedOut.Lobby.History[0].Outcome)
}

func TestLobby_GuessBeatsFuse_WordResolvedOnce(t *testing.T) {
	f := newFixture(t, 1)
	f.do(t, engine.Start{PlayerID: "a"})

	// "a" reads French and answers in Swedish.
	res := f.do(t, engine.Guess{PlayerID: "a", Text: "sommar", WordSeq: 1})
	require.True(t, engine.ContainsEvent(res.Events, engine.EvtGuessCorrect))

	// Let the re-armed fuse burn out once.
	time.Sleep(1500 * time.Millisecond)
	v, err := f.l.View(f.ctx)
	require.NoError(t, err)

	seen := map[int]int{}
	for _, h := range v.State.History {
		seen[h.Seq]++
	}
	assert.Equal(t, 1, seen[1])
	assert.Equal(t, engine.OutcomeGuessed, v.State.History[0].Outcome)
	assert.GreaterOrEqual(t, v.State.Round.Seq, 3)
}

func TestLobby_Shutdown_StopsFuse_NoFire(t *testing.T) {
	f := newFixture(t, 1)
	out := f.attach(t, "c1", "a", 8)
	_ = recvMessage(t, out, 200*time.Millisecond)

	f.do(t, engine.Start{PlayerID: "a"})
	_ = recvMessage(t, out, 200*time.Millisecond)

	f.l.Shutdown()
	<-f.l.Done()

	recvNoMessage(t, out, 1200*time.Millisecond)
	_, err := f.l.Do(context.Background(), engine.Pass{PlayerID: "a"})
	require.ErrorIs(t, err, ErrClosed)
}

func TestLobby_SweepRemovesIdlePlayersThroughLeave(t *testing.T) {
	f := newFixture(t, 30)
	require.NoError(t, f.l.Heartbeat(f.ctx, "b"))

	res, err := f.l.Sweep(f.ctx, time.Now().Add(10*time.Second), 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.False(t, res.Disposable)

	out := f.attach(t, "c1", "b", 8)
	_ = recvMessage(t, out, 200*time.Millisecond)

	res, err = f.l.Sweep(f.ctx, time.Now().Add(time.Hour), 30*time.Second)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Removed)

	// "b" saw the host handover before being swept too.
	handover := recvMessage(t, out, 200*time.Millisecond)
	assert.True(t, hasEvent(handover, engine.EvtHostChanged))
	assert.Equal(t, "b", handover.Lobby.HostID)

	require.Eventually(t, func() bool {
		r, err := f.l.Sweep(f.ctx, time.Now(), 30*time.Second)
		return err == nil && r.Disposable
	}, time.Second, 10*time.Millisecond)

	<-f.l.Done()
	require.ErrorIs(t, f.l.Heartbeat(f.ctx, "a"), ErrClosed)
}

func TestLobby_SweepClosesEmptyLobby(t *testing.T) {
	f := newFixture(t, 30)

	res, err := f.l.Sweep(f.ctx, time.Now().Add(time.Hour), 30*time.Second)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Removed)
	require.True(t, res.Disposable)

	select {
	case <-f.l.Done():
	case <-time.After(time.Second):
		t.Fatalf("empty lobby still running")
	}

	// Arrives after the sweep decided to drop the lobby.
	_, err = f.l.Do(f.ctx, engine.Join{PlayerID: "c", Name: "Cleo", Language: "fr"})
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, err, engine.ErrLobbyNotFound)
}

func TestLobby_ConnectionCountFollowsRegistry(t *testing.T) {
	f := newFixture(t, 30)
	f.attach(t, "slow", "a", 1) // the snapshot fills the buffer
	out := f.attach(t, "c2", "b", 8)

	snap := recvMessage(t, out, 200*time.Millisecond)
	assert.Equal(t, 2, snap.Lobby.Connections)

	// The first update drops "slow"; the next one counts what is left.
	f.do(t, engine.SetTarget{PlayerID: "a", Target: 4})
	_ = recvMessage(t, out, 200*time.Millisecond)
	f.do(t, engine.SetTarget{PlayerID: "a", Target: 5})
	next := recvMessage(t, out, 200*time.Millisecond)
	assert.Equal(t, 1, next.Lobby.Connections)

	v, err := f.l.View(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Lobby.Connections, v.NumClients)
}

func TestLobby_ForkAndSupersede(t *testing.T) {
	f := newFixture(t, 30)
	out := f.attach(t, "c1", "b", 8)
	_ = recvMessage(t, out, 200*time.Millisecond)

	_, err := f.l.Fork(f.ctx, "b", "NEW123")
	require.ErrorIs(t, err, engine.ErrNotHost)

	st, err := f.l.Fork(f.ctx, "a", "NEW123")
	require.NoError(t, err)
	assert.Equal(t, "NEW123", st.ID)
	assert.Len(t, st.Players, 2)

	require.NoError(t, f.l.Supersede(f.ctx, "NEW123"))
	msg := recvMessage(t, out, 200*time.Millisecond)
	require.True(t, hasEvent(msg, engine.EvtLobbySuperseded))
	assert.Equal(t, "NEW123", msg.Lobby.SupersededBy)

	err = f.l.Attach(f.ctx, "c2", "a", fanout.NewChanSink(1))
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)

	_, err = f.l.Do(f.ctx, engine.Join{PlayerID: "z", Name: "Zed", Language: "fr"})
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)
}

func TestLobby_ForkFreezesUntilSupersedeOrAbort(t *testing.T) {
	f := newFixture(t, 30)
	_, err := f.l.Fork(f.ctx, "a", "NEW123")
	require.NoError(t, err)

	_, err = f.l.Do(f.ctx, engine.SetReady{PlayerID: "b", Ready: false})
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)
	_, err = f.l.Fork(f.ctx, "a", "OTHER1")
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)
	err = f.l.Attach(f.ctx, "c1", "b", fanout.NewChanSink(1))
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)

	// Only the pending fork can be abandoned.
	f.l.AbortFork("OTHER1")
	_, err = f.l.Do(f.ctx, engine.SetReady{PlayerID: "b", Ready: false})
	require.ErrorIs(t, err, engine.ErrLobbySuperseded)

	f.l.AbortFork("NEW123")
	res := f.do(t, engine.SetReady{PlayerID: "b", Ready: false})
	assert.Equal(t, 4, res.Version)
	assert.False(t, engine.ContainsEvent(res.Events, engine.EvtLobbySuperseded))
}

func TestLobby_FuseHeldDuringForkFiresAfterAbort(t *testing.T) {
	f := newFixture(t, 1)
	f.do(t, engine.Start{PlayerID: "a"})
	_, err := f.l.Fork(f.ctx, "a", "NEW123")
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)
	v, err := f.l.View(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.State.Round.Seq)
	assert.Empty(t, v.State.History)

	f.l.AbortFork("NEW123")
	require.Eventually(t, func() bool {
		v, err := f.l.View(f.ctx)
		return err == nil && len(v.State.History) == 1 && v.State.History[0].Outcome == engine.OutcomeTimedOut
	}, time.Second, 10*time.Millisecond)
}
