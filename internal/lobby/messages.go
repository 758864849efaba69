package lobby

import (
	"time"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/fanout"
)

type Msg interface{ isLobbyMsg() }

// Do runs one engine command. Reply may be nil.
type Do struct {
	Cmd   engine.Command
	Reply chan Result
}

type Result struct {
	Events  []engine.Event
	Version int
	Err     error
}

// Attach registers a push connection for a member and sends it a snapshot.
type Attach struct {
	ConnID   string
	PlayerID string
	Sink     fanout.Sink
	Reply    chan error
}

type Detach struct{ ConnID string }

type Heartbeat struct {
	PlayerID string
	Reply    chan error
}

// fuseFired is posted by the word timer; gen ties it to one arming.
type fuseFired struct {
	gen uint64
	seq int
}

// Sweep drops players idle for longer than Idle.
type Sweep struct {
	Now   time.Time
	Idle  time.Duration
	Reply chan SweepResult
}

type SweepResult struct {
	Removed []string
	// Disposable is set once the lobby has no players and no connections.
	Disposable bool
}

type GetState struct {
	Reply chan View
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Fork struct {
	PlayerID string
	NewID    string
	Reply    chan ForkResult
}

type ForkResult struct {
	State engine.State
	Err   error
}

// AbortFork releases a lobby whose fork to NewID was never registered.
type AbortFork struct {
	NewID string
}

type Supersede struct {
	NewID string
	Reply chan error
}

type Shutdown struct{}

func (Do) isLobbyMsg()        {}
func (Attach) isLobbyMsg()    {}
func (Detach) isLobbyMsg()    {}
func (Heartbeat) isLobbyMsg() {}
func (fuseFired) isLobbyMsg() {}
func (Sweep) isLobbyMsg()     {}
func (GetState) isLobbyMsg()  {}
func (Fork) isLobbyMsg()      {}
func (AbortFork) isLobbyMsg() {}
func (Supersede) isLobbyMsg() {}
func (Shutdown) isLobbyMsg()  {}
