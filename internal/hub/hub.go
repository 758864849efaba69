// Package hub owns the set of live lobbies, keyed by their invite code.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/lobby"
)

// ErrLobbyNotFound is returned for codes that name no live lobby.
var ErrLobbyNotFound = engine.ErrLobbyNotFound

var ErrNoFreeCode = errors.New("could not allocate a free lobby code")

var errCodeTaken = errors.New("lobby code taken")

const codeAttempts = 10

type HubMsg interface{ isHubMsg() }

// RegisterLobby starts a lobby actor for State under State.ID.
type RegisterLobby struct {
	State engine.State
	Reply chan registered
}

type registered struct {
	lobby *lobby.Lobby
	err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

// RemoveLobby drops Lobby if it is still the one registered under its code.
type RemoveLobby struct {
	Lobby *lobby.Lobby
	Reply chan bool
}

type ShutdownHub struct{}

func (RegisterLobby) isHubMsg() {}
func (GetLobby) isHubMsg()      {}
func (ListLobbies) isHubMsg()   {}
func (RemoveLobby) isHubMsg()   {}
func (ShutdownHub) isHubMsg()   {}

type Config struct {
	Words     engine.WordPicker
	Publisher lobby.Publisher
	Settings  engine.Settings
	Logger    *zap.Logger
	Now       func() time.Time
	// NewCode generates candidate lobby codes; GenerateCode when nil.
	NewCode func() (string, error)
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewCode == nil {
		cfg.NewCode = GenerateCode
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case RegisterLobby:
				code := msg.State.ID
				if h.lobbies[code] != nil {
					msg.Reply <- registered{err: errCodeTaken}
					break
				}
				lb := lobby.NewLobby(h.ctx, lobby.Config{
					Initial:   msg.State,
					Words:     h.cfg.Words,
					Publisher: h.cfg.Publisher,
					Logger:    h.log,
					Now:       h.cfg.Now,
				})
				h.lobbies[code] = lb
				h.log.Info("lobby registered", zap.String("lobby", code), zap.Int("lobbies", len(h.lobbies)))
				msg.Reply <- registered{lobby: lb}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				code := msg.Lobby.ID()
				ok := h.lobbies[code] == msg.Lobby
				if ok {
					delete(h.lobbies, code)
					go msg.Lobby.Shutdown()
					h.log.Info("lobby removed", zap.String("lobby", code), zap.Int("lobbies", len(h.lobbies)))
				}
				msg.Reply <- ok

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Shutdown()
	}
	clear(h.lobbies)
	h.cancel()
}

func (h *Hub) post(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return lobby.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Hub, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, lobby.ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) register(ctx context.Context, s engine.State) (*lobby.Lobby, error) {
	reply := make(chan registered, 1)
	if err := h.post(ctx, RegisterLobby{State: s, Reply: reply}); err != nil {
		return nil, err
	}
	r, err := recv(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	return r.lobby, r.err
}

// Create opens a lobby under a fresh code with the creator seated as host.
func (h *Hub) Create(ctx context.Context, host engine.Join) (*lobby.Lobby, error) {
	var lb *lobby.Lobby
	err := h.withFreeCode(func(code string) error {
		_, initial, err := engine.Apply(engine.NewState(code, h.cfg.Settings), host, engine.Env{Words: h.cfg.Words, Now: h.cfg.Now()})
		if err != nil {
			return err
		}
		lb, err = h.register(ctx, initial)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lb, nil
}

func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.post(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	lb, err := recv(ctx, h, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, code)
	}
	return lb, nil
}

// PlayAgain moves everyone in code to a fresh lobby with the same settings.
// Only the host may do this; the old lobby is emptied and points at the new one.
// The old lobby refuses commands from the fork until it is superseded, so
// nothing applied there in between is lost.
func (h *Hub) PlayAgain(ctx context.Context, code, playerID string) (*lobby.Lobby, error) {
	old, err := h.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	var lb *lobby.Lobby
	err = h.withFreeCode(func(newCode string) error {
		fresh, err := old.Fork(ctx, playerID, newCode)
		if err != nil {
			return err
		}
		lb, err = h.register(ctx, fresh)
		if err != nil {
			old.AbortFork(newCode)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := old.Supersede(ctx, lb.ID()); err != nil {
		h.log.Warn("old lobby not superseded", zap.String("lobby", code), zap.Error(err))
	}
	h.log.Info("play again", zap.String("from", code), zap.String("to", lb.ID()), zap.String("player", playerID))
	return lb, nil
}

// Remove unregisters lb and shuts it down. It reports false when lb was
// already gone or its code now names another lobby.
func (h *Hub) Remove(ctx context.Context, lb *lobby.Lobby) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.post(ctx, RemoveLobby{Lobby: lb, Reply: reply}); err != nil {
		return false, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.post(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h, reply)
}

func (h *Hub) Len(ctx context.Context) (int, error) {
	lobbies, err := h.List(ctx)
	return len(lobbies), err
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

// withFreeCode retries try with new codes while they collide with live lobbies.
func (h *Hub) withFreeCode(try func(code string) error) error {
	for range codeAttempts {
		code, err := h.cfg.NewCode()
		if err != nil {
			return fmt.Errorf("generate lobby code: %w", err)
		}
		err = try(code)
		if !errors.Is(err, errCodeTaken) {
			return err
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", code))
	}
	return ErrNoFreeCode
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
