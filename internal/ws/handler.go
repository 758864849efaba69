// Package ws is the push side of the transport: one websocket per attached
// player, receiving lobby updates and sending commands.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/fanout"
	"github.com/jvlax/motord/internal/hub"
	"github.com/jvlax/motord/internal/lobby"
	"github.com/jvlax/motord/internal/types"
	wire "github.com/jvlax/motord/pkg/types"
)

var ErrRateLimited = errors.New("too many messages, slow down")

type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	// ReadTimeout closes connections that stay silent, pings included, this long.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Outbox       int
	RatePerSec   float64
	Burst        int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.Outbox <= 0 {
		o.Outbox = 32
	}
	if o.RatePerSec <= 0 {
		o.RatePerSec = 5
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	return o
}

// Handler serves GET /ws/{code}?player_id=...
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		playerID := r.URL.Query().Get("player_id")
		if code == "" || playerID == "" {
			http.Error(w, "missing code or player_id", http.StatusBadRequest)
			return
		}

		lb, err := h.Get(r.Context(), code)
		if err != nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.AllowedOrigins,
		})
		if err != nil {
			opts.Logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			hub:      h,
			lobby:    lb,
			code:     code,
			playerID: playerID,
			connID:   uuid.NewString(),
			conn:     conn,
			sink:     fanout.NewChanSink(opts.Outbox),
			limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
			opts:     opts,
			log:      opts.Logger.With(zap.String("lobby", code), zap.String("player", playerID)),
		}
		c.serve(r.Context())
	}
}

type client struct {
	hub      *hub.Hub
	lobby    *lobby.Lobby
	code     string
	playerID string
	connID   string
	conn     *websocket.Conn
	sink     *fanout.ChanSink
	limiter  *rate.Limiter
	opts     Options
	log      *zap.Logger
}

func (c *client) serve(parent context.Context) {
	if err := c.lobby.Attach(parent, c.connID, c.playerID, c.sink); err != nil {
		ctx, cancel := context.WithTimeout(parent, c.opts.WriteTimeout)
		_ = wsjson.Write(ctx, c.conn, types.ErrorMessage(err))
		cancel()
		c.conn.Close(websocket.StatusPolicyViolation, types.ErrorCode(err))
		return
	}
	defer c.lobby.Detach(c.connID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Writer goroutine
	go func() {
		defer cancel()
		for payload := range c.sink.C() {
			wctx, wcancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				return
			}
		}
		// Sink closed: the lobby dropped this connection.
		c.conn.Close(websocket.StatusGoingAway, "detached")
	}()

	// Reader loop
	for {
		rctx, rcancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
		_, data, err := c.conn.Read(rctx)
		rcancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				c.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		var m wire.ClientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			c.reply(types.ErrorMessage(fmt.Errorf("%w: bad json", engine.ErrInvalidCommand)))
			continue
		}

		if !c.limiter.Allow() {
			c.reply(wire.ServerMessage{Type: wire.MsgError, Error: &wire.ErrorBody{Code: "rate_limited", Message: ErrRateLimited.Error()}})
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *client) handle(ctx context.Context, m wire.ClientMessage) {
	switch m.Type {
	case wire.MsgPing:
		if err := c.lobby.Heartbeat(ctx, c.playerID); err != nil {
			c.reply(types.ErrorMessage(err))
			return
		}
		c.reply(wire.ServerMessage{Type: wire.MsgPong})

	case wire.MsgPlayAgain:
		// Everyone, us included, hears about the new code through the old
		// lobby's update.
		if _, err := c.hub.PlayAgain(ctx, c.code, c.playerID); err != nil {
			c.reply(types.ErrorMessage(err))
		}

	default:
		cmd, err := types.ToCommand(c.playerID, m)
		if err != nil {
			c.reply(types.ErrorMessage(err))
			return
		}
		if _, err := c.lobby.Do(ctx, cmd); err != nil {
			c.reply(types.ErrorMessage(err))
		}
	}
}

// reply goes through the sink so it is ordered with lobby updates.
func (c *client) reply(msg wire.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.sink.Deliver(payload); err != nil {
		c.log.Debug("reply dropped", zap.Error(err))
	}
}
