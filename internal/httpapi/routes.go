package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/hub"
	"github.com/jvlax/motord/internal/ws"
	wire "github.com/jvlax/motord/pkg/types"
)

type Deps struct {
	Hub    *hub.Hub
	Logger *zap.Logger
	Now    func() time.Time
	WS     ws.Options
}

// commandRoutes maps player action paths to the message they carry.
var commandRoutes = map[string]string{
	"leave":        wire.MsgLeave,
	"ready":        wire.MsgSetReady,
	"toggle-ready": wire.MsgToggleReady,
	"difficulty":   wire.MsgSetDifficulty,
	"target":       wire.MsgSetTarget,
	"start":        wire.MsgStart,
	"guess":        wire.MsgGuess,
	"pass":         wire.MsgPass,
	"timeout":      wire.MsgTimeout,
	"chat":         wire.MsgChat,
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.WS.Logger == nil {
		d.WS.Logger = d.Logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws/{code}", ws.Handler(d.Hub, d.WS))

	r.Route("/lobbies", func(r chi.Router) {
		r.Post("/", CreateLobby(d))
		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", GetLobby(d))
			r.Post("/join", JoinLobby(d))
			r.Route("/players/{pid}", func(r chi.Router) {
				for path, msgType := range commandRoutes {
					r.Post("/"+path, Command(d, msgType))
				}
				r.Post("/play-again", PlayAgain(d))
				r.Post("/heartbeat", Heartbeat(d))
			})
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
