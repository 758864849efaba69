package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jvlax/motord/internal/engine"
	"github.com/jvlax/motord/internal/hub"
	"github.com/jvlax/motord/internal/lobby"
	"github.com/jvlax/motord/internal/types"
	wire "github.com/jvlax/motord/pkg/types"
)

type commandResponse struct {
	Version int          `json:"version"`
	Events  []wire.Event `json:"events"`
}

type playAgainResponse struct {
	Code string `json:"code"`
}

func CreateLobby(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.CreateLobbyRequest
		if !decode(w, r, &req) {
			return
		}

		playerID := uuid.NewString()
		lb, err := d.Hub.Create(r.Context(), engine.Join{PlayerID: playerID, Name: req.Name, Language: req.Language})
		if err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("lobby created", zap.String("lobby", lb.ID()), zap.String("player", playerID))
		writeJoined(w, d, r, lb, playerID)
	}
}

func JoinLobby(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := lookup(w, r, d)
		if !ok {
			return
		}
		var req wire.JoinRequest
		if !decode(w, r, &req) {
			return
		}

		playerID := uuid.NewString()
		if _, err := lb.Do(r.Context(), engine.Join{PlayerID: playerID, Name: req.Name, Language: req.Language}); err != nil {
			writeError(w, d, err)
			return
		}
		writeJoined(w, d, r, lb, playerID)
	}
}

func GetLobby(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := lookup(w, r, d)
		if !ok {
			return
		}
		v, err := lb.View(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SnapshotMessage(v.Version, types.Snapshot(v.State, v.NumClients, d.Now())))
	}
}

// Command runs one player action; the body is a ClientMessage without "type".
func Command(d Deps, msgType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := lookup(w, r, d)
		if !ok {
			return
		}
		var m wire.ClientMessage
		if !decode(w, r, &m) {
			return
		}
		m.Type = msgType

		cmd, err := types.ToCommand(chi.URLParam(r, "pid"), m)
		if err != nil {
			writeError(w, d, err)
			return
		}
		res, err := lb.Do(r.Context(), cmd)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, commandResponse{Version: res.Version, Events: types.FromEvents(res.Events)})
	}
}

func PlayAgain(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := d.Hub.PlayAgain(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "pid"))
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, playAgainResponse{Code: lb.ID()})
	}
}

func Heartbeat(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := lookup(w, r, d)
		if !ok {
			return
		}
		if err := lb.Heartbeat(r.Context(), chi.URLParam(r, "pid")); err != nil {
			writeError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookup(w http.ResponseWriter, r *http.Request, d Deps) (*lobby.Lobby, bool) {
	lb, err := d.Hub.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, d, err)
		return nil, false
	}
	return lb, true
}

// decode reads an optional JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, types.ErrorMessage(fmt.Errorf("%w: %v", engine.ErrInvalidCommand, err)))
	return false
}

func writeJoined(w http.ResponseWriter, d Deps, r *http.Request, lb *lobby.Lobby, playerID string) {
	v, err := lb.View(r.Context())
	if err != nil {
		writeError(w, d, err)
		return
	}
	writeJSON(w, http.StatusCreated, wire.JoinResponse{
		Code:     lb.ID(),
		PlayerID: playerID,
		Version:  v.Version,
		Lobby:    types.Snapshot(v.State, v.NumClients, d.Now()),
	})
}

func writeError(w http.ResponseWriter, d Deps, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.ErrorMessage(err))
}

// StatusFor maps a failure to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrLobbyNotFound), errors.Is(err, engine.ErrPlayerNotFound), errors.Is(err, lobby.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNotAllReady),
		errors.Is(err, engine.ErrGameNotActive),
		errors.Is(err, engine.ErrGameAlreadyEnded),
		errors.Is(err, engine.ErrGameInProgress),
		errors.Is(err, engine.ErrNameTaken),
		errors.Is(err, engine.ErrLobbySuperseded):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidCommand), errors.Is(err, types.ErrUnknownMessage):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrCatalogExhausted), errors.Is(err, hub.ErrNoFreeCode):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
