// Package types converts between engine values and the wire protocol.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jvlax/motord/internal/engine"
	wire "github.com/jvlax/motord/pkg/types"
)

var ErrUnknownMessage = errors.New("unknown message type")

// ToCommand turns a client message into an engine command acting for playerID.
// play_again and ping are not engine commands and are rejected here; the
// transport handles them itself.
func ToCommand(playerID string, m wire.ClientMessage) (engine.Command, error) {
	switch m.Type {
	case wire.MsgSetReady:
		if m.Ready == nil {
			return nil, fmt.Errorf("%w: set_ready needs ready", engine.ErrInvalidCommand)
		}
		return engine.SetReady{PlayerID: playerID, Ready: *m.Ready}, nil
	case wire.MsgToggleReady:
		return engine.ToggleReady{PlayerID: playerID}, nil
	case wire.MsgSetDifficulty:
		return engine.SetDifficulty{PlayerID: playerID, Difficulty: strings.ToLower(strings.TrimSpace(m.Difficulty))}, nil
	case wire.MsgSetTarget:
		return engine.SetTarget{PlayerID: playerID, Target: m.Target}, nil
	case wire.MsgStart:
		return engine.Start{PlayerID: playerID}, nil
	case wire.MsgGuess:
		if m.WordSeq < 1 {
			return nil, fmt.Errorf("%w: guess needs word_seq", engine.ErrInvalidCommand)
		}
		return engine.Guess{PlayerID: playerID, Text: m.Text, WordSeq: m.WordSeq}, nil
	case wire.MsgPass:
		if m.WordSeq < 1 {
			return nil, fmt.Errorf("%w: pass needs word_seq", engine.ErrInvalidCommand)
		}
		return engine.Pass{PlayerID: playerID, WordSeq: m.WordSeq}, nil
	case wire.MsgTimeout:
		if m.WordSeq < 1 {
			return nil, fmt.Errorf("%w: timeout needs word_seq", engine.ErrInvalidCommand)
		}
		return engine.Timeout{WordSeq: m.WordSeq}, nil
	case wire.MsgChat:
		return engine.Chat{PlayerID: playerID, Text: m.Text}, nil
	case wire.MsgLeave:
		return engine.Leave{PlayerID: playerID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
}

func FromEvents(events []engine.Event) []wire.Event {
	out := make([]wire.Event, 0, len(events))
	for _, e := range events {
		out = append(out, wire.Event{
			Type:       string(e.Type),
			PlayerID:   e.PlayerID,
			PlayerName: e.PlayerName,
			Ready:      e.Ready,
			Difficulty: e.Difficulty,
			Target:     e.Target,
			WordSeq:    e.WordSeq,
			Word:       e.Word,
			Points:     e.Points,
			PointsLost: e.PointsLost,
			TimeBonus:  e.TimeBonus,
			Multiplier: e.Multiplier,
			Streak:     e.Streak,
			Score:      e.Score,
			Elapsed:    e.Elapsed,
			Close:      e.Close,
			Passed:     e.Passed,
			WinnerID:   e.WinnerID,
			WinnerName: e.WinnerName,
			Text:       e.Text,
			LobbyCode:  e.LobbyID,
		})
	}
	return out
}

// Snapshot is the full read-only view handed to (re)connecting clients.
func Snapshot(s engine.State, connections int, now time.Time) wire.LobbySnapshot {
	snap := wire.LobbySnapshot{
		Code:   s.ID,
		Phase:  string(s.Phase),
		HostID: s.HostID,
		Settings: wire.Settings{
			Difficulty:  s.Settings.Difficulty,
			Target:      s.Settings.Target,
			FuseSeconds: s.Settings.FuseSeconds,
			EndMode:     string(s.Settings.EndMode),
		},
		Players:      make([]wire.PlayerSnapshot, 0, len(s.Order)),
		WinnerID:     s.WinnerID,
		SupersededBy: s.SupersededBy,
		Connections:  connections,
	}

	for _, p := range s.Members() {
		snap.Players = append(snap.Players, wire.PlayerSnapshot{
			ID:            p.ID,
			Name:          p.Name,
			Language:      p.Language,
			IsHost:        p.IsHost,
			Ready:         p.Ready,
			Score:         p.Score,
			Streak:        p.Streak,
			HighestStreak: p.HighestStreak,
			FastestGuess:  p.FastestGuess,
			Passed:        s.Round != nil && s.Round.Passed[p.ID],
		})
	}

	if r := s.Round; r != nil {
		snap.Round = &wire.RoundSnapshot{
			Seq:          r.Seq,
			Word:         r.Word.Word,
			Translations: r.Word.Translations,
			StartedAt:    r.StartedAt,
			Deadline:     r.Deadline,
			RemainingMS:  max(r.Deadline.Sub(now).Milliseconds(), 0),
			Passed:       len(r.Passed),
			CorrectWords: r.CorrectWords,
		}
	}

	for _, h := range s.History {
		snap.History = append(snap.History, wire.HistoryEntry{
			Seq:          h.Seq,
			Word:         h.Word,
			Translations: h.Translations,
			Outcome:      string(h.Outcome),
			GuessedBy:    h.GuessedBy,
			GuesserName:  h.GuesserName,
			Points:       h.Points,
			TimeBonus:    h.TimeBonus,
			Multiplier:   h.Multiplier,
			Streak:       h.Streak,
			Elapsed:      h.Elapsed,
		})
	}
	return snap
}

func SnapshotMessage(version int, snap wire.LobbySnapshot) wire.ServerMessage {
	return wire.ServerMessage{Type: wire.MsgSnapshot, Version: version, Lobby: &snap}
}

func UpdateMessage(version int, events []engine.Event, snap wire.LobbySnapshot) wire.ServerMessage {
	return wire.ServerMessage{Type: wire.MsgUpdate, Version: version, Events: FromEvents(events), Lobby: &snap}
}

func ErrorMessage(err error) wire.ServerMessage {
	return wire.ServerMessage{Type: wire.MsgError, Error: &wire.ErrorBody{Code: ErrorCode(err), Message: err.Error()}}
}

// ErrorCode is the stable machine-readable name of a failure.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrLobbyNotFound):
		return "lobby_not_found"
	case errors.Is(err, engine.ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, engine.ErrNotHost):
		return "not_host"
	case errors.Is(err, engine.ErrNotAllReady):
		return "not_all_ready"
	case errors.Is(err, engine.ErrGameNotActive):
		return "game_not_active"
	case errors.Is(err, engine.ErrGameAlreadyEnded):
		return "game_already_ended"
	case errors.Is(err, engine.ErrGameInProgress):
		return "game_in_progress"
	case errors.Is(err, engine.ErrNameTaken):
		return "name_taken"
	case errors.Is(err, engine.ErrLobbySuperseded):
		return "lobby_superseded"
	case errors.Is(err, engine.ErrCatalogExhausted):
		return "catalog_exhausted"
	case errors.Is(err, engine.ErrInvalidCommand), errors.Is(err, ErrUnknownMessage):
		return "invalid_command"
	default:
		return "internal"
	}
}
