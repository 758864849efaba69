package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/jvlax/motord/internal/catalog"
)

const (
	DefaultFuseSeconds = 30
	DefaultTarget      = 10

	// TimeoutTolerance lets a client-side fuse fire slightly before ours.
	TimeoutTolerance = time.Second

	MaxChatRunes = 280
)

func DefaultSettings() Settings {
	return Settings{
		Difficulty:  catalog.DifficultyMedium,
		Target:      DefaultTarget,
		FuseSeconds: DefaultFuseSeconds,
		EndMode:     EndByWords,
	}
}

func NewState(id string, settings Settings) State {
	if settings.FuseSeconds <= 0 {
		settings.FuseSeconds = DefaultFuseSeconds
	}
	if settings.Target <= 0 {
		settings.Target = DefaultTarget
	}
	if settings.EndMode == "" {
		settings.EndMode = EndByWords
	}
	return State{
		ID:       id,
		Players:  map[string]Player{},
		Settings: settings,
		Phase:    PhaseLobby,
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// PlayerOf returns the player a command acts for, "" for system commands.
func PlayerOf(cmd Command) string {
	switch c := cmd.(type) {
	case Join:
		return c.PlayerID
	case Leave:
		return c.PlayerID
	case SetReady:
		return c.PlayerID
	case ToggleReady:
		return c.PlayerID
	case SetDifficulty:
		return c.PlayerID
	case SetTarget:
		return c.PlayerID
	case Start:
		return c.PlayerID
	case Guess:
		return c.PlayerID
	case Pass:
		return c.PlayerID
	case Chat:
		return c.PlayerID
	default:
		return ""
	}
}

// Members returns players in join order.
func (s State) Members() []Player {
	out := make([]Player, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.Players[id])
	}
	return out
}

func (s State) Fuse() time.Duration {
	return time.Duration(s.Settings.FuseSeconds) * time.Second
}

func (s State) clone() State {
	c := s
	c.Players = maps.Clone(s.Players)
	if c.Players == nil {
		c.Players = map[string]Player{}
	}
	c.Order = slices.Clone(s.Order)
	c.History = slices.Clone(s.History)
	if s.Round != nil {
		r := *s.Round
		r.Passed = maps.Clone(s.Round.Passed)
		if r.Passed == nil {
			r.Passed = map[string]bool{}
		}
		c.Round = &r
	}
	return c
}

func (s *State) member(id string) (Player, error) {
	p, ok := s.Players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return p, nil
}

func (s *State) requireHost(id string) error {
	if _, err := s.member(id); err != nil {
		return err
	}
	if s.HostID != id {
		return ErrNotHost
	}
	return nil
}

func (s *State) requirePlaying() error {
	switch {
	case s.Phase == PhaseEnded:
		return ErrGameAlreadyEnded
	case s.Phase != PhasePlaying || s.Round == nil:
		return ErrGameNotActive
	}
	return nil
}

// nextWord puts a fresh word on screen, never repeating the current one when
// the catalog has an alternative.
func (s *State) nextWord(env Env) error {
	exclude := ""
	seq := 0
	correct := 0
	if s.Round != nil {
		exclude = s.Round.Word.Word
		seq = s.Round.Seq
		correct = s.Round.CorrectWords
	}

	w, err := env.Words.Pick(exclude, s.Settings.Difficulty)
	if err != nil {
		return err
	}
	s.Round = &Round{
		Word:         w,
		Seq:          seq + 1,
		StartedAt:    env.Now,
		Deadline:     env.Now.Add(s.Fuse()),
		Passed:       map[string]bool{},
		CorrectWords: correct,
	}
	return nil
}

// winner is the top scorer; ties go to whoever joined first.
func (s *State) winner() (Player, bool) {
	var best Player
	found := false
	for _, id := range s.Order {
		p := s.Players[id]
		if !found || p.Score > best.Score {
			best = p
			found = true
		}
	}
	return best, found
}
