package engine

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

func (s *State) join(c Join, env Env) ([]Event, error) {
	name := strings.TrimSpace(c.Name)
	if c.PlayerID == "" || name == "" {
		return nil, fmt.Errorf("%w: join needs a player id and a name", ErrInvalidCommand)
	}
	if _, ok := env.Words.Counterpart(c.Language); !ok {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidCommand, c.Language)
	}
	if _, exists := s.Players[c.PlayerID]; exists {
		return nil, fmt.Errorf("%w: player %s already joined", ErrInvalidCommand, c.PlayerID)
	}
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return nil, ErrNameTaken
		}
	}

	p := Player{ID: c.PlayerID, Name: name, Language: c.Language, JoinedAt: env.Now}
	events := []Event{}

	// Someone joining during the reconnect grace period inherits the lobby.
	if len(s.Players) == 0 {
		p.IsHost = true
		p.Ready = true
		s.HostID = p.ID
	}
	s.Players[p.ID] = p
	s.Order = append(s.Order, p.ID)

	events = append(events, Event{Type: EvtPlayerJoined, PlayerID: p.ID, PlayerName: p.Name, Ready: p.Ready})
	if p.IsHost {
		events = append(events, Event{Type: EvtHostChanged, PlayerID: p.ID, PlayerName: p.Name})
	}
	return events, nil
}

func (s *State) leave(c Leave, env Env) ([]Event, error) {
	p, err := s.member(c.PlayerID)
	if err != nil {
		return nil, err
	}

	delete(s.Players, p.ID)
	s.Order = slices.DeleteFunc(s.Order, func(id string) bool { return id == p.ID })
	if s.Round != nil {
		delete(s.Round.Passed, p.ID)
	}
	events := []Event{{Type: EvtPlayerLeft, PlayerID: p.ID, PlayerName: p.Name}}

	if s.HostID == p.ID {
		s.HostID = ""
		if len(s.Order) > 0 {
			h := s.Players[s.Order[0]]
			h.IsHost = true
			h.Ready = true
			s.Players[h.ID] = h
			s.HostID = h.ID
			events = append(events, Event{Type: EvtHostChanged, PlayerID: h.ID, PlayerName: h.Name})
		}
	}

	// The leaver may have been the last one holding up a unanimous pass.
	if s.Phase == PhasePlaying && s.Round != nil && len(s.Players) > 0 && len(s.Round.Passed) >= len(s.Players) {
		more, err := s.advance(OutcomePassed, env)
		if err != nil {
			return nil, err
		}
		events = append(events, more...)
	}
	return events, nil
}

// setReady is a no-op for the host, who is always ready.
func (s *State) setReady(playerID string, next func(cur bool) bool) ([]Event, error) {
	p, err := s.member(playerID)
	if err != nil {
		return nil, err
	}
	if p.ID == s.HostID {
		return nil, nil
	}
	ready := next(p.Ready)
	if ready == p.Ready {
		return nil, nil
	}
	p.Ready = ready
	s.Players[p.ID] = p
	return []Event{{Type: EvtReadyChanged, PlayerID: p.ID, PlayerName: p.Name, Ready: ready}}, nil
}

func (s *State) setDifficulty(c SetDifficulty) ([]Event, error) {
	if err := s.requireHost(c.PlayerID); err != nil {
		return nil, err
	}
	d := strings.TrimSpace(c.Difficulty)
	if d == "" {
		return nil, fmt.Errorf("%w: empty difficulty", ErrInvalidCommand)
	}
	if d == s.Settings.Difficulty {
		return nil, nil
	}
	s.Settings.Difficulty = d
	return []Event{{Type: EvtDifficultyChanged, PlayerID: c.PlayerID, Difficulty: d}}, nil
}

func (s *State) setTarget(c SetTarget) ([]Event, error) {
	if err := s.requireHost(c.PlayerID); err != nil {
		return nil, err
	}
	if c.Target < 1 {
		return nil, fmt.Errorf("%w: target must be at least 1", ErrInvalidCommand)
	}
	if c.Target == s.Settings.Target {
		return nil, nil
	}
	s.Settings.Target = c.Target
	return []Event{{Type: EvtTargetChanged, PlayerID: c.PlayerID, Target: c.Target}}, nil
}

func (s *State) start(c Start, env Env) ([]Event, error) {
	if err := s.requireHost(c.PlayerID); err != nil {
		return nil, err
	}
	switch s.Phase {
	case PhasePlaying:
		return nil, ErrGameInProgress
	case PhaseEnded:
		return nil, ErrGameAlreadyEnded
	}
	for _, p := range s.Players {
		if p.ID != s.HostID && !p.Ready {
			return nil, ErrNotAllReady
		}
	}

	for id, p := range s.Players {
		p.Score = 0
		p.Streak = 0
		p.HighestStreak = 0
		p.FastestGuess = 0
		s.Players[id] = p
	}
	s.Round = nil
	s.History = nil
	s.WinnerID = ""
	if err := s.nextWord(env); err != nil {
		return nil, err
	}
	s.Phase = PhasePlaying
	return []Event{{Type: EvtGameStarted, PlayerID: c.PlayerID, WordSeq: s.Round.Seq}}, nil
}

func (s *State) chat(c Chat) ([]Event, error) {
	p, err := s.member(c.PlayerID)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty chat message", ErrInvalidCommand)
	}
	if utf8.RuneCountInString(text) > MaxChatRunes {
		text = string([]rune(text)[:MaxChatRunes])
	}
	return []Event{{Type: EvtChatPosted, PlayerID: p.ID, PlayerName: p.Name, Text: text}}, nil
}
