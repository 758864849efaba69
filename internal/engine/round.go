package engine

import (
	"fmt"
	"strings"

	"github.com/jvlax/motord/internal/scoring"
	"github.com/jvlax/motord/internal/textnorm"
)

func (s *State) guess(c Guess, env Env) ([]Event, error) {
	if err := s.requirePlaying(); err != nil {
		return nil, err
	}
	p, err := s.member(c.PlayerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.Text) == "" {
		return nil, fmt.Errorf("%w: empty guess", ErrInvalidCommand)
	}
	// Aimed at a word that is already gone.
	if c.WordSeq != 0 && c.WordSeq != s.Round.Seq {
		return nil, nil
	}

	var accepted []string
	if target, ok := env.Words.Counterpart(p.Language); ok {
		accepted = s.Round.Word.Accepted(target)
	}

	if textnorm.Normalize(c.Text) != "" {
		for _, a := range accepted {
			if textnorm.Equivalent(c.Text, a) {
				return s.correctGuess(p, env)
			}
		}
	}
	return s.incorrectGuess(p, c.Text, accepted), nil
}

func (s *State) correctGuess(p Player, env Env) ([]Event, error) {
	r := s.Round
	elapsed := max(env.Now.Sub(r.StartedAt).Seconds(), 0)

	if p.HighestStreak == 0 || elapsed < p.FastestGuess {
		p.FastestGuess = elapsed
	}
	// Streak goes up before the multiplier is read: the first hit after a
	// reset shows streak 1 and scores at x1.
	p.Streak++
	multiplier := scoring.StreakMultiplier(p.Streak)
	bonus := scoring.TimeBonus(elapsed, float64(s.Settings.FuseSeconds))
	points := scoring.Award(scoring.BasePoints, bonus, multiplier)
	p.Score += points
	p.HighestStreak = max(p.HighestStreak, p.Streak)
	s.Players[p.ID] = p

	for id, other := range s.Players {
		if id != p.ID && other.Streak != 0 {
			other.Streak = 0
			s.Players[id] = other
		}
	}

	s.History = append(s.History, HistoryRecord{
		Seq:          r.Seq,
		Word:         r.Word.Word,
		Translations: r.Word.Translations,
		Outcome:      OutcomeGuessed,
		GuessedBy:    p.ID,
		GuesserName:  p.Name,
		Points:       points,
		TimeBonus:    bonus,
		Multiplier:   multiplier,
		Streak:       p.Streak,
		Elapsed:      elapsed,
	})
	r.CorrectWords++

	events := []Event{{
		Type:       EvtGuessCorrect,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Word:       r.Word.Word,
		Points:     points,
		TimeBonus:  bonus,
		Multiplier: multiplier,
		Streak:     p.Streak,
		Score:      p.Score,
		Elapsed:    elapsed,
	}}

	if s.reachedTarget(p) {
		return append(events, s.finish()), nil
	}
	if err := s.nextWord(env); err != nil {
		return nil, err
	}
	return append(events, Event{Type: EvtWordAdvanced, WordSeq: s.Round.Seq}), nil
}

func (s *State) incorrectGuess(p Player, raw string, accepted []string) []Event {
	before := p.Score
	p.Score = scoring.Penalize(p.Score)
	p.Streak = 0
	s.Players[p.ID] = p

	near := false
	for _, a := range accepted {
		if scoring.IsClose(raw, a) {
			near = true
			break
		}
	}
	return []Event{{
		Type:       EvtGuessIncorrect,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		PointsLost: before - p.Score,
		Score:      p.Score,
		Close:      near,
		WordSeq:    s.Round.Seq,
	}}
}

func (s *State) reachedTarget(p Player) bool {
	if s.Settings.EndMode == EndByScore {
		return p.Score >= s.Settings.Target
	}
	return s.Round.CorrectWords >= s.Settings.Target
}

func (s *State) finish() Event {
	s.Phase = PhaseEnded
	s.Round = nil
	ev := Event{Type: EvtGameEnded}
	if w, ok := s.winner(); ok {
		s.WinnerID = w.ID
		ev.WinnerID = w.ID
		ev.WinnerName = w.Name
		ev.Score = w.Score
	}
	return ev
}

// pass is set membership: passing twice on one word changes nothing.
func (s *State) pass(c Pass, env Env) ([]Event, error) {
	if err := s.requirePlaying(); err != nil {
		return nil, err
	}
	p, err := s.member(c.PlayerID)
	if err != nil {
		return nil, err
	}
	if c.WordSeq != 0 && c.WordSeq != s.Round.Seq {
		return nil, nil
	}
	if s.Round.Passed[p.ID] {
		return nil, nil
	}

	s.Round.Passed[p.ID] = true
	events := []Event{{
		Type:       EvtPassRecorded,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Passed:     len(s.Round.Passed),
		WordSeq:    s.Round.Seq,
	}}
	if len(s.Round.Passed) < len(s.Players) {
		return events, nil
	}

	more, err := s.advance(OutcomePassed, env)
	if err != nil {
		return nil, err
	}
	return append(events, more...), nil
}

// timeout only acts on the word it was armed for; anything else already moved
// the round on and the fire is dropped.
func (s *State) timeout(c Timeout, env Env) ([]Event, error) {
	if s.Phase == PhaseLobby {
		return nil, ErrGameNotActive
	}
	if s.Phase != PhasePlaying || s.Round == nil || c.WordSeq != s.Round.Seq {
		return nil, nil
	}
	if env.Now.Before(s.Round.Deadline.Add(-TimeoutTolerance)) {
		return nil, nil
	}
	return s.advance(OutcomeTimedOut, env)
}

// advance closes the current word without a winner and deals the next one.
// Only a timeout costs streaks.
func (s *State) advance(outcome Outcome, env Env) ([]Event, error) {
	r := s.Round
	s.History = append(s.History, HistoryRecord{
		Seq:          r.Seq,
		Word:         r.Word.Word,
		Translations: r.Word.Translations,
		Outcome:      outcome,
	})

	evType := EvtWordPassed
	if outcome == OutcomeTimedOut {
		evType = EvtWordTimedOut
		for id, p := range s.Players {
			p.Streak = 0
			s.Players[id] = p
		}
	}

	resolved := r.Word.Word
	if err := s.nextWord(env); err != nil {
		return nil, err
	}
	return []Event{{Type: evType, Word: resolved, WordSeq: s.Round.Seq}}, nil
}
