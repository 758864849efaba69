package types

import "time"

type LobbySnapshot struct {
	Code         string           `json:"code"`
	Phase        string           `json:"phase"`
	HostID       string           `json:"host_id,omitempty"`
	Settings     Settings         `json:"settings"`
	Players      []PlayerSnapshot `json:"players"`
	Round        *RoundSnapshot   `json:"round,omitempty"`
	History      []HistoryEntry   `json:"history,omitempty"`
	WinnerID     string           `json:"winner_id,omitempty"`
	SupersededBy string           `json:"superseded_by,omitempty"`
	Connections  int              `json:"connections"`
}

type Settings struct {
	Difficulty  string `json:"difficulty"`
	Target      int    `json:"target"`
	FuseSeconds int    `json:"fuse_seconds"`
	EndMode     string `json:"end_mode"`
}

type PlayerSnapshot struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Language      string  `json:"language"`
	IsHost        bool    `json:"is_host"`
	Ready         bool    `json:"ready"`
	Score         int     `json:"score"`
	Streak        int     `json:"streak"`
	HighestStreak int     `json:"highest_streak"`
	FastestGuess  float64 `json:"fastest_guess,omitempty"`
	Passed        bool    `json:"passed,omitempty"`
}

// RoundSnapshot shows the current word; each player reads the translation in
// their own language and answers in the other one.
type RoundSnapshot struct {
	Seq          int               `json:"seq"`
	Word         string            `json:"word"`
	Translations map[string]string `json:"translations"`
	StartedAt    time.Time         `json:"started_at"`
	Deadline     time.Time         `json:"deadline"`
	RemainingMS  int64             `json:"remaining_ms"`
	Passed       int               `json:"passed"`
	CorrectWords int               `json:"correct_words"`
}

type HistoryEntry struct {
	Seq          int               `json:"seq"`
	Word         string            `json:"word"`
	Translations map[string]string `json:"translations"`
	Outcome      string            `json:"outcome"`
	GuessedBy    string            `json:"guessed_by,omitempty"`
	GuesserName  string            `json:"guesser_name,omitempty"`
	Points       int               `json:"points,omitempty"`
	TimeBonus    int               `json:"time_bonus,omitempty"`
	Multiplier   int               `json:"multiplier,omitempty"`
	Streak       int               `json:"streak,omitempty"`
	Elapsed      float64           `json:"elapsed,omitempty"`
}
