package engine

import (
	"errors"
	"time"

	"github.com/jvlax/motord/internal/catalog"
)

var ErrLobbyNotFound = errors.New("lobby not found")
var ErrPlayerNotFound = errors.New("player not found")
var ErrNotHost = errors.New("only the host can do that")
var ErrNotAllReady = errors.New("not all players are ready")
var ErrGameNotActive = errors.New("game not active")
var ErrGameAlreadyEnded = errors.New("game already ended")
var ErrGameInProgress = errors.New("game already in progress")
var ErrNameTaken = errors.New("player name already taken")
var ErrLobbySuperseded = errors.New("lobby replaced by a new game")
var ErrInvalidCommand = errors.New("invalid command")
var ErrUnsupportedCommand = errors.New("unsupported command")

// ErrCatalogExhausted is a configuration fault, surfaced from the catalog.
var ErrCatalogExhausted = catalog.ErrCatalogExhausted

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

// EndMode decides what Settings.Target counts.
type EndMode string

const (
	EndByWords EndMode = "words"
	EndByScore EndMode = "score"
)

type Settings struct {
	Difficulty  string
	Target      int
	FuseSeconds int
	EndMode     EndMode
}

type Player struct {
	ID            string
	Name          string
	Language      string
	IsHost        bool
	Ready         bool
	JoinedAt      time.Time
	Score         int
	Streak        int
	HighestStreak int
	FastestGuess  float64 // seconds, meaningful once HighestStreak > 0
}

type Round struct {
	Word         catalog.WordEntry
	Seq          int
	StartedAt    time.Time
	Deadline     time.Time
	Passed       map[string]bool
	CorrectWords int
}

type Outcome string

const (
	OutcomeGuessed  Outcome = "guessed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomePassed   Outcome = "passed"
)

// HistoryRecord is written once per finished word and never touched again.
type HistoryRecord struct {
	Seq          int
	Word         string
	Translations map[string]string
	Outcome      Outcome
	GuessedBy    string
	GuesserName  string
	Points       int
	TimeBonus    int
	Multiplier   int
	Streak       int
	Elapsed      float64
}

type State struct {
	ID           string
	HostID       string
	Players      map[string]Player
	Order        []string // player ids, earliest joined first
	Settings     Settings
	Phase        Phase
	Round        *Round
	History      []HistoryRecord
	WinnerID     string
	SupersededBy string
}

// WordPicker is the slice of the catalog the engine needs.
type WordPicker interface {
	Pick(exclude string, difficulty string) (catalog.WordEntry, error)
	Counterpart(lang string) (string, bool)
}

// Env carries what a command needs from outside the state.
type Env struct {
	Words WordPicker
	Now   time.Time
}

type Command interface{ isCommand() }

type Join struct {
	PlayerID string
	Name     string
	Language string
}

type Leave struct{ PlayerID string }

type SetReady struct {
	PlayerID string
	Ready    bool
}

type ToggleReady struct{ PlayerID string }

type SetDifficulty struct {
	PlayerID   string
	Difficulty string
}

type SetTarget struct {
	PlayerID string
	Target   int
}

type Start struct{ PlayerID string }

// Guess.WordSeq is optional; when set, a guess aimed at an older word is dropped.
type Guess struct {
	PlayerID string
	Text     string
	WordSeq  int
}

type Pass struct {
	PlayerID string
	WordSeq  int
}

// Timeout names the word whose fuse burnt out.
type Timeout struct{ WordSeq int }

type Chat struct {
	PlayerID string
	Text     string
}

func (Join) isCommand()          {}
func (Leave) isCommand()         {}
func (SetReady) isCommand()      {}
func (ToggleReady) isCommand()   {}
func (SetDifficulty) isCommand() {}
func (SetTarget) isCommand()     {}
func (Start) isCommand()         {}
func (Guess) isCommand()         {}
func (Pass) isCommand()          {}
func (Timeout) isCommand()       {}
func (Chat) isCommand()          {}

type EventType string

const (
	EvtPlayerJoined      EventType = "PlayerJoined"
	EvtPlayerLeft        EventType = "PlayerLeft"
	EvtHostChanged       EventType = "HostChanged"
	EvtReadyChanged      EventType = "ReadyChanged"
	EvtDifficultyChanged EventType = "DifficultyChanged"
	EvtTargetChanged     EventType = "TargetChanged"
	EvtGameStarted       EventType = "GameStarted"
	EvtGuessCorrect      EventType = "GuessCorrect"
	EvtGuessIncorrect    EventType = "GuessIncorrect"
	EvtPassRecorded      EventType = "PassRecorded"
	EvtWordAdvanced      EventType = "WordAdvanced"
	EvtWordPassed        EventType = "WordPassed"
	EvtWordTimedOut      EventType = "WordTimedOut"
	EvtGameEnded         EventType = "GameEnded"
	EvtChatPosted        EventType = "ChatPosted"
	EvtLobbySuperseded   EventType = "LobbySuperseded"
)

type Event struct {
	Type       EventType
	PlayerID   string
	PlayerName string
	Ready      bool
	Difficulty string
	Target     int
	WordSeq    int    // seq of the word now on screen
	Word       string // word that was just resolved
	Points     int
	PointsLost int
	TimeBonus  int
	Multiplier int
	Streak     int
	Score      int
	Elapsed    float64
	Close      bool
	Passed     int
	WinnerID   string
	WinnerName string
	Text       string
	LobbyID    string
}

/*
	Join          -> PlayerJoined (-> HostChanged when joining an empty lobby)
	Leave         -> PlayerLeft (-> HostChanged) (-> WordPassed when the rest had all passed)
	SetReady      -> ReadyChanged, nothing for the host
	Start         -> GameStarted
	Guess         -> GuessCorrect -> WordAdvanced | GameEnded
	              -> GuessIncorrect
	Pass          -> PassRecorded (-> WordPassed once everyone passed)
	Timeout       -> WordTimedOut, nothing if the word already moved on
*/

// Apply runs cmd against a copy of s. On error the original state comes back
// untouched; a nil event slice with a nil error means the command was a no-op.
func Apply(s State, cmd Command, env Env) ([]Event, State, error) {
	if s.SupersededBy != "" {
		return nil, s, ErrLobbySuperseded
	}

	next := s.clone()
	var (
		events []Event
		err    error
	)

	switch c := cmd.(type) {
	case Join:
		events, err = next.join(c, env)
	case Leave:
		events, err = next.leave(c, env)
	case SetReady:
		events, err = next.setReady(c.PlayerID, func(bool) bool { return c.Ready })
	case ToggleReady:
		events, err = next.setReady(c.PlayerID, func(cur bool) bool { return !cur })
	case SetDifficulty:
		events, err = next.setDifficulty(c)
	case SetTarget:
		events, err = next.setTarget(c)
	case Start:
		events, err = next.start(c, env)
	case Guess:
		events, err = next.guess(c, env)
	case Pass:
		events, err = next.pass(c, env)
	case Timeout:
		events, err = next.timeout(c, env)
	case Chat:
		events, err = next.chat(c)
	default:
		return nil, s, ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, next, nil
}

// Fork builds the state of a fresh lobby for "play again": same settings and
// members, stats wiped, everyone but the host un-readied.
func Fork(s State, playerID, newID string) (State, error) {
	if s.SupersededBy != "" {
		return s, ErrLobbySuperseded
	}
	if err := s.requireHost(playerID); err != nil {
		return s, err
	}

	fresh := NewState(newID, s.Settings)
	fresh.HostID = s.HostID
	for _, id := range s.Order {
		p := s.Players[id]
		fresh.Players[id] = Player{
			ID:       p.ID,
			Name:     p.Name,
			Language: p.Language,
			IsHost:   p.IsHost,
			Ready:    p.IsHost,
			JoinedAt: p.JoinedAt,
		}
		fresh.Order = append(fresh.Order, id)
	}
	return fresh, nil
}

// Supersede empties a lobby whose players moved on to newID.
func Supersede(s State, newID string) ([]Event, State) {
	next := NewState(s.ID, s.Settings)
	next.SupersededBy = newID
	return []Event{{Type: EvtLobbySuperseded, LobbyID: newID}}, next
}
