package catalog

import "slices"

const (
	DifficultyVeryEasy = "very easy"
	DifficultyEasy     = "easy"
	DifficultyMedium   = "medium"
	DifficultyHard     = "hard"
)

// Band is the set of tiers a difficulty setting draws from.
type Band []int

func (b Band) Contains(tier int) bool { return slices.Contains(b, tier) }

var bands = map[string]Band{
	DifficultyVeryEasy: {0},
	DifficultyEasy:     {1},
	DifficultyMedium:   {2, 3},
	DifficultyHard:     {4, 5},
}

// Unrecognized settings get everything but the very easiest tier.
var defaultBand = Band{1, 2, 3, 4, 5}

func BandFor(difficulty string) Band {
	if b, ok := bands[difficulty]; ok {
		return b
	}
	return defaultBand
}

// KnownDifficulty reports whether d has its own row in the band table.
func KnownDifficulty(d string) bool {
	_, ok := bands[d]
	return ok
}
