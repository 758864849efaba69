// Package scoring holds the pure point calculations for correct and incorrect
// guesses.
package scoring

import (
	"math"

	"github.com/agnivade/levenshtein"

	"github.com/jvlax/motord/internal/textnorm"
)

const (
	BasePoints       = 100
	IncorrectPenalty = 10
	MaxMultiplier    = 10

	maxBonus = 100
	minBonus = 10

	// CloseDistance is the largest edit distance still reported as a near miss.
	CloseDistance = 2
)

// TimeBonus maps seconds elapsed on a word to bonus points: 100 within the
// first second, falling linearly to 10 one second before the fuse burns out.
func TimeBonus(elapsed, fuse float64) int {
	if elapsed <= 1 {
		return maxBonus
	}
	if elapsed >= fuse-1 {
		return minBonus
	}
	bonus := int(math.Floor(maxBonus - elapsed*90/fuse))
	return min(max(bonus, minBonus), maxBonus)
}

// StreakMultiplier only kicks in from the second consecutive correct guess.
func StreakMultiplier(streak int) int {
	if streak < 2 {
		return 1
	}
	return min(streak, MaxMultiplier)
}

func Award(base, bonus, multiplier int) int {
	return (base + bonus) * multiplier
}

// Penalize subtracts the incorrect-guess penalty, never going below zero.
func Penalize(score int) int {
	return max(0, score-IncorrectPenalty)
}

// Closeness returns the edit distance between the normalized guess and answer.
func Closeness(guess, answer string) int {
	return levenshtein.ComputeDistance(textnorm.Normalize(guess), textnorm.Normalize(answer))
}

// IsClose reports a near miss: wrong, but within CloseDistance edits.
func IsClose(guess, answer string) bool {
	d := Closeness(guess, answer)
	return d > 0 && d <= CloseDistance
}
