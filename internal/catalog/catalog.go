// Package catalog is the read-only word dictionary rounds draw from.
package catalog

import (
	"errors"
	"math/rand"
	"strings"
)

var ErrCatalogExhausted = errors.New("word catalog is empty")

// WordEntry is one immutable catalog record. Translations and Alternates are
// keyed by language code.
type WordEntry struct {
	Word         string              `json:"word"`
	Difficulty   int                 `json:"difficulty"`
	Translations map[string]string   `json:"translations"`
	Alternates   map[string][]string `json:"alternates,omitempty"`
}

// Accepted returns the primary translation followed by every alternate for lang.
func (w WordEntry) Accepted(lang string) []string {
	out := make([]string, 0, 1+len(w.Alternates[lang]))
	if t := w.Translations[lang]; t != "" {
		out = append(out, t)
	}
	return append(out, w.Alternates[lang]...)
}

// Catalog is safe for concurrent use: it is never mutated after New.
type Catalog struct {
	entries   []WordEntry
	languages [2]string
	intn      func(n int) int
}

type Option func(*Catalog)

// WithRand swaps the random source, mostly for tests.
func WithRand(intn func(n int) int) Option {
	return func(c *Catalog) { c.intn = intn }
}

// New builds a catalog over entries for a two-language pair, e.g. {"fr", "sv"}.
func New(entries []WordEntry, languages [2]string, opts ...Option) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrCatalogExhausted
	}

	c := &Catalog{
		entries:   make([]WordEntry, len(entries)),
		languages: languages,
		intn:      rand.Intn,
	}
	for i, e := range entries {
		e.Word = strings.ToLower(strings.TrimSpace(e.Word))
		c.entries[i] = e
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) Languages() [2]string { return c.languages }

// Counterpart is the language a player speaking lang has to answer in.
func (c *Catalog) Counterpart(lang string) (string, bool) {
	switch lang {
	case c.languages[0]:
		return c.languages[1], true
	case c.languages[1]:
		return c.languages[0], true
	default:
		return "", false
	}
}

// Pick selects a random entry in the band for difficulty that differs from
// exclude. With nothing in band it falls back to the whole catalog; if the
// excluded word is the only entry left it is handed out again.
func (c *Catalog) Pick(exclude string, difficulty string) (WordEntry, error) {
	if len(c.entries) == 0 {
		return WordEntry{}, ErrCatalogExhausted
	}

	band := BandFor(difficulty)
	candidates := c.filter(exclude, band.Contains)
	if len(candidates) == 0 {
		candidates = c.filter(exclude, func(int) bool { return true })
	}
	if len(candidates) == 0 {
		return c.entries[0], nil
	}
	return candidates[c.intn(len(candidates))], nil
}

func (c *Catalog) filter(exclude string, keep func(tier int) bool) []WordEntry {
	var out []WordEntry
	for _, e := range c.entries {
		if strings.EqualFold(e.Word, exclude) || !keep(e.Difficulty) {
			continue
		}
		out = append(out, e)
	}
	return out
}
