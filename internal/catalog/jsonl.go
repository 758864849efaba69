package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	translationPrefix = "translation_"
	defaultTier       = 2
	maxLineBytes      = 1 << 20
)

type jsonlRecord struct {
	Word       string                       `json:"word"`
	Difficulty *float64                     `json:"difficulty"`
	Alternates map[string][]json.RawMessage `json:"alternates"`
}

// LoadJSONL reads the curated word list: one JSON object per line with
// "word", "difficulty", "translation_<lang>" keys and optional
// "alternates": {"<lang>": [{"translation_<lang>": "..."}]}.
// Header, blank and malformed lines are skipped.
func LoadJSONL(r io.Reader) ([]WordEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var entries []WordEntry
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, ok := parseLine([]byte(line))
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return entries, nil
}

// LoadJSONLFile opens path and hands it to LoadJSONL.
func LoadJSONLFile(path string) ([]WordEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return LoadJSONL(f)
}

func parseLine(line []byte) (WordEntry, bool) {
	var rec jsonlRecord
	if err := json.Unmarshal(line, &rec); err != nil || strings.TrimSpace(rec.Word) == "" {
		return WordEntry{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return WordEntry{}, false
	}

	e := WordEntry{
		Word:         strings.ToLower(strings.TrimSpace(rec.Word)),
		Difficulty:   defaultTier,
		Translations: map[string]string{},
	}
	if rec.Difficulty != nil {
		e.Difficulty = int(*rec.Difficulty)
	}
	for k, v := range raw {
		lang, ok := strings.CutPrefix(k, translationPrefix)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			e.Translations[lang] = strings.ToLower(strings.TrimSpace(s))
		}
	}

	for lang, alts := range rec.Alternates {
		for _, alt := range alts {
			if s := alternateText(alt, lang); s != "" {
				if e.Alternates == nil {
					e.Alternates = map[string][]string{}
				}
				e.Alternates[lang] = append(e.Alternates[lang], s)
			}
		}
	}
	return e, true
}

// alternateText accepts either a bare string or an object carrying
// "translation_<lang>".
func alternateText(raw json.RawMessage, lang string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	t, _ := obj[translationPrefix+lang].(string)
	return strings.ToLower(strings.TrimSpace(t))
}
