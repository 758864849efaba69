package catalog

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type wordRow struct {
	ID           uint `gorm:"primaryKey"`
	Word         string
	Difficulty   int
	Translations []translationRow `gorm:"foreignKey:WordID"`
}

func (wordRow) TableName() string { return "words" }

type translationRow struct {
	ID        uint `gorm:"primaryKey"`
	WordID    uint
	Language  string
	Text      string
	IsPrimary bool
}

func (translationRow) TableName() string { return "word_translations" }

// LoadPostgres reads the whole catalog from the words/word_translations tables.
// The connection is only held for the duration of the load.
func LoadPostgres(ctx context.Context, dsn string) ([]WordEntry, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog db handle: %w", err)
	}
	defer sqlDB.Close()

	var rows []wordRow
	if err := db.WithContext(ctx).Preload("Translations").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	return entriesFromRows(rows), nil
}

// entriesFromRows folds translation rows into entries. The first primary row
// per language wins; every other row becomes an alternate.
func entriesFromRows(rows []wordRow) []WordEntry {
	entries := make([]WordEntry, 0, len(rows))
	for _, r := range rows {
		word := strings.ToLower(strings.TrimSpace(r.Word))
		if word == "" {
			continue
		}
		e := WordEntry{Word: word, Difficulty: r.Difficulty, Translations: map[string]string{}}

		var rest []translationRow
		for _, t := range r.Translations {
			if _, seen := e.Translations[t.Language]; t.IsPrimary && !seen {
				e.Translations[t.Language] = strings.ToLower(strings.TrimSpace(t.Text))
				continue
			}
			rest = append(rest, t)
		}
		for _, t := range rest {
			text := strings.ToLower(strings.TrimSpace(t.Text))
			if _, ok := e.Translations[t.Language]; !ok {
				e.Translations[t.Language] = text
				continue
			}
			if e.Alternates == nil {
				e.Alternates = map[string][]string{}
			}
			e.Alternates[t.Language] = append(e.Alternates[t.Language], text)
		}
		entries = append(entries, e)
	}
	return entries
}
