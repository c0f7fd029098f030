package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
)

// ErrSectionOrder reports a book whose sections do not step one to the next.
var ErrSectionOrder = errors.New("sections are not contiguous")

// Corpus is the JSON import format. Books and sections are positioned in
// the order they appear.
//
//	{"translations": [{"id": "en", "name": "English"}],
//	 "books": [{"name": "Genesis", "collection": "tanakh", "structure_type": "CHAPTER_VERSE",
//	   "sections": [{"section": "1", "translations": {"en": [{"source": "...", "target": "..."}]}}]}]}
type Corpus struct {
	Translations []api.Translation `json:"translations"`
	Books        []CorpusBook      `json:"books"`
}

type CorpusBook struct {
	Name          string            `json:"name"`
	Collection    string            `json:"collection"`
	StructureType ref.StructureType `json:"structure_type"`
	Sections      []CorpusSection   `json:"sections"`
}

type CorpusSection struct {
	Section      string                   `json:"section"`
	Translations map[string][]CorpusVerse `json:"translations"`
}

// CorpusVerse keeps content as raw JSON so either content shape is accepted.
type CorpusVerse struct {
	Source json.RawMessage `json:"source"`
	Target json.RawMessage `json:"target"`
}

// ImportStats summarizes an import.
type ImportStats struct {
	Books    int
	Sections int
	Verses   int
}

// Import reads a Corpus from r and writes it in a single transaction.
// Books that already exist are replaced in place and keep their position.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var c Corpus
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return ImportStats{}, fmt.Errorf("decode corpus: %w", err)
	}
	return s.ImportCorpus(ctx, &c)
}

func (s *Store) ImportCorpus(ctx context.Context, c *Corpus) (stats ImportStats, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range c.Translations {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO translations (id, name, language) VALUES (?, ?, ?)`,
			t.ID, t.Name, t.Language); err != nil {
			return stats, fmt.Errorf("insert translation %s: %w", t.ID, err)
		}
	}

	var next int
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM books`).Scan(&next); err != nil {
		return stats, fmt.Errorf("book position: %w", err)
	}

	for bi, b := range c.Books {
		if b.Name == "" || b.Collection == "" {
			return stats, fmt.Errorf("book %d: name and collection are required", bi)
		}
		position := next
		err = tx.QueryRowContext(ctx, `SELECT position FROM books WHERE name = ?`, b.Name).Scan(&position)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = nil
			next++
		case err != nil:
			return stats, fmt.Errorf("book position %s: %w", b.Name, err)
		}
		for _, q := range []string{
			`DELETE FROM verses WHERE book = ?`,
			`DELETE FROM sections WHERE book = ?`,
			`DELETE FROM books WHERE name = ?`,
		} {
			if _, err = tx.ExecContext(ctx, q, b.Name); err != nil {
				return stats, fmt.Errorf("clear book %s: %w", b.Name, err)
			}
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO books (name, collection, structure_type, position) VALUES (?, ?, ?, ?)`,
			b.Name, b.Collection, b.StructureType.String(), position); err != nil {
			return stats, fmt.Errorf("insert book %s: %w", b.Name, err)
		}
		stats.Books++

		for si, sec := range b.Sections {
			if !ref.ValidSection(sec.Section, b.StructureType) {
				err = fmt.Errorf("book %s: section %q does not match %s", b.Name, sec.Section, b.StructureType)
				return stats, err
			}
			if si > 0 {
				if err = checkFollows(b, b.Sections[si-1].Section, sec.Section); err != nil {
					return stats, err
				}
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO sections (book, section, position) VALUES (?, ?, ?)`,
				b.Name, sec.Section, si); err != nil {
				return stats, fmt.Errorf("insert section %s %s: %w", b.Name, sec.Section, err)
			}
			stats.Sections++

			for tr, verses := range sec.Translations {
				for vi, v := range verses {
					if err = insertVerse(ctx, tx, b.Name, sec.Section, tr, vi+1, v); err != nil {
						return stats, err
					}
					stats.Verses++
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}
	return stats, nil
}

// checkFollows requires section to be the step after prev. Chapter links are
// computed by stepping, so a gap or reordering would leave chapters that
// cannot be reached by scrolling.
func checkFollows(b CorpusBook, prev, section string) error {
	want, _ := ref.NextSection(prev, b.StructureType)
	if section == want {
		return nil
	}
	what := "skips"
	if c, ok := ref.CompareSections(section, prev, b.StructureType); ok && c <= 0 {
		what = "is out of order after"
	}
	return fmt.Errorf("book %s: section %q %s %q (want %q): %w", b.Name, section, what, prev, want, ErrSectionOrder)
}

func insertVerse(ctx context.Context, tx *sql.Tx, book, section, translation string, idx int, v CorpusVerse) error {
	src, err := normalizeContent(v.Source)
	if err != nil {
		return fmt.Errorf("%s %s:%d source: %w", book, section, idx, err)
	}
	tgt, err := normalizeContent(v.Target)
	if err != nil {
		return fmt.Errorf("%s %s:%d target: %w", book, section, idx, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO verses (book, section, translation, idx, source, target) VALUES (?, ?, ?, ?, ?, ?)`,
		book, section, translation, idx, src, tgt); err != nil {
		return fmt.Errorf("insert verse %s %s:%d: %w", book, section, idx, err)
	}
	return nil
}

// normalizeContent checks the raw value decodes and re-encodes it in the
// canonical form stored in the verses table.
func normalizeContent(raw json.RawMessage) (string, error) {
	c, err := api.DecodeContent(raw)
	if err != nil {
		return "", err
	}
	b, err := api.EncodeContent(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
