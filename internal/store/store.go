// Package store is a SQLite backed chapter fetch service.
//
// Books are ordered within their collection by position and declare the
// addressing grammar of their sections. Chapters are assembled on demand and
// carry next/prev locators computed by stepping the section with the ref
// package, continuing into the neighbouring book of the same collection at a
// book edge.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS books (
	name           TEXT PRIMARY KEY,
	collection     TEXT NOT NULL,
	structure_type TEXT NOT NULL,
	position       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sections (
	book     TEXT NOT NULL REFERENCES books(name),
	section  TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (book, section)
);
CREATE TABLE IF NOT EXISTS verses (
	book        TEXT NOT NULL,
	section     TEXT NOT NULL,
	translation TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	source      TEXT NOT NULL,
	target      TEXT NOT NULL,
	PRIMARY KEY (book, section, translation, idx)
);
CREATE INDEX IF NOT EXISTS books_collection ON books(collection, position);
`

type Store struct {
	db                 *sql.DB
	defaultTranslation string
	log                logger.Logger
}

type Option func(*Store)

// WithDefaultTranslation sets the translation served when a chapter has no
// rows for the requested one.
func WithDefaultTranslation(id string) Option {
	return func(s *Store) { s.defaultTranslation = id }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (and migrates) the database at dsn. Use ":memory:" for a
// throwaway store.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers, which SQLite does anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type book struct {
	name          string
	collection    string
	structureType ref.StructureType
	position      int
}

func (s *Store) book(ctx context.Context, name string) (*book, error) {
	var b book
	var st string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, collection, structure_type, position FROM books WHERE name = ?`, name,
	).Scan(&b.name, &b.collection, &st, &b.position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", name, err)
	}
	b.structureType = ref.ParseStructureType(st)
	return &b, nil
}

func (s *Store) hasSection(ctx context.Context, bookName, section string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sections WHERE book = ? AND section = ?`, bookName, section,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up %s %s: %w", bookName, section, err)
	}
	return n > 0, nil
}

// FetchChapter implements api.Fetcher. The segment part of the locator, if
// any, is ignored: a chapter is always returned whole.
func (s *Store) FetchChapter(ctx context.Context, locator, translation string) (*api.Chapter, error) {
	parts := ref.Parse(locator)
	if parts.Book == "" || parts.Section == "" {
		return nil, nil
	}

	b, err := s.book(ctx, parts.Book)
	if err != nil || b == nil {
		return nil, err
	}
	if !ref.ValidSection(parts.Section, b.structureType) {
		s.log.Debug("Section does not match book grammar", "ref", locator, "structure", b.structureType)
		return nil, nil
	}
	ok, err := s.hasSection(ctx, b.name, parts.Section)
	if err != nil || !ok {
		return nil, err
	}

	verses, used, err := s.verses(ctx, b.name, parts.Section, translation)
	if err != nil {
		return nil, err
	}

	next, err := s.nextRef(ctx, b, parts.Section)
	if err != nil {
		return nil, err
	}
	prev, err := s.prevRef(ctx, b, parts.Section)
	if err != nil {
		return nil, err
	}

	chapterRef := ref.Build(b.name, parts.Section, "")
	return &api.Chapter{
		ID:                chapterRef + "@" + used,
		Ref:               chapterRef,
		Book:              b.name,
		ChapterNumber:     parts.Section,
		Collection:        b.collection,
		StructureType:     b.structureType,
		Verses:            verses,
		NextRef:           next,
		PrevRef:           prev,
		ActiveTranslation: used,
	}, nil
}

// verses loads the rows for translation, falling back to the default
// translation. It returns the translation actually served.
func (s *Store) verses(ctx context.Context, bookName, section, translation string) ([]api.Verse, string, error) {
	candidates := []string{translation}
	if s.defaultTranslation != "" && s.defaultTranslation != translation {
		candidates = append(candidates, s.defaultTranslation)
	}

	for _, tr := range candidates {
		if tr == "" {
			continue
		}
		verses, err := s.queryVerses(ctx, bookName, section, tr)
		if err != nil {
			return nil, "", err
		}
		if len(verses) > 0 {
			return verses, tr, nil
		}
	}
	return nil, translation, nil
}

func (s *Store) queryVerses(ctx context.Context, bookName, section, translation string) ([]api.Verse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, source, target FROM verses
		 WHERE book = ? AND section = ? AND translation = ?
		 ORDER BY idx`,
		bookName, section, translation)
	if err != nil {
		return nil, fmt.Errorf("query verses %s %s: %w", bookName, section, err)
	}
	defer rows.Close()

	var out []api.Verse
	for rows.Next() {
		var idx int
		var src, tgt string
		if err := rows.Scan(&idx, &src, &tgt); err != nil {
			return nil, err
		}
		source, err := api.DecodeContent([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("decode %s %s:%d source: %w", bookName, section, idx, err)
		}
		target, err := api.DecodeContent([]byte(tgt))
		if err != nil {
			return nil, fmt.Errorf("decode %s %s:%d target: %w", bookName, section, idx, err)
		}
		out = append(out, api.Verse{
			ID:     fmt.Sprintf("%s.%s.%d", bookName, section, idx),
			Index:  idx,
			Source: source,
			Target: target,
		})
	}
	return out, rows.Err()
}

func (s *Store) nextRef(ctx context.Context, b *book, section string) (string, error) {
	if next, ok := ref.NextSection(section, b.structureType); ok {
		exists, err := s.hasSection(ctx, b.name, next)
		if err != nil {
			return "", err
		}
		if exists {
			return ref.Build(b.name, next, ""), nil
		}
	}
	return s.edgeOfNeighbour(ctx, b, `
		SELECT b.name, s.section FROM books b JOIN sections s ON s.book = b.name
		WHERE b.collection = ? AND b.position > ?
		ORDER BY b.position ASC, s.position ASC LIMIT 1`)
}

func (s *Store) prevRef(ctx context.Context, b *book, section string) (string, error) {
	if prev, ok := ref.PrevSection(section, b.structureType); ok {
		exists, err := s.hasSection(ctx, b.name, prev)
		if err != nil {
			return "", err
		}
		if exists {
			return ref.Build(b.name, prev, ""), nil
		}
	}
	return s.edgeOfNeighbour(ctx, b, `
		SELECT b.name, s.section FROM books b JOIN sections s ON s.book = b.name
		WHERE b.collection = ? AND b.position < ?
		ORDER BY b.position DESC, s.position DESC LIMIT 1`)
}

// edgeOfNeighbour returns the first (or last) section of the adjacent book,
// or "" at the edge of the collection.
func (s *Store) edgeOfNeighbour(ctx context.Context, b *book, query string) (string, error) {
	var name, section string
	err := s.db.QueryRowContext(ctx, query, b.collection, b.position).Scan(&name, &section)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("neighbour of %s: %w", b.name, err)
	}
	return ref.Build(name, section, ""), nil
}

// Translations implements api.TranslationLister.
func (s *Store) Translations(ctx context.Context) ([]api.Translation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, language FROM translations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list translations: %w", err)
	}
	defer rows.Close()

	var out []api.Translation
	for rows.Next() {
		var t api.Translation
		if err := rows.Scan(&t.ID, &t.Name, &t.Language); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
