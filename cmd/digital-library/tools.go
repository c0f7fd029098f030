package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/austinmjames/digital-library-core-sub002/internal/config"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
	"github.com/austinmjames/digital-library-core-sub002/internal/store"
)

// ImportCmd loads a JSON corpus into the SQLite store
type ImportCmd struct {
	File string `arg:"" type:"existingfile" help:"Corpus file (JSON)"`
}

func (c *ImportCmd) Run(cfg *config.Config) error {
	log := logger.NewLogger(&logger.Config{
		Level:  logger.Level(cfg.Log.Level),
		Format: logger.Format(cfg.Log.Format),
	})
	ctx := context.Background()

	s, err := store.Open(ctx, cfg.Store.Path, store.WithLogger(log))
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	stats, err := s.Import(ctx, f)
	if err != nil {
		return err
	}
	log.Info("Imported corpus", "file", c.File, "store", cfg.Store.Path,
		"books", stats.Books, "sections", stats.Sections, "verses", stats.Verses)
	return nil
}

// RefCmd parses a reference the way the reader's go-to prompt does
type RefCmd struct {
	Query []string `arg:"" required:"" help:"Reference, e.g. Genesis 1:3 or Berakhot 2a"`
	Daf   bool     `name:"daf" help:"Step sections as folios (2a, 2b, 3a)"`
}

func (c *RefCmd) Run() error {
	return c.print(os.Stdout)
}

func (c *RefCmd) print(w io.Writer) error {
	q, err := ref.ParseQuery(strings.Join(c.Query, " "))
	if err != nil {
		return err
	}

	st := ref.ChapterVerse
	if c.Daf || ref.IsDaf(q.Section) {
		st = ref.DafLine
	}

	fmt.Fprintf(w, "ref:     %s\n", q.Ref())
	fmt.Fprintf(w, "display: %s\n", ref.ToDisplay(q.Ref()))
	if q.Section == "" {
		return nil
	}
	if !ref.ValidSection(q.Section, st) {
		return fmt.Errorf("section %q is not valid for %s", q.Section, st)
	}
	if prev, ok := ref.PrevSection(q.Section, st); ok {
		fmt.Fprintf(w, "prev:    %s\n", ref.Build(q.Book, prev, ""))
	}
	if next, ok := ref.NextSection(q.Section, st); ok {
		fmt.Fprintf(w, "next:    %s\n", ref.Build(q.Book, next, ""))
	}
	return nil
}
