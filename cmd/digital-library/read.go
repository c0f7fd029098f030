package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/cache"
	"github.com/austinmjames/digital-library-core-sub002/internal/config"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
	"github.com/austinmjames/digital-library-core-sub002/internal/settings"
	"github.com/austinmjames/digital-library-core-sub002/internal/store"
	"github.com/austinmjames/digital-library-core-sub002/internal/ui"
	"github.com/austinmjames/digital-library-core-sub002/internal/window"
)

// ReadCmd opens the scrolling reader
type ReadCmd struct {
	Ref         string `arg:"" optional:"" help:"Where to start, e.g. \"Genesis 1\" (default: last position)"`
	Translation string `name:"translation" short:"t" help:"Translation to read"`
}

func (r *ReadCmd) Run(cfg *config.Config) error {
	log, closeLog, err := readerLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(logger.ContextWithLogger(context.Background(), log))
	defer cancel()

	fetcher, closeFetcher, err := openFetcher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFetcher()

	path := cfg.Settings.Path
	if path == "" {
		if path, err = settings.DefaultPath(); err != nil {
			return err
		}
	}
	prefs := settings.NewDebounced(settings.NewFileStore(path), log)
	saved, err := prefs.Load()
	if err != nil {
		log.Warn("Ignoring unreadable settings", "path", path, "error", err)
	}

	translation := firstNonEmpty(r.Translation, saved.Translation, cfg.Reader.Translation)
	start := firstNonEmpty(r.Ref, saved.LastRef, cfg.Reader.StartRef)
	initial, err := fetchStart(ctx, fetcher, start, translation)
	if err != nil {
		return err
	}

	m, err := ui.New(ui.Props{
		Initial:           initial,
		ActiveTranslation: translation,
		OnChapterVisible: func(book, chapter string) {
			log.Debug("Chapter visible", "book", book, "chapter", chapter)
		},
	}, ui.Deps{
		Fetcher:        fetcher,
		Policy:         window.AllowCollections(cfg.Reader.CrossBook...),
		Settings:       saved,
		Store:          prefs,
		Log:            log,
		SentinelMargin: cfg.Reader.SentinelMargin,
		Context:        ctx,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, runErr := p.Run()
	if err := prefs.Flush(); err != nil {
		log.Error("Failed to save settings", "path", path, "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run reader: %w", runErr)
	}
	return nil
}

// readerLogger writes to log.file, or nowhere: the reader owns the terminal.
func readerLogger(c config.LogConfig) (logger.Logger, func(), error) {
	cfg := &logger.Config{
		Level:  logger.Level(c.Level),
		Format: logger.Format(c.Format),
		Output: io.Discard,
	}
	closeFn := func() {}
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cfg.Output = f
		closeFn = func() { f.Close() }
	}
	return logger.NewLogger(cfg), closeFn, nil
}

// openFetcher builds the configured source behind the chapter cache.
func openFetcher(ctx context.Context, cfg *config.Config, log logger.Logger) (api.Fetcher, func(), error) {
	var (
		next    api.Fetcher
		closeFn = func() {}
	)
	switch cfg.Source {
	case config.SourceHTTP:
		next = api.NewClient(cfg.HTTP.BaseURL, cfg.HTTP.Timeout, api.WithLogger(log))
	default:
		s, err := store.Open(ctx, cfg.Store.Path,
			store.WithDefaultTranslation(cfg.Store.DefaultTranslation),
			store.WithLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		next = s
		closeFn = func() { s.Close() }
	}

	if cfg.Cache.Size == 0 {
		return next, closeFn, nil
	}
	cached, err := cache.New(next, cfg.Cache.Size, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cached, closeFn, nil
}

// fetchStart resolves a typed or stored reference to its chapter.
func fetchStart(ctx context.Context, f api.Fetcher, start, translation string) (*api.Chapter, error) {
	locator := ref.Normalize(start)
	if q, err := ref.ParseQuery(start); err == nil && q.Section != "" {
		locator = q.ChapterRef()
	} else {
		locator = ref.Parse(locator).Chapter()
	}

	ch, err := f.FetchChapter(ctx, locator, translation)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref.ToDisplay(locator), err)
	}
	if ch == nil {
		return nil, fmt.Errorf("load %s: %w", ref.ToDisplay(locator), api.ErrNoContent)
	}
	return ch, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
