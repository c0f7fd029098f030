// Package cache keeps recently fetched chapters in memory in front of a
// slower fetch service.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
)

const DefaultSize = 256

// Fetcher is an api.Fetcher that remembers chapters by (translation, ref)
// and collapses concurrent identical requests into one upstream call.
// Empty results and errors are never cached.
type Fetcher struct {
	next  api.Fetcher
	lru   *lru.Cache[string, *api.Chapter]
	group singleflight.Group
	log   logger.Logger
}

// New wraps next with a cache holding up to size chapters.
func New(next api.Fetcher, size int, log logger.Logger) (*Fetcher, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, *api.Chapter](size)
	if err != nil {
		return nil, fmt.Errorf("create chapter cache: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Fetcher{next: next, lru: c, log: log}, nil
}

func key(locator, translation string) string {
	return translation + "\x00" + locator
}

func (f *Fetcher) FetchChapter(ctx context.Context, locator, translation string) (*api.Chapter, error) {
	k := key(locator, translation)
	if ch, ok := f.lru.Get(k); ok {
		return ch, nil
	}

	v, err, shared := f.group.Do(k, func() (any, error) {
		ch, err := f.next.FetchChapter(ctx, locator, translation)
		if err != nil || ch == nil {
			return ch, err
		}
		f.lru.Add(k, ch)
		return ch, nil
	})
	if shared {
		f.log.Debug("Shared in-flight chapter fetch", "ref", locator, "translation", translation)
	}
	if err != nil {
		return nil, err
	}
	ch, _ := v.(*api.Chapter)
	return ch, nil
}

// IsCached reports whether the chapter is held in memory.
func (f *Fetcher) IsCached(locator, translation string) bool {
	return f.lru.Contains(key(locator, translation))
}

// Len returns the number of cached chapters.
func (f *Fetcher) Len() int {
	return f.lru.Len()
}

// Purge drops every cached chapter.
func (f *Fetcher) Purge() {
	f.lru.Purge()
}

// Translations forwards to the wrapped fetcher when it can list translations.
func (f *Fetcher) Translations(ctx context.Context) ([]api.Translation, error) {
	lister, ok := f.next.(api.TranslationLister)
	if !ok {
		return nil, nil
	}
	return lister.Translations(ctx)
}
