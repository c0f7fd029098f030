// Package window manages the ordered run of chapters a reader has loaded.
//
// A Window starts with one chapter and only grows: LoadMore appends the
// chapter named by the last chapter's NextRef, LoadPrev prepends the one
// named by the first chapter's PrevRef. Each direction has its own busy
// flag, so at most one forward and one backward fetch are in flight. Fetch
// failures become state, never panics: the flag is released and the caller
// may try again.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
)

var (
	ErrNoInitialChapter = errors.New("window needs an initial chapter")
	ErrBusy             = errors.New("window is busy")
	ErrDiscontiguous    = errors.New("fetched chapter does not link to the window")
)

// Outcome reports what a load attempt did.
type Outcome int

const (
	// Grew means a chapter was added.
	Grew Outcome = iota
	// Busy means a load in the same direction is already in flight.
	Busy
	// Exhausted means there is nothing more in this direction.
	Exhausted
	// Boundary means the next chapter belongs to another book and the
	// collection does not allow crossing.
	Boundary
	// Failed means the fetch errored; the direction stays open for a retry.
	Failed
	// Stale means the window was reset or retranslated while the fetch was
	// in flight and the result was dropped.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Grew:
		return "grew"
	case Busy:
		return "busy"
	case Exhausted:
		return "exhausted"
	case Boundary:
		return "boundary"
	case Failed:
		return "failed"
	case Stale:
		return "stale"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Direction selects an end of the window.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

type Manager struct {
	fetcher api.Fetcher
	policy  CrossBookPolicy
	log     logger.Logger

	mu            sync.Mutex
	chapters      []*api.Chapter
	translation   string
	hasMore       bool
	hasPrev       bool
	loadingNext   bool
	loadingPrev   bool
	retranslating bool
	generation    uint64
	lastErr       error
}

type Option func(*Manager)

func WithPolicy(p CrossBookPolicy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTranslation sets the translation requested from the fetcher. It
// defaults to the initial chapter's active translation.
func WithTranslation(id string) Option {
	return func(m *Manager) { m.translation = id }
}

func New(initial *api.Chapter, fetcher api.Fetcher, opts ...Option) (*Manager, error) {
	if initial == nil {
		return nil, ErrNoInitialChapter
	}
	if fetcher == nil {
		return nil, errors.New("window needs a fetcher")
	}
	m := &Manager{
		fetcher:     fetcher,
		policy:      DefaultPolicy,
		log:         logger.Discard(),
		translation: initial.ActiveTranslation,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetLocked(initial)
	return m, nil
}

// Reset replaces the whole window with [initial]. Loads still in flight
// from before the reset are dropped when they land.
func (m *Manager) Reset(initial *api.Chapter) error {
	if initial == nil {
		return ErrNoInitialChapter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(initial)
	m.log.Debug("Window reset", "ref", initial.Ref)
	return nil
}

func (m *Manager) resetLocked(initial *api.Chapter) {
	m.generation++
	m.chapters = []*api.Chapter{initial}
	m.hasMore = initial.HasNext()
	m.hasPrev = initial.HasPrev()
	m.loadingNext = false
	m.loadingPrev = false
	m.retranslating = false
	m.lastErr = nil
}

// LoadMore appends the chapter after the last one.
func (m *Manager) LoadMore(ctx context.Context) Outcome {
	return m.load(ctx, Forward)
}

// LoadPrev prepends the chapter before the first one. Callers rendering the
// window should preserve the scroll anchor (see package scroll).
func (m *Manager) LoadPrev(ctx context.Context) Outcome {
	return m.load(ctx, Backward)
}

// Load grows the window in direction d.
func (m *Manager) Load(ctx context.Context, d Direction) Outcome {
	return m.load(ctx, d)
}

func (m *Manager) load(ctx context.Context, d Direction) Outcome {
	m.mu.Lock()
	if *m.busyFlag(d) || m.retranslating {
		m.mu.Unlock()
		return Busy
	}
	if !*m.gate(d) {
		m.mu.Unlock()
		return Exhausted
	}
	edge := m.edge(d)
	target := edge.NextRef
	if d == Backward {
		target = edge.PrevRef
	}
	if target == "" {
		*m.gate(d) = false
		m.mu.Unlock()
		return Exhausted
	}
	gen := m.generation
	translation := m.translation
	*m.busyFlag(d) = true
	m.mu.Unlock()

	defer m.release(d, gen)

	ch, err := m.fetcher.FetchChapter(ctx, target, translation)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		m.log.Debug("Dropping stale chapter", "ref", target, "direction", d)
		return Stale
	}
	if err != nil {
		m.lastErr = err
		m.log.Warn("Chapter fetch failed", "ref", target, "direction", d, "error", err)
		return Failed
	}
	if ch == nil {
		*m.gate(d) = false
		m.log.Debug("No chapter at locator", "ref", target, "direction", d)
		return Exhausted
	}

	edge = m.edge(d)
	if ch.Book != edge.Book && !m.policy.AllowsCrossBook(edge.Collection) {
		*m.gate(d) = false
		m.log.Info("Stopping at book boundary", "from", edge.Ref, "to", ch.Ref, "collection", edge.Collection)
		return Boundary
	}

	switch d {
	case Forward:
		if edge.NextRef != ch.Ref {
			return m.discontiguous(d, edge, ch)
		}
		m.chapters = append(m.chapters, ch)
		m.hasMore = ch.HasNext()
	case Backward:
		if ch.NextRef != edge.Ref {
			return m.discontiguous(d, edge, ch)
		}
		m.chapters = append([]*api.Chapter{ch}, m.chapters...)
		m.hasPrev = ch.HasPrev()
	}
	return Grew
}

// discontiguous closes direction d: retrying would only fetch the same
// mismatched chapter again.
func (m *Manager) discontiguous(d Direction, edge, ch *api.Chapter) Outcome {
	*m.gate(d) = false
	m.lastErr = fmt.Errorf("%w: %s next to %s", ErrDiscontiguous, ch.Ref, edge.Ref)
	m.log.Warn("Discarding discontiguous chapter", "edge", edge.Ref, "fetched", ch.Ref, "direction", d)
	return Failed
}

// release clears the busy flag unless the window was reset in the meantime,
// in which case the flag belongs to the new window.
func (m *Manager) release(d Direction, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		*m.busyFlag(d) = false
	}
}

func (m *Manager) busyFlag(d Direction) *bool {
	if d == Backward {
		return &m.loadingPrev
	}
	return &m.loadingNext
}

func (m *Manager) gate(d Direction) *bool {
	if d == Backward {
		return &m.hasPrev
	}
	return &m.hasMore
}

func (m *Manager) edge(d Direction) *api.Chapter {
	if d == Backward {
		return m.chapters[0]
	}
	return m.chapters[len(m.chapters)-1]
}

// SetTranslation refetches every chapter in the window with a new
// translation and swaps the window in one step. While it runs no loads are
// issued, and loads already in flight are dropped. On failure the window
// and translation are left as they were.
func (m *Manager) SetTranslation(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.retranslating {
		m.mu.Unlock()
		return ErrBusy
	}
	if id == m.translation {
		m.mu.Unlock()
		return nil
	}
	refs := make([]string, len(m.chapters))
	for i, ch := range m.chapters {
		refs[i] = ch.Ref
	}
	m.generation++
	gen := m.generation
	m.retranslating = true
	m.loadingNext, m.loadingPrev = false, false
	m.mu.Unlock()

	fetched := make([]*api.Chapter, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, r := range refs {
		g.Go(func() error {
			ch, err := m.fetcher.FetchChapter(gctx, r, id)
			if err != nil {
				return err
			}
			if ch == nil {
				return fmt.Errorf("%w: %s", api.ErrNoContent, r)
			}
			fetched[i] = ch
			return nil
		})
	}
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return fmt.Errorf("retranslate window: %w", context.Canceled)
	}
	m.retranslating = false
	if err != nil {
		m.lastErr = err
		m.log.Warn("Translation switch failed", "translation", id, "error", err)
		return fmt.Errorf("retranslate window: %w", err)
	}

	m.translation = id
	m.chapters = fetched
	m.hasMore = fetched[len(fetched)-1].HasNext()
	m.hasPrev = fetched[0].HasPrev()
	m.log.Info("Window retranslated", "translation", id, "chapters", len(fetched))
	return nil
}

// Chapters returns a copy of the window in canonical order.
func (m *Manager) Chapters() []*api.Chapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*api.Chapter(nil), m.chapters...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chapters)
}

func (m *Manager) First() *api.Chapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chapters[0]
}

func (m *Manager) Last() *api.Chapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chapters[len(m.chapters)-1]
}

func (m *Manager) HasMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMore
}

func (m *Manager) HasPrev() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasPrev
}

func (m *Manager) LoadingNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadingNext
}

func (m *Manager) LoadingPrev() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadingPrev
}

// Retranslating reports whether a SetTranslation call is in progress.
func (m *Manager) Retranslating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retranslating
}

func (m *Manager) Translation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.translation
}

// LastError returns the most recent fetch failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Validate checks the contiguity invariant: each chapter's NextRef names the
// chapter after it.
func (m *Manager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Contiguous(m.chapters)
}

// Contiguous reports the first adjacent pair that does not link up.
func Contiguous(chapters []*api.Chapter) error {
	if len(chapters) == 0 {
		return ErrNoInitialChapter
	}
	for i := 0; i+1 < len(chapters); i++ {
		if chapters[i].NextRef != chapters[i+1].Ref {
			return fmt.Errorf("%w: %s then %s", ErrDiscontiguous, chapters[i].Ref, chapters[i+1].Ref)
		}
	}
	return nil
}
