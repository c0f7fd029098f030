package window

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinmjames/digital-library-core-sub002/internal/api"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

// fakeFetcher serves chapters from a map. When gate is set each call blocks
// until a value is sent on it.
type fakeFetcher struct {
	mu       sync.Mutex
	chapters map[string]*api.Chapter
	fail     map[string]error
	gate     chan struct{}
	calls    atomic.Int32
}

func newFake(chs ...*api.Chapter) *fakeFetcher {
	f := &fakeFetcher{chapters: map[string]*api.Chapter{}, fail: map[string]error{}}
	for _, ch := range chs {
		f.chapters[ch.Ref] = ch
	}
	return f
}

func (f *fakeFetcher) FetchChapter(ctx context.Context, locator, translation string) (*api.Chapter, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[locator]; err != nil {
		return nil, err
	}
	ch, ok := f.chapters[locator]
	if !ok {
		return nil, nil
	}
	if translation != "" && translation != ch.ActiveTranslation {
		cp := *ch
		cp.ActiveTranslation = translation
		return &cp, nil
	}
	return ch, nil
}

func chapter(book, section, prev, next, collection string) *api.Chapter {
	return &api.Chapter{
		Ref:               book + "." + section,
		Book:              book,
		ChapterNumber:     section,
		Collection:        collection,
		PrevRef:           prev,
		NextRef:           next,
		ActiveTranslation: "en",
	}
}

func genesis() []*api.Chapter {
	return []*api.Chapter{
		chapter("Genesis", "1", "", "Genesis.2", "tanakh"),
		chapter("Genesis", "2", "Genesis.1", "Genesis.3", "tanakh"),
		chapter("Genesis", "3", "Genesis.2", "", "tanakh"),
	}
}

func refs(chs []*api.Chapter) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = ch.Ref
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("Should require an initial chapter", func(t *testing.T) {
		_, err := New(nil, newFake())
		assert.ErrorIs(t, err, ErrNoInitialChapter)
	})

	t.Run("Should take gates from the initial chapter", func(t *testing.T) {
		m, err := New(genesis()[1], newFake())
		require.NoError(t, err)
		assert.True(t, m.HasMore())
		assert.True(t, m.HasPrev())
		assert.Equal(t, "en", m.Translation())
		assert.Equal(t, 1, m.Len())
	})
}

func TestManagerLoadMore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should append the next chapter", func(t *testing.T) {
		initial := &api.Chapter{Ref: "Genesis.1", Book: "Genesis", NextRef: "Genesis.2", Collection: "tanakh"}
		next := &api.Chapter{Ref: "Genesis.2", Book: "Genesis", NextRef: "Genesis.3", PrevRef: "Genesis.1", Collection: "tanakh"}
		m, err := New(initial, newFake(next))
		require.NoError(t, err)

		assert.Equal(t, Grew, m.LoadMore(ctx))
		assert.Equal(t, []string{"Genesis.1", "Genesis.2"}, refs(m.Chapters()))
		assert.True(t, m.HasMore())
		assert.False(t, m.HasPrev())
		assert.False(t, m.LoadingNext())
	})

	t.Run("Should stop when the fetch service has nothing", func(t *testing.T) {
		chs := genesis()
		m, err := New(chs[0], newFake(chs[0]))
		require.NoError(t, err)

		assert.Equal(t, Exhausted, m.LoadMore(ctx))
		assert.False(t, m.HasMore())
		assert.Equal(t, 1, m.Len())
		assert.Equal(t, Exhausted, m.LoadMore(ctx))
	})

	t.Run("Should stop at the corpus end", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		m, err := New(chs[1], f)
		require.NoError(t, err)

		assert.Equal(t, Grew, m.LoadMore(ctx))
		assert.False(t, m.HasMore())
		assert.Equal(t, Exhausted, m.LoadMore(ctx))
		assert.Equal(t, int32(1), f.calls.Load())
	})

	t.Run("Should release the flag after a failure and allow a retry", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		boom := errors.New("network down")
		f.fail["Genesis.2"] = boom
		m, err := New(chs[0], f)
		require.NoError(t, err)

		assert.Equal(t, Failed, m.LoadMore(ctx))
		assert.False(t, m.LoadingNext())
		assert.True(t, m.HasMore())
		assert.ErrorIs(t, m.LastError(), boom)

		delete(f.fail, "Genesis.2")
		assert.Equal(t, Grew, m.LoadMore(ctx))
		assert.Equal(t, 2, m.Len())
	})

	t.Run("Should issue one fetch for rapid repeated calls", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		f.gate = make(chan struct{})
		m, err := New(chs[0], f)
		require.NoError(t, err)

		first := make(chan Outcome, 1)
		go func() { first <- m.LoadMore(ctx) }()
		require.Eventually(t, m.LoadingNext, timeout, tick)

		assert.Equal(t, Busy, m.LoadMore(ctx))
		f.gate <- struct{}{}
		assert.Equal(t, Grew, <-first)
		assert.Equal(t, int32(1), f.calls.Load())
		assert.Equal(t, 2, m.Len())
	})
}

func TestManagerCrossBook(t *testing.T) {
	ctx := context.Background()
	genesis50 := chapter("Genesis", "50", "Genesis.49", "Exodus.1", "tanakh")
	exodus1 := chapter("Exodus", "1", "Genesis.50", "Exodus.2", "tanakh")
	berakhot64 := chapter("Berakhot", "64a", "Berakhot.63b", "Shabbat.2a", "bavli")
	shabbat2 := chapter("Shabbat", "2a", "Berakhot.64a", "Shabbat.2b", "bavli")

	t.Run("Should halt and discard when the collection forbids crossing", func(t *testing.T) {
		m, err := New(berakhot64, newFake(shabbat2))
		require.NoError(t, err)

		assert.Equal(t, Boundary, m.LoadMore(ctx))
		assert.Equal(t, []string{"Berakhot.64a"}, refs(m.Chapters()))
		assert.False(t, m.HasMore())
	})

	t.Run("Should cross when the collection allows it", func(t *testing.T) {
		m, err := New(genesis50, newFake(exodus1))
		require.NoError(t, err)

		assert.Equal(t, Grew, m.LoadMore(ctx))
		assert.Equal(t, []string{"Genesis.50", "Exodus.1"}, refs(m.Chapters()))
	})

	t.Run("Should apply a custom policy in both directions", func(t *testing.T) {
		m, err := New(exodus1, newFake(genesis50), WithPolicy(AllowCollections()))
		require.NoError(t, err)

		assert.Equal(t, Boundary, m.LoadPrev(ctx))
		assert.False(t, m.HasPrev())
		assert.Equal(t, 1, m.Len())
	})

	t.Run("Should match collections case-insensitively", func(t *testing.T) {
		p := AllowCollections(" Tanakh ", "")
		assert.True(t, p.AllowsCrossBook("TANAKH"))
		assert.False(t, p.AllowsCrossBook("bavli"))
		assert.False(t, p.AllowsCrossBook(""))
	})

	t.Run("Should match a literal map whatever the key case", func(t *testing.T) {
		p := PolicyMap{"Tanakh": true, "Bavli": false}
		assert.True(t, p.AllowsCrossBook("tanakh"))
		assert.True(t, p.AllowsCrossBook("Tanakh"))
		assert.False(t, p.AllowsCrossBook("bavli"))

		m, err := New(genesis50, newFake(exodus1), WithPolicy(p))
		require.NoError(t, err)
		assert.Equal(t, Grew, m.LoadMore(ctx))
	})
}

func TestManagerLoadPrev(t *testing.T) {
	ctx := context.Background()

	t.Run("Should prepend the previous chapter", func(t *testing.T) {
		chs := genesis()
		m, err := New(chs[2], newFake(chs...))
		require.NoError(t, err)

		assert.Equal(t, Grew, m.LoadPrev(ctx))
		assert.Equal(t, Grew, m.LoadPrev(ctx))
		assert.Equal(t, Exhausted, m.LoadPrev(ctx))
		assert.Equal(t, []string{"Genesis.1", "Genesis.2", "Genesis.3"}, refs(m.Chapters()))
		assert.False(t, m.HasPrev())
		assert.NoError(t, m.Validate())
	})

	t.Run("Should load both ends at once", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		f.gate = make(chan struct{})
		m, err := New(chs[1], f)
		require.NoError(t, err)

		var wg sync.WaitGroup
		outcomes := make([]Outcome, 2)
		wg.Add(2)
		go func() { defer wg.Done(); outcomes[0] = m.LoadMore(ctx) }()
		go func() { defer wg.Done(); outcomes[1] = m.LoadPrev(ctx) }()
		require.Eventually(t, func() bool { return m.LoadingNext() && m.LoadingPrev() }, timeout, tick)

		f.gate <- struct{}{}
		f.gate <- struct{}{}
		wg.Wait()

		assert.Equal(t, []Outcome{Grew, Grew}, outcomes)
		assert.Equal(t, []string{"Genesis.1", "Genesis.2", "Genesis.3"}, refs(m.Chapters()))
	})

	t.Run("Should refuse a chapter that does not link to the window", func(t *testing.T) {
		stray := chapter("Genesis", "1", "", "Genesis.7", "tanakh")
		m, err := New(genesis()[1], newFake(stray))
		require.NoError(t, err)

		assert.Equal(t, Failed, m.LoadPrev(ctx))
		assert.ErrorIs(t, m.LastError(), ErrDiscontiguous)
		assert.False(t, m.HasPrev())
		assert.Equal(t, 1, m.Len())
	})
}

func TestManagerContiguity(t *testing.T) {
	ctx := context.Background()
	var chs []*api.Chapter
	for i := 1; i <= 10; i++ {
		prev, next := "", ""
		if i > 1 {
			prev = "Psalms." + strconv.Itoa(i-1)
		}
		if i < 10 {
			next = "Psalms." + strconv.Itoa(i+1)
		}
		chs = append(chs, chapter("Psalms", strconv.Itoa(i), prev, next, "tanakh"))
	}
	m, err := New(chs[4], newFake(chs...))
	require.NoError(t, err)

	for _, d := range []Direction{Forward, Backward, Backward, Forward, Forward, Backward, Backward, Backward, Forward, Forward, Backward, Forward} {
		m.Load(ctx, d)
		require.NoError(t, m.Validate())
	}
	assert.Equal(t, 10, m.Len())
	assert.False(t, m.HasMore())
	assert.False(t, m.HasPrev())
	assert.Equal(t, "Psalms.1", m.First().Ref)
	assert.Equal(t, "Psalms.10", m.Last().Ref)
}

func TestManagerReset(t *testing.T) {
	ctx := context.Background()

	t.Run("Should replace the window and recompute gates", func(t *testing.T) {
		chs := genesis()
		m, err := New(chs[0], newFake(chs...))
		require.NoError(t, err)
		require.Equal(t, Grew, m.LoadMore(ctx))

		require.NoError(t, m.Reset(chs[2]))
		assert.Equal(t, []string{"Genesis.3"}, refs(m.Chapters()))
		assert.False(t, m.HasMore())
		assert.True(t, m.HasPrev())
		assert.ErrorIs(t, m.Reset(nil), ErrNoInitialChapter)
	})

	t.Run("Should drop a load that lands after a reset", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		f.gate = make(chan struct{})
		m, err := New(chs[0], f)
		require.NoError(t, err)

		done := make(chan Outcome, 1)
		go func() { done <- m.LoadMore(ctx) }()
		require.Eventually(t, m.LoadingNext, timeout, tick)

		require.NoError(t, m.Reset(chs[1]))
		assert.False(t, m.LoadingNext())
		f.gate <- struct{}{}
		assert.Equal(t, Stale, <-done)
		assert.Equal(t, []string{"Genesis.2"}, refs(m.Chapters()))
	})
}

func TestManagerSetTranslation(t *testing.T) {
	ctx := context.Background()

	t.Run("Should refetch the whole window", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		m, err := New(chs[0], f)
		require.NoError(t, err)
		require.Equal(t, Grew, m.LoadMore(ctx))

		require.NoError(t, m.SetTranslation(ctx, "fr"))
		assert.Equal(t, "fr", m.Translation())
		for _, ch := range m.Chapters() {
			assert.Equal(t, "fr", ch.ActiveTranslation)
		}
		assert.Equal(t, []string{"Genesis.1", "Genesis.2"}, refs(m.Chapters()))
		assert.Equal(t, Grew, m.LoadMore(ctx))
		assert.Equal(t, "fr", m.Last().ActiveTranslation)
	})

	t.Run("Should keep the old window on failure", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		m, err := New(chs[0], f)
		require.NoError(t, err)
		require.Equal(t, Grew, m.LoadMore(ctx))
		delete(f.chapters, "Genesis.2")

		err = m.SetTranslation(ctx, "fr")
		require.Error(t, err)
		assert.ErrorIs(t, err, api.ErrNoContent)
		assert.Equal(t, "en", m.Translation())
		assert.Equal(t, "en", m.Last().ActiveTranslation)
		assert.False(t, m.Retranslating())
	})

	t.Run("Should be a no-op for the current translation", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		m, err := New(chs[0], f)
		require.NoError(t, err)
		require.NoError(t, m.SetTranslation(ctx, "en"))
		assert.Zero(t, f.calls.Load())
	})

	t.Run("Should hold loads while retranslating", func(t *testing.T) {
		chs := genesis()
		f := newFake(chs...)
		f.gate = make(chan struct{})
		m, err := New(chs[0], f)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- m.SetTranslation(ctx, "fr") }()
		require.Eventually(t, m.Retranslating, timeout, tick)

		assert.Equal(t, Busy, m.LoadMore(ctx))
		assert.ErrorIs(t, m.SetTranslation(ctx, "de"), ErrBusy)
		f.gate <- struct{}{}
		require.NoError(t, <-done)
		assert.Equal(t, "fr", m.First().ActiveTranslation)
	})
}

func TestContiguous(t *testing.T) {
	chs := genesis()
	assert.NoError(t, Contiguous(chs))
	assert.ErrorIs(t, Contiguous([]*api.Chapter{chs[0], chs[2]}), ErrDiscontiguous)
	assert.ErrorIs(t, Contiguous(nil), ErrNoInitialChapter)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "boundary", Boundary.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
	assert.Equal(t, "backward", Backward.String())
}
