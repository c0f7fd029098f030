package scroll

import (
	"cmp"
	"slices"
	"sync"
)

// Unit is the unit of a Length.
type Unit int

const (
	UnitLines Unit = iota
	UnitPercent
)

// Length is a margin distance, either absolute or relative to the viewport
// height.
type Length struct {
	Value int
	Unit  Unit
}

func Lines(n int) Length   { return Length{Value: n, Unit: UnitLines} }
func Percent(p int) Length { return Length{Value: p, Unit: UnitPercent} }

// Resolve converts l to lines for a viewport of the given height.
func (l Length) Resolve(viewport int) int {
	if l.Unit == UnitPercent {
		return l.Value * viewport / 100
	}
	return l.Value
}

// Margin grows (positive) or shrinks (negative) the viewport before
// intersections are computed.
type Margin struct {
	Top    Length
	Bottom Length
}

// Region is a vertical span of content. Zero-height regions are markers.
type Region struct {
	Top    int
	Height int
}

func (r Region) Bottom() int { return r.Top + r.Height }

// Entry is delivered to an observer callback when a region's visibility
// changes.
type Entry struct {
	Region       Region
	Intersecting bool
}

// Observer watches regions against a viewport.
type Observer interface {
	Observe(r Region, m Margin, fn func(Entry)) Subscription
}

// Subscription is a live observation.
type Subscription interface {
	// Move updates the observed region; the change is seen on the next
	// evaluation.
	Move(r Region)
	Unsubscribe()
}

// Intersects reports whether r overlaps the band [top, bottom). Markers are
// tested inclusively so a marker sitting on the band edge counts.
func Intersects(r Region, top, bottom int) bool {
	if r.Height <= 0 {
		return r.Top >= top && r.Top <= bottom
	}
	return r.Top < bottom && r.Bottom() > top
}

type state int

const (
	stateUnknown state = iota
	stateOut
	stateIn
)

type subscription struct {
	t      *Tracker
	id     uint64
	region Region
	margin Margin
	fn     func(Entry)
	state  state
	closed bool
}

func (s *subscription) Move(r Region) {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	s.region = r
}

func (s *subscription) Unsubscribe() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.t.subs = slices.DeleteFunc(s.t.subs, func(o *subscription) bool { return o == s })
}

// Tracker is a line-based Observer. It is driven explicitly: call Scroll
// when the viewport moves and Refresh after regions move. Callbacks run on
// the calling goroutine, in document order, after the tracker's lock is
// released, so they may subscribe or unsubscribe.
type Tracker struct {
	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
	offset int
	height int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe registers fn for r. A new subscription reports its first state on
// the next evaluation whether or not it intersects.
func (t *Tracker) Observe(r Region, m Margin, fn func(Entry)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	s := &subscription{t: t, id: t.nextID, region: r, margin: m, fn: fn}
	t.subs = append(t.subs, s)
	return s
}

// Scroll sets the viewport and evaluates every subscription.
func (t *Tracker) Scroll(offset, height int) {
	t.mu.Lock()
	t.offset, t.height = offset, height
	pending := t.evaluateLocked(false)
	t.mu.Unlock()
	t.deliver(pending)
}

// Refresh evaluates against the current viewport.
func (t *Tracker) Refresh() {
	t.mu.Lock()
	pending := t.evaluateLocked(false)
	t.mu.Unlock()
	t.deliver(pending)
}

// Remeasure reports the current state of every subscription, changed or not.
func (t *Tracker) Remeasure() {
	t.mu.Lock()
	pending := t.evaluateLocked(true)
	t.mu.Unlock()
	t.deliver(pending)
}

// Len returns the number of live subscriptions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

type delivery struct {
	sub   *subscription
	entry Entry
}

func (t *Tracker) evaluateLocked(force bool) []delivery {
	ordered := slices.Clone(t.subs)
	slices.SortStableFunc(ordered, func(a, b *subscription) int {
		if c := cmp.Compare(a.region.Top, b.region.Top); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	var out []delivery
	for _, s := range ordered {
		top := t.offset - s.margin.Top.Resolve(t.height)
		bottom := t.offset + t.height + s.margin.Bottom.Resolve(t.height)
		in := Intersects(s.region, top, bottom)
		next := stateOut
		if in {
			next = stateIn
		}
		if next == s.state && !force {
			continue
		}
		s.state = next
		out = append(out, delivery{sub: s, entry: Entry{Region: s.region, Intersecting: in}})
	}
	return out
}

// deliver skips subscriptions closed by an earlier callback in the batch.
func (t *Tracker) deliver(pending []delivery) {
	for _, d := range pending {
		t.mu.Lock()
		closed := d.sub.closed
		t.mu.Unlock()
		if !closed {
			d.sub.fn(d.entry)
		}
	}
}
