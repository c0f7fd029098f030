package scroll

// VisibilityMargin shrinks the viewport to a band near its upper third:
// the top fifth and bottom two fifths do not count as "reading".
var VisibilityMargin = Margin{Top: Percent(-20), Bottom: Percent(-40)}

// Block is one rendered chapter.
type Block struct {
	Ref     string
	Book    string
	Chapter string
	Top     int
	Height  int
}

func (b Block) Region() Region { return Region{Top: b.Top, Height: b.Height} }

// Layout stacks blocks from line start, setting each Top from the heights
// before it. It returns the line just past the last block.
func Layout(blocks []Block, start int) int {
	y := start
	for i := range blocks {
		blocks[i].Top = y
		y += blocks[i].Height
	}
	return y
}

// VisibilityReporter tells onVisible about each chapter block that enters
// the reading band. When several enter together they are reported in
// document order, so the last call names the active chapter.
type VisibilityReporter struct {
	obs       Observer
	onVisible func(book, chapter string)
	subs      map[string]Subscription
	blocks    map[string]Block
	current   Block
	seen      bool
}

func NewVisibilityReporter(obs Observer, onVisible func(book, chapter string)) *VisibilityReporter {
	return &VisibilityReporter{
		obs:       obs,
		onVisible: onVisible,
		subs:      make(map[string]Subscription),
		blocks:    make(map[string]Block),
	}
}

// Sync makes the observed set match blocks. Blocks already observed are
// moved, so only real visibility changes are reported.
func (r *VisibilityReporter) Sync(blocks []Block) {
	keep := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		keep[b.Ref] = true
		r.blocks[b.Ref] = b
		if sub, ok := r.subs[b.Ref]; ok {
			sub.Move(b.Region())
			continue
		}
		ref := b.Ref
		r.subs[ref] = r.obs.Observe(b.Region(), VisibilityMargin, func(e Entry) {
			if e.Intersecting {
				r.report(ref)
			}
		})
	}
	for ref, sub := range r.subs {
		if !keep[ref] {
			sub.Unsubscribe()
			delete(r.subs, ref)
			delete(r.blocks, ref)
		}
	}
}

func (r *VisibilityReporter) report(ref string) {
	b, ok := r.blocks[ref]
	if !ok {
		return
	}
	r.current, r.seen = b, true
	if r.onVisible != nil {
		r.onVisible(b.Book, b.Chapter)
	}
}

// Current returns the block most recently reported visible.
func (r *VisibilityReporter) Current() (Block, bool) {
	return r.current, r.seen
}

// Close drops every subscription.
func (r *VisibilityReporter) Close() {
	for ref, sub := range r.subs {
		sub.Unsubscribe()
		delete(r.subs, ref)
	}
	clear(r.blocks)
}
