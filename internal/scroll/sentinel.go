package scroll

// DefaultSentinelMargin is how far ahead of an edge, in lines, loading
// starts.
const DefaultSentinelMargin = 50

// Sentinels are the two load triggers: one marker above the first chapter
// and one below the last. Each is observed with a wide margin so a load
// starts well before the reader reaches the edge.
type Sentinels struct {
	obs        Observer
	margin     Margin
	onForward  func()
	onBackward func()
	forward    Subscription
	backward   Subscription
}

// NewSentinels calls onForward when the bottom marker comes within margin
// lines of the viewport and onBackward likewise for the top marker.
func NewSentinels(obs Observer, margin int, onForward, onBackward func()) *Sentinels {
	if margin <= 0 {
		margin = DefaultSentinelMargin
	}
	return &Sentinels{
		obs:        obs,
		margin:     Margin{Top: Lines(margin), Bottom: Lines(margin)},
		onForward:  onForward,
		onBackward: onBackward,
	}
}

// Place puts the markers at top and bottom. A marker is only present while
// its direction can still grow. Markers are observed afresh on every call,
// so a marker that is still in range after a load fires again.
func (s *Sentinels) Place(top, bottom int, hasPrev, hasMore bool) {
	s.Close()
	if hasPrev && s.onBackward != nil {
		s.backward = s.obs.Observe(Region{Top: top}, s.margin, fire(s.onBackward))
	}
	if hasMore && s.onForward != nil {
		s.forward = s.obs.Observe(Region{Top: bottom}, s.margin, fire(s.onForward))
	}
}

func fire(fn func()) func(Entry) {
	return func(e Entry) {
		if e.Intersecting {
			fn()
		}
	}
}

func (s *Sentinels) Close() {
	if s.forward != nil {
		s.forward.Unsubscribe()
		s.forward = nil
	}
	if s.backward != nil {
		s.backward.Unsubscribe()
		s.backward = nil
	}
}
