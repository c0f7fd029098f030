// Package scroll keeps a scrolling view stable while content is added above
// it, and reports which regions of the content are in view.
//
// Units are abstract: the terminal reader measures in rendered lines, but
// nothing here depends on that.
package scroll

// Anchor remembers the scroll geometry from before content was prepended.
type Anchor struct {
	Height int
	Offset int
}

// Capture records the total scrollable height and current offset.
func Capture(scrollHeight, scrollTop int) Anchor {
	return Anchor{Height: scrollHeight, Offset: scrollTop}
}

// Restore returns the offset that keeps the anchored content at the same
// visual position once the total height has become newHeight. Apply it as a
// single jump after the new content has been laid out.
func (a Anchor) Restore(newHeight int) int {
	return max(a.Offset+newHeight-a.Height, 0)
}

// Clamp limits offset to the scrollable range of a view.
func Clamp(offset, contentHeight, viewportHeight int) int {
	return max(min(offset, contentHeight-viewportHeight), 0)
}
