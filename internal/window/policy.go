package window

import "strings"

// CrossBookPolicy decides whether a window may grow past the edge of a book
// into its neighbour.
type CrossBookPolicy interface {
	AllowsCrossBook(collection string) bool
}

// PolicyMap is a per-collection CrossBookPolicy. Collections are matched
// case-insensitively; unknown collections stop at book edges.
type PolicyMap map[string]bool

func (p PolicyMap) AllowsCrossBook(collection string) bool {
	if allowed, ok := p[strings.ToLower(collection)]; ok {
		return allowed
	}
	for name, allowed := range p {
		if strings.EqualFold(name, collection) {
			return allowed
		}
	}
	return false
}

// AllowCollections returns a policy permitting cross-book growth for the
// named collections only.
func AllowCollections(names ...string) PolicyMap {
	p := make(PolicyMap, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			p[strings.ToLower(n)] = true
		}
	}
	return p
}

// DefaultPolicy lets the tanakh read straight through from book to book.
var DefaultPolicy = AllowCollections("tanakh")
