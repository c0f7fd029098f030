// Package api defines the chapter data model and the fetch service port the
// reader consumes, plus an HTTP implementation of that port.
package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoContent marks a locator that resolves to nothing.
var ErrNoContent = errors.New("no content")

// Fetcher is the chapter fetch service. A (nil, nil) result means the
// locator does not resolve to content. Implementations must be idempotent
// and safe to call repeatedly.
type Fetcher interface {
	FetchChapter(ctx context.Context, locator, translation string) (*Chapter, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, locator, translation string) (*Chapter, error)

func (f FetcherFunc) FetchChapter(ctx context.Context, locator, translation string) (*Chapter, error) {
	return f(ctx, locator, translation)
}

// TranslationLister is implemented by fetch services that can enumerate
// their translation layers.
type TranslationLister interface {
	Translations(ctx context.Context) ([]Translation, error)
}

// FetchError wraps a failure talking to the fetch service.
type FetchError struct {
	Ref string
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
