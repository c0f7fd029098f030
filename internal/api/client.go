package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/austinmjames/digital-library-core-sub002/internal/logger"
)

// Client fetches chapters from a remote library service over HTTP.
//
//	GET {base}/chapters/{ref}?translation={id}  -> Chapter (404 when unknown)
//	GET {base}/translations                     -> []Translation
type Client struct {
	http *resty.Client
	log  logger.Logger
}

type ClientOption func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(retryCondition)
	return c
}

// retryCondition retries transport failures and overloaded servers. Other
// statuses are answers, not failures.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

func (c *Client) FetchChapter(ctx context.Context, locator, translation string) (*Chapter, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("ref", locator).
		SetResult(&Chapter{})
	if translation != "" {
		req.SetQueryParam("translation", translation)
	}

	resp, err := req.Get("/chapters/{ref}")
	if err != nil {
		return nil, &FetchError{Ref: locator, Op: "fetch chapter", Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound, resp.StatusCode() == http.StatusNoContent:
		c.log.Debug("Chapter not found", "ref", locator, "status", resp.StatusCode())
		return nil, nil
	case resp.IsError():
		return nil, &FetchError{
			Ref: locator,
			Op:  "fetch chapter",
			Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode(), resp.String()),
		}
	}

	ch, ok := resp.Result().(*Chapter)
	if !ok || ch == nil || ch.Ref == "" {
		return nil, &FetchError{Ref: locator, Op: "decode chapter", Err: fmt.Errorf("empty chapter payload")}
	}
	c.log.Debug("Chapter fetched", "ref", ch.Ref, "verses", len(ch.Verses), "translation", ch.ActiveTranslation)
	return ch, nil
}

func (c *Client) Translations(ctx context.Context) ([]Translation, error) {
	var out []Translation
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/translations")
	if err != nil {
		return nil, &FetchError{Op: "list translations", Err: err}
	}
	if resp.IsError() {
		return nil, &FetchError{
			Op:  "list translations",
			Err: fmt.Errorf("API returned status %d", resp.StatusCode()),
		}
	}
	return out, nil
}
