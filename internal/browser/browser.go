package browser

import (
	"context"
	"net/http"
	"time"
)

type WaitUntil string

const (
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitLoad             WaitUntil = "load"
)

// Call is an HTTP request issued from inside the page with fetch(), so it
// carries the page's cookies and origin.
type Call struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Reply struct {
	Status int
	Body   string
}

func (r Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Response is the outcome of a top-level navigation.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Page is the narrow slice of a browser tab the image pipeline needs.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitUntil, timeout time.Duration) (*Response, error)
	Do(ctx context.Context, call Call) (Reply, error)
	Close() error
}

type Session interface {
	NewPage(ctx context.Context) (Page, error)
}

// Provider hands out the current browser session. Current returns nil while
// no browser is running.
type Provider interface {
	Current() Session
}
