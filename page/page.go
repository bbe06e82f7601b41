// Package page drives a web page through asynchronous actions. Every action
// returns a *future.Future, so test bodies consume it like any other deferred
// value. Actions on one page run in the order they were issued.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"gest/future"
)

var (
	// ErrClosed is returned by actions issued after End.
	ErrClosed = errors.New("page is closed")
	// ErrNoDocument is returned by Evaluate before any successful Goto.
	ErrNoDocument = errors.New("page has no document, call Goto first")
)

// maxBodySize caps the bytes read from one response
const maxBodySize = 10 << 20

// Page is an asynchronous page-automation handle.
type Page interface {
	Goto(url string) *future.Future
	Evaluate(fn func(doc *Document) (any, error)) *future.Future
	End() *future.Future
}

// StatusError reports a navigation answered with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("navigate to %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Option configures an HTTPPage.
type Option func(*HTTPPage)

// WithClient sets the HTTP client used for navigation.
func WithClient(c *http.Client) Option {
	return func(p *HTTPPage) { p.client = c }
}

// WithUserAgent sets the User-Agent header sent on navigation.
func WithUserAgent(ua string) Option {
	return func(p *HTTPPage) { p.userAgent = ua }
}

// HTTPPage is a Page backed by plain HTTP requests and an HTML parser. It
// does not run scripts.
type HTTPPage struct {
	client    *http.Client
	userAgent string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	last   *future.Future
	doc    *Document
	closed bool
}

// New creates an HTTPPage.
func New(opts ...Option) *HTTPPage {
	p := &HTTPPage{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "gest-page/1.0",
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// enqueue runs fn after every previously issued action has settled.
func (p *HTTPPage) enqueue(action string, fn func() (any, error)) *future.Future {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return future.Reject(fmt.Errorf("%s: %w", action, ErrClosed))
	}
	prev := p.last
	f := future.New(func() (any, error) {
		if prev != nil {
			<-prev.Done()
		}
		return fn()
	})
	p.last = f
	return f
}

// Goto loads url and resolves with its *Document.
func (p *HTTPPage) Goto(url string) *future.Future {
	return p.enqueue("goto", func() (any, error) {
		doc, err := p.load(url)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.doc = doc
		p.mu.Unlock()
		return doc, nil
	})
}

func (p *HTTPPage) load(url string) (*Document, error) {
	logger := log.WithField("url", url)
	logger.Debug("Navigating")

	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("navigate to %s: %w", url, ErrClosed)
		}
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	doc := newDocument(resp.Request.URL.String(), root)
	logger.WithField("title", doc.Title).Debug("Loaded page")
	return doc, nil
}

// Evaluate calls fn with the current document and resolves with its result.
func (p *HTTPPage) Evaluate(fn func(doc *Document) (any, error)) *future.Future {
	return p.enqueue("evaluate", func() (any, error) {
		p.mu.Lock()
		doc := p.doc
		p.mu.Unlock()
		if doc == nil {
			return nil, ErrNoDocument
		}
		return fn(doc)
	})
}

// End closes the page once pending actions have settled. Actions issued
// afterwards reject with ErrClosed.
func (p *HTTPPage) End() *future.Future {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return future.Resolve(nil)
	}
	p.closed = true
	prev := p.last
	return future.New(func() (any, error) {
		if prev != nil {
			<-prev.Done()
		}
		p.cancel()
		p.mu.Lock()
		p.doc = nil
		p.mu.Unlock()
		return nil, nil
	})
}
