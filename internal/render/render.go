// Package render defines the page-rendering boundary used by the scrapers.
// Implementations live in internal/browser (playwright), internal/rodbrowser
// (rod) and internal/render/htmldoc (static HTML).
package render

import (
	"context"
	"time"
)

// Renderer opens a rendered page for a URL. Each Document is one session and
// must be closed by the caller.
type Renderer interface {
	Open(ctx context.Context, url string) (Document, error)
}

// Node is anything selectors can be evaluated against: a page or an element.
type Node interface {
	FindAll(selector string) ([]Element, error)
	FindFirst(selector string) (Element, bool, error)
}

type Element interface {
	Node
	Text() (string, error)
	// Attribute reports ok=false when the attribute is absent.
	Attribute(name string) (string, bool, error)
}

type Document interface {
	Node
	// AwaitAny waits until one of the selectors matches or the timeout
	// expires. Selectors are checked in order.
	AwaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool)
	// Scroll moves the viewport to the given fraction of the page height.
	Scroll(fraction float64) error
	Close() error
}

// DefaultPollInterval is used by PollAny when no interval is given.
const DefaultPollInterval = 250 * time.Millisecond

// PollAny repeatedly checks the selectors in order until one matches at least
// one element, the timeout elapses or ctx is cancelled.
func PollAny(ctx context.Context, n Node, selectors []string, timeout, interval time.Duration) (string, bool) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if sel, ok := firstPresent(n, selectors); ok {
			return sel, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			// one final check so a zero timeout still inspects the page
			return firstPresent(n, selectors)
		case <-ticker.C:
		}
	}
}

func firstPresent(n Node, selectors []string) (string, bool) {
	for _, sel := range selectors {
		els, err := n.FindAll(sel)
		if err == nil && len(els) > 0 {
			return sel, true
		}
	}
	return "", false
}
