// Package htmldoc renders pages as static HTML: a plain GET parsed with
// goquery. No JavaScript runs, so it only suits server-rendered storefronts.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/maltedev/store-price-compare/internal/render"
)

type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "tr-TR,tr;q=0.9,en;q=0.8",
	}
}

type Renderer struct {
	client *http.Client
	opts   *Options
}

func New(opts *Options) *Renderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Renderer{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

func (r *Renderer) Open(ctx context.Context, url string) (render.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if r.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", r.opts.AcceptLanguage)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	return Parse(resp.Body)
}

// Parse builds a Document from HTML.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

func FromString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

type Document struct {
	doc *goquery.Document
}

func (d *Document) FindAll(selector string) ([]render.Element, error) {
	return findAll(d.doc.Selection, selector)
}

func (d *Document) FindFirst(selector string) (render.Element, bool, error) {
	return findFirst(d.doc.Selection, selector)
}

// AwaitAny checks the already loaded document once; static HTML never changes.
func (d *Document) AwaitAny(ctx context.Context, selectors []string, _ time.Duration) (string, bool) {
	return render.PollAny(ctx, d, selectors, 0, 0)
}

func (d *Document) Scroll(float64) error { return nil }

func (d *Document) Close() error { return nil }

type element struct {
	sel *goquery.Selection
}

func (e element) FindAll(selector string) ([]render.Element, error) {
	return findAll(e.sel, selector)
}

func (e element) FindFirst(selector string) (render.Element, bool, error) {
	return findFirst(e.sel, selector)
}

func (e element) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func findAll(s *goquery.Selection, selector string) ([]render.Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	found := s.FindMatcher(m)
	out := make([]render.Element, 0, found.Length())
	found.Each(func(_ int, item *goquery.Selection) {
		out = append(out, element{sel: item})
	})
	return out, nil
}

func findFirst(s *goquery.Selection, selector string) (render.Element, bool, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, false, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	found := s.FindMatcher(m).First()
	if found.Length() == 0 {
		return nil, false, nil
	}
	return element{sel: found}, true, nil
}
