// Package rodbrowser renders pages with go-rod and stealth-patched pages.
package rodbrowser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"

	"github.com/maltedev/store-price-compare/internal/render"
)

type Options struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	Proxy      string
	Timeout    time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Headless:  true,
		NoSandbox: true,
		Timeout:   30 * time.Second,
	}
}

type Browser struct {
	browser *rod.Browser
	opts    *Options
	logger  *slog.Logger
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)
	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger := slog.Default().With("component", "rodbrowser")
	logger.Info("browser launched", "control_url", controlURL)

	return &Browser{browser: browser, opts: opts, logger: logger}, nil
}

// Open creates a stealth page and navigates it to url.
func (b *Browser) Open(ctx context.Context, url string) (render.Document, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	nav := page.Context(ctx).Timeout(b.opts.Timeout)
	if err := nav.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := nav.WaitDOMStable(time.Second, 0.1); err != nil {
		b.logger.Debug("dom did not settle", "url", url, "error", err)
	}

	return &Document{page: page}, nil
}

func (b *Browser) Close() error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type Document struct {
	page *rod.Page
}

func (d *Document) FindAll(selector string) ([]render.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (d *Document) FindFirst(selector string) (render.Element, bool, error) {
	return first(d.page.Elements(selector))
}

// AwaitAny races the selectors against each other. The first selector in the
// list wins when several are already present.
func (d *Document) AwaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool) {
	for _, sel := range selectors {
		if has, _, err := d.page.Has(sel); err == nil && has {
			return sel, true
		}
	}

	var matched string
	race := d.page.Context(ctx).Timeout(timeout).Race()
	for _, sel := range selectors {
		sel := sel
		race = race.Element(sel).Handle(func(*rod.Element) error {
			matched = sel
			return nil
		})
	}
	if _, err := race.Do(); err != nil {
		return "", false
	}
	return matched, matched != ""
}

func (d *Document) Scroll(fraction float64) error {
	_, err := d.page.Eval(`(f) => window.scrollTo(0, document.body.scrollHeight * f)`, fraction)
	return err
}

func (d *Document) Close() error {
	return d.page.Close()
}

type element struct {
	el *rod.Element
}

func (e element) FindAll(selector string) ([]render.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (e element) FindFirst(selector string) (render.Element, bool, error) {
	return first(e.el.Elements(selector))
}

func (e element) Text() (string, error) {
	return e.el.Text()
}

func (e element) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func wrap(els rod.Elements) []render.Element {
	out := make([]render.Element, 0, len(els))
	for _, el := range els {
		out = append(out, element{el: el})
	}
	return out
}

func first(els rod.Elements, err error) (render.Element, bool, error) {
	if err != nil {
		return nil, false, err
	}
	if els.Empty() {
		return nil, false, nil
	}
	return element{el: els.First()}, true, nil
}
