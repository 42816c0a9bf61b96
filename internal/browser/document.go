package browser

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/store-price-compare/internal/render"
)

// Document is a playwright page exposed through the render interfaces.
type Document struct {
	page playwright.Page
}

func (d *Document) FindAll(selector string) ([]render.Element, error) {
	return locateAll(d.page.Locator(selector))
}

func (d *Document) FindFirst(selector string) (render.Element, bool, error) {
	return locateFirst(d.page.Locator(selector))
}

func (d *Document) AwaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool) {
	return render.PollAny(ctx, d, selectors, timeout, render.DefaultPollInterval)
}

func (d *Document) Scroll(fraction float64) error {
	_, err := d.page.Evaluate(`(f) => window.scrollTo(0, document.body.scrollHeight * f)`, fraction)
	return err
}

func (d *Document) Close() error {
	return d.page.Close()
}

type element struct {
	loc playwright.Locator
}

func (e element) FindAll(selector string) ([]render.Element, error) {
	return locateAll(e.loc.Locator(selector))
}

func (e element) FindFirst(selector string) (render.Element, bool, error) {
	return locateFirst(e.loc.Locator(selector))
}

func (e element) Text() (string, error) {
	return e.loc.TextContent()
}

func (e element) Attribute(name string) (string, bool, error) {
	v, err := e.loc.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func locateAll(loc playwright.Locator) ([]render.Element, error) {
	items, err := loc.All()
	if err != nil {
		return nil, err
	}
	out := make([]render.Element, 0, len(items))
	for _, item := range items {
		out = append(out, element{loc: item})
	}
	return out, nil
}

func locateFirst(loc playwright.Locator) (render.Element, bool, error) {
	first := loc.First()
	count, err := first.Count()
	if err != nil {
		return nil, false, err
	}
	if count == 0 {
		return nil, false, nil
	}
	return element{loc: first}, true, nil
}
