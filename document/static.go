package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticDocument is a Document over a fixed HTML string.
type StaticDocument struct {
	html    string
	doc     *goquery.Document
	browser *StaticBrowser
}

func FromHTML(html string) (*StaticDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &StaticDocument{html: html, doc: doc}, nil
}

func (d *StaticDocument) Content() (string, error) {
	return d.html, nil
}

func (d *StaticDocument) FindAll(selector string) ([]Element, error) {
	return wrapAll(d.doc.Find(selector), d.browser), nil
}

func wrapAll(sel *goquery.Selection, browser *StaticBrowser) []Element {
	var els []Element
	sel.Each(func(i int, s *goquery.Selection) {
		els = append(els, &staticElement{sel: s, browser: browser})
	})
	return els
}

type staticElement struct {
	sel     *goquery.Selection
	browser *StaticBrowser
}

func (e *staticElement) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *staticElement) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// IsVisible treats the hidden attribute and inline display:none as hidden.
func (e *staticElement) IsVisible() bool {
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false
	}
	style, _ := e.sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return !strings.Contains(style, "display:none")
}

// Activate follows the element's href in the owning StaticBrowser.
func (e *staticElement) Activate() error {
	if _, disabled := e.sel.Attr("disabled"); disabled || !e.IsVisible() {
		return ErrNotInteractable
	}
	href, ok := e.sel.Attr("href")
	if !ok || e.browser == nil {
		return ErrNotInteractable
	}
	return e.browser.load(href)
}

func (e *staticElement) Query(selector string) (Element, bool, error) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false, nil
	}
	return &staticElement{sel: found, browser: e.browser}, true, nil
}

// StaticBrowser replays a fixed set of pages keyed by URL. It is used to
// run the pipeline against saved pages and in tests.
type StaticBrowser struct {
	pages   map[string]string
	current *StaticDocument
	visits  []string
}

func NewStaticBrowser(pages map[string]string) *StaticBrowser {
	return &StaticBrowser{pages: pages}
}

func (b *StaticBrowser) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.load(url)
}

func (b *StaticBrowser) load(url string) error {
	b.visits = append(b.visits, url)
	html, ok := b.pages[url]
	if !ok {
		b.current = nil
		return fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}
	doc, err := FromHTML(html)
	if err != nil {
		b.current = nil
		return err
	}
	doc.browser = b
	b.current = doc
	return nil
}

func (b *StaticBrowser) WaitForLoadSettled() error {
	return nil
}

func (b *StaticBrowser) Content() (string, error) {
	if b.current == nil {
		return "", ErrNoCurrentDocument
	}
	return b.current.Content()
}

func (b *StaticBrowser) FindAll(selector string) ([]Element, error) {
	if b.current == nil {
		return nil, ErrNoCurrentDocument
	}
	return b.current.FindAll(selector)
}

// Visits lists every URL requested, in order, including failed ones.
func (b *StaticBrowser) Visits() []string {
	return append([]string(nil), b.visits...)
}
