// Package document defines the small query capability the extractors need
// from a rendered page, so they do not depend on a concrete browser.
package document

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPageNotFound      = errors.New("page not found")
	ErrNotInteractable   = errors.New("element is not interactable")
	ErrNoCurrentDocument = errors.New("no document loaded")
)

// Element is a handle to one node of the current document.
type Element interface {
	// Text returns the rendered text of the element.
	Text() (string, error)
	// Attribute returns the attribute value and whether it was present.
	Attribute(name string) (string, bool, error)
	IsVisible() bool
	// Activate is the click equivalent.
	Activate() error
	// Query returns the first descendant matching selector.
	Query(selector string) (Element, bool, error)
}

// Document is a snapshot of one loaded page.
type Document interface {
	Content() (string, error)
	FindAll(selector string) ([]Element, error)
}

// Browser navigates between documents. Only one document is open at a time.
type Browser interface {
	Document
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitForLoadSettled() error
}

// First returns the first element matching any of the selectors, in order.
func First(doc Document, selectors ...string) (Element, bool, error) {
	for _, sel := range selectors {
		els, err := doc.FindAll(sel)
		if err != nil {
			return nil, false, err
		}
		if len(els) > 0 {
			return els[0], true, nil
		}
	}
	return nil, false, nil
}

// QueryFirst is First for the descendants of an element.
func QueryFirst(el Element, selectors ...string) (Element, bool, error) {
	for _, sel := range selectors {
		found, ok, err := el.Query(sel)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return found, true, nil
		}
	}
	return nil, false, nil
}
