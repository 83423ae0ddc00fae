// Package browser adapts a playwright Chromium page to document.Browser.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"newbuild_scrooper/document"
)

type Options struct {
	Headless    bool
	UserAgent   string
	SettleState string // load, domcontentloaded or networkidle
	Timeout     time.Duration
	ProxyURL    string
}

// Session owns one browser with a single page. Navigation replaces the
// current document; there is never more than one open.
type Session struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	mu      sync.Mutex
}

func Open(opts Options) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
		},
	}
	if opts.ProxyURL != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.ProxyURL}
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1400, Height: 900},
	}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &Session{opts: opts, pw: pw, browser: browser, page: page}, nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		s.pw.Stop()
		s.pw = nil
	}
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = s.opts.Timeout
	}

	log.Printf("Navigating to: %s", url)
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (s *Session) WaitForLoadSettled() error {
	state := playwright.LoadState(s.opts.SettleState)
	if s.opts.SettleState == "" {
		state = *playwright.LoadStateNetworkidle
	}
	return s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   &state,
		Timeout: playwright.Float(float64(s.opts.Timeout.Milliseconds())),
	})
}

func (s *Session) Content() (string, error) {
	return s.page.Content()
}

func (s *Session) FindAll(selector string) ([]document.Element, error) {
	return wrapAll(s.page.Locator(selector))
}

func wrapAll(loc playwright.Locator) ([]document.Element, error) {
	all, err := loc.All()
	if err != nil {
		return nil, err
	}
	els := make([]document.Element, 0, len(all))
	for _, l := range all {
		els = append(els, &element{loc: l})
	}
	return els, nil
}

type element struct {
	loc playwright.Locator
}

func (e *element) Text() (string, error) {
	return e.loc.InnerText()
}

// Attribute distinguishes a missing attribute from an empty one, which
// GetAttribute alone does not.
func (e *element) Attribute(name string) (string, bool, error) {
	has, err := e.loc.Evaluate(`(el, name) => el.hasAttribute(name)`, name)
	if err != nil {
		return "", false, err
	}
	if present, _ := has.(bool); !present {
		return "", false, nil
	}
	v, err := e.loc.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (e *element) IsVisible() bool {
	visible, _ := e.loc.IsVisible()
	return visible
}

func (e *element) Activate() error {
	if enabled, _ := e.loc.IsEnabled(); !enabled {
		return document.ErrNotInteractable
	}
	return e.loc.Click()
}

func (e *element) Query(selector string) (document.Element, bool, error) {
	found := e.loc.Locator(selector).First()
	n, err := found.Count()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	return &element{loc: found}, true, nil
}

var _ document.Browser = (*Session)(nil)
