package scrape

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/docsvault/fetch"
)

// RodFetcher renders a page in a stealth-patched headless Chrome instance
// before returning its DOM as HTML, for sites whose content only exists
// after client-side JavaScript runs. It is used when Options.ScrapeMode is
// "playwright", as an alternate fetch.Fetcher wired into WebStrategy.
//
// The browser is launched lazily on first use and kept alive for reuse; one
// RodFetcher should be shared across a whole crawl rather than recreated per
// page.
type RodFetcher struct {
	navTimeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRodFetcher builds a RodFetcher. The Chrome process is not started
// until the first Fetch call.
func NewRodFetcher() *RodFetcher {
	return &RodFetcher{navTimeout: 30 * time.Second}
}

func (f *RodFetcher) CanFetch(rawURL string) bool {
	return true
}

// Fetch launches (or reuses) a headless Chrome instance, opens a
// stealth-patched page, navigates to rawURL, waits for load, and returns the
// rendered DOM's outer HTML. Unlike HTTPFetcher it has no conditional-GET
// support: every Fetch is treated as changed.
func (f *RodFetcher) Fetch(ctx context.Context, rawURL string, opts fetch.Options) (fetch.RawContent, error) {
	b, err := f.browserLocked()
	if err != nil {
		return fetch.RawContent{}, fmt.Errorf("scrape: launch browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return fetch.RawContent{}, fmt.Errorf("scrape: create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(rawURL); err != nil {
		return fetch.RawContent{}, fmt.Errorf("scrape: navigate %s: %w", rawURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return fetch.RawContent{}, fmt.Errorf("scrape: wait load %s: %w", rawURL, err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return fetch.RawContent{}, fmt.Errorf("scrape: read dom %s: %w", rawURL, err)
	}

	body := []byte(res.Value.Str())
	hash := sha256.Sum256(body)
	return fetch.RawContent{
		Bytes:     body,
		MimeType:  "text/html",
		SourceURL: rawURL,
		Hash:      fmt.Sprintf("%x", hash),
		Changed:   true,
	}, nil
}

// Close shuts down the underlying Chrome process, if one was launched.
func (f *RodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		f.browser.Close()
		f.browser = nil
	}
	if f.lnch != nil {
		f.lnch.Cleanup()
		f.lnch = nil
	}
	return nil
}

func (f *RodFetcher) browserLocked() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, err
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		b.Close()
		l.Cleanup()
		return nil, err
	}

	f.browser = b
	f.lnch = l
	return b, nil
}
