package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hazyhaar/docsvault/contentproc"
	"github.com/hazyhaar/docsvault/fetch"
	"github.com/hazyhaar/docsvault/urlutil"
)

// ShouldFollowFunc lets a composing strategy restrict which discovered
// links the base web crawl follows, beyond the scope check, per §4.8.2
// step 5 and §4.8.3's GitHub HTML-mode example.
type ShouldFollowFunc func(baseURL, link string) bool

// WebStrategy is the default strategy (C8): a bounded BFS crawl over
// http(s) URLs, fetching via an injected fetch.Fetcher and converting via
// an injected contentproc.Registry.
type WebStrategy struct {
	fetcher      fetch.Fetcher
	playwright   fetch.Fetcher
	processors   *contentproc.Registry
	logger       *slog.Logger
	shouldFollow ShouldFollowFunc
	normalizeOpt urlutil.Options
}

// NewWebStrategy builds the default web strategy.
func NewWebStrategy(fetcher fetch.Fetcher, processors *contentproc.Registry, logger *slog.Logger) *WebStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebStrategy{
		fetcher:      fetcher,
		processors:   processors,
		logger:       logger,
		normalizeOpt: urlutil.DefaultOptions(),
	}
}

// WithPlaywright returns a copy of w that fetches via a browser-rendering
// fetcher whenever Options.ScrapeMode is "playwright", for pages whose
// content only exists after client-side JavaScript runs.
func (w *WebStrategy) WithPlaywright(pf fetch.Fetcher) *WebStrategy {
	clone := *w
	clone.playwright = pf
	return &clone
}

// WithShouldFollow returns a copy of w with an additional link filter
// composed in, used by source-specialized strategies (§4.8.3).
func (w *WebStrategy) WithShouldFollow(fn ShouldFollowFunc) *WebStrategy {
	clone := *w
	clone.shouldFollow = fn
	return &clone
}

func (w *WebStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func (w *WebStrategy) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	opts.defaults()
	return runBaseCrawl(ctx, opts, opts.URL, onProgress, w.processItem, w.normalizeOpt, w.logger)
}

// WithStripQuery returns a copy of w that normalizes (and dedups) URLs
// with query parameters stripped, used by registry-style sources where
// navigation state lives in the query string (§4.8.3).
func (w *WebStrategy) WithStripQuery() *WebStrategy {
	clone := *w
	clone.normalizeOpt.StripQuery = true
	return &clone
}

// processItem implements §4.8.2's per-item processing for the web
// strategy: fetch, select a content pipeline by MIME, convert, filter
// discovered links by scope and shouldFollow.
func (w *WebStrategy) processItem(ctx context.Context, opts Options, rawURL string) (itemResult, error) {
	fetcher := w.fetcher
	if opts.ScrapeMode == "playwright" && w.playwright != nil {
		fetcher = w.playwright
	}
	raw, err := fetcher.Fetch(ctx, rawURL, fetch.Options{
		Headers:         opts.Headers,
		FollowRedirects: opts.FollowRedirects,
	})
	if err != nil {
		return itemResult{}, err
	}
	if !raw.Changed {
		return itemResult{}, nil
	}

	processed, err := w.processors.Process(ctx, raw)
	if err != nil {
		return itemResult{}, fmt.Errorf("scrape: process %s: %w", rawURL, err)
	}
	if processed == nil {
		w.logger.Warn("scrape: no pipeline for mime type, skipping", "url", rawURL, "mime", raw.MimeType)
		return itemResult{}, nil
	}
	if strings.TrimSpace(processed.TextMarkdown) == "" {
		return itemResult{links: w.filterLinks(opts, rawURL, processed.Links)}, nil
	}

	title := processed.Metadata.Title
	if title == "" {
		title = "Untitled"
	}

	doc := &Document{
		Content: processed.TextMarkdown,
		Metadata: DocumentMetadata{
			URL:      rawURL,
			Title:    title,
			Library:  opts.Library,
			Version:  opts.Version,
			PathHint: processed.Metadata.PathHint,
		},
	}
	return itemResult{doc: doc, links: w.filterLinks(opts, rawURL, processed.Links)}, nil
}

// filterLinks keeps links that are in_scope of opts.URL and, if set, that
// w.shouldFollow approves, and that aren't excluded by opts' include/
// exclude patterns.
func (w *WebStrategy) filterLinks(opts Options, baseURL string, links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if !urlutil.InScope(opts.URL, l, opts.Scope) {
			continue
		}
		if w.shouldFollow != nil && !w.shouldFollow(baseURL, l) {
			continue
		}
		if !matchesPatterns(l, opts.IncludePatterns, opts.ExcludePatterns) {
			continue
		}
		out = append(out, l)
	}
	return out
}
