// Package scrape implements the Scraping Engine (C8): a base bounded
// breadth-first crawl shared by every concrete source strategy, and the
// per-source strategies themselves (web, npm, pypi, github, local file),
// per §4.8.
package scrape

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/docsvault/contentproc"
	"github.com/hazyhaar/docsvault/fetch"
	"github.com/hazyhaar/docsvault/urlutil"
)

// Options parameterizes a single scrape, matching the canonical
// ScrapeOptions shape in §6.
//
// MaxDepth is a *int rather than a plain int because 0 is both Go's zero
// value and a legitimate explicit request ("start URL only", per the
// maxPages=1/maxDepth=0 boundary case in §8). A nil MaxDepth means the
// caller didn't set one and the default (3) applies; a non-nil MaxDepth,
// including one pointing at 0, is taken literally regardless of MaxPages.
type Options struct {
	URL     string
	Library string
	Version string

	MaxPages        int
	MaxDepth        *int
	MaxConcurrency  int
	Scope           urlutil.Scope
	IncludePatterns []string
	ExcludePatterns []string
	ScrapeMode      string // "auto" | "fetch" | "playwright" | "github-markdown"
	FollowRedirects bool
	IgnoreErrors    bool
	Headers         map[string]string
}

// Depth returns the resolved max crawl depth: the caller's explicit value
// (even an explicit 0) if MaxDepth is set, or the default of 3 otherwise.
func (o Options) Depth() int {
	if o.MaxDepth == nil {
		return 3
	}
	return *o.MaxDepth
}

// IntPtr returns a pointer to n, for constructing an explicit Options.MaxDepth.
func IntPtr(n int) *int { return &n }

func (o *Options) defaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 1000
	}
	if o.MaxDepth == nil {
		d := 3
		o.MaxDepth = &d
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 3
	}
	if o.Scope == "" {
		o.Scope = urlutil.ScopeSubpages
	}
	if o.ScrapeMode == "" {
		o.ScrapeMode = "auto"
	}
}

// Document is one page's worth of content, ready for the splitter, per
// §4.8.2 step 6.
type Document struct {
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata carries the facts a scraped page contributes to every
// chunk the splitter produces from it.
type DocumentMetadata struct {
	URL      string
	Title    string
	Library  string
	Version  string
	PathHint []string
	Extra    map[string]string
}

// ProgressFunc receives one Document per successfully processed page.
// Errors returned here are worker errors per §4.9, reported to the
// caller without aborting the crawl unless IgnoreErrors is false.
type ProgressFunc func(Document) error

// Strategy implements the capability/registry dispatch pattern used
// throughout the system (§9): a registry holds instances claiming URLs by
// CanHandle, first match wins.
type Strategy interface {
	CanHandle(rawURL string) bool
	Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error
}

// Registry selects the first strategy whose CanHandle matches.
type Registry struct {
	strategies     []Strategy
	fallback       Strategy
	githubMarkdown *GitHubMarkdownStrategy
}

// NewRegistry builds the default registry: source-specialized strategies
// ahead of the general web strategy, which serves as the fallback for any
// http(s) URL none of the specialized strategies claim. GitHub markdown
// mode is not dispatched by URL shape (it claims the same URLs as the
// GitHub HTML strategy) — it is selected explicitly when
// Options.ScrapeMode == "github-markdown".
func NewRegistry(fetcher fetch.Fetcher, processors *contentproc.Registry, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	web := NewWebStrategy(fetcher, processors, logger).WithPlaywright(NewRodFetcher())
	return &Registry{
		strategies: []Strategy{
			NewGitHubHTMLStrategy(web),
			NewPackageRegistryStrategy(web, "registry.npmjs.org", "npmjs.com"),
			NewPackageRegistryStrategy(web, "pypi.org"),
			NewLocalFileStrategy(logger),
		},
		fallback:       web,
		githubMarkdown: NewGitHubMarkdownStrategy(logger),
	}
}

// Select returns the strategy that will handle rawURL under mode: the
// GitHub markdown strategy if mode requests it, else the first
// specialized strategy claiming rawURL, else the fallback web strategy.
func (r *Registry) Select(rawURL, mode string) Strategy {
	if mode == "github-markdown" {
		return r.githubMarkdown
	}
	for _, s := range r.strategies {
		if s.CanHandle(rawURL) {
			return s
		}
	}
	return r.fallback
}

// Scrape dispatches opts.URL to the matching strategy.
func (r *Registry) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	opts.defaults()
	return r.Select(opts.URL, opts.ScrapeMode).Scrape(ctx, opts, onProgress)
}
