package scrape

import (
	"context"
	"net/url"
	"strings"
)

// PackageRegistryStrategy composes the web strategy with query-stripping
// URL normalization, since package registries encode navigation state in
// query parameters (e.g. "?tab=readme"), per §4.8.3's NPM/PyPI rule.
type PackageRegistryStrategy struct {
	web   *WebStrategy
	hosts []string
}

// NewPackageRegistryStrategy builds a strategy claiming URLs whose host
// matches (or is a subdomain of) one of hosts.
func NewPackageRegistryStrategy(web *WebStrategy, hosts ...string) *PackageRegistryStrategy {
	return &PackageRegistryStrategy{web: web.WithStripQuery(), hosts: hosts}
}

func (p *PackageRegistryStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range p.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (p *PackageRegistryStrategy) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	opts.defaults()
	// Strip the query from the seed URL itself before it's fetched; the
	// wrapped web strategy's StripQuery normalization only affects how
	// later-discovered links are deduped against visited, not the literal
	// URL each one is fetched with.
	opts.URL = stripQuery(opts.URL)
	return p.web.Scrape(ctx, opts, onProgress)
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}
