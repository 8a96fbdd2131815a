// Package urlutil normalizes, scope-checks, and validates URLs for the
// scraping engine. Normalization is best-effort: malformed URLs are
// returned unchanged rather than raising, per this package's documented rules.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Options controls which normalization steps Normalize applies.
type Options struct {
	LowercaseHostPath bool // default on
	StripFragment     bool // default on
	StripTrailingSlash bool // default on
	StripQuery        bool // default off; NPM/PyPI/GitHub strategies enable it
	CollapseIndex     bool // default on
}

// DefaultOptions matches the documented defaults.
func DefaultOptions() Options {
	return Options{
		LowercaseHostPath:  true,
		StripFragment:      true,
		StripTrailingSlash: true,
		StripQuery:         false,
		CollapseIndex:      true,
	}
}

var indexSuffixes = []string{"index.html", "index.htm", "index.asp", "index.php", "index.jsp"}

// Normalize maps a URL string to its canonical form under opts. Malformed
// URLs are returned unchanged.
func Normalize(raw string, opts Options) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" || u.Host == "" {
		// Not an absolute http(s)-shaped URL; nothing safe to normalize.
		return raw
	}

	if opts.LowercaseHostPath {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Path = strings.ToLower(u.Path)
	}
	if opts.StripFragment {
		u.Fragment = ""
	}

	path := u.Path
	if opts.CollapseIndex {
		path = collapseIndexSuffix(path)
	}
	if opts.StripTrailingSlash && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	u.Path = path

	if opts.StripQuery {
		u.RawQuery = ""
	} else if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	return u.String()
}

// collapseIndexSuffix removes a trailing index.{html,htm,asp,php,jsp}
// path segment, leaving the enclosing directory. A segment that merely
// contains the token "index" (e.g. "/docs/indexed") is left untouched.
func collapseIndexSuffix(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	last := path[idx+1:]
	for _, suf := range indexSuffixes {
		if last == suf {
			dir := path[:idx+1]
			if dir == "" {
				return "/"
			}
			return dir
		}
	}
	return path
}

// sortQuery returns the query string with parameters sorted alphabetically
// by key (and value, for stable multi-value ordering) to make equivalent
// URLs compare equal.
func sortQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// Scope restricts which discovered URLs a crawl will follow.
type Scope string

const (
	ScopeSubpages Scope = "subpages"
	ScopeHostname Scope = "hostname"
	ScopeDomain   Scope = "domain"
)

// InScope reports whether target is reachable from base under scope.
// Different schemes always fail the check.
func InScope(base, target string, scope Scope) bool {
	bu, err := url.Parse(base)
	if err != nil {
		return false
	}
	tu, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !strings.EqualFold(bu.Scheme, tu.Scheme) {
		return false
	}

	switch scope {
	case ScopeHostname:
		return strings.EqualFold(bu.Hostname(), tu.Hostname())
	case ScopeDomain:
		return strings.EqualFold(registrableSuffix(bu.Hostname()), registrableSuffix(tu.Hostname()))
	default: // ScopeSubpages
		if !strings.EqualFold(bu.Hostname(), tu.Hostname()) {
			return false
		}
		prefix := parentDir(bu.Path)
		return strings.HasPrefix(tu.Path, prefix)
	}
}

// parentDir returns p if it ends with "/", otherwise the directory portion
// of p including the trailing slash.
func parentDir(p string) string {
	if p == "" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx+1]
	}
	return "/"
}

// registrableSuffix returns the last two dot-separated labels of host,
// approximating the registrable domain without a public-suffix list.
func registrableSuffix(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// Validate checks that raw is a well-formed http(s) or file:// URL. It does
// not perform SSRF/DNS checks — see package horosafe for that.
func Validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Raw: raw, Err: err}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "file":
	default:
		return &ValidationError{Raw: raw, Err: errUnsupportedScheme}
	}
	if u.Scheme != "file" && u.Host == "" {
		return &ValidationError{Raw: raw, Err: errNoHost}
	}
	return nil
}

// ValidationError wraps a URL validation failure with the offending input.
type ValidationError struct {
	Raw string
	Err error
}

func (e *ValidationError) Error() string { return "urlutil: " + e.Raw + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

var (
	errUnsupportedScheme = strError("unsupported scheme")
	errNoHost            = strError("missing host")
)

type strError string

func (e strError) Error() string { return string(e) }
