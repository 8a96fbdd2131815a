// Package fetch retrieves raw bytes from HTTP(S), file://, and GitHub
// markdown sources. Fetchers never follow links or parse content.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/docsvault/docerr"
	"github.com/hazyhaar/docsvault/horosafe"
)

// RawContent is the output of any Fetcher.
type RawContent struct {
	Bytes     []byte
	MimeType  string
	Charset   string
	SourceURL string

	// Conditional-GET metadata, carried forward for an incremental rescan.
	// Unused on a page's first-ever fetch.
	ETag         string
	LastModified string
	Hash         string
	Changed      bool
}

// Options configures a single fetch call.
type Options struct {
	Headers         map[string]string
	FollowRedirects bool
	PrevETag        string
	PrevLastMod     string
	PrevHash        string
}

// Fetcher retrieves raw content for URLs it claims to handle.
type Fetcher interface {
	CanFetch(rawURL string) bool
	Fetch(ctx context.Context, rawURL string, opts Options) (RawContent, error)
}

// HTTPConfig configures HTTPFetcher.
type HTTPConfig struct {
	Timeout      time.Duration // default 30s
	MaxBytes     int64         // default 10MB
	UserAgent    string        // default "docsvault-scraper/1.0"
	URLValidator func(string) error
	MaxRetries   int           // default 6, retry budget for 4xx responses
	BaseDelay    time.Duration // default 1s, delay = BaseDelay * 2^attempt
	Logger       *slog.Logger
}

func (c *HTTPConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "docsvault-scraper/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 6
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// HTTPFetcher issues conditional GETs with SSRF-checked redirects and
// retries 4xx responses with exponential backoff per §4.8.4. 5xx and
// network errors propagate immediately without retry.
type HTTPFetcher struct {
	client *http.Client
	cfg    HTTPConfig
}

// NewHTTP constructs an HTTPFetcher. A MaxRetries or BaseDelay of zero or
// less is replaced by its default (6 retries, 1s); a non-positive value is
// never rejected.
func NewHTTP(cfg HTTPConfig) *HTTPFetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
	}
}

func (f *HTTPFetcher) CanFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (RawContent, error) {
	if err := f.cfg.URLValidator(rawURL); err != nil {
		return RawContent{}, fmt.Errorf("%w: %s: %v", docerr.ErrInvalidURL, rawURL, err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		rc, retriable, err := f.doOnce(ctx, rawURL, opts)
		if err == nil {
			return rc, nil
		}
		lastErr = err
		if !retriable || attempt == f.cfg.MaxRetries {
			break
		}
		delay := f.cfg.BaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return RawContent{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return RawContent{}, lastErr
}

func (f *HTTPFetcher) doOnce(ctx context.Context, rawURL string, opts Options) (RawContent, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return RawContent{}, false, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.PrevETag != "" {
		req.Header.Set("If-None-Match", opts.PrevETag)
	}
	if opts.PrevLastMod != "" {
		req.Header.Set("If-Modified-Since", opts.PrevLastMod)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return RawContent{}, false, &docerr.FetchError{URL: rawURL, Retriable: false, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return RawContent{
			SourceURL:    rawURL,
			Changed:      false,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, false, nil
	}

	if resp.StatusCode >= 500 {
		return RawContent{}, false, &docerr.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Retriable: false,
			Err: fmt.Errorf("server error")}
	}
	if resp.StatusCode >= 400 {
		// All 4xx (including 404) are treated as potentially transient here.
		return RawContent{}, true, &docerr.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Retriable: true,
			Err: fmt.Errorf("client error")}
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return RawContent{}, false, err
	}

	h := sha256.Sum256(body)
	hash := fmt.Sprintf("%x", h)
	changed := opts.PrevHash == "" || hash != opts.PrevHash

	mimeType, charset := splitContentType(resp.Header.Get("Content-Type"))
	return RawContent{
		Bytes:        body,
		MimeType:     mimeType,
		Charset:      charset,
		SourceURL:    rawURL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Hash:         hash,
		Changed:      changed,
	}, false, nil
}

func splitContentType(ct string) (mimeType, charset string) {
	if ct == "" {
		return "text/html", ""
	}
	m, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.TrimSpace(strings.Split(ct, ";")[0]), ""
	}
	return m, params["charset"]
}

// FileFetcher reads file:// URLs, percent-decoding path components before
// the syscall, sniffing MIME type from the file extension and content.
type FileFetcher struct{}

func NewFile() *FileFetcher { return &FileFetcher{} }

func (f *FileFetcher) CanFetch(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "file"
}

func (f *FileFetcher) Fetch(_ context.Context, rawURL string, _ Options) (RawContent, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RawContent{}, fmt.Errorf("%w: %s", docerr.ErrInvalidURL, rawURL)
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return RawContent{}, fmt.Errorf("%w: %s: %v", docerr.ErrInvalidURL, rawURL, err)
	}

	data, err := readFile(path)
	if err != nil {
		return RawContent{}, err
	}

	mimeType := sniffMime(path, data)
	h := sha256.Sum256(data)
	return RawContent{
		Bytes:     data,
		MimeType:  mimeType,
		SourceURL: rawURL,
		Hash:      fmt.Sprintf("%x", h),
		Changed:   true,
	}, nil
}

func sniffMime(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "text/html"
	case ".md", ".markdown":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	}
	return http.DetectContentType(data)
}

// GitHubConfig configures GitHubMarkdownFetcher.
type GitHubConfig struct {
	APIBaseURL string // default https://api.github.com
	Token      string // bearer auth; empty means unauthenticated
	Timeout    time.Duration
}

func (c *GitHubConfig) defaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// GitHubMarkdownFetcher recognizes github.com/<owner>/<repo> URLs and
// returns the repository's concatenated Markdown files as one RawContent
// of MIME text/markdown, per §4.2.
type GitHubMarkdownFetcher struct {
	cfg    GitHubConfig
	client *http.Client
}

func NewGitHubMarkdown(cfg GitHubConfig) *GitHubMarkdownFetcher {
	cfg.defaults()
	return &GitHubMarkdownFetcher{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (f *GitHubMarkdownFetcher) CanFetch(rawURL string) bool {
	owner, repo, _ := ParseGitHubURL(rawURL)
	return owner != "" && repo != ""
}

// ParseGitHubURL extracts owner/repo/resource from a github.com URL.
func ParseGitHubURL(rawURL string) (owner, repo, resource string) {
	u := rawURL
	matched := false
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		if strings.HasPrefix(u, prefix) {
			u = strings.TrimPrefix(u, prefix)
			matched = true
			break
		}
	}
	if !matched {
		return "", "", ""
	}
	u = strings.TrimRight(u, "/")
	parts := strings.SplitN(u, "/", 4)
	if len(parts) < 2 {
		return "", "", ""
	}
	owner = parts[0]
	repo = parts[1]
	if len(parts) >= 3 {
		resource = parts[2]
	}
	return owner, repo, resource
}

func (f *GitHubMarkdownFetcher) Fetch(ctx context.Context, rawURL string, _ Options) (RawContent, error) {
	owner, repo, _ := ParseGitHubURL(rawURL)
	if owner == "" || repo == "" {
		return RawContent{}, fmt.Errorf("%w: %s: expected github.com/owner/repo", docerr.ErrInvalidURL, rawURL)
	}

	files, err := f.listMarkdownFiles(ctx, owner, repo)
	if err != nil {
		return RawContent{}, err
	}

	var sb strings.Builder
	for _, path := range files {
		content, err := f.fetchFile(ctx, owner, repo, path)
		if err != nil {
			continue // best effort: one unreadable file doesn't fail the whole fetch
		}
		fmt.Fprintf(&sb, "\n\n<!-- %s -->\n\n%s", path, content)
	}

	body := []byte(strings.TrimSpace(sb.String()))
	h := sha256.Sum256(body)
	return RawContent{
		Bytes:     body,
		MimeType:  "text/markdown",
		SourceURL: rawURL,
		Hash:      fmt.Sprintf("%x", h),
		Changed:   true,
	}, nil
}

type ghTreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type ghTreeResponse struct {
	Tree []ghTreeEntry `json:"tree"`
}

func (f *GitHubMarkdownFetcher) listMarkdownFiles(ctx context.Context, owner, repo string) ([]string, error) {
	for _, branch := range []string{"main", "master"} {
		url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", f.cfg.APIBaseURL, owner, repo, branch)
		body, err := f.getJSON(ctx, url)
		if err != nil {
			continue
		}
		var tr ghTreeResponse
		if err := decodeJSON(body, &tr); err != nil {
			continue
		}
		var out []string
		for _, e := range tr.Tree {
			if e.Type == "blob" && isMarkdownPath(e.Path) {
				out = append(out, e.Path)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("docsvault/fetch: could not list tree for %s/%s", owner, repo)
}

func (f *GitHubMarkdownFetcher) fetchFile(ctx context.Context, owner, repo, path string) (string, error) {
	url := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/HEAD/%s", owner, repo, path)
	body, err := f.getJSON(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *GitHubMarkdownFetcher) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errBody, _ := horosafe.LimitedReadAll(resp.Body, 1024)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(errBody))
	}
	return horosafe.LimitedReadAll(resp.Body, 10*1024*1024)
}

func isMarkdownPath(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".md" || ext == ".markdown"
}

// readFile and decodeJSON are indirected for testability without importing
// os/encoding-json into every call site above.
var readFile = defaultReadFile

func defaultReadFile(path string) ([]byte, error) {
	return osReadFile(path)
}
