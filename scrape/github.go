package scrape

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazyhaar/docsvault/fetch"
)

// GitHubHTMLStrategy composes the web strategy with a shouldFollow that
// restricts crawling to one repository's root, wiki, and Markdown blobs,
// per §4.8.3.
type GitHubHTMLStrategy struct {
	web *WebStrategy
}

// NewGitHubHTMLStrategy wraps web with the GitHub HTML-mode shouldFollow.
func NewGitHubHTMLStrategy(web *WebStrategy) *GitHubHTMLStrategy {
	return &GitHubHTMLStrategy{web: web.WithShouldFollow(githubShouldFollow)}
}

func (g *GitHubHTMLStrategy) CanHandle(rawURL string) bool {
	owner, repo, _ := fetch.ParseGitHubURL(rawURL)
	return owner != "" && repo != ""
}

func (g *GitHubHTMLStrategy) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	return g.web.Scrape(ctx, opts, onProgress)
}

// githubShouldFollow implements §4.8.3's GitHub HTML-mode rule: true only
// for URLs under the same /<owner>/<repo> path that are the repo root, a
// /wiki/... page, or a /blob/...  path ending in .md.
func githubShouldFollow(baseURL, link string) bool {
	baseOwner, baseRepo, _ := fetch.ParseGitHubURL(baseURL)
	owner, repo, resource := fetch.ParseGitHubURL(link)
	if owner == "" || repo == "" || !strings.EqualFold(owner, baseOwner) || !strings.EqualFold(repo, baseRepo) {
		return false
	}
	if resource == "" {
		return true // repo root
	}
	if strings.HasPrefix(resource, "wiki") {
		return true
	}
	if resource == "blob" && strings.HasSuffix(strings.ToLower(link), ".md") {
		return true
	}
	return false
}

// GitHubMarkdownStrategy fetches a repository's concatenated Markdown
// files once via the GitHub markdown fetcher and never follows links,
// per §4.8.3.
type GitHubMarkdownStrategy struct {
	fetcher *fetch.GitHubMarkdownFetcher
	logger  *slog.Logger
}

// NewGitHubMarkdownStrategy builds the GitHub markdown-mode strategy.
func NewGitHubMarkdownStrategy(logger *slog.Logger) *GitHubMarkdownStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubMarkdownStrategy{fetcher: fetch.NewGitHubMarkdown(fetch.GitHubConfig{}), logger: logger}
}

// CanHandle always reports false: the registry selects this strategy
// explicitly by Options.ScrapeMode rather than by URL shape, since it
// would otherwise claim the same URLs as GitHubHTMLStrategy.
func (g *GitHubMarkdownStrategy) CanHandle(rawURL string) bool { return false }

func (g *GitHubMarkdownStrategy) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	raw, err := g.fetcher.Fetch(ctx, opts.URL, fetch.Options{})
	if err != nil {
		return err
	}
	return onProgress(Document{
		Content: string(raw.Bytes),
		Metadata: DocumentMetadata{
			URL:     opts.URL,
			Title:   opts.URL,
			Library: opts.Library,
			Version: opts.Version,
		},
	})
}
