package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hazyhaar/docsvault/docpipe"
	"github.com/hazyhaar/docsvault/urlutil"
)

// LocalFileStrategy handles file:// URLs, per §4.8.3. Directories expand
// into their entries as links; files are routed through docpipe's format
// dispatcher (text, Markdown, HTML, DOCX, ODT, PDF). Binary files with no
// recognized format are skipped.
type LocalFileStrategy struct {
	pipe   *docpipe.Pipeline
	logger *slog.Logger
}

// NewLocalFileStrategy builds the Local File strategy.
func NewLocalFileStrategy(logger *slog.Logger) *LocalFileStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalFileStrategy{pipe: docpipe.New(docpipe.Config{}), logger: logger}
}

func (l *LocalFileStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "file"
}

func (l *LocalFileStrategy) Scrape(ctx context.Context, opts Options, onProgress ProgressFunc) error {
	opts.defaults()
	// file:// URLs have no host, so urlutil.Normalize leaves them
	// unchanged regardless of options; a zero-value urlutil.Options is
	// the correct identity normalization here.
	return runBaseCrawl(ctx, opts, opts.URL, onProgress, l.processItem, urlutil.Options{}, l.logger)
}

func (l *LocalFileStrategy) processItem(ctx context.Context, opts Options, rawURL string) (itemResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return itemResult{}, fmt.Errorf("scrape: invalid file url %s: %w", rawURL, err)
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return itemResult{}, fmt.Errorf("scrape: invalid file url %s: %w", rawURL, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return itemResult{}, fmt.Errorf("scrape: stat %s: %w", path, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return itemResult{}, fmt.Errorf("scrape: read dir %s: %w", path, err)
		}
		links := make([]string, 0, len(entries))
		for _, e := range entries {
			child := filepath.Join(path, e.Name())
			if !matchesPatterns(child, opts.IncludePatterns, opts.ExcludePatterns) {
				continue
			}
			links = append(links, (&url.URL{Scheme: "file", Path: child}).String())
		}
		return itemResult{links: links}, nil
	}

	if !matchesPatterns(path, opts.IncludePatterns, opts.ExcludePatterns) {
		return itemResult{}, nil
	}

	if _, err := l.pipe.Detect(path); err != nil {
		l.logger.Debug("scrape: skipping unrecognized file", "path", path)
		return itemResult{}, nil
	}

	doc, err := l.pipe.Extract(ctx, path)
	if err != nil {
		return itemResult{}, fmt.Errorf("scrape: extract %s: %w", path, err)
	}
	if doc.RawText == "" {
		return itemResult{}, nil
	}

	title := doc.Title
	if title == "" {
		title = filepath.Base(path)
	}

	extra := map[string]string{}
	if doc.Quality != nil {
		extra["extraction_quality"] = fmt.Sprintf("%.2f", doc.Quality.PrintableRatio)
		if doc.Quality.NeedsOCR() {
			extra["needs_ocr"] = "true"
		}
	}

	return itemResult{doc: &Document{
		Content: doc.RawText,
		Metadata: DocumentMetadata{
			URL:     rawURL,
			Title:   title,
			Library: opts.Library,
			Version: opts.Version,
			Extra:   extra,
		},
	}}, nil
}
