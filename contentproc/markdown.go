package contentproc

import (
	"context"
	"regexp"
	"strings"

	"github.com/hazyhaar/docsvault/fetch"
)

// MarkdownPipeline handles content that is already Markdown (fetched
// directly, e.g. from the GitHub markdown fetcher, or served with a
// text/markdown content type). It does light normalization and extracts
// links from Markdown link/image syntax instead of an HTML DOM.
type MarkdownPipeline struct{}

func (p *MarkdownPipeline) CanProcess(mimeType string) bool {
	switch mimeType {
	case "text/markdown", "text/x-markdown":
		return true
	}
	return false
}

var mdLinkPattern = regexp.MustCompile(`!?\[[^\]]*\]\(([^)\s]+)`)

func (p *MarkdownPipeline) Process(_ context.Context, raw fetch.RawContent) (ProcessedContent, error) {
	text := strings.ReplaceAll(string(raw.Bytes), "\r\n", "\n")
	text = strings.TrimSpace(text)

	var links []string
	for _, m := range mdLinkPattern.FindAllStringSubmatch(text, -1) {
		if resolved := resolveLink(raw.SourceURL, m[1]); resolved != "" {
			links = append(links, resolved)
		}
	}

	out := ProcessedContent{
		TextMarkdown: text,
		Metadata:     Metadata{Title: firstHeading(text), URL: raw.SourceURL},
		Links:        links,
	}
	if text == "" {
		out.Errors = append(out.Errors, "empty markdown content")
	}
	return out, nil
}

func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
	}
	return ""
}
