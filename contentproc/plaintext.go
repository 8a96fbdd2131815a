package contentproc

import (
	"context"
	"strings"

	"github.com/hazyhaar/docsvault/fetch"
)

// PlainTextPipeline is the catch-all for any other text/* MIME type
// (text/plain, text/csv, etc.) that carries no further structure to
// extract beyond whitespace normalization.
type PlainTextPipeline struct{}

func (p *PlainTextPipeline) CanProcess(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

func (p *PlainTextPipeline) Process(_ context.Context, raw fetch.RawContent) (ProcessedContent, error) {
	text := strings.ReplaceAll(string(raw.Bytes), "\r\n", "\n")
	text = strings.TrimSpace(text)

	out := ProcessedContent{
		TextMarkdown: text,
		Metadata:     Metadata{URL: raw.SourceURL},
	}
	if text == "" {
		out.Errors = append(out.Errors, "empty text content")
	}
	return out, nil
}
