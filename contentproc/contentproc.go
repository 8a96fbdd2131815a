// Package contentproc dispatches raw fetched bytes to a MIME-specific
// pipeline that sanitizes, strips boilerplate, and converts content to
// Markdown, collecting links along the way, per §4.3.
package contentproc

import (
	"context"
	"strings"

	"github.com/hazyhaar/docsvault/fetch"
)

// Metadata carries processor-derived facts about the page.
type Metadata struct {
	Title    string
	URL      string
	PathHint []string
}

// ProcessedContent is the output of a Pipeline.
type ProcessedContent struct {
	TextMarkdown string
	Metadata     Metadata
	Links        []string
	Errors       []string
}

// Pipeline converts a RawContent of a MIME type it claims to handle into
// Markdown.
type Pipeline interface {
	CanProcess(mimeType string) bool
	Process(ctx context.Context, raw fetch.RawContent) (ProcessedContent, error)
}

// Registry selects the first pipeline whose CanProcess matches, per the
// first-match dynamic-dispatch convention used throughout the system (§9).
type Registry struct {
	pipelines []Pipeline
}

// NewRegistry builds the default registry: HTML, Markdown, JSON, then
// plain-text for any other text/* MIME type.
func NewRegistry() *Registry {
	return &Registry{pipelines: []Pipeline{
		&HTMLPipeline{},
		&MarkdownPipeline{},
		&JSONPipeline{},
		&PlainTextPipeline{},
	}}
}

// Select returns the first pipeline able to process mimeType, or nil if
// the content should be skipped (binary content, per §4.3).
func (r *Registry) Select(mimeType string) Pipeline {
	for _, p := range r.pipelines {
		if p.CanProcess(mimeType) {
			return p
		}
	}
	return nil
}

// Process dispatches raw to the first matching pipeline. A nil, nil return
// means the content's MIME type has no pipeline and should be skipped.
func (r *Registry) Process(ctx context.Context, raw fetch.RawContent) (*ProcessedContent, error) {
	p := r.Select(normalizeMime(raw.MimeType))
	if p == nil {
		return nil, nil
	}
	out, err := p.Process(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func normalizeMime(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}
