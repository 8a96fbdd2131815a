package contentproc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/hazyhaar/docsvault/fetch"
)

// JSONPipeline turns application/json content (e.g. npm registry package
// metadata, pypi JSON API responses) into a readable fenced code block.
// Pretty-printing is the full extent of the transformation: there is no
// third-party JSON library anywhere in the example pack, so encoding/json's
// Indent is the idiomatic choice here (see DESIGN.md).
type JSONPipeline struct{}

func (p *JSONPipeline) CanProcess(mimeType string) bool {
	return mimeType == "application/json" || mimeType == "text/json"
}

func (p *JSONPipeline) Process(_ context.Context, raw fetch.RawContent) (ProcessedContent, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw.Bytes, "", "  "); err != nil {
		// Not valid JSON; fall back to treating it as opaque text rather
		// than dropping the page.
		buf.Reset()
		buf.Write(raw.Bytes)
	}

	text := buf.String()
	md := "```json\n" + text + "\n```"

	out := ProcessedContent{
		TextMarkdown: md,
		Metadata:     Metadata{URL: raw.SourceURL},
	}
	if len(bytes.TrimSpace(raw.Bytes)) == 0 {
		out.Errors = append(out.Errors, "empty json content")
		out.TextMarkdown = ""
	}
	return out, nil
}
