// Package splitter turns Markdown into an ordered sequence of bounded
// ContentChunks, tracking heading structure so each chunk knows its section
// path, per §4.4. Tables keep their header row when a
// table is split across chunks, and JSON code blocks split along object/
// array boundaries so every resulting chunk stays independently parseable.
package splitter

import (
	"strings"
)

// Metadata carries the document-level facts a chunk inherits.
type Metadata struct {
	Title string
	URL   string
}

// Section describes where a chunk sits in the document's heading outline.
type Section struct {
	Level int
	Path  []string
}

// ContentChunk is one unit of text ready for embedding and storage.
type ContentChunk struct {
	Content string
	Section Section
}

// Options bounds the splitting behavior.
type Options struct {
	MaxChunkSize int
	Overlap      int
}

func (o *Options) defaults() {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = 1500
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxChunkSize {
		o.Overlap = o.MaxChunkSize / 4
	}
}

// Splitter is the interface the pipeline worker depends on, allowing a test
// double to stand in for the default implementation.
type Splitter interface {
	Split(markdown string, meta Metadata, opts Options) []ContentChunk
}

// Default is the package's production Splitter.
type Default struct{}

func (Default) Split(markdown string, meta Metadata, opts Options) []ContentChunk {
	return Split(markdown, meta, opts)
}

// Split is the package-level convenience entry point used directly by
// callers that don't need to swap implementations.
func Split(markdown string, meta Metadata, opts Options) []ContentChunk {
	opts.defaults()

	blocks := parseBlocks(markdown)
	var chunks []ContentChunk
	path := []string{}
	level := 0

	var buf strings.Builder
	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			buf.Reset()
			return
		}
		chunks = append(chunks, ContentChunk{
			Content: text,
			Section: Section{Level: level, Path: append([]string(nil), path...)},
		})
		buf.Reset()
	}

	for _, b := range blocks {
		switch b.kind {
		case blockHeading:
			flush()
			level = b.level
			path = updatePath(path, b.level, b.text)
			buf.WriteString(b.raw)
			buf.WriteString("\n\n")
		case blockTable:
			flush()
			for _, sub := range splitTable(b.raw, opts.MaxChunkSize) {
				chunks = append(chunks, ContentChunk{
					Content: sub,
					Section: Section{Level: level, Path: append([]string(nil), path...)},
				})
			}
		case blockJSONFence:
			flush()
			for _, sub := range splitJSONFence(b.raw, opts.MaxChunkSize) {
				chunks = append(chunks, ContentChunk{
					Content: sub,
					Section: Section{Level: level, Path: append([]string(nil), path...)},
				})
			}
		default:
			if buf.Len()+len(b.raw) > opts.MaxChunkSize && buf.Len() > 0 {
				current := buf.String()
				flush()
				if opts.Overlap > 0 {
					buf.WriteString(tailOverlap(current, opts.Overlap))
				}
			}
			if len(b.raw) > opts.MaxChunkSize {
				for _, sub := range splitLong(b.raw, opts.MaxChunkSize, opts.Overlap) {
					chunks = append(chunks, ContentChunk{
						Content: sub,
						Section: Section{Level: level, Path: append([]string(nil), path...)},
					})
				}
				continue
			}
			buf.WriteString(b.raw)
			buf.WriteString("\n\n")
		}
	}
	flush()
	return chunks
}

// updatePath drops everything at level and below, then appends the new
// heading text, mirroring a document outline's LIFO structure.
func updatePath(path []string, level int, text string) []string {
	if level <= 0 || level > len(path)+1 {
		level = len(path) + 1
	}
	next := append([]string(nil), path[:min(level-1, len(path))]...)
	return append(next, text)
}

func tailOverlap(text string, n int) string {
	if len(text) <= n {
		return text + "\n\n"
	}
	return text[len(text)-n:] + "\n\n"
}
