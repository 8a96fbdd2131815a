package splitter

import (
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockTable
	blockJSONFence
)

type block struct {
	kind  blockKind
	raw   string
	level int
	text  string
}

// parseBlocks groups Markdown lines into headings, tables, fenced JSON code
// blocks, and ordinary paragraphs (contiguous non-blank lines), in document
// order.
func parseBlocks(markdown string) []block {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")
	var blocks []block
	var para []string

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		blocks = append(blocks, block{kind: blockParagraph, raw: strings.Join(para, "\n")})
		para = nil
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushPara()
			i++

		case isHeading(trimmed):
			flushPara()
			level, text := parseHeading(trimmed)
			blocks = append(blocks, block{kind: blockHeading, raw: line, level: level, text: text})
			i++

		case strings.HasPrefix(trimmed, "```json") || strings.HasPrefix(trimmed, "```JSON"):
			flushPara()
			end := i + 1
			for end < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[end]), "```") {
				end++
			}
			if end < len(lines) {
				end++
			}
			blocks = append(blocks, block{kind: blockJSONFence, raw: strings.Join(lines[i:end], "\n")})
			i = end

		case isTableRow(trimmed) && i+1 < len(lines) && isTableSeparator(strings.TrimSpace(lines[i+1])):
			flushPara()
			end := i + 2
			for end < len(lines) && isTableRow(strings.TrimSpace(lines[end])) {
				end++
			}
			blocks = append(blocks, block{kind: blockTable, raw: strings.Join(lines[i:end], "\n")})
			i = end

		default:
			para = append(para, line)
			i++
		}
	}
	flushPara()
	return blocks
}

func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n <= 6 && (n == len(line) || line[n] == ' ')
}

func parseHeading(line string) (int, string) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n, strings.TrimSpace(line[n:])
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}

func isTableSeparator(line string) bool {
	if !isTableRow(line) {
		return false
	}
	for _, c := range line {
		switch c {
		case '|', '-', ':', ' ':
			continue
		default:
			return false
		}
	}
	return true
}
