package splitter

import "strings"

// splitTable breaks a Markdown table into chunks no larger than maxSize,
// repeating the header row (and its separator) at the top of every chunk
// past the first so each one stays a valid, independently readable table.
func splitTable(raw string, maxSize int) []string {
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return []string{raw}
	}
	header := lines[0] + "\n" + lines[1]
	rows := lines[2:]

	if len(raw) <= maxSize {
		return []string{raw}
	}

	var chunks []string
	var buf strings.Builder
	buf.WriteString(header)
	for _, row := range rows {
		if buf.Len()+len(row)+1 > maxSize && buf.Len() > len(header) {
			chunks = append(chunks, buf.String())
			buf.Reset()
			buf.WriteString(header)
		}
		buf.WriteString("\n")
		buf.WriteString(row)
	}
	if strings.TrimSpace(buf.String()) != strings.TrimSpace(header) {
		chunks = append(chunks, buf.String())
	}
	if len(chunks) == 0 {
		chunks = []string{raw}
	}
	return chunks
}
