package splitter

import "strings"

// splitLong breaks an oversized paragraph into a sliding window of chunks,
// preferring to break on whitespace near the budget rather than mid-word,
// and repeating the trailing overlap bytes at the start of the next chunk
// for retrieval continuity.
func splitLong(text string, maxSize, overlap int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			end = len(text)
		} else if idx := strings.LastIndexAny(text[start:end], " \n\t"); idx > maxSize/2 {
			end = start + idx
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
