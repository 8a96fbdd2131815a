package splitter

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// splitJSONFence splits a fenced ```json block along its top-level array
// elements or object keys, grouping them into fenced chunks of roughly
// maxSize, each independently parseable JSON. Only the top level is split:
// nested arrays and objects are not split, so an element or value larger
// than maxSize stays whole in a chunk of its own that exceeds maxSize.
func splitJSONFence(raw string, maxSize int) []string {
	if len(raw) <= maxSize {
		return []string{raw}
	}

	body := fenceBody(raw)

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(body), &arr); err == nil && len(arr) > 0 {
		return groupJSONArray(arr, maxSize)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err == nil && len(obj) > 0 {
		return groupJSONObject(obj, maxSize)
	}

	// Not decomposable (scalar, empty, or invalid JSON); fall back to a
	// plain text split so the page is never silently dropped.
	return splitLong(raw, maxSize, 0)
}

func fenceBody(raw string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return raw
	}
	start := 1
	end := len(lines)
	if strings.HasPrefix(strings.TrimSpace(lines[end-1]), "```") {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

func groupJSONArray(elems []json.RawMessage, maxSize int) []string {
	var chunks []string
	var group []json.RawMessage
	size := 2 // "[]"
	flush := func() {
		if len(group) == 0 {
			return
		}
		chunks = append(chunks, fenceJSON(group))
		group = nil
		size = 2
	}
	for _, e := range elems {
		if size+len(e)+1 > maxSize && len(group) > 0 {
			flush()
		}
		group = append(group, e)
		size += len(e) + 1
	}
	flush()
	if len(chunks) == 0 {
		chunks = []string{fenceJSON(elems)}
	}
	return chunks
}

func fenceJSON(elems []json.RawMessage) string {
	var buf bytes.Buffer
	buf.WriteString("```json\n[")
	for i, e := range elems {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(e)
	}
	buf.WriteString("\n]\n```")
	return buf.String()
}

func groupJSONObject(obj map[string]json.RawMessage, maxSize int) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var chunks []string
	group := map[string]json.RawMessage{}
	size := 2
	flush := func() {
		if len(group) == 0 {
			return
		}
		b, _ := json.MarshalIndent(group, "", "  ")
		chunks = append(chunks, "```json\n"+string(b)+"\n```")
		group = map[string]json.RawMessage{}
		size = 2
	}
	for _, k := range keys {
		v := obj[k]
		if size+len(k)+len(v)+4 > maxSize && len(group) > 0 {
			flush()
		}
		group[k] = v
		size += len(k) + len(v) + 4
	}
	flush()
	if len(chunks) == 0 {
		b, _ := json.MarshalIndent(obj, "", "  ")
		chunks = []string{"```json\n" + string(b) + "\n```"}
	}
	return chunks
}
