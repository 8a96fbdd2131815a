package store

import (
	"encoding/json"
	"time"
)

// Metadata is the structured record carried by every chunk (§3): title,
// url, the heading path from page root to the chunk's section, the
// heading depth, and any extra processor-supplied fields.
type Metadata struct {
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Path  []string `json:"path"`
	Level int      `json:"level"`

	// Extra carries processor-supplied fields the fixed columns don't
	// name (e.g. extraction_quality from the Local File strategy), plus
	// the score/vec_rank/fts_rank a search result is decorated with.
	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra alongside the named fields into one object,
// matching how it round-trips through the metadata JSON column.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"title": m.Title,
		"url":   m.URL,
		"path":  m.Path,
		"level": m.Level,
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the object back into the named fields plus Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["title"].(string); ok {
		m.Title = v
	}
	if v, ok := raw["url"].(string); ok {
		m.URL = v
	}
	if v, ok := raw["level"].(float64); ok {
		m.Level = int(v)
	}
	if v, ok := raw["path"].([]any); ok {
		m.Path = make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				m.Path = append(m.Path, s)
			}
		}
	}
	m.Extra = make(map[string]any)
	for k, v := range raw {
		switch k {
		case "title", "url", "path", "level":
		default:
			m.Extra[k] = v
		}
	}
	return nil
}

// pathKey returns the canonical JSON encoding of a path, used to compare
// (and persist) hierarchy positions exactly.
func pathKey(path []string) string {
	if path == nil {
		path = []string{}
	}
	b, _ := json.Marshal(path)
	return string(b)
}

// Document is one unit of content handed to AddDocuments, ahead of
// embedding and storage (it is the splitter's ContentChunk, addressed at
// a specific page and position).
type Document struct {
	Content  string
	Metadata Metadata
}

// Chunk is the unit of storage and retrieval (§3).
type Chunk struct {
	ID        string
	Library   string
	Version   string
	URL       string
	Content   string
	Metadata  Metadata
	SortOrder int
	IndexedAt time.Time
}

// ScoredChunk decorates a Chunk with the hybrid-search rank-fusion score
// and each branch's rank (0 if the chunk did not appear in that branch),
// per §4.6.3 step 6.
type ScoredChunk struct {
	Chunk
	Score   float64
	VecRank int
	FTSRank int
}

// VersionDetail is one row of QueryLibraryVersions' per-(library,version)
// summary (§4.6.5).
type VersionDetail struct {
	Version        string
	DocumentCount  int
	UniqueURLCount int
	IndexedAt      time.Time
}

// SearchOptions parameterizes FindByContent (§4.6.3).
type SearchOptions struct {
	Library string
	Version string
	Query   string
	K       int
}
