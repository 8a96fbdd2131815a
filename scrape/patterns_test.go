package scrape

import "testing"

func TestMatchesPatternsGlob(t *testing.T) {
	cases := []struct {
		url             string
		include, exclude []string
		want            bool
	}{
		{"https://example.com/docs/guide", nil, nil, true},
		{"https://example.com/docs/guide", []string{"*/docs/*"}, nil, true},
		{"https://example.com/api/guide", []string{"*/docs/*"}, nil, false},
		{"https://example.com/docs/internal", []string{"*/docs/*"}, []string{"*/internal*"}, false},
	}
	for _, c := range cases {
		if got := matchesPatterns(c.url, c.include, c.exclude); got != c.want {
			t.Errorf("matchesPatterns(%q, %v, %v) = %v, want %v", c.url, c.include, c.exclude, got, c.want)
		}
	}
}

func TestMatchesPatternsRegex(t *testing.T) {
	include := []string{`/docs\/v\d+/`}
	if !matchesPatterns("https://example.com/docs/v2/guide", include, nil) {
		t.Error("expected regex include to match versioned docs path")
	}
	if matchesPatterns("https://example.com/docs/legacy/guide", include, nil) {
		t.Error("expected regex include to reject non-versioned docs path")
	}
}

func TestMatchesPatternsExcludeWinsOverInclude(t *testing.T) {
	include := []string{"*"}
	exclude := []string{"*/changelog*"}
	if matchesPatterns("https://example.com/changelog", include, exclude) {
		t.Error("expected exclude to win over a matching include")
	}
}
