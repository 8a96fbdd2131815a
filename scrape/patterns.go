package scrape

import (
	"regexp"
	"strings"
)

// matchesPatterns applies includePatterns/excludePatterns to rawURL,
// exclude winning over include, per §4.8.3's Local File strategy
// description (reused for any strategy that exposes these options). A
// pattern wrapped in slashes ("/re/") is a regexp; anything else is a
// glob matched against the whole URL string, where "*" matches any run of
// characters (including "/"), "?" matches one character, and every other
// character matches itself.
func matchesPatterns(rawURL string, include, exclude []string) bool {
	for _, p := range exclude {
		if patternMatches(p, rawURL) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, p := range include {
		if patternMatches(p, rawURL) {
			return true
		}
	}
	return false
}

func patternMatches(pattern, rawURL string) bool {
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1 {
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return false
		}
		return re.MatchString(rawURL)
	}
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	return err == nil && re.MatchString(rawURL)
}
