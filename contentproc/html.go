package contentproc

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/docsvault/fetch"
)

// HTMLPipeline implements the text/html and application/xhtml+xml pipeline
// described in §4.3: parse, sanitize, strip boilerplate, convert to
// Markdown, collect links.
type HTMLPipeline struct{}

func (p *HTMLPipeline) CanProcess(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

var sanitizePolicy = buildSanitizePolicy()

func buildSanitizePolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowStandardURLs()
	policy.AllowElements(
		"html", "body", "div", "span", "p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tr", "th", "td",
		"pre", "code", "blockquote",
		"strong", "em", "b", "i", "u",
		"a", "img",
		"nav", "footer", "header", "aside", "section", "article", "main",
		"figure", "figcaption", "title",
	)
	policy.AllowAttrs("class").Globally()
	policy.AllowAttrs("id").Globally()
	policy.AllowAttrs("role").Globally()
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowAttrs("src", "alt").OnElements("img")
	return policy
}

func (p *HTMLPipeline) Process(_ context.Context, raw fetch.RawContent) (ProcessedContent, error) {
	sanitized := sanitizePolicy.SanitizeBytes(raw.Bytes)

	doc, err := html.Parse(bytes.NewReader(sanitized))
	if err != nil {
		return ProcessedContent{Errors: []string{err.Error()}}, nil
	}

	title := findTitle(doc)
	stripBoilerplate(doc)
	links := collectLinks(doc, raw.SourceURL)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return ProcessedContent{Errors: []string{err.Error()}}, nil
	}

	conv := converter.NewConverter(converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	))
	md, err := conv.ConvertString(buf.String(), converter.WithDomain(raw.SourceURL))
	if err != nil {
		md = ""
	}
	md = strings.TrimSpace(md)

	out := ProcessedContent{
		TextMarkdown: md,
		Metadata:     Metadata{Title: title, URL: raw.SourceURL},
		Links:        links,
	}
	if md == "" {
		out.Errors = append(out.Errors, "empty markdown after conversion")
	}
	return out, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collectLinks(n *html.Node, base string) []string {
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key == "href" && a.Val != "" {
					if resolved := resolveLink(base, a.Val); resolved != "" {
						links = append(links, resolved)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return links
}

func resolveLink(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	hu, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}

// boilerplatePatterns matches class/id tokens associated with navigation
// chrome, cookie banners, and ads rather than page content.
var boilerplatePatterns = regexp.MustCompile(`(?i)\b(nav|navbar|footer|header|sidebar|ads?|advert|cookie|banner|menu|breadcrumb|pagination|social-share|newsletter)\b`)

// stripBoilerplate removes elements matching the strip-set: nav/footer/
// aside/header tags, role=banner/navigation/contentinfo, and class/id
// keyword matches, per §4.3 step 3.
func stripBoilerplate(n *html.Node) {
	var toRemove []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isStripTarget(n) {
			toRemove = append(toRemove, n)
			return // don't descend into removed subtrees
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func isStripTarget(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Aside:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "role":
			switch strings.ToLower(a.Val) {
			case "banner", "navigation", "contentinfo", "complementary":
				return true
			}
		case "class", "id":
			if boilerplatePatterns.MatchString(a.Val) {
				return true
			}
		}
	}
	// <header> is almost always masthead chrome on documentation sites, so
	// it's treated the same as nav/footer regardless of nesting.
	if n.DataAtom == atom.Header {
		return true
	}
	return false
}
