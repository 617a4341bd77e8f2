package crawl

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoContent is returned when a page has no <article> or <main> region to
// extract. Such pages are skipped, not failed.
var ErrNoContent = errors.New("no article or main content")

// boilerplate tags removed from the content region before text extraction.
var boilerplateTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"header": true,
	"footer": true,
}

// maxSectionHeaders caps how many h1–h3 headers are kept per page.
const maxSectionHeaders = 5

// extracted is the parse result for one page.
type extracted struct {
	title   string
	headers []string
	text    string
	links   []string
}

// extractPage parses HTML and pulls the page title, the clean text of the
// article/main region, its leading section headers, and every anchor href in
// the document.
func extractPage(body string) (*extracted, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := &extracted{}

	if titleNode := findFirst(doc, "title"); titleNode != nil {
		out.title = strings.TrimSpace(textContent(titleNode))
	}
	if out.title == "" {
		out.title = "Untitled"
	}

	// Links are discovered across the whole document, not just the content
	// region: navigation is where most internal links live.
	collectLinks(doc, &out.links)

	content := findFirst(doc, "article")
	if content == nil {
		content = findFirst(doc, "main")
	}
	if content == nil {
		return nil, ErrNoContent
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if boilerplateTags[n.Data] {
				return
			}
			switch n.Data {
			case "h1", "h2", "h3":
				if h := strings.TrimSpace(textContent(n)); h != "" && len(out.headers) < maxSectionHeaders {
					out.headers = append(out.headers, h)
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(content)

	out.text = strings.Join(parts, " ")
	return out, nil
}

// findFirst returns the first element with the given tag, depth-first.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates all text nodes under n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collectLinks gathers raw href values from every anchor.
func collectLinks(n *html.Node, into *[]string) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" && attr.Val != "" {
				*into = append(*into, attr.Val)
				break
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLinks(c, into)
	}
}
