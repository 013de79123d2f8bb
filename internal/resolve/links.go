package resolve

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// ExtractLinks scans an HTML page for anchors pointing at PDF documents and
// returns their absolute URLs, links on a preferred domain first. Document
// order is kept within each group and duplicates are dropped.
func ExtractLinks(base string, body []byte, preferred []string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: parse base url %q", base)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "resolve: parse html")
	}

	var pref, other []string
	seen := make(map[string]bool)

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attr(n, "href"); strings.Contains(strings.ToLower(href), ".pdf") {
				if abs, ok := absolute(baseURL, href); ok && !seen[abs] {
					seen[abs] = true
					if isPreferred(abs, preferred) {
						pref = append(pref, abs)
					} else {
						other = append(other, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return append(pref, other...), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func absolute(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func isPreferred(link string, preferred []string) bool {
	for _, d := range preferred {
		if d != "" && strings.Contains(link, d) {
			return true
		}
	}
	return false
}
