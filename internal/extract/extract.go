// Package extract turns fetched HTML into plain text and absolute links.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitescope/internal/crawler"
)

var ignoredSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Extractor implements crawler.Extractor with goquery.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract renders body to text and collects its links in document order.
// Malformed markup is tolerated; an unreadable body yields an empty Page.
func (e *Extractor) Extract(body []byte, pageURL string) crawler.Page {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Page{}
	}

	root := doc.Find("body").First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return crawler.Page{
		Text:  strings.ToValidUTF8(renderText(root.Nodes), "\uFFFD"),
		Links: collectLinks(doc, pageURL),
	}
}

func collectLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if abs, ok := resolve(base, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

// resolve makes href absolute against base. Fragments are dropped and only
// http(s) targets are kept.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range ignoredSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
