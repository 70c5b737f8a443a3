package analysis

import (
	"strings"

	"github.com/JakeFAU/sitescope/internal/crawler"
)

// DefaultExcludePatterns drop legal boilerplate pages from the prompt.
var DefaultExcludePatterns = []string{"privacy", "terms"}

// BuildInput concatenates the site's pages as "-- <url>\n<text>\n" in URL
// order, leaving out URLs that contain any exclude pattern. It returns the
// blob and the number of pages included.
func BuildInput(docs crawler.DocumentSet, exclude []string) (string, int) {
	var (
		b        strings.Builder
		included int
	)
	for _, url := range docs.Keys() {
		if containsAny(url, exclude) {
			continue
		}
		b.WriteString("-- ")
		b.WriteString(url)
		b.WriteByte('\n')
		b.WriteString(docs[url])
		b.WriteByte('\n')
		included++
	}
	return b.String(), included
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
