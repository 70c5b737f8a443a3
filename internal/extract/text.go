package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Img:      true,
	atom.Head:     true,
	atom.Title:    true,
}

var blockElements = map[atom.Atom]bool{
	atom.Address:    true,
	atom.Article:    true,
	atom.Aside:      true,
	atom.Blockquote: true,
	atom.Dd:         true,
	atom.Div:        true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Fieldset:   true,
	atom.Figcaption: true,
	atom.Figure:     true,
	atom.Footer:     true,
	atom.Form:       true,
	atom.Header:     true,
	atom.Hr:         true,
	atom.Main:       true,
	atom.Nav:        true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Ul:         true,
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1,
	atom.H2: 2,
	atom.H3: 3,
	atom.H4: 4,
	atom.H5: 5,
	atom.H6: 6,
}

// textRenderer accumulates blocks of text. Inline content goes to the
// current block until a block-level element flushes it.
type textRenderer struct {
	blocks []string
	cur    strings.Builder
}

func renderText(nodes []*html.Node) string {
	r := &textRenderer{}
	for _, n := range nodes {
		r.walk(n)
	}
	r.flush()
	return strings.Join(r.blocks, "\n\n")
}

func (r *textRenderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.cur.WriteString(n.Data)
		return
	case html.ElementNode:
	case html.DocumentNode:
		r.walkChildren(n)
		return
	default:
		return
	}

	if skippedElements[n.DataAtom] {
		return
	}
	switch {
	case n.DataAtom == atom.Br:
		r.cur.WriteByte('\n')
	case headingLevels[n.DataAtom] > 0:
		r.flush()
		r.cur.WriteString(strings.Repeat("#", headingLevels[n.DataAtom]) + " ")
		r.walkChildren(n)
		r.flush()
	case n.DataAtom == atom.Li:
		r.flush()
		r.cur.WriteString("* ")
		r.walkChildren(n)
		r.flush()
	case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
		r.walkChildren(n)
		r.cur.WriteByte(' ')
	case blockElements[n.DataAtom]:
		r.flush()
		r.walkChildren(n)
		r.flush()
	default:
		r.walkChildren(n)
	}
}

func (r *textRenderer) walkChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

// flush closes the current block, collapsing whitespace on every line and
// dropping blocks with no visible content.
func (r *textRenderer) flush() {
	raw := r.cur.String()
	r.cur.Reset()

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if collapsed := strings.Join(strings.Fields(line), " "); collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	if len(lines) == 0 {
		return
	}
	block := strings.Join(lines, "\n")
	if block == "*" || strings.Trim(block, "#") == "" {
		return
	}
	r.blocks = append(r.blocks, block)
}
