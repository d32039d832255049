package docx

import (
	"encoding/xml"
	"sort"
	"strings"
)

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeTab
	nodeBreak
)

// textNode is a w:t, w:tab, w:br or w:cr element inside a run.
type textNode struct {
	kind  nodeKind
	start int
	end   int
	qname string
	value string
}

// Paragraph is a w:p element. Its text is the concatenation of its runs'
// text, with tabs as "\t" and line breaks as "\n".
type Paragraph struct {
	part        *part
	start       int
	end         int
	closeStart  int
	selfClosing bool
	qname       string
	nodes       []*textNode

	text     string
	replaced bool
}

// Text returns the paragraph's current text.
func (p *Paragraph) Text() string {
	return p.text
}

// SetText replaces the paragraph's text. The new text goes into the first
// run so its formatting is kept; the remaining runs are emptied.
func (p *Paragraph) SetText(text string) {
	p.text = text
	p.replaced = true
}

func (p *Paragraph) originalText() string {
	var b strings.Builder
	for _, n := range p.nodes {
		b.WriteString(n.value)
	}
	return b.String()
}

// edit replaces data[start:end] with text.
type edit struct {
	start int
	end   int
	text  string
}

func (p *Paragraph) edits() []edit {
	if !p.replaced {
		return nil
	}

	target := -1
	for i, n := range p.nodes {
		if n.kind == nodeText {
			target = i
			break
		}
	}
	if target < 0 && len(p.nodes) > 0 {
		target = 0
	}

	if target < 0 {
		if p.text == "" {
			return nil
		}
		prefix := prefixOf(p.qname)
		run := "<" + prefix + "r>" + runContent(prefix, p.text) + "</" + prefix + "r>"
		if p.selfClosing {
			open := strings.TrimSuffix(string(p.part.data[p.start:p.end]), "/>")
			open = strings.TrimRight(open, " \t\r\n")
			return []edit{{p.start, p.end, open + ">" + run + "</" + p.qname + ">"}}
		}
		return []edit{{p.closeStart, p.closeStart, run}}
	}

	out := make([]edit, 0, len(p.nodes))
	for i, n := range p.nodes {
		switch {
		case i == target:
			out = append(out, edit{n.start, n.end, runContent(prefixOf(n.qname), p.text)})
		case n.kind == nodeText:
			out = append(out, edit{n.start, n.end, "<" + n.qname + "/>"})
		default:
			out = append(out, edit{n.start, n.end, ""})
		}
	}
	return out
}

// runContent renders text as run content: w:t elements separated by w:tab
// and w:br for tabs and line breaks.
func runContent(prefix, text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	segment := func(s string) {
		b.WriteString("<" + prefix + `t xml:space="preserve">`)
		xml.EscapeText(&b, []byte(s))
		b.WriteString("</" + prefix + "t>")
	}

	start := 0
	for i, r := range text {
		if r != '\t' && r != '\n' {
			continue
		}
		if i > start {
			segment(text[start:i])
		}
		if r == '\t' {
			b.WriteString("<" + prefix + "tab/>")
		} else {
			b.WriteString("<" + prefix + "br/>")
		}
		start = i + 1
	}
	if start < len(text) || b.Len() == 0 {
		segment(text[start:])
	}
	return b.String()
}

// splice applies non-overlapping edits to data.
func splice(data []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(data))
	pos := 0
	for _, e := range edits {
		b.Write(data[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(data[pos:])
	return []byte(b.String())
}
