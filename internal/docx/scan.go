package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// WordprocessingML namespaces, transitional and strict.
const (
	nsMain       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsMainStrict = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	nsRel        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRelStrict  = "http://purl.oclc.org/ooxml/officeDocument/relationships"
	nsMC         = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

func isW(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsMain || n.Space == nsMainStrict)
}

func isRel(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsRel || n.Space == nsRelStrict)
}

// frame is one open element while scanning a part.
type frame struct {
	name    xml.Name
	start   int
	openEnd int
	skip    bool

	root   bool // w:body, w:hdr, w:ftr
	hidden bool // w:txbxContent

	para    *Paragraph
	table   *Table
	row     *Row
	cell    *Cell
	node    *textNode
	text    strings.Builder
	section *sectionRefs
}

// sectionRefs holds the header/footer relationship ids of one w:sectPr.
type sectionRefs struct {
	header string
	footer string
}

type scanResult struct {
	sawRoot    bool
	paragraphs []*Paragraph
	tables     []*Table
	sections   []*sectionRefs
}

// scan walks the XML of a part once, recording paragraphs, tables and
// section properties together with the byte ranges of their text nodes.
func scan(p *part) (*scanResult, error) {
	dec := xml.NewDecoder(bytes.NewReader(p.data))
	res := &scanResult{}
	var stack []*frame

	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p.name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f := &frame{name: t.Name, start: start, openEnd: int(dec.InputOffset())}
			if len(stack) > 0 && stack[len(stack)-1].skip {
				f.skip = true
			}
			if t.Name.Space == nsMC && t.Name.Local == "Fallback" {
				f.skip = true
			}
			stack = append(stack, f)
			if !f.skip {
				openElement(p, res, stack, t)
			}

		case xml.CharData:
			if f := top(stack); f != nil && f.node != nil && !f.skip {
				f.text.Write(t)
			}

		case xml.EndElement:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.skip {
				continue
			}
			end := int(dec.InputOffset())
			selfClosing := end == f.openEnd

			if f.para != nil {
				f.para.end = end
				f.para.closeStart = start
				f.para.selfClosing = selfClosing
				f.para.text = f.para.originalText()
			}
			if f.node != nil {
				f.node.end = end
				if f.node.kind == nodeText {
					f.node.value = f.text.String()
				}
				if owner := nearestParagraph(stack); owner != nil {
					owner.nodes = append(owner.nodes, f.node)
				}
			}
		}
	}

	return res, nil
}

func openElement(p *part, res *scanResult, stack []*frame, t xml.StartElement) {
	f := stack[len(stack)-1]
	parents := stack[:len(stack)-1]

	switch {
	case isW(t.Name, "body"), isW(t.Name, "hdr"), isW(t.Name, "ftr"):
		f.root = true
		res.sawRoot = true

	case isW(t.Name, "txbxContent"):
		f.hidden = true

	case isW(t.Name, "p"):
		para := &Paragraph{part: p, start: f.start, qname: rawName(p.data, f.start)}
		p.paragraphs = append(p.paragraphs, para)
		f.para = para
		if c := nearestContainer(parents); c != nil {
			switch {
			case c.root:
				res.paragraphs = append(res.paragraphs, para)
			case c.cell != nil:
				c.cell.Paragraphs = append(c.cell.Paragraphs, para)
			}
		}

	case isW(t.Name, "tbl"):
		f.table = &Table{}
		if c := nearestContainer(parents); c != nil {
			switch {
			case c.root:
				res.tables = append(res.tables, f.table)
			case c.cell != nil:
				c.cell.Tables = append(c.cell.Tables, f.table)
			}
		}

	case isW(t.Name, "tr"):
		f.row = &Row{}
		for i := len(parents) - 1; i >= 0; i-- {
			if parents[i].table != nil {
				parents[i].table.Rows = append(parents[i].table.Rows, f.row)
				break
			}
		}

	case isW(t.Name, "tc"):
		f.cell = &Cell{}
		for i := len(parents) - 1; i >= 0; i-- {
			if parents[i].row != nil {
				parents[i].row.Cells = append(parents[i].row.Cells, f.cell)
				break
			}
		}

	case isW(t.Name, "t"), isW(t.Name, "tab"), isW(t.Name, "br"), isW(t.Name, "cr"):
		if len(parents) == 0 || !isW(parents[len(parents)-1].name, "r") {
			return
		}
		node := &textNode{start: f.start, qname: rawName(p.data, f.start)}
		switch t.Name.Local {
		case "t":
			node.kind = nodeText
		case "tab":
			node.kind = nodeTab
			node.value = "\t"
		default:
			if isW(t.Name, "br") {
				if typ := attr(t, "type"); typ != "" && typ != "textWrapping" {
					return
				}
			}
			node.kind = nodeBreak
			node.value = "\n"
		}
		f.node = node

	case isW(t.Name, "sectPr"):
		for _, a := range parents {
			if isW(a.name, "sectPrChange") || isW(a.name, "pPrChange") {
				return
			}
		}
		f.section = &sectionRefs{}
		res.sections = append(res.sections, f.section)

	case isW(t.Name, "headerReference"), isW(t.Name, "footerReference"):
		if len(parents) == 0 || parents[len(parents)-1].section == nil {
			return
		}
		if typ := attr(t, "type"); typ != "" && typ != "default" {
			return
		}
		sec := parents[len(parents)-1].section
		id := relID(t)
		if t.Name.Local == "headerReference" {
			sec.header = id
		} else {
			sec.footer = id
		}
	}
}

func top(stack []*frame) *frame {
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// nearestContainer returns the innermost frame that owns block content.
func nearestContainer(stack []*frame) *frame {
	for i := len(stack) - 1; i >= 0; i-- {
		if f := stack[i]; f.root || f.hidden || f.cell != nil {
			return f
		}
	}
	return nil
}

func nearestParagraph(stack []*frame) *Paragraph {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].para != nil {
			return stack[i].para
		}
	}
	return nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if isW(a.Name, local) {
			return a.Value
		}
	}
	return ""
}

func relID(t xml.StartElement) string {
	for _, a := range t.Attr {
		if isRel(a.Name, "id") {
			return a.Value
		}
	}
	return ""
}

// rawName returns the element name as written in the source, prefix included.
func rawName(data []byte, start int) string {
	i := start + 1
	j := i
	for j < len(data) {
		switch data[j] {
		case ' ', '\t', '\r', '\n', '/', '>':
			return string(data[i:j])
		}
		j++
	}
	return string(data[i:j])
}

// prefixOf returns "w:" for "w:p" and "" for an unprefixed name.
func prefixOf(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		return qname[:i+1]
	}
	return ""
}
