// Package docx reads and rewrites the text of Word (.docx) documents.
//
// A document is loaded as a tree of paragraphs, tables and sections. Only
// text content can be changed; everything else in the package, including
// the XML around the edited text, is written back byte for byte.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"pdf-translator/internal/types"
)

const (
	relTypeOfficeDocument = "/officeDocument"
	defaultMainPart       = "word/document.xml"
)

// Document is an opened .docx package.
type Document struct {
	zr    *zip.Reader
	parts map[string]*part

	// Paragraphs are the body's top-level paragraphs in document order.
	Paragraphs []*Paragraph
	// Tables are the body's top-level tables in document order.
	Tables []*Table
	// Sections are the document sections in order, one per w:sectPr.
	Sections []*Section
}

// Table is a w:tbl element.
type Table struct {
	Rows []*Row
}

// Row is a w:tr element.
type Row struct {
	Cells []*Cell
}

// Cell is a w:tc element. Horizontally or vertically merged cells appear
// once, where they are declared.
type Cell struct {
	Paragraphs []*Paragraph
	Tables     []*Table
}

// Section carries the default header and footer of one document section.
// A section without its own reference inherits the previous section's, in
// which case both point at the same HeaderFooter. Either may be nil.
type Section struct {
	Header *HeaderFooter
	Footer *HeaderFooter
}

// HeaderFooter is a header or footer part.
type HeaderFooter struct {
	Name       string
	Paragraphs []*Paragraph
	Tables     []*Table
}

// part is an XML part of the package whose text can be edited.
type part struct {
	name       string
	data       []byte
	paragraphs []*Paragraph
}

func (p *part) render() ([]byte, bool) {
	var edits []edit
	for _, para := range p.paragraphs {
		edits = append(edits, para.edits()...)
	}
	if len(edits) == 0 {
		return p.data, false
	}
	return splice(p.data, edits), true
}

// Open reads and parses the document at path.
func Open(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "document not found", filePath, err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to read document", err)
	}
	return Parse(data)
}

// Parse parses a .docx package held in memory.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid DOCX package", err)
	}

	d := &Document{zr: zr, parts: make(map[string]*part)}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	mainName := findMainPart(files)
	body, err := d.loadPart(files, mainName)
	if err != nil {
		return nil, err
	}
	res, err := scan(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid document XML", err)
	}
	if !res.sawRoot {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid DOCX package", "document has no body", nil)
	}
	d.Paragraphs = res.paragraphs
	d.Tables = res.tables

	rels, err := readRels(files, mainName)
	if err != nil {
		return nil, err
	}

	loaded := make(map[string]*HeaderFooter)
	resolve := func(id string) (*HeaderFooter, error) {
		target, ok := rels[id]
		if !ok {
			return nil, nil
		}
		if hf, ok := loaded[target]; ok {
			return hf, nil
		}
		p, err := d.loadPart(files, target)
		if err != nil {
			return nil, err
		}
		r, err := scan(p)
		if err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "invalid header/footer XML", err)
		}
		hf := &HeaderFooter{Name: target, Paragraphs: r.paragraphs, Tables: r.tables}
		loaded[target] = hf
		return hf, nil
	}

	var prev *Section
	for _, refs := range res.sections {
		sec := &Section{}
		if sec.Header, err = resolve(refs.header); err != nil {
			return nil, err
		}
		if sec.Footer, err = resolve(refs.footer); err != nil {
			return nil, err
		}
		if prev != nil {
			if sec.Header == nil {
				sec.Header = prev.Header
			}
			if sec.Footer == nil {
				sec.Footer = prev.Footer
			}
		}
		d.Sections = append(d.Sections, sec)
		prev = sec
	}

	return d, nil
}

func (d *Document) loadPart(files map[string]*zip.File, name string) (*part, error) {
	f, ok := files[name]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid DOCX package", "missing part "+name, nil)
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	p := &part{name: name, data: data}
	d.parts[name] = p
	return p, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "failed to open DOCX entry", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "failed to read DOCX entry", err)
	}
	return data, nil
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// findMainPart locates the main document part through the package
// relationships, falling back to the conventional location.
func findMainPart(files map[string]*zip.File) string {
	f, ok := files["_rels/.rels"]
	if !ok {
		return defaultMainPart
	}
	data, err := readZipFile(f)
	if err != nil {
		return defaultMainPart
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return defaultMainPart
	}
	for _, r := range rels.Items {
		if strings.HasSuffix(r.Type, relTypeOfficeDocument) {
			return resolveTarget("", r.Target)
		}
	}
	return defaultMainPart
}

// readRels returns the internal relationship targets of a part, by id.
func readRels(files map[string]*zip.File, partName string) (map[string]string, error) {
	out := make(map[string]string)
	f, ok := files[path.Join(path.Dir(partName), "_rels", path.Base(partName)+".rels")]
	if !ok {
		return out, nil
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid relationships part", err)
	}
	for _, r := range rels.Items {
		if r.TargetMode == "External" {
			continue
		}
		out[r.ID] = resolveTarget(partName, r.Target)
	}
	return out, nil
}

func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

// Save writes the document to filePath. Parts whose text was not changed
// are copied without recompression.
func (d *Document) Save(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create document", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		os.Remove(filePath)
		return err
	}
	if err := f.Close(); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to write document", err)
	}
	return nil
}

// Write writes the document package to w.
func (d *Document) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range d.zr.File {
		if p, ok := d.parts[f.Name]; ok {
			if data, changed := p.render(); changed {
				fw, err := zw.CreateHeader(&zip.FileHeader{
					Name:     f.Name,
					Method:   zip.Deflate,
					Modified: f.Modified,
				})
				if err != nil {
					return types.NewAppError(types.ErrInternal, "failed to write DOCX entry", err)
				}
				if _, err := fw.Write(data); err != nil {
					return types.NewAppError(types.ErrInternal, "failed to write DOCX entry", err)
				}
				continue
			}
		}
		if err := zw.Copy(f); err != nil {
			return types.NewAppError(types.ErrInternal, fmt.Sprintf("failed to copy DOCX entry %s", f.Name), err)
		}
	}
	if err := zw.Close(); err != nil {
		return types.NewAppError(types.ErrInternal, "failed to finish DOCX package", err)
	}
	return nil
}

// NewDocument builds a minimal single-section document holding one
// paragraph per argument.
func NewDocument(paragraphs ...string) (*Document, error) {
	var body strings.Builder
	for _, text := range paragraphs {
		if text == "" {
			body.WriteString("<w:p/>")
			continue
		}
		body.WriteString("<w:p><w:r>" + runContent("w:", text) + "</w:r></w:p>")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{defaultMainPart, xml.Header + `<w:document xmlns:w="` + nsMain + `"><w:body>` +
			body.String() + `<w:sectPr/></w:body></w:document>`},
	}
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, types.NewAppError(types.ErrInternal, "failed to build document", err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			return nil, types.NewAppError(types.ErrInternal, "failed to build document", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to build document", err)
	}
	return Parse(buf.Bytes())
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const packageRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`
