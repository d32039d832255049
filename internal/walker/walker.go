// Package walker translates the text of a docx.Document paragraph by paragraph.
package walker

import (
	"context"
	"fmt"
	"strings"

	"pdf-translator/internal/docx"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Area is the part of the document a paragraph belongs to.
type Area string

const (
	AreaBody   Area = "body"
	AreaTable  Area = "table"
	AreaHeader Area = "header"
	AreaFooter Area = "footer"
)

// Translator translates one paragraph's text.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Item is a paragraph together with the area it was found in.
type Item struct {
	Area      Area
	Paragraph *docx.Paragraph
}

// Progress describes the paragraph about to be translated.
// Index is 1-based and counts only non-blank paragraphs.
type Progress struct {
	Area  Area
	Index int
	Total int
}

// ProgressFunc receives progress updates; it may be nil.
type ProgressFunc func(Progress)

// Stats summarises a walk.
type Stats struct {
	Paragraphs int // all paragraphs visited
	Translated int
	Skipped    int // blank paragraphs left untouched
}

// Collect returns the document's paragraphs in translation order: body
// paragraphs, then tables row by row (cell paragraphs, then tables nested in
// the cell), then for each section its header followed by its footer.
// A header or footer shared by several sections is listed once.
func Collect(doc *docx.Document) []Item {
	var items []Item
	for _, p := range doc.Paragraphs {
		items = append(items, Item{Area: AreaBody, Paragraph: p})
	}
	for _, t := range doc.Tables {
		items = appendTable(items, AreaTable, t)
	}

	seen := make(map[*docx.HeaderFooter]bool)
	appendPart := func(area Area, hf *docx.HeaderFooter) {
		if hf == nil || seen[hf] {
			return
		}
		seen[hf] = true
		for _, p := range hf.Paragraphs {
			items = append(items, Item{Area: area, Paragraph: p})
		}
		for _, t := range hf.Tables {
			items = appendTable(items, area, t)
		}
	}
	for _, sec := range doc.Sections {
		appendPart(AreaHeader, sec.Header)
		appendPart(AreaFooter, sec.Footer)
	}
	return items
}

func appendTable(items []Item, area Area, t *docx.Table) []Item {
	for _, row := range t.Rows {
		for _, cell := range row.Cells {
			for _, p := range cell.Paragraphs {
				items = append(items, Item{Area: area, Paragraph: p})
			}
			for _, nested := range cell.Tables {
				items = appendTable(items, area, nested)
			}
		}
	}
	return items
}

// TranslateDocument replaces the text of every non-blank paragraph of doc
// with its translation, in Collect order. Whitespace-only paragraphs are
// neither sent nor changed. The first failure stops the walk; paragraphs
// translated before it keep their new text.
func TranslateDocument(ctx context.Context, doc *docx.Document, tr Translator, targetLang string, progress ProgressFunc) (Stats, error) {
	items := Collect(doc)

	total := 0
	for _, it := range items {
		if !isBlank(it.Paragraph.Text()) {
			total++
		}
	}

	stats := Stats{Paragraphs: len(items)}
	logger.Info("translating document",
		logger.Int("paragraphs", len(items)),
		logger.Int("translatable", total),
		logger.Int("tables", len(doc.Tables)),
		logger.Int("sections", len(doc.Sections)),
		logger.String("targetLang", targetLang))

	index := 0
	for _, it := range items {
		text := it.Paragraph.Text()
		if isBlank(text) {
			stats.Skipped++
			continue
		}

		index++
		if progress != nil {
			progress(Progress{Area: it.Area, Index: index, Total: total})
		}
		logger.Debug("translating paragraph",
			logger.String("area", string(it.Area)),
			logger.Int("index", index),
			logger.Int("total", total))

		translated, err := tr.Translate(ctx, text, targetLang)
		if err != nil {
			return stats, types.NewAppErrorWithDetails(types.ErrTranslation, "failed to translate paragraph",
				fmt.Sprintf("%s paragraph %d/%d", it.Area, index, total), err)
		}
		it.Paragraph.SetText(translated)
		stats.Translated++
	}

	logger.Info("document translated",
		logger.Int("translated", stats.Translated),
		logger.Int("skipped", stats.Skipped))
	return stats, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
