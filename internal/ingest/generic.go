package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/Dirstral/ragmcp/internal/model"
)

const (
	mimePDF  = "application/pdf"
	mimeHTML = "text/html"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// GenericLoader converts a file to text based on its detected content type:
// PDF text, HTML as markdown, one markdown table per spreadsheet sheet, and
// any text format as-is. Other binary content is rejected.
type GenericLoader struct{}

func NewGenericLoader() *GenericLoader {
	return &GenericLoader{}
}

func (l *GenericLoader) Load(ctx context.Context, path string) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}

	switch {
	case mtype.Is(mimePDF):
		text, err := readPDF(path)
		if err != nil {
			return nil, err
		}
		return single(path, mtype.String(), text), nil
	case mtype.Is(mimeHTML):
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		text, err := htmltomarkdown.ConvertString(normalizeUTF8(raw))
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		return single(path, mtype.String(), text), nil
	case mtype.Is(mimeXLSX):
		return readSpreadsheet(path, mtype.String())
	case isText(mtype):
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return single(path, mtype.String(), normalizeUTF8(raw)), nil
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedContent, mtype.String())
	}
}

func single(path, mime, text string) []model.Document {
	return []model.Document{{Text: text, Metadata: fileMetadata(path, mime)}}
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") || strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

// readPDF extracts plain text. The pdf package panics on some malformed
// files, so panics are turned into errors.
func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return normalizeUTF8(buf.Bytes()), nil
}

func readSpreadsheet(path, mime string) ([]model.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	var docs []model.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		meta := fileMetadata(path, mime)
		meta[model.MetaSheet] = sheet
		docs = append(docs, model.Document{Text: markdownTable(rows), Metadata: meta})
	}
	return docs, nil
}

func markdownTable(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	var b strings.Builder
	writeRow := func(row []string) {
		cells := make([]string, width)
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(strings.TrimSpace(row[i]), "|", `\|`)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	writeRow(rows[0])
	b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return b.String()
}
