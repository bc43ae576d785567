package convert

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxText renders each non-empty sheet as a markdown table headed by the
// sheet name. The first row is the table header.
func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			continue
		}

		width := 0
		for _, row := range rows {
			width = max(width, len(row))
		}
		if width == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(sheet)
		b.WriteString("\n\n")
		writeRow(&b, rows[0], width)
		b.WriteString("|")
		for i := 0; i < width; i++ {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range rows[1:] {
			writeRow(&b, row, width)
		}
	}
	return b.String(), nil
}

func writeRow(b *strings.Builder, row []string, width int) {
	b.WriteString("|")
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(row) {
			cell = strings.ReplaceAll(strings.TrimSpace(row[i]), "|", `\|`)
			cell = strings.ReplaceAll(cell, "\n", " ")
		}
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
