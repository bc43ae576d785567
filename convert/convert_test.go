package convert

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		filename string
		data     []byte
		want     string
	}{
		{filename: "report.PDF", want: ContentTypePDF},
		{filename: "sheet.xlsx", want: ContentTypeXLSX},
		{filename: "notes.md", want: ContentTypeMarkdown},
		{filename: "readme.txt", want: ContentTypePlain},
		{filename: "unknown", data: []byte("%PDF-1.4\n"), want: ContentTypePDF},
		{filename: "unknown", data: []byte("just words"), want: ContentTypePlain},
	}
	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.filename, tt.data))
		})
	}
}

func TestConvertPlainAndMarkdown(t *testing.T) {
	text, err := Convert("text/plain; charset=utf-8", []byte("  hello world \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = Convert(ContentTypeMarkdown, []byte("# Title\n\nBody"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody", text)
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert("image/png", []byte{0x89})
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
	assert.False(t, Supported("image/png"))
	assert.True(t, Supported(ContentTypePDF))

	_, err = Convert(ContentTypePlain, []byte(" -- \n ** "))
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Convert(ContentTypeXLSX, []byte("not a zip"))
	assert.Error(t, err)
}

func TestConvertPDFFallsBackToPrintableText(t *testing.T) {
	data := []byte("%PDF-1.4\nHello\x00\x01World\n%%EOF")
	text, err := Convert(ContentTypePDF, data)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World")
	assert.NotContains(t, text, "\x00")
}

func TestConvertXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"name", "amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"rent", 1200}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"a|b", 5}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	text, err := Convert(ContentTypeXLSX, buf.Bytes())
	require.NoError(t, err)

	assert.Contains(t, text, "## "+sheet)
	assert.Contains(t, text, "| name | amount |")
	assert.Contains(t, text, "| --- | --- |")
	assert.Contains(t, text, "| rent | 1200 |")
	assert.Contains(t, text, `| a\|b | 5 |`)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty(" \n\t-- ** !!"))
	assert.False(t, IsEmpty("a"))
	assert.False(t, IsEmpty("  42 "))
	assert.False(t, IsEmpty("日本"))
}

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	_, err = NewChunker(10, 10)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
	_, err = NewChunker(10, -1)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestChunkerPlain(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta ", 20) + "\n\n---\n\n"
	chunks, err := c.Split(ContentTypePlain, text)
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), c.Size())
		assert.False(t, IsEmpty(chunk))
	}
}

func TestChunkerMarkdown(t *testing.T) {
	c, err := NewChunker(80, 0)
	require.NoError(t, err)

	text := "# Guide\n\n## Install\n\nRun the installer and follow the prompts.\n\n## Usage\n\nStart the service and open the dashboard.\n"
	chunks, err := c.Split(ContentTypeMarkdown, text)
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	joined := strings.Join(chunks, "\n")
	assert.Contains(t, joined, "installer")
	assert.Contains(t, joined, "dashboard")
}
