package convert

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Chunker splits document text into chunks. Markdown is split on its heading
// structure; everything else recursively on paragraphs, lines and words.
type Chunker struct {
	size     int
	overlap  int
	plain    textsplitter.TextSplitter
	markdown textsplitter.TextSplitter
}

// NewChunker creates a chunker producing chunks of at most size characters
// with overlap characters shared between neighbours.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunkSize, size, overlap)
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		plain: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
		markdown: textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithHeadingHierarchy(true),
		),
	}, nil
}

// Split returns the non-empty chunks of text.
func (c *Chunker) Split(contentType, text string) ([]string, error) {
	splitter := c.plain
	switch baseType(contentType) {
	case ContentTypeMarkdown, ContentTypeXLSX:
		splitter = c.markdown
	}

	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	chunks := parts[:0]
	for _, p := range parts {
		if !IsEmpty(p) {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// Size returns the maximum chunk size.
func (c *Chunker) Size() int {
	return c.size
}
