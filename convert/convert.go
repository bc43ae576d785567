// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package convert

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
)

// Content types handled by Convert.
const (
	ContentTypePDF      = "application/pdf"
	ContentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeMarkdown = "text/markdown"
	ContentTypePlain    = "text/plain"
)

var extensionTypes = map[string]string{
	".pdf":      ContentTypePDF,
	".xlsx":     ContentTypeXLSX,
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".txt":      ContentTypePlain,
	".text":     ContentTypePlain,
}

type converter func(data []byte) (string, error)

var converters = map[string]converter{
	ContentTypePDF:      pdfText,
	ContentTypeXLSX:     xlsxText,
	ContentTypeMarkdown: utf8Text,
	ContentTypePlain:    utf8Text,
}

// DetectContentType returns the content type for a file, preferring the
// extension and sniffing the data otherwise. Parameters such as charset are
// dropped.
func DetectContentType(filename string, data []byte) string {
	if ct, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return baseType(http.DetectContentType(data))
}

// Supported reports whether Convert handles contentType.
func Supported(contentType string) bool {
	_, ok := converters[baseType(contentType)]
	return ok
}

// Convert extracts the text of a document.
func Convert(contentType string, data []byte) (string, error) {
	ct := baseType(contentType)
	conv, ok := converters[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	text, err := conv(data)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", ct, err)
	}
	text = strings.TrimSpace(text)
	if IsEmpty(text) {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// IsEmpty reports whether text has no letters or digits.
func IsEmpty(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0
}

func baseType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func utf8Text(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}
