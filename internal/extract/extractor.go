// Package extract turns uploaded document bytes into plain text.
// The ingestion core treats its output as opaque input text.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/agentcv/agentcv/internal/domain"
)

// Text extracts plain text from raw file bytes, detecting the format from
// the filename extension (case-insensitive). Supported: .pdf, .txt, .md.
// Unsupported extensions return domain.ErrUnsupportedFile.
func Text(content []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return "", fmt.Errorf("%s: %w", filename, err)
		}
		return text, nil
	case ".txt", ".md":
		return extractPlain(content, filename)
	default:
		return "", fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedFile)
	}
}

func extractPlain(content []byte, filename string) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s: not valid UTF-8: %w", filename, domain.ErrUnsupportedFile)
	}
	return string(content), nil
}
