package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"graphrag/internal/domain"
)

// eligibleExtensions is the ingestion allow-list. Files with any other
// extension are counted as skipped without being read.
var eligibleExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".rs":   true,
	".toml": true,
	".log":  true,
	".html": true,
	".css":  true,
	".js":   true,
}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".rs":   "text/x-rust",
	".toml": "application/toml",
	".log":  "text/plain",
	".html": "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
}

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func eligible(path string) bool {
	return eligibleExtensions[fileExt(path)]
}

func mimeTypeFor(path string) string {
	return mimeTypes[fileExt(path)]
}

// readDocumentText loads one file as plain text. PDF content goes through
// text extraction; every other eligible type must be valid UTF-8. Failures
// come back wrapped in ErrUnsupportedContent so the orchestrator soft-skips
// the file.
func readDocumentText(path string) (string, error) {
	if fileExt(path) == ".pdf" {
		return extractPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrUnsupportedContent, path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid utf-8", domain.ErrUnsupportedContent, path)
	}
	return string(data), nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %v", domain.ErrUnsupportedContent, path, err)
	}
	defer f.Close()
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text from %s: %v", domain.ErrUnsupportedContent, path, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: extract pdf text from %s: %v", domain.ErrUnsupportedContent, path, err)
	}
	return buf.String(), nil
}
