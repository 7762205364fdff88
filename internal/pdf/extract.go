// Package pdf extracts plain text from PDF documents for import as lectures.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	errEmptyPath    = errors.New("pdf path is empty")
	errNilReader    = errors.New("pdf source reader is nil")
	errEmptyContent = errors.New("pdf content is empty")
	// ErrNoText is returned for documents with no extractable text, such
	// as scanned pages.
	ErrNoText = errors.New("pdf has no extractable text")
)

// ExtractFile extracts the text of the PDF at path.
func ExtractFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errEmptyPath
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	return plainText(reader)
}

// ExtractReader extracts the text of a PDF read fully from r.
func ExtractReader(r io.Reader) (string, error) {
	if r == nil {
		return "", errNilReader
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return "", errEmptyContent
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	return plainText(doc)
}

func plainText(doc *pdf.Reader) (string, error) {
	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
