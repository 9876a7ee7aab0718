// Package extract pulls the text layer out of uploaded resumes.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"resucheck/internal/shared/storage/object"
)

const mimePDF = "application/pdf"

// ExtractedSuffix is appended to a stored file's key for its text copy.
const ExtractedSuffix = ".extracted.txt"

// ErrUnsupported means the payload is not a PDF.
var ErrUnsupported = errors.New("unsupported document type")

// ExtractText pulls text from a stored PDF and persists a derived .extracted.txt copy.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := object.ReadAll(ctx, store, fileKey)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", fileKey, err)
	}

	text, err := ExtractTextFromBytes(ctx, raw, mimePDF)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", fileKey, err)
	}

	if _, err := store.SaveWithKey(ctx, fileKey+ExtractedSuffix, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("extract text key=%s: save: %w", fileKey, err)
	}

	return text, nil
}

// ExtractTextFromBytes extracts text from an in-memory payload.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if normalized := normalizeMimeType(mimeType, data); normalized != mimePDF {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
	text, err := extractPDF(data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// IsPDF reports whether data starts like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-"))
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func normalizeMimeType(mimeType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == mimePDF {
		return clean
	}
	if IsPDF(data) {
		return mimePDF
	}
	if clean == "" || clean == "application/octet-stream" {
		return strings.Split(http.DetectContentType(data), ";")[0]
	}
	return clean
}
