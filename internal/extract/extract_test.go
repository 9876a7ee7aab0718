package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	localstore "resucheck/internal/shared/storage/object/local"
)

func textPDF(line string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", line)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestExtractTextFromBytesReadsPDFText(t *testing.T) {
	text, err := ExtractTextFromBytes(context.Background(), textPDF("Hello Resume"), "application/octet-stream")
	if err != nil {
		t.Fatalf("ExtractTextFromBytes: %v", err)
	}
	if !strings.Contains(text, "Hello Resume") {
		t.Fatalf("expected extracted text, got %q", text)
	}
}

func TestExtractTextFromBytesRejectsNonPDF(t *testing.T) {
	_, err := ExtractTextFromBytes(context.Background(), []byte("hello world"), "text/plain")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if !strings.Contains(err.Error(), "text/plain") {
		t.Fatalf("expected mime in error, got %v", err)
	}
}

func TestExtractTextFromBytesSurvivesMalformedPDF(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	if _, err := ExtractTextFromBytes(context.Background(), data, "application/pdf"); err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
}

func TestExtractTextStoresDerivedCopy(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir(), localstore.DefaultURLPrefix)
	if _, err := store.SaveWithKey(ctx, "resumes/cv.pdf", "application/pdf", bytes.NewReader(textPDF("Go Developer"))); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}

	text, err := ExtractText(ctx, store, "resumes/cv.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "Go Developer") {
		t.Fatalf("unexpected text %q", text)
	}

	rc, err := store.Open(ctx, "resumes/cv.pdf"+ExtractedSuffix)
	if err != nil {
		t.Fatalf("open extracted copy: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(rc)
	if buf.String() != text {
		t.Fatalf("stored copy %q differs from %q", buf.String(), text)
	}
}
