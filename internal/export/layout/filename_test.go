package layout

import (
	"strings"
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Senior Go Engineer", "senior-go-engineer"},
		{"  --C++ / Rust!!  ", "c-rust"},
		{"", "analysis"},
		{"???", "analysis"},
		{strings.Repeat("ab ", 30), strings.Repeat("ab-", 13) + "a"},
		{strings.Repeat("abc ", 20), strings.Repeat("abc-", 9) + "abc"},
	}
	for _, tt := range tests {
		got := Slug(tt.in)
		if got != tt.want {
			t.Fatalf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if len(got) > 40 {
			t.Fatalf("slug too long: %q", got)
		}
		if Slug(got) != got {
			t.Fatalf("Slug not idempotent for %q", tt.in)
		}
	}
}

func TestFileNames(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	if got := StructuredFileName("", "Acme Corp", now); got != "resume-review_acme-corp_2024-03-09.pdf" {
		t.Fatalf("unexpected structured name %q", got)
	}
	if got := StructuredFileName("Backend Dev", "Acme", now); got != "resume-review_backend-dev_2024-03-09.pdf" {
		t.Fatalf("unexpected structured name %q", got)
	}
	if got := StructuredFileName("", "", now); got != "resume-review_analysis_2024-03-09.pdf" {
		t.Fatalf("unexpected fallback name %q", got)
	}
	if got := SnapshotFileName(now); got != "resume-review_2024-03-09.pdf" {
		t.Fatalf("unexpected snapshot name %q", got)
	}
}

func TestReviewFileNameKeepsTitleWords(t *testing.T) {
	now := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		title, company, want string
	}{
		{"Senior  Go Engineer", "Acme", "resume-review_Senior-Go-Engineer_2024-03-09.pdf"},
		{" ", "Acme Corp", "resume-review_Acme-Corp_2024-03-09.pdf"},
		{"", "", "resume-review_2024-03-09.pdf"},
	}
	for _, tt := range tests {
		if got := ReviewFileName(tt.title, tt.company, now); got != tt.want {
			t.Fatalf("ReviewFileName(%q, %q) = %q, want %q", tt.title, tt.company, got, tt.want)
		}
	}
}
