package layout

import (
	"regexp"
	"strings"
	"time"
)

const (
	slugMaxLen   = 40
	slugFallback = "analysis"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s, collapses runs of other characters to "-", and trims
// it to 40 characters. An empty result becomes "analysis". Slug(Slug(s)) ==
// Slug(s).
func Slug(s string) string {
	out := nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	out = strings.Trim(out, "-")
	if len(out) > slugMaxLen {
		out = strings.TrimRight(out[:slugMaxLen], "-")
	}
	if out == "" {
		return slugFallback
	}
	return out
}

// StructuredFileName names a structured export after the job title, or the
// company when the title is blank.
func StructuredFileName(jobTitle, companyName string, now time.Time) string {
	base := strings.TrimSpace(jobTitle)
	if base == "" {
		base = strings.TrimSpace(companyName)
	}
	return "resume-review_" + Slug(base) + "_" + dateStamp(now) + ".pdf"
}

// SnapshotFileName is the default name of a WYSIWYG export.
func SnapshotFileName(now time.Time) string {
	return "resume-review_" + dateStamp(now) + ".pdf"
}

// ReviewFileName names a snapshot after the job title, or the company when
// the title is blank, keeping the title's characters and joining words with
// "-".
func ReviewFileName(jobTitle, companyName string, now time.Time) string {
	base := strings.TrimSpace(jobTitle)
	if base == "" {
		base = strings.TrimSpace(companyName)
	}
	if base == "" {
		return SnapshotFileName(now)
	}
	return "resume-review_" + strings.Join(strings.Fields(base), "-") + "_" + dateStamp(now) + ".pdf"
}

func dateStamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02")
}
