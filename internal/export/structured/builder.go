// Package structured builds a text-first PDF of a review: title, job
// context, optional thumbnail, scores and one section of tips per category.
package structured

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/feedback"
	"resucheck/internal/shared/telemetry"
)

const (
	Title       = "Resucheck — Resume Review"
	Attribution = "Generated by Resucheck"
	Placeholder = "No suggestions provided."

	thumbnailMaxWidth = 360
	titleSize         = 18
	dateSize          = 10
	bodySize          = 12
	headerSize        = 14
	footerSize        = 9
	footerGray        = 120
	ruleGray          = 220
)

// Input is everything the builder draws.
type Input struct {
	Feedback       feedback.Feedback
	CompanyName    string
	JobTitle       string
	JobDescription string
	ImageRef       string
	Now            time.Time
}

// Builder lays out reviews on A4 portrait pages.
type Builder struct {
	NewSurface SurfaceFactory
	Thumbnails ThumbnailLoader
}

// NewBuilder returns a Builder drawing with gopdf. thumbnails may be nil.
func NewBuilder(thumbnails ThumbnailLoader) *Builder {
	return &Builder{NewSurface: NewGopdfSurface, Thumbnails: thumbnails}
}

// Build renders in and names the file after the job title or company.
func (b *Builder) Build(ctx context.Context, in Input) (*export.Document, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	newSurface := b.NewSurface
	if newSurface == nil {
		newSurface = NewGopdfSurface
	}
	page := layout.PageSize(layout.A4, layout.Portrait)
	s, err := newSurface(page)
	if err != nil {
		return nil, err
	}
	w := &writer{s: s, c: layout.NewCursor(page)}

	w.title(in.Now)
	w.meta(in)
	if in.ImageRef != "" && b.Thumbnails != nil {
		w.thumbnail(ctx, b.Thumbnails, in.ImageRef)
	}
	w.header(fmt.Sprintf("Overall Score: %d/100", feedback.Display(in.Feedback.OverallScore)))
	w.scores(in.Feedback)
	for _, sec := range in.Feedback.Sections() {
		w.section(sec.Heading, sec.Section.Tips)
	}
	w.footer()

	if w.err != nil {
		return nil, w.err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return &export.Document{
		FileName: layout.StructuredFileName(in.JobTitle, in.CompanyName, in.Now),
		Data:     data,
		Pages:    s.PageCount(),
	}, nil
}

// writer keeps the first drawing error and turns later calls into no-ops.
type writer struct {
	s   Surface
	c   *layout.Cursor
	err error
}

func (w *writer) do(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

func (w *writer) font(bold bool, size float64) {
	if w.err == nil {
		w.do(w.s.SetFont(bold, size))
	}
}

func (w *writer) newPage() {
	if w.err == nil {
		w.do(w.s.AddPage())
		w.c.Reset()
	}
}

func (w *writer) wrap(text string) []string {
	if w.err != nil {
		return nil
	}
	lines, err := layout.Wrap(text, layout.Printable(w.c.Page), w.s.Measure)
	w.do(err)
	return lines
}

func (w *writer) lines(lines []string) {
	for i, line := range lines {
		if w.err != nil {
			return
		}
		w.do(w.s.Text(layout.Margin, w.c.Y+float64(i)*layout.LineHeight, line))
	}
}

func (w *writer) title(now time.Time) {
	w.font(true, titleSize)
	if w.err == nil {
		w.do(w.s.Text(layout.Margin, w.c.Y, Title))
	}
	w.font(false, dateSize)
	if w.err == nil {
		date := "Generated: " + now.Format("2006-01-02 15:04:05")
		width, err := w.s.Measure(date)
		w.do(err)
		if w.err == nil {
			w.do(w.s.Text(w.c.Page.W-layout.Margin-width, w.c.Y, date))
		}
	}
	w.c.Advance(18)
}

func (w *writer) meta(in Input) {
	var meta []string
	if v := strings.TrimSpace(in.CompanyName); v != "" {
		meta = append(meta, "Company: "+v)
	}
	if v := strings.TrimSpace(in.JobTitle); v != "" {
		meta = append(meta, "Job Title: "+v)
	}
	if v := strings.TrimSpace(in.JobDescription); v != "" {
		meta = append(meta, "Job Description: "+v)
	}
	w.font(false, bodySize)
	lines := w.wrap(strings.Join(meta, "\n"))
	w.lines(lines)
	w.c.Lines(len(lines), 6)
}

func (w *writer) thumbnail(ctx context.Context, loader ThumbnailLoader, ref string) {
	if w.err != nil {
		return
	}
	thumb, err := loader.Load(ctx, ref, thumbnailMaxWidth)
	if err != nil {
		telemetry.Warn("export.thumbnail_skipped", map[string]any{"error": err})
		return
	}
	imgW := math.Min(thumbnailMaxWidth, layout.Printable(w.c.Page))
	imgH := math.Round(imgW * float64(thumb.Height) / float64(thumb.Width))
	if !w.c.Fits(imgH) {
		w.newPage()
	}
	if w.err == nil {
		w.do(w.s.Image(thumb.JPEG, layout.Margin, w.c.Y, imgW, imgH))
	}
	w.c.Advance(imgH + 12)
}

// header starts a new page first when fewer than 22pt remain.
func (w *writer) header(text string) {
	if w.c.Below(22) {
		w.newPage()
	}
	w.font(true, headerSize)
	if w.err == nil {
		w.do(w.s.Text(layout.Margin, w.c.Y, text))
	}
	w.c.Advance(18)
	w.font(false, bodySize)
}

func (w *writer) scores(fb feedback.Feedback) {
	parts := make([]string, 0, 5)
	for _, sec := range fb.Sections() {
		parts = append(parts, fmt.Sprintf("%s: %d/100", sec.Label, feedback.Display(sec.Section.Score)))
	}
	lines := w.wrap(strings.Join(parts, "    "))
	w.lines(lines)
	w.c.Lines(len(lines), 8)
}

// block writes one wrapped group, breaking the page before it if it would
// run past the bottom margin.
func (w *writer) block(text string) {
	lines := w.wrap(text)
	if !w.c.Fits(float64(len(lines)) * layout.LineHeight) {
		w.newPage()
	}
	w.lines(lines)
	w.c.Lines(len(lines), 6)
}

func (w *writer) section(heading string, tips []feedback.Tip) {
	w.header(heading)
	if len(tips) == 0 {
		w.block(Placeholder)
		return
	}
	for _, t := range tips {
		w.block("• " + tipText(t))
	}
	w.c.Advance(4)
}

func (w *writer) footer() {
	if w.c.Below(32) {
		w.newPage()
	}
	page := w.c.Page
	rule := page.H - layout.Margin - 24
	if w.err == nil {
		w.do(w.s.Line(layout.Margin, rule, page.W-layout.Margin, rule, ruleGray))
	}
	w.font(false, footerSize)
	if w.err == nil {
		w.s.SetTextGray(footerGray)
		w.do(w.s.Text(layout.Margin, page.H-layout.Margin-8, Attribution))
		w.s.SetTextGray(0)
	}
}

func tipText(t feedback.Tip) string {
	pieces := make([]string, 0, 2)
	if s := strings.TrimSpace(t.Tip); s != "" {
		pieces = append(pieces, s)
	}
	if s := strings.TrimSpace(t.Explanation); s != "" {
		pieces = append(pieces, s)
	}
	return strings.Join(pieces, " — ")
}
