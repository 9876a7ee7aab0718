package structured

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/feedback"
)

type op struct {
	kind string
	page int
	x, y float64
	w, h float64
	text string
	bold bool
	size float64
	gray uint8
}

type recordingSurface struct {
	page  layout.Size
	pages int
	bold  bool
	size  float64
	gray  uint8
	ops   []op
}

func newRecordingSurface(page layout.Size) (Surface, error) {
	return &recordingSurface{page: page, pages: 1}, nil
}

func (r *recordingSurface) PageSize() layout.Size { return r.page }
func (r *recordingSurface) AddPage() error        { r.pages++; return nil }
func (r *recordingSurface) SetTextGray(level uint8) {
	r.gray = level
}
func (r *recordingSurface) SetFont(bold bool, size float64) error {
	r.bold, r.size = bold, size
	return nil
}
func (r *recordingSurface) Measure(text string) (float64, error) {
	return float64(utf8.RuneCountInString(text)) * r.size * 0.4, nil
}
func (r *recordingSurface) Text(x, y float64, text string) error {
	r.ops = append(r.ops, op{kind: "text", page: r.pages, x: x, y: y, text: text, bold: r.bold, size: r.size, gray: r.gray})
	return nil
}
func (r *recordingSurface) Line(x1, y1, x2, y2 float64, gray uint8) error {
	r.ops = append(r.ops, op{kind: "line", page: r.pages, x: x1, y: y1, w: x2 - x1, gray: gray})
	return nil
}
func (r *recordingSurface) Image(_ []byte, x, y, w, h float64) error {
	r.ops = append(r.ops, op{kind: "image", page: r.pages, x: x, y: y, w: w, h: h})
	return nil
}
func (r *recordingSurface) PageCount() int         { return r.pages }
func (r *recordingSurface) Bytes() ([]byte, error) { return []byte("%PDF-recorded"), nil }

func recordingBuilder(thumbs ThumbnailLoader) (*Builder, func() *recordingSurface) {
	var last *recordingSurface
	b := &Builder{
		NewSurface: func(page layout.Size) (Surface, error) {
			s, _ := newRecordingSurface(page)
			last = s.(*recordingSurface)
			return s, nil
		},
		Thumbnails: thumbs,
	}
	return b, func() *recordingSurface { return last }
}

const scenario = `{"overallScore":82,"ATS":{"score":70,"tips":[]},"toneAndStyle":{"score":90,"tips":[{"type":"good","tip":"Clear voice"}]},"content":{"score":75,"tips":[]},"structure":{"score":88,"tips":[]},"skills":{"score":95,"tips":[]}}`

func mustFeedback(t *testing.T, raw string) feedback.Feedback {
	t.Helper()
	fb, err := feedback.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return fb
}

func texts(s *recordingSurface) []op {
	var out []op
	for _, o := range s.ops {
		if o.kind == "text" {
			out = append(out, o)
		}
	}
	return out
}

func indexOf(ops []op, text string) int {
	for i, o := range ops {
		if o.text == text {
			return i
		}
	}
	return -1
}

func TestBuildScenarioWithoutJobContext(t *testing.T) {
	b, surface := recordingBuilder(nil)
	now := time.Date(2024, 6, 30, 9, 15, 0, 0, time.UTC)
	doc, err := b.Build(context.Background(), Input{Feedback: mustFeedback(t, scenario), Now: now})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.FileName != "resume-review_analysis_2024-06-30.pdf" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
	if doc.Pages < 1 {
		t.Fatalf("expected at least one page")
	}

	ops := texts(surface())
	if ops[0].text != Title || !ops[0].bold || ops[0].size != 18 {
		t.Fatalf("unexpected title op %+v", ops[0])
	}
	if ops[1].text != "Generated: 2024-06-30 09:15:00" || ops[1].size != 10 {
		t.Fatalf("unexpected date op %+v", ops[1])
	}
	if right := ops[1].x + float64(utf8.RuneCountInString(ops[1].text))*10*0.4; right < 595.28-48-0.01 || right > 595.28-48+0.01 {
		t.Fatalf("date not right-aligned, ends at %v", right)
	}

	overall := indexOf(ops, "Overall Score: 82/100")
	if overall < 0 || ops[overall].page != 1 || !ops[overall].bold || ops[overall].size != 14 {
		t.Fatalf("missing overall score header on page 1: %+v", ops)
	}
	if got := ops[overall+1].text; got != "ATS: 70/100    Tone & Style: 90/100    Content: 75/100    Structure: 88/100    Skills: 95/100" {
		t.Fatalf("unexpected score line %q", got)
	}

	ats := indexOf(ops, "ATS Suggestions")
	if ats < 0 || ops[ats+1].text != Placeholder {
		t.Fatalf("expected ATS placeholder, got %+v", ops[ats+1])
	}
	tone := indexOf(ops, "Tone & Style")
	if tone < 0 || ops[tone+1].text != "• Clear voice" {
		t.Fatalf("expected tone tip, got %+v", ops[tone+1])
	}
	// an empty section ends right after its placeholder; a filled one adds 4pt
	if got, want := ops[tone].y, ops[ats+1].y+14+6; got != want {
		t.Fatalf("header after empty section at %v, want %v", got, want)
	}
	if content := indexOf(ops, "Content"); content < 0 || ops[content].y != ops[tone+1].y+14+6+4 {
		t.Fatalf("header after filled section misplaced: %+v", ops)
	}
	for _, heading := range []string{"Content", "Structure", "Skills"} {
		i := indexOf(ops, heading)
		if i < 0 || ops[i+1].text != Placeholder {
			t.Fatalf("expected placeholder under %q", heading)
		}
	}
}

func TestBuildMetaAndFileName(t *testing.T) {
	b, surface := recordingBuilder(nil)
	doc, err := b.Build(context.Background(), Input{
		Feedback:       mustFeedback(t, scenario),
		CompanyName:    "Acme",
		JobTitle:       "Staff Engineer",
		JobDescription: "Build things",
		Now:            time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.FileName != "resume-review_staff-engineer_2024-01-02.pdf" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
	ops := texts(surface())
	for i, want := range []string{"Company: Acme", "Job Title: Staff Engineer", "Job Description: Build things"} {
		got := ops[2+i]
		if got.text != want || got.size != 12 || got.y != 48+18+float64(i)*14 {
			t.Fatalf("meta line %d = %+v, want %q", i, got, want)
		}
	}
}

func TestBuildBreaksPagesBeforeBlocks(t *testing.T) {
	tip := `{"type":"improve","tip":"Rewrite the summary so it leads with impact","explanation":"Recruiters skim the first lines; open with a quantified achievement that matches the posting and cut generic adjectives."}`
	tips := strings.TrimSuffix(strings.Repeat(tip+",", 25), ",")
	raw := `{"overallScore":55,"ATS":{"score":50,"tips":[` + tips + `]},"toneAndStyle":{"score":60,"tips":[` + tips + `]},"content":{"score":40,"tips":[` + tips + `]},"structure":{"score":70,"tips":[]},"skills":{"score":65,"tips":[` + tips + `]}}`

	b, surface := recordingBuilder(nil)
	doc, err := b.Build(context.Background(), Input{Feedback: mustFeedback(t, raw)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := surface()
	if doc.Pages < 3 {
		t.Fatalf("expected several pages, got %d", doc.Pages)
	}
	bottom := s.page.H - layout.Margin
	for _, o := range texts(s) {
		if o.y > bottom {
			t.Fatalf("text %q drawn at %v below the bottom margin %v", o.text, o.y, bottom)
		}
		if o.size == 14 && o.y > bottom-22 {
			t.Fatalf("header %q too close to the bottom at %v", o.text, o.y)
		}
	}

	// a wrapped tip never straddles a page break
	ops := texts(s)
	for i := 1; i < len(ops); i++ {
		prev, cur := ops[i-1], ops[i]
		if !strings.HasPrefix(cur.text, "• ") && cur.size == 12 && prev.size == 12 && cur.page != prev.page {
			t.Fatalf("continuation line %q moved to page %d", cur.text, cur.page)
		}
	}

	last := s.ops[len(s.ops)-1]
	if last.text != Attribution || last.page != doc.Pages || last.gray != footerGray || last.size != 9 {
		t.Fatalf("unexpected final op %+v", last)
	}
}

func TestFooterMovesToNewPageWhenCramped(t *testing.T) {
	s, _ := newRecordingSurface(layout.PageSize(layout.A4, layout.Portrait))
	rec := s.(*recordingSurface)
	w := &writer{s: s, c: layout.NewCursor(rec.page)}
	w.c.Y = w.c.Bottom() - 20
	w.footer()
	if rec.pages != 2 {
		t.Fatalf("expected footer on a new page, got %d pages", rec.pages)
	}
	line := rec.ops[0]
	if line.kind != "line" || line.y != rec.page.H-48-24 || line.gray != ruleGray || line.page != 2 {
		t.Fatalf("unexpected rule %+v", line)
	}

	s2, _ := newRecordingSurface(rec.page)
	w2 := &writer{s: s2, c: layout.NewCursor(rec.page)}
	w2.c.Y = 300
	w2.footer()
	if s2.(*recordingSurface).pages != 1 {
		t.Fatalf("footer should stay on the current page when it fits")
	}
}

type stubThumbs struct {
	thumb *Thumbnail
	err   error
}

func (s stubThumbs) Load(context.Context, string, int) (*Thumbnail, error) {
	return s.thumb, s.err
}

func TestBuildThumbnail(t *testing.T) {
	b, surface := recordingBuilder(stubThumbs{thumb: &Thumbnail{JPEG: []byte{0xff, 0xd8}, Width: 360, Height: 480}})
	if _, err := b.Build(context.Background(), Input{Feedback: mustFeedback(t, scenario), ImageRef: "data:image/png;base64,AA=="}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	var img *op
	for i := range surface().ops {
		if surface().ops[i].kind == "image" {
			img = &surface().ops[i]
		}
	}
	if img == nil {
		t.Fatalf("expected thumbnail to be drawn")
	}
	if img.x != 48 || img.w != 360 || img.h != 480 {
		t.Fatalf("unexpected thumbnail placement %+v", *img)
	}

	failing, surface2 := recordingBuilder(stubThumbs{err: errors.New("404")})
	if _, err := failing.Build(context.Background(), Input{Feedback: mustFeedback(t, scenario), ImageRef: "https://example.test/x.png"}); err != nil {
		t.Fatalf("thumbnail failure must not fail the build: %v", err)
	}
	for _, o := range surface2().ops {
		if o.kind == "image" {
			t.Fatalf("expected no image when the thumbnail fails")
		}
	}
}

func TestBuildWithGopdf(t *testing.T) {
	doc, err := NewBuilder(nil).Build(context.Background(), Input{
		Feedback: mustFeedback(t, scenario),
		JobTitle: "Go Developer",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
	if doc.Pages < 1 {
		t.Fatalf("expected pages, got %d", doc.Pages)
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "wysiwyg" }
func (failingStrategy) Export(context.Context, export.Request) (*export.Document, error) {
	return nil, errors.New("element not found in document")
}

func TestChainFallsBackToStructured(t *testing.T) {
	b, _ := recordingBuilder(nil)
	chain := export.NewChain(failingStrategy{}, NewStrategy(b))
	doc, err := chain.Export(context.Background(), export.Request{
		Feedback: mustFeedback(t, scenario),
		JobTitle: "Analyst",
		Now:      time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Strategy != Name || doc.FileName != "resume-review_analyst_2024-02-03.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}
}
