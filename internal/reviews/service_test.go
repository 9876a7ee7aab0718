package reviews

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"resucheck/internal/analyzer"
	"resucheck/internal/backend"
	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/export/raster"
	"resucheck/internal/session"
	"resucheck/internal/shared/auth"
	"resucheck/internal/shared/storage/object"
	localstore "resucheck/internal/shared/storage/object/local"
)

var samplePDF = []byte("%PDF-1.4\n% not a real document\n")

const sampleFeedback = `{
  "overallScore": 72.4,
  "ATS": {"score": 60, "tips": [{"type": "good", "tip": "Readable layout", "explanation": "dropped"}]},
  "toneAndStyle": {"score": 80, "tips": [{"type": "improve", "tip": "Use active voice", "explanation": "Lead with verbs"}]},
  "content": {"score": 70, "tips": []},
  "structure": {"score": 65, "tips": []},
  "skills": {"score": 75, "tips": []}
}`

type fakeRaster struct {
	res  raster.Result
	kept []string
}

func (f *fakeRaster) Convert(ctx context.Context, name string, src io.Reader) raster.Result {
	_, _ = io.ReadAll(src)
	return f.res
}

func (f *fakeRaster) Keep(url string) { f.kept = append(f.kept, url) }

type fakeAnalyzer struct {
	raw   string
	err   error
	input analyzer.Input
	calls int
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, sess *session.Session, in analyzer.Input) (json.RawMessage, error) {
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

type fakeSessions struct {
	mu          sync.Mutex
	invalidated []backend.Credentials
}

func (f *fakeSessions) Invalidate(creds backend.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, creds)
}

type recordingStrategy struct {
	name string
	err  error
	req  export.Request
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Export(ctx context.Context, req export.Request) (*export.Document, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &export.Document{FileName: req.Options.FileName, Data: []byte("%PDF"), Pages: 1}, nil
}

type fixture struct {
	svc      *Service
	store    *localstore.Store
	raster   *fakeRaster
	analyzer *fakeAnalyzer
	sessions *fakeSessions
	snapshot *recordingStrategy
	text     *recordingStrategy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := localstore.New(t.TempDir(), localstore.DefaultURLPrefix)
	signer, err := auth.NewViewSigner("test-secret", "dev", time.Minute)
	if err != nil {
		t.Fatalf("NewViewSigner: %v", err)
	}
	f := &fixture{
		store: store,
		raster: &fakeRaster{res: raster.Result{
			ImageURL: "data:image/png;base64,AAAA",
			File:     &raster.File{Name: "cv.png", ContentType: "image/png", Data: []byte("png-bytes"), Width: 20, Height: 20},
		}},
		analyzer: &fakeAnalyzer{raw: sampleFeedback},
		sessions: &fakeSessions{},
		snapshot: &recordingStrategy{name: "wysiwyg"},
		text:     &recordingStrategy{name: "structured"},
	}
	f.svc = &Service{
		Repo:          NewMemoryRepo(),
		Store:         store,
		Raster:        f.raster,
		Analyzer:      f.analyzer,
		Chain:         export.NewChain(f.snapshot, f.text),
		Tokens:        signer,
		Sessions:      f.sessions,
		PublicBaseURL: "http://127.0.0.1:8080/",
		Now:           func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	}
	return f
}

func testSession(coins float64) *session.Session {
	return &session.Session{
		User:        backend.User{ID: "42", Email: "jane@example.com", Coins: backend.Amount(coins)},
		Credentials: backend.Credentials{Cookie: "PHPSESSID=abc"},
	}
}

func TestCreateCompletesReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rev, err := f.svc.Create(ctx, testSession(3), CreateInput{
		CompanyName:    " Acme ",
		JobTitle:       "Backend Engineer",
		JobDescription: "Go services",
		FileName:       "cv.pdf",
		Data:           samplePDF,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rev.Status != StatusCompleted || rev.Feedback == nil || rev.CompletedAt == nil {
		t.Fatalf("unexpected review %+v", rev)
	}
	if rev.CompanyName != "Acme" {
		t.Fatalf("expected trimmed company, got %q", rev.CompanyName)
	}
	if rev.Feedback.ATS.Tips[0].Explanation != "" {
		t.Fatalf("ATS tips must drop explanations")
	}
	if rev.ImageKey != "previews/"+rev.ID+".png" {
		t.Fatalf("unexpected image key %q", rev.ImageKey)
	}
	if !strings.HasPrefix(rev.ImageURL, localstore.DefaultURLPrefix) || !strings.HasPrefix(rev.ResumeURL, localstore.DefaultURLPrefix) {
		t.Fatalf("expected store URLs, got %q %q", rev.ImageURL, rev.ResumeURL)
	}
	stored, err := object.ReadAll(ctx, f.store, rev.ResumeKey)
	if err != nil || !bytes.Equal(stored, samplePDF) {
		t.Fatalf("resume not stored: %v", err)
	}
	if string(f.analyzer.input.Image) != "png-bytes" || f.analyzer.input.JobTitle != "Backend Engineer" {
		t.Fatalf("unexpected analyzer input %+v", f.analyzer.input)
	}
	if len(f.raster.kept) != 1 {
		t.Fatalf("expected the preview URL to be kept")
	}
	if len(f.sessions.invalidated) != 1 || f.sessions.invalidated[0].Cookie != "PHPSESSID=abc" {
		t.Fatalf("expected session invalidation, got %+v", f.sessions.invalidated)
	}

	got, err := f.svc.Get(ctx, "42", rev.ID)
	if err != nil || got.Status != StatusCompleted {
		t.Fatalf("Get: %+v %v", got, err)
	}
	if _, err := f.svc.Get(ctx, "7", rev.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other users must not see the review, got %v", err)
	}
}

func TestCreateRequiresCoins(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), testSession(0), CreateInput{FileName: "cv.pdf", Data: samplePDF})
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("expected ErrInsufficientCoins, got %v", err)
	}
	if f.analyzer.calls != 0 {
		t.Fatalf("analyzer must not run without coins")
	}
	list, _ := f.svc.List(context.Background(), "42", 10, 0)
	if len(list) != 0 {
		t.Fatalf("no review should be recorded, got %d", len(list))
	}
}

func TestCreateRejectsInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		sess *session.Session
		in   CreateInput
		want error
	}{
		{name: "no session", sess: nil, in: CreateInput{FileName: "cv.pdf", Data: samplePDF}, want: session.ErrNoSession},
		{name: "no file", sess: testSession(1), in: CreateInput{FileName: "cv.pdf"}, want: ErrInvalidInput},
		{name: "not pdf", sess: testSession(1), in: CreateInput{FileName: "cv.docx", Data: []byte("PK\x03\x04")}, want: ErrInvalidInput},
	}
	for _, tt := range tests {
		if _, err := f.svc.Create(context.Background(), tt.sess, tt.in); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestCreateMarksConversionFailure(t *testing.T) {
	f := newFixture(t)
	f.raster.res = raster.Result{Error: "Failed to convert PDF: bad xref"}

	rev, err := f.svc.Create(context.Background(), testSession(1), CreateInput{FileName: "cv.pdf", Data: samplePDF})
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	stored, err := f.svc.Repo.Get(context.Background(), "42", rev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusFailed || !strings.Contains(stored.Error, "bad xref") {
		t.Fatalf("unexpected stored review %+v", stored)
	}
	if f.analyzer.calls != 0 || len(f.sessions.invalidated) != 0 {
		t.Fatalf("analysis must not run after a failed conversion")
	}
}

func TestCreateMarksAnalysisFailureWithBackendMessage(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = &backend.Error{Status: 500, Code: "analysis_failed", Message: "Gemini quota exceeded"}

	rev, err := f.svc.Create(context.Background(), testSession(1), CreateInput{FileName: "cv.pdf", Data: samplePDF})
	if !errors.Is(err, ErrAnalysis) {
		t.Fatalf("expected ErrAnalysis, got %v", err)
	}
	if analysisMessage(err) != "Gemini quota exceeded" {
		t.Fatalf("unexpected message %q", analysisMessage(err))
	}
	stored, _ := f.svc.Repo.Get(context.Background(), "42", rev.ID)
	if stored.Status != StatusFailed || stored.Error != "Gemini quota exceeded" {
		t.Fatalf("unexpected stored review %+v", stored)
	}
}

func TestExportUsesSignedViewLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev, err := f.svc.Create(ctx, testSession(1), CreateInput{JobTitle: "Data  Engineer", FileName: "cv.pdf", Data: samplePDF})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := f.svc.Export(ctx, "42", rev.ID, ExportInput{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Strategy != "wysiwyg" || doc.FileName != "resume-review_Data-Engineer_2024-06-01.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}
	req := f.snapshot.req
	prefix := "http://127.0.0.1:8080/api/v1/reviews/" + rev.ID + "/view?token="
	if !strings.HasPrefix(req.Target.URL, prefix) || req.Target.Selector != ViewSelector {
		t.Fatalf("unexpected target %+v", req.Target)
	}
	token := strings.TrimPrefix(req.Target.URL, prefix)
	page, err := f.svc.View(ctx, rev.ID, token)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if page.ImageData != raster.DataURL("image/png", []byte("png-bytes")) {
		t.Fatalf("expected inlined preview, got %q", page.ImageData)
	}
	if req.ImageRef != rev.ImageKey || req.Options.Format != layout.A4 || req.Options.Scale != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestExportFallsBackAndHonorsStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev, err := f.svc.Create(ctx, testSession(1), CreateInput{FileName: "cv.pdf", Data: samplePDF})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.snapshot.err = errors.New("chrome crashed")
	doc, err := f.svc.Export(ctx, "42", rev.ID, ExportInput{})
	if err != nil || doc.Strategy != "structured" {
		t.Fatalf("expected structured fallback, got %+v %v", doc, err)
	}
	if f.text.req.Feedback.OverallScore != f.snapshot.req.Feedback.OverallScore {
		t.Fatalf("fallback must receive the same request")
	}

	if _, err := f.svc.Export(ctx, "42", rev.ID, ExportInput{Strategy: "wysiwyg"}); !errors.Is(err, export.ErrExportFailed) {
		t.Fatalf("explicit strategy must not fall back, got %v", err)
	}
	if _, err := f.svc.Export(ctx, "42", rev.ID, ExportInput{Strategy: "docx"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown strategy, got %v", err)
	}
	if _, err := f.svc.Export(ctx, "42", rev.ID, ExportInput{Options: layout.CaptureOptions{Format: "a3"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad format, got %v", err)
	}
}

func TestExportRequiresCompletedReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev := Review{ID: "rev-p", UserID: "42", Status: StatusProcessing, CreatedAt: time.Now()}
	if err := f.svc.Repo.Create(ctx, rev); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Export(ctx, "42", "rev-p", ExportInput{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestViewRejectsForeignToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev, err := f.svc.Create(ctx, testSession(1), CreateInput{FileName: "cv.pdf", Data: samplePDF})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other, _ := f.svc.Tokens.Sign("another-review", "42")
	if _, err := f.svc.View(ctx, rev.ID, other); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	stranger, _ := f.svc.Tokens.Sign(rev.ID, "7")
	if _, err := f.svc.View(ctx, rev.ID, stranger); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
}
