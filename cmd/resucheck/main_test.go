package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleFeedback = `{
  "overallScore": "81",
  "ATS": {"score": 70, "tips": [{"type": "good", "tip": "Clear headings", "explanation": "dropped"}]},
  "toneAndStyle": {"score": 65, "tips": [{"type": "meh", "tip": "Vary verbs", "explanation": "Repeated 'managed'"}]},
  "content": {"score": 80, "tips": []},
  "structure": {"score": 90, "tips": "none"},
  "skills": {"score": 55, "tips": [{"type": "improve", "tip": "Add Go", "explanation": "Listed in the posting"}]}
}`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedback.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	path := writeFixture(t, sampleFeedback)
	out, err := execute(t, "normalize", path)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var got struct {
		OverallScore float64 `json:"overallScore"`
		ATS          struct {
			Tips []map[string]string `json:"tips"`
		} `json:"ATS"`
		ToneAndStyle struct {
			Tips []map[string]string `json:"tips"`
		} `json:"toneAndStyle"`
		Structure struct {
			Tips []map[string]string `json:"tips"`
		} `json:"structure"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.ToneAndStyle.Tips[0]["type"] != "improve" {
		t.Fatalf("expected unknown tip type to become improve, got %q", got.ToneAndStyle.Tips[0]["type"])
	}
	if _, ok := got.ATS.Tips[0]["explanation"]; ok {
		t.Fatalf("expected ATS explanation to be dropped")
	}
	if len(got.Structure.Tips) != 0 {
		t.Fatalf("expected non-array tips to become empty, got %v", got.Structure.Tips)
	}
}

func TestNormalizeStrictRejectsLooseInput(t *testing.T) {
	path := writeFixture(t, sampleFeedback)
	if _, err := execute(t, "normalize", "--strict", path); err == nil {
		t.Fatalf("expected schema error in strict mode")
	}
	t.Cleanup(func() { normalizeStrict = false })
}

func TestExportStructured(t *testing.T) {
	path := writeFixture(t, sampleFeedback)
	out := filepath.Join(t.TempDir(), "review.pdf")
	t.Cleanup(func() { exportStrategy, exportOut = "", "" })
	msg, err := execute(t, "export", path, "--strategy", "structured", "--job-title", "Engineer", "--company", "Acme", "--out", out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected a PDF, got %q", data[:min(len(data), 8)])
	}
	if !strings.Contains(msg, "via structured") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestExportUnknownStrategy(t *testing.T) {
	path := writeFixture(t, sampleFeedback)
	_, err := execute(t, "export", path, "--strategy", "fax")
	if err == nil || !strings.Contains(err.Error(), "unknown export strategy") {
		t.Fatalf("expected unknown strategy error, got %v", err)
	}
	t.Cleanup(func() { exportStrategy = "" })
}

func TestWriteViewPageTargetsLocalFile(t *testing.T) {
	fb, err := loadFeedback(writeFixture(t, sampleFeedback), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	target, cleanup, err := writeViewPage(viewPageFor(fb))
	if err != nil {
		t.Fatalf("write view: %v", err)
	}
	defer cleanup()
	if !strings.HasPrefix(target.URL, "file://") || target.Selector != "#review" {
		t.Fatalf("unexpected target %+v", target)
	}
}
