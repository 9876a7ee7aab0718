package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// RenderRequest selects a page and the exact output size in pixels.
type RenderRequest struct {
	Page   int
	Width  int
	Height int
}

// Engine renders one PDF page to PNG bytes.
type Engine interface {
	Render(ctx context.Context, pdf []byte, req RenderRequest) ([]byte, error)
}

// LoadFunc builds an Engine. It runs at most once successfully per Rasterizer.
type LoadFunc func(ctx context.Context) (Engine, error)

// ErrEngineUnavailable is returned when no rendering backend can be found.
var ErrEngineUnavailable = errors.New("pdf rendering engine unavailable")

// PdftoppmEngine renders through poppler's pdftoppm binary.
type PdftoppmEngine struct {
	Path    string
	Version string
}

// LoadPdftoppm returns a loader that locates pdftoppm (configured path first,
// then $PATH) and probes it once.
func LoadPdftoppm(path string) LoadFunc {
	return func(ctx context.Context) (Engine, error) {
		bin := strings.TrimSpace(path)
		if bin == "" {
			bin = "pdftoppm"
		}
		resolved, err := exec.LookPath(bin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		// pdftoppm -v prints its version to stderr and exits 0 or 99 depending on build
		out, _ := exec.CommandContext(ctx, resolved, "-v").CombinedOutput()
		version := firstLine(string(out))
		if !strings.Contains(strings.ToLower(version), "pdftoppm") {
			return nil, fmt.Errorf("%w: unexpected probe output %q", ErrEngineUnavailable, version)
		}
		return &PdftoppmEngine{Path: resolved, Version: version}, nil
	}
}

// Render writes pdf to a temp dir and asks pdftoppm for a single PNG page.
func (e *PdftoppmEngine) Render(ctx context.Context, pdf []byte, req RenderRequest) ([]byte, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	dir, err := os.MkdirTemp("", "raster-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}
	outBase := filepath.Join(dir, "out")
	page := strconv.Itoa(req.Page)
	args := []string{
		"-f", page, "-l", page,
		"-png", "-singlefile",
		"-scale-to-x", strconv.Itoa(req.Width),
		"-scale-to-y", strconv.Itoa(req.Height),
		in, outBase,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("pdftoppm: %w", err)
		}
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, msg)
	}
	return os.ReadFile(outBase + ".png")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
