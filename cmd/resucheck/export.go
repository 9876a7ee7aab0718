package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"resty.dev/v3"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/export/raster"
	"resucheck/internal/export/structured"
	"resucheck/internal/export/wysiwyg"
	"resucheck/internal/feedback"
	"resucheck/internal/reviews"
)

var exportCmd = &cobra.Command{
	Use:   "export <feedback.json>",
	Short: "Export a review PDF from analyzer feedback",
	Long:  "Builds the review PDF from a feedback file. The wysiwyg strategy captures a locally rendered view page in headless Chrome; the structured strategy draws the report directly.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	exportJobTitle    string
	exportCompany     string
	exportImage       string
	exportStrategy    string
	exportOut         string
	exportFormat      string
	exportOrientation string
	exportScale       float64
	exportChrome      string
)

func init() {
	exportCmd.Flags().StringVar(&exportJobTitle, "job-title", "", "Job title shown in the report")
	exportCmd.Flags().StringVar(&exportCompany, "company", "", "Company name shown in the report")
	exportCmd.Flags().StringVar(&exportImage, "image", "", "Resume preview image (PNG or JPEG file)")
	exportCmd.Flags().StringVarP(&exportStrategy, "strategy", "s", "", "Limit to one strategy: wysiwyg or structured (default: wysiwyg, then structured)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output PDF path (default: generated file name)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "a4", "Page format: a4 or letter")
	exportCmd.Flags().StringVar(&exportOrientation, "orientation", "portrait", "Page orientation: portrait or landscape")
	exportCmd.Flags().Float64Var(&exportScale, "scale", 2, "Capture scale between 2 and 3")
	exportCmd.Flags().StringVar(&exportChrome, "chrome", os.Getenv("CHROME_PATH"), "Path to Chrome (default: auto-detect)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	fb, err := loadFeedback(args[0], false)
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now()

	imageRef, err := imageDataURL(exportImage)
	if err != nil {
		return err
	}

	opts := layout.CaptureOptions{
		FileName:    layout.ReviewFileName(exportJobTitle, exportCompany, now),
		Format:      layout.Format(exportFormat),
		Orientation: layout.Orientation(exportOrientation),
		Scale:       exportScale,
	}.Normalize(now)
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	capturer := wysiwyg.NewChromeCapturer(exportChrome, 60*time.Second)
	defer capturer.Close()
	httpClient := resty.New().SetTimeout(15 * time.Second)
	defer httpClient.Close()

	chain := export.NewChain(
		wysiwyg.NewStrategy(capturer),
		structured.NewStrategy(structured.NewBuilder(&structured.RefLoader{HTTP: httpClient})),
	)
	if name := strings.TrimSpace(exportStrategy); name != "" {
		if chain, err = chain.Only(name); err != nil {
			return err
		}
	}

	req := export.Request{
		Feedback:    fb,
		CompanyName: exportCompany,
		JobTitle:    exportJobTitle,
		ImageRef:    imageRef,
		Options:     opts,
		Now:         now,
	}
	if exportStrategy != structured.Name {
		page := viewPageFor(fb)
		page.ImageData = imageRef
		target, cleanup, err := writeViewPage(page)
		if err != nil {
			return err
		}
		defer cleanup()
		req.Target = target
	}

	doc, err := chain.Export(ctx, req)
	if err != nil {
		return err
	}
	out := exportOut
	if out == "" {
		out = doc.FileName
	}
	if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d page(s) via %s\n", out, doc.Pages, doc.Strategy)
	return nil
}

func viewPageFor(fb feedback.Feedback) reviews.ViewPage {
	return reviews.ViewPage{
		Review: reviews.Review{
			CompanyName: exportCompany,
			JobTitle:    exportJobTitle,
			Feedback:    &fb,
			Status:      reviews.StatusCompleted,
		},
	}
}

// imageDataURL inlines a local image so both strategies can read it without
// an object store.
func imageDataURL(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return raster.DataURL(http.DetectContentType(data), data), nil
}

// writeViewPage renders the review page into a temp file for the capture
// browser.
func writeViewPage(page reviews.ViewPage) (export.Target, func(), error) {
	html, err := reviews.RenderView(page)
	if err != nil {
		return export.Target{}, nil, fmt.Errorf("render view: %w", err)
	}
	dir, err := os.MkdirTemp("", "resucheck-view-")
	if err != nil {
		return export.Target{}, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	file := filepath.Join(dir, "view.html")
	if err := os.WriteFile(file, html, 0o600); err != nil {
		cleanup()
		return export.Target{}, nil, err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(file)}
	return export.Target{URL: u.String(), Selector: reviews.ViewSelector}, cleanup, nil
}
