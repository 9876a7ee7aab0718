package reviews

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"strings"

	"resucheck/internal/feedback"
)

//go:embed templates/view.html
var viewFS embed.FS

var viewTemplate = template.Must(template.New("view.html").Funcs(template.FuncMap{
	"display": feedback.Display,
	"tone":    scoreTone,
}).ParseFS(viewFS, "templates/view.html"))

// RenderView renders the review page the WYSIWYG capture snapshots. The
// root element carries id "review".
func RenderView(page ViewPage) ([]byte, error) {
	if page.Review.Feedback == nil {
		return nil, errors.New("review has no feedback")
	}
	data := viewData{ViewPage: page, Sections: page.Review.Feedback.Sections()}
	// Only inline PNG data URLs are trusted as image sources.
	if strings.HasPrefix(page.ImageData, "data:image/png;base64,") {
		data.Image = template.URL(page.ImageData)
	}
	var buf bytes.Buffer
	if err := viewTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type viewData struct {
	ViewPage
	Sections []feedback.NamedSection
	Image    template.URL
}

// scoreTone buckets a score the way the score badges are colored.
func scoreTone(score float64) string {
	switch v := feedback.Display(score); {
	case v > 69:
		return "strong"
	case v > 49:
		return "fair"
	default:
		return "weak"
	}
}
