// Package analyzer turns a rendered resume page and the target job into raw
// review feedback JSON.
package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"resucheck/internal/backend"
	"resucheck/internal/session"
)

// AnalysisCost is the number of coins one analysis consumes.
const AnalysisCost = 1

// ErrEmptyFeedback means the provider answered without usable feedback.
var ErrEmptyFeedback = errors.New("analyzer: empty feedback")

// Input is what the analyzer sees of a review.
type Input struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	// Image is the PNG of the resume's first page.
	Image []byte
	// ResumeText is the extracted text layer; it may be empty.
	ResumeText string
}

// Analyzer produces feedback JSON for one review, charging the caller.
type Analyzer interface {
	Analyze(ctx context.Context, sess *session.Session, in Input) (json.RawMessage, error)
	Name() string
}

// CoinSpender debits the caller's balance.
type CoinSpender interface {
	SpendCoins(ctx context.Context, creds backend.Credentials, amount float64, description string) (*backend.Ack, error)
}

func charge(ctx context.Context, coins CoinSpender, sess *session.Session) error {
	if coins == nil || sess == nil {
		return nil
	}
	if _, err := coins.SpendCoins(ctx, sess.Credentials, AnalysisCost, "Resume analysis"); err != nil {
		return fmt.Errorf("charge analysis: %w", err)
	}
	return nil
}

// PNGDataURL encodes a PNG as a data URL.
func PNGDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// unwrapFeedback accepts a feedback object or a JSON string holding one, and
// strips markdown fences.
func unwrapFeedback(raw []byte) (json.RawMessage, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err != nil {
			return nil, fmt.Errorf("decode feedback string: %w", err)
		}
		text = inner
	}
	text = cleanJSONBlock(text)
	if text == "" || text == "null" {
		return nil, ErrEmptyFeedback
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("analyzer: feedback is not valid JSON")
	}
	return json.RawMessage(text), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
