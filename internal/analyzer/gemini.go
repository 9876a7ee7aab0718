package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"resucheck/internal/session"
	"resucheck/internal/shared/telemetry"
)

// Gemini analyzes with Google Gemini and charges through the backend ledger.
type Gemini struct {
	client *genai.Client
	model  string
	Coins  CoinSpender
}

// NewGemini builds a Gemini analyzer.
func NewGemini(ctx context.Context, apiKey, model string, coins CoinSpender) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, Coins: coins}, nil
}

// Name implements Analyzer.
func (g *Gemini) Name() string { return "gemini" }

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, sess *session.Session, in Input) (json.RawMessage, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	prompt := BuildPrompt(in)
	resp, err := model.GenerateContent(ctx, genai.ImageData("png", in.Image), genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}
	raw, err := unwrapFeedback([]byte(text))
	if err != nil {
		return nil, err
	}
	telemetry.Info("analyzer.complete", map[string]any{
		"provider":    g.Name(),
		"model":       g.model,
		"prompt_hash": hashPrompt(prompt),
	})
	if err := charge(ctx, g.Coins, sess); err != nil {
		return nil, err
	}
	return raw, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no content in response")
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("gemini: no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
