package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"resucheck/internal/session"
	"resucheck/internal/shared/telemetry"
)

// DefaultOpenAIURL is the chat completions endpoint.
const DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI analyzes with an OpenAI vision model and charges through the
// backend ledger.
type OpenAI struct {
	http   *resty.Client
	apiKey string
	model  string
	URL    string
	Coins  CoinSpender
}

// NewOpenAI builds an OpenAI analyzer.
func NewOpenAI(apiKey, model string, timeout time.Duration, coins CoinSpender) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OPENAI_MODEL is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAI{
		http:   resty.New().SetTimeout(timeout),
		apiKey: apiKey,
		model:  model,
		URL:    DefaultOpenAIURL,
		Coins:  coins,
	}, nil
}

// Name implements Analyzer.
func (o *OpenAI) Name() string { return "openai" }

// Close releases idle connections.
func (o *OpenAI) Close() error { return o.http.Close() }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze implements Analyzer.
func (o *OpenAI) Analyze(ctx context.Context, sess *session.Session, in Input) (json.RawMessage, error) {
	prompt := BuildPrompt(in)
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: PNGDataURL(in.Image)}},
			},
		}},
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	resp, err := o.http.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(body).
		Post(o.URL)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Bytes(), &parsed); err != nil {
		return nil, fmt.Errorf("openai response parse (status %d): %w", resp.StatusCode(), err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openai request failed (%d)", resp.StatusCode())
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}

	raw, err := unwrapFeedback([]byte(parsed.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"provider":    o.Name(),
		"model":       o.model,
		"prompt_hash": hashPrompt(prompt),
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.PromptTokens
		fields["completion_tokens"] = parsed.Usage.CompletionTokens
		fields["total_tokens"] = parsed.Usage.TotalTokens
	}
	telemetry.Info("analyzer.complete", fields)

	if err := charge(ctx, o.Coins, sess); err != nil {
		return nil, err
	}
	return raw, nil
}
