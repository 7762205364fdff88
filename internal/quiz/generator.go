package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
	extractorName  = "extractor"

	generatePrompt = "Given the text which is a summary of the document, generate a quiz based on the text. " +
		"Return JSON only that contains a quiz object with fields: name, description, and questions. " +
		"The questions should be an array of objects with fields: questionText, answers. " +
		"The answers should be an array of objects with fields: answerText, isCorrect."
)

// Generator asks an OpenAI chat model for a quiz by forcing a call to a
// single extraction function.
type Generator struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type Option func(*Generator)

// NewGenerator creates a generator. An empty model selects gpt-3.5-turbo.
func NewGenerator(apiKey, model string, opts ...Option) *Generator {
	g := &Generator{
		APIKey:     strings.TrimSpace(apiKey),
		Model:      strings.TrimSpace(model),
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
	if g.Model == "" {
		g.Model = defaultModel
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// WithBaseURL points the generator at an OpenAI-compatible API.
func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(baseURL) == "" {
			return
		}
		g.BaseURL = strings.TrimSpace(baseURL)
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Generator) {
		if client == nil {
			return
		}
		g.HTTPClient = client
	}
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools"`
	ToolChoice any           `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate returns an unsaved quiz built from text.
func (g *Generator) Generate(ctx context.Context, text string) (*Quiz, error) {
	if g.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("quiz: text is required")
	}

	body, err := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "user", Content: generatePrompt + "\n" + text},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: chatFunction{
				Name:        extractorName,
				Description: "Extracts fields from output",
				Parameters:  extractorSchema(),
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": extractorName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("quiz: marshal request: %w", err)
	}

	url := strings.TrimRight(g.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("quiz: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("quiz: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("quiz: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apiError(resp.StatusCode, raw)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("quiz: decode response: %w", err)
	}

	for _, choice := range decoded.Choices {
		for _, call := range choice.Message.ToolCalls {
			if call.Function.Name != extractorName {
				continue
			}
			var args struct {
				Quizz *Quiz `json:"quizz"`
			}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("quiz: decode %s arguments: %w", extractorName, err)
			}
			if args.Quizz == nil {
				return nil, ErrNoQuiz
			}
			return args.Quizz, nil
		}
	}
	return nil, ErrNoQuiz
}

func (g *Generator) client() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

func apiError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("quiz: API error (%d): %s", status, envelope.Error.Message)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Errorf("quiz: API status %d: %s", status, text)
}

func extractorSchema() map[string]any {
	str := map[string]any{"type": "string"}
	answer := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answerText": str,
			"isCorrect":  map[string]any{"type": "boolean"},
		},
	}
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questionText": str,
			"answers":      map[string]any{"type": "array", "items": answer},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"quizz": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        str,
					"description": str,
					"questions":   map[string]any{"type": "array", "items": question},
				},
			},
		},
	}
}
