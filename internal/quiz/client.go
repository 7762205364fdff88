package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to the memo HTTP service's quiz endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Generate asks the service to build and store a quiz from text and
// returns its id.
func (c *Client) Generate(ctx context.Context, text string) (int64, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/quiz/generate-quiz", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		QuizzID int64 `json:"quizzId"`
	}
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return out.QuizzID, nil
}

// Get fetches a stored quiz. An unknown id is ErrNotFound.
func (c *Client) Get(ctx context.Context, id int64) (*Quiz, error) {
	url := c.BaseURL + "/api/quiz/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var q Quiz
	if err := c.do(req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("quiz service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorBody
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			if e.Details != "" {
				return fmt.Errorf("quiz service: %s: %s", e.Error, e.Details)
			}
			return fmt.Errorf("quiz service: %s", e.Error)
		}
		return fmt.Errorf("quiz service: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
