// Package vision wraps the external vision and image-generation capability
// behind a small HTTP client. The upstream API is OpenAI-compatible: chat
// completions with an inline base64 image for analysis, and an image
// endpoint that returns a transient URL for generated bytes.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default models and limits for the upstream capability.
const (
	// DefaultBaseURL is the upstream API endpoint
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultAnalysisModel is the vision model used for image analysis
	DefaultAnalysisModel = "gpt-4o"
	// DefaultGenerationModel is the model used for image synthesis
	DefaultGenerationModel = "dall-e-3"
	// DefaultTimeout bounds a single analysis or generation call
	DefaultTimeout = 120 * time.Second
	// DefaultFetchTimeout bounds the byte fetch from a transient image URL
	DefaultFetchTimeout = 60 * time.Second
	// DefaultFetchRetries is how many extra fetch attempts are made
	DefaultFetchRetries = 2
)

// AnalysisRequest describes one chat-completion call against the vision
// model. Image may be nil for text-only prompts.
type AnalysisRequest struct {
	System      string
	Prompt      string
	Image       []byte
	MaxTokens   int
	Temperature float64
}

// API is the capability surface consumed by the detector and generator.
// Tests substitute a scripted implementation.
type API interface {
	// AnalyzeImage runs a chat completion and returns the free-text answer
	AnalyzeImage(ctx context.Context, req AnalysisRequest) (string, error)
	// GenerateImage synthesizes one image and returns its transient URL
	GenerateImage(ctx context.Context, prompt, size string) (string, error)
	// FetchImage downloads generated bytes from a transient URL
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Options contains configuration options for the capability client
type Options struct {
	// APIKey authenticates against the upstream API
	APIKey string
	// BaseURL is the base URL of the upstream API
	BaseURL string
	// Timeout is the request timeout for analysis and generation calls
	Timeout time.Duration
	// FetchTimeout is the timeout for downloading generated bytes
	FetchTimeout time.Duration
	// FetchRetries is the number of extra attempts for the byte fetch
	FetchRetries int
	// Client overrides the HTTP client, mainly for tests
	Client *http.Client
}

// Client implements API over HTTP
type Client struct {
	apiKey       string
	baseURL      string
	fetchRetries int
	client       *http.Client
	fetchClient  *http.Client
}

var _ API = &Client{}

// NewClient creates a new capability client with the given options
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("vision api key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.FetchRetries < 0 {
		opts.FetchRetries = DefaultFetchRetries
	}

	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		fetchRetries: opts.FetchRetries,
		client:       hc,
		fetchClient:  &http.Client{Timeout: opts.FetchTimeout},
	}, nil
}

// chat completion wire types (subset of the upstream schema)

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// AnalyzeImage runs one chat completion against the vision model and returns
// the assistant's free-text answer.
func (c *Client) AnalyzeImage(ctx context.Context, req AnalysisRequest) (string, error) {
	var userContent interface{} = req.Prompt
	if len(req.Image) > 0 {
		encoded := base64.StdEncoding.EncodeToString(req.Image)
		userContent = []chatContentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &chatImageURL{
				URL: fmt.Sprintf("data:image/jpeg;base64,%s", encoded),
			}},
		}
	}

	body := chatRequest{
		Model:       DefaultAnalysisModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: userContent},
		},
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("analysis response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateImage synthesizes one image and returns the transient URL the
// upstream API hosts it at.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	body := imageRequest{
		Model:   DefaultGenerationModel,
		Prompt:  prompt,
		Size:    size,
		Quality: "standard",
		N:       1,
	}

	var out imageResponse
	if err := c.post(ctx, "/images/generations", body, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", errors.New("generation response contained no image url")
	}
	return out.Data[0].URL, nil
}

// FetchImage downloads generated bytes from a transient URL with a bounded
// timeout and linear-backoff retries.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	attempts := c.fetchRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		data, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image fetch request: %w", err)
	}

	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch generated image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch generated image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generated image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("fetch generated image: empty body")
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("call %s: unexpected status %d: %s", path, resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
