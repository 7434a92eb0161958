package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/shortreel/internal/provider"
)

// Static errors for client construction and responses.
var (
	// ErrBaseURLRequired is returned when the base URL is not provided.
	ErrBaseURLRequired = errors.New("httpapi: base URL is required")
	// ErrAPIKeyNotSet is wrapped in a missing-credentials error on every call made without a key.
	ErrAPIKeyNotSet = errors.New("httpapi: API key is not set")
	// ErrEmptyResponse is returned when a successful response has no payload.
	ErrEmptyResponse = errors.New("httpapi: empty response payload")
)

// Compile-time checks that Client implements the provider ports.
var (
	_ provider.SpeechSynthesizer = (*Client)(nil)
	_ provider.Transcriber       = (*Client)(nil)
	_ provider.ImageGenerator    = (*Client)(nil)
)

// Client is the HTTP implementation of the provider ports.
type Client struct {
	name        string
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	image       ImageOptions
	speech      SpeechOptions
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithName sets the provider name used in error messages.
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// WithImageOptions overrides the image request parameters.
func WithImageOptions(o ImageOptions) ClientOption {
	return func(c *Client) {
		c.image = o
	}
}

// WithSpeechOptions overrides the speech request parameters.
func WithSpeechOptions(o SpeechOptions) ClientOption {
	return func(c *Client) {
		c.speech = o
	}
}

// NewClient creates a new client for the API at baseURL.
// A missing API key is not a construction error: every call then fails with
// a missing-credentials error so the pipeline can report it per stage.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &Client{
		name:        "generation API",
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
		image:       DefaultImageOptions(),
		speech:      DefaultSpeechOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Synthesize returns narration audio for text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Text:   text,
		Voice:  c.speech.Voice,
		Format: c.speech.Format,
		Speed:  c.speech.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: marshal speech request: %w", err)
	}

	audio, err := c.doWithRetry(ctx, provider.OpSpeech, http.MethodPost, "/v1/speech", "application/json", body)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, provider.NewError(provider.KindTransient, c.name, provider.OpSpeech, ErrEmptyResponse)
	}
	return audio, nil
}

// Transcribe returns WebVTT timed text for audio.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	contentType := "audio/mpeg"
	if c.speech.Format == "wav" {
		contentType = "audio/wav"
	}
	out, err := c.doWithRetry(ctx, provider.OpTranscribe, http.MethodPost, "/v1/transcriptions?response_format=vtt", contentType, audio)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return "", provider.NewError(provider.KindTransient, c.name, provider.OpTranscribe, ErrEmptyResponse)
	}
	return string(out), nil
}

// Generate returns image bytes for prompt. The seed is derived from the
// prompt so the same scene text asks for the same image.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(imageRequest{
		Prompt: prompt,
		Width:  c.image.Width,
		Height: c.image.Height,
		Style:  c.image.Style,
		Seed:   Seed(prompt),
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: marshal image request: %w", err)
	}

	raw, err := c.doWithRetry(ctx, provider.OpImage, http.MethodPost, "/v1/images", "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage,
			fmt.Errorf("httpapi: unmarshal image response: %w", err))
	}
	if resp.ImageBase64 == "" {
		return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage, ErrEmptyResponse)
	}
	img, err := base64.StdEncoding.DecodeString(resp.ImageBase64)
	if err != nil {
		return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage,
			fmt.Errorf("httpapi: decode image: %w", err))
	}
	return img, nil
}

// Seed derives a stable image seed from a prompt.
func Seed(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32()
}

// doWithRetry performs a request with exponential backoff on transient failures.
func (c *Client) doWithRetry(ctx context.Context, op provider.Op, method, path, contentType string, body []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, provider.NewError(provider.KindMissingCredentials, c.name, op, ErrAPIKeyNotSet)
	}
	var out []byte
	err := provider.Retry(ctx, c.maxRetries, c.baseBackoff, func(ctx context.Context) error {
		var err error
		out, err = c.do(ctx, op, method, path, contentType, body)
		return err
	})
	return out, err
}

// do performs a single request and classifies any failure.
func (c *Client) do(ctx context.Context, op provider.Op, method, path, contentType string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpapi: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewError(provider.KindTransient, c.name, op, fmt.Errorf("httpapi: request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindTransient, c.name, op, fmt.Errorf("httpapi: read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := provider.ParseAPIError(respBody)
		kind := provider.ClassifyHTTP(resp.StatusCode, apiErr)
		return nil, provider.NewError(kind, c.name, op,
			fmt.Errorf("httpapi: status %d: type=%q code=%q", resp.StatusCode, apiErr.Type, apiErr.Code))
	}

	return respBody, nil
}
