package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/memohai/doubtsolver/internal/imaging"
	"github.com/memohai/doubtsolver/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 8 * 1024 * 1024
	maxDetailBytes   = 2048
)

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// SingleFlight allows at most one in-flight call per Client.
	SingleFlight bool
	// PreCallDelay is slept inside the single-flight region right before
	// each call. Ignored when SingleFlight is false.
	PreCallDelay time.Duration
	// Limiter, when set, spaces calls across the whole process.
	Limiter    *ratelimit.Outbound
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	logger       *slog.Logger
	http         *http.Client
	apiKey       string
	model        string
	baseURL      string
	singleFlight bool
	preCallDelay time.Duration
	limiter      *ratelimit.Outbound

	// mu is held for the duration of the network call when singleFlight is set.
	mu sync.Mutex
}

// NewClient creates a Client. Empty options fall back to the package defaults.
func NewClient(log *slog.Logger, opts Options) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		logger:       log.With(slog.String("service", "gemini"), slog.String("model", model)),
		http:         httpClient,
		apiKey:       opts.APIKey,
		model:        model,
		baseURL:      baseURL,
		singleFlight: opts.SingleFlight,
		preCallDelay: opts.PreCallDelay,
		limiter:      opts.Limiter,
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Ask sends question, optionally preceded by image, and returns the text of
// the last part of the first candidate. Failures are *UpstreamError.
func (c *Client) Ask(ctx context.Context, question string, image *imaging.NormalizedImage) (string, error) {
	body, err := json.Marshal(buildRequest(question, image))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	if c.singleFlight {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := sleepContext(ctx, c.preCallDelay); err != nil {
			return "", &UpstreamError{Kind: KindTransport, Err: err}
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &UpstreamError{Kind: KindTransport, Err: err}
	}

	return c.do(ctx, body)
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("generate content failed", slog.Any("error", err))
		return "", &UpstreamError{Kind: KindTransport, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &UpstreamError{Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("generate content",
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(started)),
		slog.Int("bytes", len(raw)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Kind: KindHTTP, Status: resp.StatusCode, Detail: truncateDetail(string(raw))}
	}
	return extractAnswer(raw)
}

func (c *Client) endpoint() string {
	return c.baseURL + "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"
}

func buildRequest(question string, image *imaging.NormalizedImage) generateContentRequest {
	parts := make([]part, 0, 2)
	if image != nil && len(image.Data) > 0 {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = imaging.MIMEJPEG
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image.Data),
		}})
	}
	// The text part goes last: the model reads it as the instruction for
	// the preceding image.
	parts = append(parts, part{Text: BuildPrompt(question)})
	return generateContentRequest{Contents: []content{{Parts: parts}}}
}

func extractAnswer(raw []byte) (string, error) {
	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &UpstreamError{Kind: KindNoCandidates, Detail: truncateDetail(string(raw)), Err: err}
	}
	if len(parsed.Candidates) == 0 {
		detail := truncateDetail(string(raw))
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			detail = "blocked: " + parsed.PromptFeedback.BlockReason
		}
		return "", &UpstreamError{Kind: KindNoCandidates, Detail: detail}
	}
	first := parsed.Candidates[0]
	if first.Content == nil || len(first.Content.Parts) == 0 {
		return "", &UpstreamError{Kind: KindNoCandidates, Detail: "empty candidate, finish reason " + first.FinishReason}
	}
	parts := first.Content.Parts
	return parts[len(parts)-1].Text, nil
}

func truncateDetail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetailBytes {
		return s
	}
	limit := maxDetailBytes
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
