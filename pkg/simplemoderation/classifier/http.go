// Package classifier provides the gateway to the external ML moderation
// service. The gateway never propagates transport errors to callers: any
// failure degrades to a needs_review verdict so content ingestion is never
// blocked by classifier health. A failure counter distinguishes "content
// genuinely ambiguous" from "classifier is down".
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

const moderatePath = "/api/moderate"

// HTTPClassifier calls the ML service over HTTP.
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
	failures   atomic.Int64
}

// Option configures an HTTPClassifier.
type Option func(*HTTPClassifier)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClassifier) {
		c.httpClient = client
	}
}

// New creates a classifier gateway for the service at baseURL.
func New(baseURL string, opts ...Option) *HTTPClassifier {
	c := &HTTPClassifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type moderateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type moderateResponse struct {
	Status           string   `json:"status"`
	Categories       []string `json:"categories"`
	Confidence       int      `json:"confidence"`
	LanguageDetected string   `json:"language_detected"`
}

// Classify submits text to the ML service and returns its verdict. On any
// transport or remote error it returns the degraded verdict and a nil error.
func (c *HTTPClassifier) Classify(ctx context.Context, text, language string) (*simplemoderation.Verdict, error) {
	verdict, err := c.call(ctx, text, language)
	if err != nil {
		c.failures.Add(1)
		slog.Warn("classifier call failed, falling back to manual review", "error", err)
		return simplemoderation.DegradedVerdict(language), nil
	}
	return verdict, nil
}

func (c *HTTPClassifier) call(ctx context.Context, text, language string) (*simplemoderation.Verdict, error) {
	body, err := json.Marshal(moderateRequest{Text: text, Language: language})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+moderatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result moderateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	status := simplemoderation.ModerationStatus(result.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("classifier returned unknown status %q", result.Status)
	}

	categories := result.Categories
	if categories == nil {
		categories = []string{}
	}

	return &simplemoderation.Verdict{
		Status:           status,
		Categories:       categories,
		Confidence:       result.Confidence,
		LanguageDetected: result.LanguageDetected,
	}, nil
}

// FailureCount reports how many classifier calls have fallen back to the
// degraded verdict since startup.
func (c *HTTPClassifier) FailureCount() int64 {
	return c.failures.Load()
}

// Healthy reports whether the ML service answers its health endpoint.
func (c *HTTPClassifier) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
