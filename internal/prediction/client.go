// Package prediction calls the external symptom prediction service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"symptobuddy/internal/logging"
	"symptobuddy/pkg/domain"
)

// DefaultTimeout bounds a single prediction request.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client posts symptom lists to <baseURL>/predict. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.OrDiscard(l) }
}

// NewClient returns a client for the service at baseURL. A non-positive
// timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("prediction base url is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

type predictResponse struct {
	PredictedDisease string `json:"predicted_disease"`
	Error            string `json:"error"`
	Overview         string `json:"overview"`
	Causes           string `json:"causes"`
	Symptoms         string `json:"symptoms"`
	NextSteps        string `json:"next_steps"`
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrPredictionFailed, fmt.Sprintf(format, args...))
}

// Predict returns the diagnosis for symptoms. Transport errors, non-2xx
// statuses, an error field in the body and an empty label all fail with
// domain.ErrPredictionFailed.
func (c *Client) Predict(ctx context.Context, symptoms []string) (domain.Prediction, error) {
	if symptoms == nil {
		symptoms = []string{}
	}
	body, err := json.Marshal(predictRequest{Symptoms: symptoms})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("prediction request failed", slog.String("error", err.Error()))
		return domain.Prediction{}, fmt.Errorf("%w: %w", domain.ErrPredictionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: read response: %w", domain.ErrPredictionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("prediction service returned error status", slog.Int("status", resp.StatusCode))
		return domain.Prediction{}, failed("unexpected status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: decode response: %w", domain.ErrPredictionFailed, err)
	}
	if out.Error != "" {
		return domain.Prediction{}, failed("service error: %s", out.Error)
	}
	label := strings.TrimSpace(out.PredictedDisease)
	if label == "" {
		return domain.Prediction{}, failed("empty prediction")
	}

	pred := domain.Prediction{Label: label}
	info := domain.DiseaseInfo{Overview: out.Overview, Causes: out.Causes, Symptoms: out.Symptoms, NextSteps: out.NextSteps}
	if !info.Empty() {
		pred.DiseaseInfo = &info
	}
	c.logger.Debug("prediction received", slog.String("label", label), slog.Duration("took", time.Since(start)))
	return pred, nil
}
