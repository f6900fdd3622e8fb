package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brightdesk/classportal/pkg/config"
	"github.com/brightdesk/classportal/pkg/events"
	"github.com/brightdesk/classportal/pkg/logger"
)

// Extractor turns pasted free text (a newsletter, a school email) into
// structured page content by calling an external extraction API. The
// prompt side lives in the provider; this client owns timeouts, retries
// and the model fallback chain.
type Extractor struct {
	cfg      config.ExtractConfig
	client   *http.Client
	eventBus events.Publisher

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// Result is the structured content the API extracted.
type Result struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	EventDate *time.Time `json:"event_date,omitempty"`
	Location  string     `json:"location,omitempty"`
	Model     string     `json:"model"`
	Attempts  int        `json:"attempts"`
}

// APIError is a non-retryable provider response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("extraction API returned %d: %s", e.StatusCode, e.Message)
}

func New(cfg config.ExtractConfig, eventBus events.Publisher) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Extractor{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		eventBus: eventBus,
		sleep:    time.Sleep,
	}
}

type apiRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type apiResponse struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	EventDate *time.Time `json:"event_date"`
	Location  string     `json:"location"`
}

// Extract tries the primary model with bounded retries on transient
// failures, then falls back to the secondary model. A 4xx from the
// provider skips straight to the fallback; retrying it would not help.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	if e.cfg.BaseURL == "" {
		return nil, fmt.Errorf("extraction API not configured")
	}

	models := []string{e.cfg.Model}
	if e.cfg.FallbackModel != "" && e.cfg.FallbackModel != e.cfg.Model {
		models = append(models, e.cfg.FallbackModel)
	}

	attempts := 0
	var lastErr error

	for _, model := range models {
		for try := 1; try <= e.cfg.MaxAttempts; try++ {
			attempts++

			result, err := e.callOnce(ctx, model, text)
			if err == nil {
				result.Model = model
				result.Attempts = attempts
				e.published(ctx, model, attempts)
				return result, nil
			}

			lastErr = err

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				logger.WarnContext(ctx, "Extraction rejected by provider",
					"model", model,
					"status", apiErr.StatusCode,
				)
				break // next model
			}

			logger.WarnContext(ctx, "Extraction attempt failed",
				"model", model,
				"attempt", try,
				"error", err,
			)

			if try < e.cfg.MaxAttempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
				}
				e.sleep(backoff(try))
			}
		}
	}

	return nil, fmt.Errorf("extraction failed after %d attempts: %w", attempts, lastErr)
}

func (e *Extractor) callOnce(ctx context.Context, model, text string) (*Result, error) {
	payload, err := json.Marshal(apiRequest{Model: model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extraction API returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	return &Result{
		Title:     decoded.Title,
		Body:      decoded.Body,
		EventDate: decoded.EventDate,
		Location:  decoded.Location,
	}, nil
}

func (e *Extractor) published(ctx context.Context, model string, attempts int) {
	if e.eventBus == nil {
		return
	}
	if err := e.eventBus.Publish(ctx, events.ExtractCompleted, events.ExtractCompletedEvent{
		Model:       model,
		Attempts:    attempts,
		CompletedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish extract event", "error", err)
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}
