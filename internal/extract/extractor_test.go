package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brightdesk/classportal/pkg/config"
)

func newTestExtractor(baseURL string) *Extractor {
	e := New(config.ExtractConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		Model:         "model-a",
		FallbackModel: "model-b",
		Timeout:       2 * time.Second,
		MaxAttempts:   3,
	}, nil)
	e.sleep = func(time.Duration) {}
	return e
}

func writeExtraction(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]string{
		"title": "Spring concert",
		"body":  "The concert starts at 18:00 in the gym.",
	})
}

func TestExtractFirstTrySucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		if r.URL.Path != "/v1/extract" {
			t.Errorf("path = %s, want /v1/extract", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req apiRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "model-a" {
			t.Errorf("model = %s, want model-a", req.Model)
		}

		writeExtraction(w)
	}))
	defer srv.Close()

	result, err := newTestExtractor(srv.URL).Extract(context.Background(), "some newsletter text")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Title != "Spring concert" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Model != "model-a" || result.Attempts != 1 {
		t.Errorf("model=%s attempts=%d, want model-a/1", result.Model, result.Attempts)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("server saw %d calls, want 1", calls)
	}
}

func TestExtractRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeExtraction(w)
	}))
	defer srv.Close()

	result, err := newTestExtractor(srv.URL).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Model != "model-a" || result.Attempts != 3 {
		t.Errorf("model=%s attempts=%d, want model-a/3", result.Model, result.Attempts)
	}
}

func TestExtractFallsBackOnClientError(t *testing.T) {
	var modelACalls, modelBCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model == "model-a" {
			atomic.AddInt32(&modelACalls, 1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		atomic.AddInt32(&modelBCalls, 1)
		writeExtraction(w)
	}))
	defer srv.Close()

	result, err := newTestExtractor(srv.URL).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Model != "model-b" {
		t.Errorf("model = %s, want model-b", result.Model)
	}
	// A 4xx is not retried against the same model.
	if atomic.LoadInt32(&modelACalls) != 1 {
		t.Errorf("model-a called %d times, want 1", modelACalls)
	}
	if atomic.LoadInt32(&modelBCalls) != 1 {
		t.Errorf("model-b called %d times, want 1", modelBCalls)
	}
}

func TestExtractExhaustsBothModels(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestExtractor(srv.URL).Extract(context.Background(), "text")
	if err == nil {
		t.Fatal("Extract succeeded against a failing provider")
	}
	// MaxAttempts per model, two models.
	if got := atomic.LoadInt32(&calls); got != 6 {
		t.Errorf("server saw %d calls, want 6", got)
	}
}

func TestExtractUnconfigured(t *testing.T) {
	e := New(config.ExtractConfig{}, nil)

	if _, err := e.Extract(context.Background(), "text"); err == nil {
		t.Fatal("Extract succeeded without a base URL")
	}
}
