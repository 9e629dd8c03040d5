package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/savegress/vitalink/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.AssistantConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		Temperature: 0.2,
		MaxTokens:   500,
		Timeout:     time.Second,
	})
}

func TestComplete(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"All vitals look stable."}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	reply, err := client.Complete(context.Background(), CompletionRequest{
		Text:       "How is the patient?",
		SystemRole: RoleMedicalAssistant,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "All vitals look stable." {
		t.Errorf("unexpected reply %q", reply)
	}

	if len(gotBody.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" || gotBody.Messages[0].Content != RoleMedicalAssistant {
		t.Errorf("unexpected system message: %+v", gotBody.Messages[0])
	}
	if gotBody.Messages[1].Role != "user" || gotBody.Messages[1].Content != "How is the patient?" {
		t.Errorf("unexpected user message: %+v", gotBody.Messages[1])
	}
	if gotBody.Model != "gpt-3.5-turbo" {
		t.Errorf("expected default model, got %q", gotBody.Model)
	}
	if gotBody.MaxTokens != 500 {
		t.Errorf("expected default max tokens, got %d", gotBody.MaxTokens)
	}
}

func TestComplete_RequestOverridesDefaults(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{
		Text:        "question",
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotBody.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", gotBody.Temperature)
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{Text: "q"})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestComplete_ErrorStatusNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html><body>502 Bad Gateway</body></html>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{Text: "q"})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	// The status must name the failure even when the body is not JSON
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status in error, got %v", err)
	}
	if strings.Contains(err.Error(), "failed to decode") {
		t.Errorf("status failure misreported as decode failure: %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{Text: "q"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_TransportError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Complete(context.Background(), CompletionRequest{Text: "q"})
	if err == nil {
		t.Fatal("expected transport error")
	}
}
