package qstash

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublish(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL + "/", Token: " secret "})
	id, err := client.Publish(context.Background(), "https://hooks.example.com/aiflow", map[string]string{"kind": "task:failed"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_1" {
		t.Fatalf("unexpected message id: %q", id)
	}
	if gotPath != "/v2/publish/https://hooks.example.com/aiflow" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotAuth != "Bearer secret" || gotBody["kind"] != "task:failed" {
		t.Fatalf("unexpected request: auth=%q body=%v", gotAuth, gotBody)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL, Token: "t"})
	if _, err := client.Publish(context.Background(), "https://hooks.example.com", struct{}{}); !errors.Is(err, ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}
	if _, err := client.Publish(context.Background(), " ", struct{}{}); !errors.Is(err, ErrPublish) {
		t.Fatalf("expected ErrPublish for empty destination, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: ""}); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Fatalf("expected error for invalid url")
	}
	if (Config{Token: "t"}).Enabled() {
		t.Fatalf("config without destination should be disabled")
	}
}
