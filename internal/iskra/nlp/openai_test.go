package nlp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iskralabs/iskra/internal/iskra/nlp"
)

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Понимаю тебя."}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer srv.Close()

	p := nlp.New(nlp.Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	resp, err := p.Complete(context.Background(), nlp.CompletionRequest{
		Messages: []nlp.Message{
			{Role: nlp.RoleSystem, Content: "Ты — наставник."},
			{Role: nlp.RoleUser, Content: "привет"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Понимаю тебя." {
		t.Errorf("content: got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 25 {
		t.Errorf("usage: got %+v", resp.Usage)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if gotBody.Model != "test-model" {
		t.Errorf("model: got %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Content != "привет" {
		t.Errorf("messages: got %+v", gotBody.Messages)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid key", "type": "auth_error"}}`))
	}))
	defer srv.Close()

	p := nlp.New(nlp.Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), nlp.CompletionRequest{
		Messages: []nlp.Message{{Role: nlp.RoleUser, Content: "привет"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := nlp.New(nlp.Config{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), nlp.CompletionRequest{
		Messages: []nlp.Message{{Role: nlp.RoleUser, Content: "привет"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
