package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.1:latest" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if req.Stream {
			t.Fatal("expected stream=false")
		}
		if req.System != "be brief" {
			t.Fatalf("expected system field, got %q", req.System)
		}
		if req.Prompt != "summarize this" {
			t.Fatalf("unexpected prompt %q", req.Prompt)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "response": "  a summary  ", "done": true})
	}))
	defer server.Close()

	client, err := NewClient("ollama", "", "llama3.1:latest", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), Request{System: "be brief", Prompt: "summarize this"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "a summary" {
		t.Fatalf("expected trimmed response, got %q", got)
	}
}

func TestOllamaErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
			wantErr: "ollama status 404",
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "out of memory"})
			},
			wantErr: "out of memory",
		},
		{
			name: "empty response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"response": "   "})
			},
			wantErr: "empty response",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantErr: "decode ollama response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, err := NewClient("ollama", "", "llama3.2:3b", WithBaseURL(server.URL))
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			_, err = client.Complete(context.Background(), Request{Prompt: "hi"})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOllamaRejectsEmptyPrompt(t *testing.T) {
	client, err := newOllamaClient("llama3.1", &clientOptions{httpClient: http.DefaultClient})
	if err != nil {
		t.Fatalf("newOllamaClient failed: %v", err)
	}
	if _, err := client.Complete(context.Background(), Request{System: "x", Prompt: "  "}); err == nil {
		t.Fatal("expected error for an empty prompt")
	}
}
