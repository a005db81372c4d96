package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agentcv/agentcv/internal/domain"
)

func completionServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": answer},
					"finish_reason": "stop",
				},
			},
		})
	}))
}

func testMessages() []domain.Message {
	return []domain.Message{
		{Role: "system", Content: domain.Persona},
		{Role: "user", Content: "what does this profile say?"},
	}
}

func TestComplete_Success(t *testing.T) {
	server := completionServer(t, "A senior Go engineer.")
	defer server.Close()

	c := NewCompleter(&CompleterConfig{
		DefaultModel: "gpt-4o-mini",
		Temperature:  0.7,
		BaseURL:      server.URL,
		Logger:       zap.NewNop(),
	})

	answer, err := c.Complete(context.Background(), domain.Credential{APIKey: "sk"}, testMessages())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if answer != "A senior Go engineer." {
		t.Errorf("answer = %q", answer)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test", "object": "chat.completion", "choices": []any{},
		})
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", BaseURL: server.URL, Logger: zap.New(core)})

	answer, err := c.Complete(context.Background(), domain.Credential{APIKey: "sk"}, testMessages())
	if err != nil {
		t.Fatalf("no choices must not be an error: %v", err)
	}
	if answer != "" {
		t.Errorf("answer = %q, want empty", answer)
	}
	if logs.FilterMessage("Completion returned no choices").Len() != 1 {
		t.Errorf("expected one no-choices warning, got %v", logs.All())
	}
}

func TestComplete_MissingCredential(t *testing.T) {
	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", Logger: zap.NewNop()})

	_, err := c.Complete(context.Background(), domain.Credential{}, testMessages())
	if !errors.Is(err, domain.ErrCredentialMissing) {
		t.Fatalf("error = %v, want ErrCredentialMissing", err)
	}
}

func TestComplete_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", BaseURL: server.URL, Logger: zap.NewNop()})

	_, err := c.Complete(context.Background(), domain.Credential{APIKey: "sk"}, testMessages())
	if !errors.Is(err, domain.ErrCompletionProvider) {
		t.Fatalf("error = %v, want ErrCompletionProvider", err)
	}
}

func TestComplete_CredentialChatModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want the credential's gpt-4o", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", BaseURL: server.URL, Logger: zap.NewNop()})

	cred := domain.Credential{APIKey: "sk", ChatModel: "gpt-4o"}
	if _, err := c.Complete(context.Background(), cred, testMessages()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func streamChunk(content string) string {
	chunk := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(chunk)
	return fmt.Sprintf("data: %s\n\n", b)
}

func TestStream_Fragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(streamChunk("Hello")))
		_, _ = w.Write([]byte(streamChunk(" world")))
		_, _ = w.Write([]byte(streamChunk(""))) // empty delta is skipped
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", BaseURL: server.URL, Logger: zap.NewNop()})

	var got []string
	err := c.Stream(context.Background(), domain.Credential{APIKey: "sk"}, testMessages(), func(f string) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(got) != 2 || got[0] != "Hello" || got[1] != " world" {
		t.Errorf("fragments = %v", got)
	}
}

func TestStream_EmitErrorStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(streamChunk("one")))
		_, _ = w.Write([]byte(streamChunk("two")))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", BaseURL: server.URL, Logger: zap.NewNop()})

	emitErr := errors.New("client went away")
	calls := 0
	err := c.Stream(context.Background(), domain.Credential{APIKey: "sk"}, testMessages(), func(string) error {
		calls++
		return emitErr
	})
	if !errors.Is(err, emitErr) {
		t.Fatalf("error = %v, want the emit error", err)
	}
	if calls != 1 {
		t.Errorf("emit calls = %d, want 1", calls)
	}
}

func TestStream_MissingCredential(t *testing.T) {
	c := NewCompleter(&CompleterConfig{DefaultModel: "gpt-4o-mini", Logger: zap.NewNop()})

	err := c.Stream(context.Background(), domain.Credential{}, testMessages(), func(string) error { return nil })
	if !errors.Is(err, domain.ErrCredentialMissing) {
		t.Fatalf("error = %v, want ErrCredentialMissing", err)
	}
}
