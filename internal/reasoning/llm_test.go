// internal/reasoning/llm_test.go
package reasoning

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carevault/internal/breaker"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_ReturnsCompletion(t *testing.T) {
	var gotPath, gotAuth string
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"Patient reports improvement."}}]}`))
	})

	client := NewLLMClient(srv.URL+"/", "test-key", "test-model")
	out, err := client.Generate(context.Background(), "system", "user", 0.3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "Patient reports improvement." {
		t.Errorf("unexpected completion: %q", out)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("expected /chat/completions path, got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
}

func TestGenerate_APIErrorStatus(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	client := NewLLMClient(srv.URL, "", "test-model")
	_, err := client.Generate(context.Background(), "", "user", 0.3)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should mention status: %v", err)
	}
}

func TestGenerate_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	})

	client := NewLLMClient(srv.URL, "", "test-model")
	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), "", "user", 0.3); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	// The breaker is open now; further calls never reach the server.
	_, err := client.Generate(context.Background(), "", "user", 0.3)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected breaker open error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 upstream calls, got %d", calls)
	}
}

func TestGenerateStringList_ParsesFencedJSON(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n[\\\"a\\\", \\\"b\\\"]\\n```" + `"}}]}`))
	})

	client := NewLLMClient(srv.URL, "", "test-model")
	items, err := client.GenerateStringList(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("GenerateStringList failed: %v", err)
	}
	if len(items) != 2 || items[0] != "a" || items[1] != "b" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestGenerateStringList_RejectsNonJSON(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json at all"}}]}`))
	})

	client := NewLLMClient(srv.URL, "", "test-model")
	if _, err := client.GenerateStringList(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected parse error")
	}
}
