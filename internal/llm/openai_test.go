package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComplete(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Halo! Ada yang bisa dibantu?"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"}, zap.NewNop())
	out, err := c.Complete(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, "Halo! Ada yang bisa dibantu?", out)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestCompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())
	_, err := c.Complete(context.Background(), "halo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())
	_, err := c.Complete(context.Background(), "halo")
	assert.Error(t, err)
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, fragment := range []string{"Atap ", "spandek ", "tahan lama."} {
			chunk := map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]string{"content": fragment}},
				},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())

	var got []string
	err := c.CompleteStream(context.Background(), "ceritakan soal spandek", func(text string) error {
		got = append(got, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Atap ", "spandek ", "tahan lama."}, got)
}

func TestCompleteStreamCallbackErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())

	calls := 0
	err := c.CompleteStream(context.Background(), "q", func(string) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("consumer gone")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCompleteStreamIgnoresNonDataLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())

	var got []string
	err := c.CompleteStream(context.Background(), "q", func(text string) error {
		got = append(got, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
}
