package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
}

func fastProvider(url string) *ChatProvider {
	p := NewChatProvider(url, "test-model", time.Second)
	p.retry.InitialDelay = time.Millisecond
	p.retry.MaxDelay = time.Millisecond
	p.retry.Jitter = false
	return p
}

func TestVibe_SearchQuery(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		completion(w, "<think>hmm</think>\n\"rainy day lofi jazz\"")
	}))
	defer srv.Close()

	q, err := NewVibe(fastProvider(srv.URL)).SearchQuery(context.Background(), "  cozy rainy afternoon ")
	require.NoError(t, err)

	assert.Equal(t, "rainy day lofi jazz", q)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "cozy rainy afternoon", got.Messages[1].Content)
}

func TestChatProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		completion(w, "synthwave night drive")
	}))
	defer srv.Close()

	reply, err := fastProvider(srv.URL).Generate(context.Background(), []Message{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "synthwave night drive", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatProvider_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := fastProvider(srv.URL).Generate(context.Background(), nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatProvider_GarbageReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completion(w, "Request not allowed")
	}))
	defer srv.Close()

	_, err := fastProvider(srv.URL).Generate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrGarbage)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "deep house", cleanReply("  `deep house`  "))
	assert.Equal(t, "first line", cleanReply("first line\nsecond line"))
	assert.Equal(t, "a", cleanReply("<think>\nlong\n</think>a"))
}
