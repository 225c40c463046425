package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.Host = server.URL
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	return NewClient(opts)
}

func TestChatSuccess(t *testing.T) {
	var received chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "restart the service"},
		})
	}, Options{Model: "llama3"})

	answer, err := client.Chat(context.Background(), "you are helpful", "service is down")
	require.NoError(t, err)
	assert.Equal(t, "restart the service", answer)

	assert.Equal(t, "llama3", received.Model)
	assert.False(t, received.Stream)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "user", received.Messages[1].Role)
	assert.InDelta(t, 0.2, received.Options.Temperature, 0.001)
	assert.Equal(t, 1024, received.Options.NumPredict)
	assert.NotEmpty(t, received.Options.Stop)
}

func TestChatTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}, Options{Model: "llama3", Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Chat(context.Background(), "", "slow question")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, elapsed, 1*time.Second, "the call must be abandoned at the deadline")
}

func TestChatUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}, Options{Model: "missing"})

	_, err := client.Chat(context.Background(), "", "q")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "model not found")
}

func TestChatMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}, Options{Model: "llama3"})

	_, err := client.Chat(context.Background(), "", "q")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestChatEmptyAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "  "}})
	}, Options{Model: "llama3"})

	_, err := client.Chat(context.Background(), "", "q")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
}

func TestChatErrorField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Error: "model is loading"})
	}, Options{Model: "llama3"})

	_, err := client.Chat(context.Background(), "", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model is loading")
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3"},{"name":"mistral"}]}`))
	}, Options{Model: "llama3"})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral"}, models)
}

func TestCheckConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
	}, Options{Model: "llama3"})

	ok, detail := client.CheckConnection(context.Background())
	assert.True(t, ok)
	assert.Contains(t, detail, "llama3")
}

func TestCheckConnectionModelNotRegistered(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"mistral"}]}`))
	}, Options{Model: "llama3"})

	ok, detail := client.CheckConnection(context.Background())
	assert.False(t, ok)
	assert.Contains(t, detail, "not registered")
}

func TestCheckConnectionNoModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}, Options{Model: "llama3"})

	ok, detail := client.CheckConnection(context.Background())
	assert.False(t, ok)
	assert.Contains(t, detail, "no models registered")
}

func TestCheckConnectionUnreachable(t *testing.T) {
	client := NewClient(Options{
		Host:   "http://127.0.0.1:1",
		Model:  "llama3",
		Logger: testLogger(),
	})

	ok, detail := client.CheckConnection(context.Background())
	assert.False(t, ok)
	assert.Contains(t, detail, "cannot reach model endpoint")
}

func TestListModelsMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"surprise"`))
	}, Options{Model: "llama3"})

	_, err := client.ListModels(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}
