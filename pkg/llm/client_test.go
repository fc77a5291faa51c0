package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa-go/internal/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferWriter struct {
	types  []int
	chunks []string
	err    error
}

func (b *bufferWriter) WriteMessage(messageType int, data []byte) error {
	if b.err != nil {
		return b.err
	}
	b.types = append(b.types, messageType)
	b.chunks = append(b.chunks, string(data))
	return nil
}

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{APIKey: "k", BaseURL: url, Model: "gpt-4-turbo"}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])
		// temperature 0 必须显式出现在请求体中
		temp, ok := req["temperature"]
		assert.True(t, ok)
		assert.EqualValues(t, 0, temp)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  30 days. "}}]}`))
	}))
	defer srv.Close()

	answer, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "30 days.", answer)
}

func TestComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestStreamChatMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Thirty", " days", "."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	w := &bufferWriter{}
	err := NewClient(testConfig(srv.URL)).StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "q"}}, nil, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thirty", " days", "."}, w.chunks)
	assert.Equal(t, websocket.TextMessage, w.types[0])
}

func TestStreamChatMessages_WriterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	}))
	defer srv.Close()

	w := &bufferWriter{err: errors.New("closed")}
	err := NewClient(testConfig(srv.URL)).StreamChatMessages(context.Background(), nil, nil, w)
	assert.Error(t, err)
}
