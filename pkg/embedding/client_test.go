package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"docqa-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer 返回一个把每个输入编码成 [len(input), index] 的假服务，并以倒序返回 data。
func newEmbeddingServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(len(req.Input[i])), float32(i)}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func testConfig(url string, batch int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   url + "/",
		Model:     "text-embedding-3-small",
		BatchSize: batch,
	}
}

func TestCreateEmbedding(t *testing.T) {
	var calls int32
	srv := newEmbeddingServer(t, &calls)
	defer srv.Close()

	vec, err := NewClient(testConfig(srv.URL, 100)).CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vec)
	assert.EqualValues(t, 1, calls)
}

func TestCreateEmbeddings_BatchesAndOrder(t *testing.T) {
	var calls int32
	srv := newEmbeddingServer(t, &calls)
	defer srv.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := NewClient(testConfig(srv.URL, 2)).CreateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vecs[i][0], "vector %d out of order", i)
	}
	assert.EqualValues(t, 3, calls)
}

func TestCreateEmbeddings_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2]}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL, 10)).CreateEmbeddings(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestCreateEmbedding_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL, 10)).CreateEmbedding(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
