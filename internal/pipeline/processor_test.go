package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docqa-go/pkg/extract"
	"docqa-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	content []byte
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	return f.content, f.err
}

// fakeEmbedder 把文本映射为 [长度, 1] 的二维向量，并记录每批大小。
type fakeEmbedder struct {
	batches []int
	err     error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, f.err
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Put(_ context.Context, namespace, fileName string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := namespace + "/" + fileName
	f.keys = append(f.keys, key)
	return key, nil
}

func TestProcessor_InlineDocument(t *testing.T) {
	store := vectorstore.NewMemory()
	emb := &fakeEmbedder{}
	arch := &fakeArchiver{}
	fetcher := &fakeFetcher{}
	p := NewProcessor(fetcher, extract.New(nil), NewChunker(10, 2), emb, store, arch, 3)

	text := strings.Repeat("abcdefgh", 8) // 64 runes -> 8 chunks
	res, err := p.Process(context.Background(), Source{
		Namespace: "ns1",
		FileName:  "notes.txt",
		Content:   []byte(text),
	})
	require.NoError(t, err)
	assert.Equal(t, 8, res.ChunkCount)
	assert.Equal(t, "ns1/notes.txt", res.ArchiveKey)
	assert.Equal(t, []int{3, 3, 2}, emb.batches)
	assert.Equal(t, 8, store.Count("ns1"))
	assert.Equal(t, 0, fetcher.calls)

	matches, err := store.Query(context.Background(), "ns1", []float32{10, 1}, 100)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, m := range matches {
		ids[m.ID] = true
	}
	assert.True(t, ids["ns1-0"])
	assert.True(t, ids["ns1-7"])
}

func TestProcessor_FetchesURL(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("remote policy text")}
	store := vectorstore.NewMemory()
	p := NewProcessor(fetcher, extract.New(nil), NewChunker(400, 150), &fakeEmbedder{}, store, nil, 100)

	res, err := p.Process(context.Background(), Source{Namespace: "ns", URL: "https://x/policy.txt?sig=1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Empty(t, res.ArchiveKey)
	assert.Equal(t, 1, fetcher.calls)
}

func TestProcessor_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch", func(t *testing.T) {
		boom := errors.New("dial failed")
		p := NewProcessor(&fakeFetcher{err: boom}, extract.New(nil), NewChunker(10, 2), &fakeEmbedder{}, vectorstore.NewMemory(), nil, 10)
		_, err := p.Process(ctx, Source{Namespace: "ns", URL: "https://x/a.txt"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty text", func(t *testing.T) {
		p := NewProcessor(nil, extract.New(nil), NewChunker(10, 2), &fakeEmbedder{}, vectorstore.NewMemory(), nil, 10)
		_, err := p.Process(ctx, Source{Namespace: "ns", FileName: "a.txt", Content: []byte("   ")})
		assert.ErrorIs(t, err, extract.ErrEmptyText)
	})

	t.Run("unsupported", func(t *testing.T) {
		p := NewProcessor(nil, extract.New(nil), NewChunker(10, 2), &fakeEmbedder{}, vectorstore.NewMemory(), nil, 10)
		_, err := p.Process(ctx, Source{Namespace: "ns", FileName: "a.xls", Content: []byte("x")})
		assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
	})

	t.Run("embedding", func(t *testing.T) {
		store := vectorstore.NewMemory()
		p := NewProcessor(nil, extract.New(nil), NewChunker(10, 2), &fakeEmbedder{err: errors.New("quota")}, store, nil, 10)
		_, err := p.Process(ctx, Source{Namespace: "ns", FileName: "a.txt", Content: []byte("some text here")})
		assert.ErrorContains(t, err, "quota")
		assert.Equal(t, 0, store.Count("ns"))
	})

	t.Run("archive failure is ignored", func(t *testing.T) {
		p := NewProcessor(nil, extract.New(nil), NewChunker(10, 2), &fakeEmbedder{}, vectorstore.NewMemory(), &fakeArchiver{err: errors.New("s3")}, 10)
		res, err := p.Process(ctx, Source{Namespace: "ns", FileName: "a.txt", Content: []byte("some text")})
		require.NoError(t, err)
		assert.Empty(t, res.ArchiveKey)
	})
}
