package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// Memory 是进程内的向量库，使用暴力余弦相似度检索，适用于开发与测试。
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Record
}

// NewMemory 创建一个空的内存向量库。
func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]map[string]Record)}
}

func (m *Memory) EnsureIndex(context.Context) error { return nil }

func (m *Memory) Upsert(_ context.Context, namespace string, records []Record) error {
	if namespace == "" {
		return errors.New("namespace 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Record)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		if len(r.Vector) == 0 {
			return errors.New("向量不能为空")
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		ns[r.ID] = r
	}
	return nil
}

func (m *Memory) Query(_ context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.namespaces[namespace]
	matches := make([]Match, 0, len(ns))
	for _, r := range ns {
		matches = append(matches, Match{ID: r.ID, Index: r.Index, Text: r.Text, Score: cosine(r.Vector, vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Index < matches[j].Index
		}
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// Count 返回命名空间内的向量数量。
func (m *Memory) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func (m *Memory) Close() error { return nil }

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
