// Package tokenizer 使用 tiktoken 统计 token 数量，用于控制 prompt 上下文长度。
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter 统计文本的 token 数。
type Counter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	instance *Counter
	once     sync.Once
	initErr  error
)

// Default 返回基于 cl100k_base 的单例 Counter。
func Default() (*Counter, error) {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			initErr = err
			return
		}
		instance = &Counter{encoding: enc}
	})
	if initErr != nil {
		return nil, initErr
	}
	return instance, nil
}

// Count 计算文本的 token 数量
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// Fit 依序保留不超过 budget 个 token 的前若干段文本；budget <= 0 表示不限制。
// 至少保留第一段，保证检索结果不会被全部丢弃。
func (c *Counter) Fit(parts []string, budget int) []string {
	if budget <= 0 || len(parts) == 0 {
		return parts
	}
	used := 0
	for i, p := range parts {
		used += c.Count(p)
		if used > budget && i > 0 {
			return parts[:i]
		}
	}
	return parts
}
