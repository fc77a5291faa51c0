// Package loader 负责获取原始文档字节：远程下载、base64 解码以及身份标识计算。
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
)

var (
	// ErrDocumentTooLarge 表示文档超过了配置的最大字节数。
	ErrDocumentTooLarge = errors.New("document exceeds maximum allowed size")
	// ErrInvalidEncoding 表示 file_content 不是合法的 base64。
	ErrInvalidEncoding = errors.New("file content is not valid base64")
	// ErrDownloadFailed 表示远程文档无法下载。
	ErrDownloadFailed = errors.New("failed to download document")
)

// Loader 下载远程文档。
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// New 根据配置创建 Loader，timeout 为单次下载的总超时。
func New(cfg config.LoaderConfig) *Loader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch 下载 url 指向的文档并返回完整内容。
func (l *Loader) Fetch(ctx context.Context, url string) ([]byte, error) {
	log.Infof("[Loader] 开始下载文档, url: %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %s", ErrDownloadFailed, resp.Status)
	}
	if l.maxBytes > 0 && resp.ContentLength > l.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	var body io.Reader = resp.Body
	if l.maxBytes > 0 {
		// 多读一个字节用于判断是否超限
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if l.maxBytes > 0 && int64(len(content)) > l.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	log.Infof("[Loader] 文档下载完成, url: %s, size: %d", url, len(content))
	return content, nil
}

// Decode 解码 base64 文件内容，依次尝试标准编码、URL 安全编码以及无填充变体。
func Decode(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	// data URI 前缀
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	s = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(s)
	if s == "" {
		return nil, ErrInvalidEncoding
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, ErrInvalidEncoding
}

// Checksum 返回内容的小写十六进制 sha256。
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// URLNamespace 返回远程文档的向量命名空间。
func URLNamespace(url string) string {
	return Checksum([]byte(url))
}
