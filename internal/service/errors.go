package service

import (
	"errors"

	"docqa-go/internal/pipeline"
	"docqa-go/pkg/extract"
	"docqa-go/pkg/loader"
)

// ErrInvalidInput 表示请求本身有误。
var ErrInvalidInput = errors.New("invalid input")

// IsInvalidInput 判断错误是否由客户端输入引起，这类错误应返回 400。
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		loader.ErrInvalidEncoding,
		loader.ErrDocumentTooLarge,
		extract.ErrUnsupportedFormat,
		extract.ErrEmptyText,
		pipeline.ErrNoChunks,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
