// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"net/url"
	"strings"

	"docqa-go/internal/service"
	"docqa-go/pkg/loader"
)

// RunRequest 是问答接口的请求体。
type RunRequest struct {
	DocumentURL string   `json:"document_url"`
	Documents   string   `json:"documents"` // document_url 的旧字段名
	FileName    string   `json:"filename"`
	FileContent string   `json:"file_content"`
	Questions   []string `json:"questions"`
}

// RunResponse 是问答接口的响应体，answers 与 questions 一一对应。
type RunResponse struct {
	Answers []string `json:"answers"`
}

// ToInput 校验请求并转换为 service.RunInput，maxBytes > 0 时限制内联文件的解码后大小。
func (r *RunRequest) ToInput(maxBytes int64) (service.RunInput, error) {
	documentURL := strings.TrimSpace(r.DocumentURL)
	if documentURL == "" {
		documentURL = strings.TrimSpace(r.Documents)
	}
	hasFile := r.FileName != "" || r.FileContent != ""

	switch {
	case documentURL != "" && hasFile:
		return service.RunInput{}, invalid("provide either document_url or filename/file_content, not both")
	case documentURL == "" && !hasFile:
		return service.RunInput{}, invalid("document_url or filename/file_content is required")
	}

	questions := make([]string, 0, len(r.Questions))
	for _, q := range r.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 || len(questions) != len(r.Questions) {
		return service.RunInput{}, invalid("questions must be a non-empty list of non-blank strings")
	}

	if documentURL != "" {
		u, err := url.Parse(documentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return service.RunInput{}, invalid("document_url must be an absolute http(s) URL")
		}
		return service.RunInput{DocumentURL: documentURL, Questions: questions}, nil
	}

	if strings.TrimSpace(r.FileName) == "" || strings.TrimSpace(r.FileContent) == "" {
		return service.RunInput{}, invalid("filename and file_content must both be provided")
	}
	content, err := loader.Decode(r.FileContent)
	if err != nil {
		return service.RunInput{}, err
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return service.RunInput{}, loader.ErrDocumentTooLarge
	}
	return service.RunInput{FileName: strings.TrimSpace(r.FileName), Content: content, Questions: questions}, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", service.ErrInvalidInput, msg)
}
