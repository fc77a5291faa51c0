package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func extractPDF(content []byte) (text string, err error) {
	// ledongthuc/pdf 在遇到损坏的文件时可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF 解析异常: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("创建 PDF reader 失败: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("读取 PDF 内容失败: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("读取 PDF 内容失败: %w", err)
	}
	return buf.String(), nil
}
