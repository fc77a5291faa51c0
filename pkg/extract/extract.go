// Package extract 根据文件扩展名把原始文档字节转换为纯文本。
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"docqa-go/pkg/log"
)

var (
	// ErrUnsupportedFormat 表示无法根据文件名识别文档格式。
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyText 表示文档中没有可提取的文本。
	ErrEmptyText = errors.New("no text could be extracted from the document")
)

// Format 是支持的文档格式。
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatDOC
	FormatEML
	FormatMSG
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatDOC:
		return "doc"
	case FormatEML:
		return "eml"
	case FormatMSG:
		return "msg"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// 匹配顺序有意义：".docx" 必须先于 ".doc"。
var extensionTable = []struct {
	ext    string
	format Format
}{
	{".pdf", FormatPDF},
	{".docx", FormatDOCX},
	{".doc", FormatDOC},
	{".eml", FormatEML},
	{".msg", FormatMSG},
	{".txt", FormatText},
	{".md", FormatText},
}

// DetectFormat 在文件名或 URL 中做不区分大小写的子串匹配，返回第一个命中的格式。
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	for _, entry := range extensionTable {
		if strings.Contains(lower, entry.ext) {
			return entry.format
		}
	}
	return FormatUnknown
}

// TextExtractor 是外部文本提取服务（Tika）的抽象。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Extractor 把文档字节分派给对应格式的解析器。
type Extractor struct {
	tika TextExtractor
}

// New 创建 Extractor，tika 用于 .doc 与 .msg；为 nil 时这两种格式会报错。
func New(tika TextExtractor) *Extractor {
	return &Extractor{tika: tika}
}

// Extract 提取 content 的文本，name 为文件名或 URL。
func (e *Extractor) Extract(ctx context.Context, content []byte, name string) (string, error) {
	format := DetectFormat(name)
	log.Infof("[Extractor] 开始提取文本, name: %s, format: %s, size: %d", name, format, len(content))

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(content)
	case FormatDOCX:
		text, err = extractDOCX(content)
	case FormatEML:
		text, err = extractEML(content)
	case FormatDOC, FormatMSG:
		if e.tika == nil {
			return "", fmt.Errorf("%s 格式需要 Tika 服务", format)
		}
		text, err = e.tika.ExtractText(ctx, bytes.NewReader(content), fileNameFor(format))
	case FormatText:
		text, err = extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return "", fmt.Errorf("解析 %s 文档失败: %w", format, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	log.Infof("[Extractor] 文本提取完成, format: %s, length: %d", format, len(text))
	return text, nil
}

// fileNameFor 为 Tika 生成带正确扩展名的文件名，URL 中的查询参数不参与 MIME 推断。
func fileNameFor(format Format) string {
	return "document." + format.String()
}

func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), ""), nil
	}
	return string(content), nil
}
