package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

func extractEML(content []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("解析邮件失败: %w", err)
	}

	body, err := emailBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, key := range []string{"Subject", "From", "To", "Date"} {
		if v := decodeHeader(msg.Header.Get(key)); v != "" {
			sb.WriteString(key)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	return strings.TrimSpace(sb.String()), nil
}

func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func emailBody(contentType, transferEncoding string, r io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(r, params["boundary"])
	}

	raw, err := io.ReadAll(decodeTransfer(transferEncoding, r))
	if err != nil {
		return "", fmt.Errorf("读取邮件正文失败: %w", err)
	}
	if mediaType == "text/html" {
		return stripHTMLTags(string(raw)), nil
	}
	return string(raw), nil
}

// multipartBody 优先返回 text/plain 部分，没有时退回到 text/html。
func multipartBody(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}
	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("读取邮件分段失败: %w", err)
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}
		mediaType, params, perr := mime.ParseMediaType(partType)
		if perr != nil {
			mediaType = "application/octet-stream"
		}
		// 附件不参与正文
		if strings.HasPrefix(strings.ToLower(part.Header.Get("Content-Disposition")), "attachment") {
			part.Close()
			continue
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nerr := multipartBody(part, params["boundary"])
			if nerr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		case mediaType == "text/plain" || mediaType == "text/html":
			data, rerr := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
			if rerr != nil {
				break
			}
			if mediaType == "text/plain" {
				textParts = append(textParts, string(data))
			} else {
				htmlParts = append(htmlParts, stripHTMLTags(string(data)))
			}
		}
		part.Close()
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

// decodeTransfer 解码 Content-Transfer-Encoding。
// multipart.Reader 会自动解码分段的 quoted-printable 并删除该头，单段邮件需要在这里处理。
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

func stripHTMLTags(markup string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}

	text := strings.ReplaceAll(html.UnescapeString(sb.String()), "\u00a0", " ")
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
