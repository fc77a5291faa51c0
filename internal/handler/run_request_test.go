package handler

import (
	"encoding/base64"
	"testing"

	"docqa-go/internal/service"
	"docqa-go/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequest_URL(t *testing.T) {
	req := RunRequest{DocumentURL: " https://example.com/policy.pdf ", Questions: []string{"What is covered?"}}
	in, err := req.ToInput(0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/policy.pdf", in.DocumentURL)
	assert.Equal(t, []string{"What is covered?"}, in.Questions)
	assert.Nil(t, in.Content)
}

func TestRunRequest_LegacyDocumentsField(t *testing.T) {
	req := RunRequest{Documents: "https://example.com/a.pdf?sv=1", Questions: []string{"q"}}
	in, err := req.ToInput(0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.pdf?sv=1", in.DocumentURL)
}

func TestRunRequest_InlineFile(t *testing.T) {
	content := []byte("hello policy")
	req := RunRequest{
		FileName:    "policy.txt",
		FileContent: base64.StdEncoding.EncodeToString(content),
		Questions:   []string{"q"},
	}
	in, err := req.ToInput(0)
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", in.FileName)
	assert.Equal(t, content, in.Content)

	req.FileContent = base64.RawURLEncoding.EncodeToString(content)
	in, err = req.ToInput(0)
	require.NoError(t, err)
	assert.Equal(t, content, in.Content)
}

func TestRunRequest_Invalid(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("x"))
	cases := map[string]RunRequest{
		"neither source":   {Questions: []string{"q"}},
		"both sources":     {DocumentURL: "https://example.com/a.pdf", FileName: "a.txt", FileContent: b64, Questions: []string{"q"}},
		"missing content":  {FileName: "a.txt", Questions: []string{"q"}},
		"missing filename": {FileContent: b64, Questions: []string{"q"}},
		"no questions":     {DocumentURL: "https://example.com/a.pdf"},
		"blank question":   {DocumentURL: "https://example.com/a.pdf", Questions: []string{"q", "  "}},
		"relative url":     {DocumentURL: "/files/a.pdf", Questions: []string{"q"}},
		"ftp url":          {DocumentURL: "ftp://example.com/a.pdf", Questions: []string{"q"}},
		"bad base64":       {FileName: "a.txt", FileContent: "!!!not base64!!!", Questions: []string{"q"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := req.ToInput(0)
			require.Error(t, err)
			assert.True(t, service.IsInvalidInput(err), "error %v should map to 400", err)
		})
	}
}

func TestRunRequest_InlineTooLarge(t *testing.T) {
	req := RunRequest{
		FileName:    "a.txt",
		FileContent: base64.StdEncoding.EncodeToString([]byte("0123456789")),
		Questions:   []string{"q"},
	}
	_, err := req.ToInput(5)
	assert.ErrorIs(t, err, loader.ErrDocumentTooLarge)
	assert.True(t, service.IsInvalidInput(err))
}
