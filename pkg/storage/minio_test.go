package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"policy.pdf", "documents/ns/policy.pdf"},
		{"https://host/path/Policy.pdf?sv=1&sig=2", "documents/ns/Policy.pdf"},
		{"C:\\docs\\contract.docx", "documents/ns/contract.docx"},
		{"", "documents/ns/document"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey("ns", tt.fileName), tt.fileName)
	}
}
