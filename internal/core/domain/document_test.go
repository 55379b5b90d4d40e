package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDocumentID_Stable tests that the same path always yields the same ID
func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("/repo/internal/auth/flow.go")
	b := DocumentID("/repo/internal/auth/flow.go")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

// TestDocumentID_DistinctPaths tests that different paths yield different IDs
func TestDocumentID_DistinctPaths(t *testing.T) {
	a := DocumentID("/repo/a.go")
	b := DocumentID("/repo/b.go")

	assert.NotEqual(t, a, b)
}

// TestHashContent_DetectsChange tests content hash changes with content
func TestHashContent_DetectsChange(t *testing.T) {
	before := HashContent("package main")
	after := HashContent("package main\n// changed")

	assert.NotEqual(t, before, after)
	assert.Equal(t, before, HashContent("package main"))
}

// TestContentType_IsValid tests content type validation
func TestContentType_IsValid(t *testing.T) {
	assert.True(t, ContentTypeCode.IsValid())
	assert.True(t, ContentTypeText.IsValid())
	assert.True(t, ContentTypeMarkdown.IsValid())
	assert.False(t, ContentType("pdf").IsValid())
	assert.False(t, ContentType("").IsValid())
}
