package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndTakeForceDownload(t *testing.T) {
	s := NewStore()
	require.True(t, s.RecordForceDownload("https://a/x.pdf", "x.pdf"))

	filename, ok := s.TakeForceDownload("https://a/x.pdf")
	require.True(t, ok)
	assert.Equal(t, "x.pdf", filename)

	// 一次性语义：二次取出必须失败
	_, ok = s.TakeForceDownload("https://a/x.pdf")
	assert.False(t, ok)
}

func TestRecordEmptyFilename(t *testing.T) {
	s := NewStore()
	require.True(t, s.RecordForceDownload("https://a/x", ""))

	filename, ok := s.TakeForceDownload("https://a/x")
	require.True(t, ok)
	assert.Equal(t, "", filename)
}

func TestAtMostOneIntentPerURL(t *testing.T) {
	s := NewStore()
	require.True(t, s.RecordForceDownload("https://a/x", "x.pdf"))
	assert.False(t, s.RecordForceDownload("https://a/x", "y.pdf"))
	assert.False(t, s.RecordSuppressOnce("https://a/x"))

	filename, ok := s.TakeForceDownload("https://a/x")
	require.True(t, ok)
	assert.Equal(t, "x.pdf", filename)
	assert.False(t, s.TakeSuppressOnce("https://a/x"))
}

func TestSuppressOnce(t *testing.T) {
	s := NewStore()
	require.True(t, s.RecordSuppressOnce("https://a/x"))
	assert.False(t, s.RecordForceDownload("https://a/x", "x.pdf"))

	assert.True(t, s.TakeSuppressOnce("https://a/x"))
	assert.False(t, s.TakeSuppressOnce("https://a/x"))
}

func TestMigratePreservesKindAndPayload(t *testing.T) {
	s := NewStore()
	s.RecordForceDownload("https://a/1", "doc.pdf")
	s.Migrate("https://a/1", "https://a/2")
	s.Migrate("https://a/2", "https://a/3")

	// 中间 URL 不得残留条目
	assert.False(t, s.Pending("https://a/1"))
	assert.False(t, s.Pending("https://a/2"))

	filename, ok := s.TakeForceDownload("https://a/3")
	require.True(t, ok)
	assert.Equal(t, "doc.pdf", filename)
}

func TestMigrateSuppressOnce(t *testing.T) {
	s := NewStore()
	s.RecordSuppressOnce("https://a/1")
	s.Migrate("https://a/1", "https://a/2")

	assert.False(t, s.TakeSuppressOnce("https://a/1"))
	assert.True(t, s.TakeSuppressOnce("https://a/2"))
}

func TestMigrateNoEntry(t *testing.T) {
	s := NewStore()
	s.Migrate("https://a/1", "https://a/2")
	assert.False(t, s.Pending("https://a/2"))
}
