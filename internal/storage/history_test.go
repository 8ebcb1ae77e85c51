package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrouter/pkg/traffic"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	db, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewHistory(db)
}

func TestAppendAndRecent(t *testing.T) {
	h := newTestHistory(t)

	d := traffic.ResponseDetails{
		URL: "https://a/x.pdf", Method: "GET", StatusCode: 200,
		Headers: traffic.Header{{Name: "Content-Type", Value: "application/pdf"}},
		TabID:   "tab1", Type: traffic.ResourceMainFrame,
	}
	require.NoError(t, h.Append("s1", d, "redirected", "x.pdf", true))
	require.NoError(t, h.Append("s1", d, "passed", "", false))

	recs, err := h.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// 新记录在前
	assert.Equal(t, "passed", recs[0].Outcome)
	assert.Equal(t, "redirected", recs[1].Outcome)
	assert.Equal(t, "x.pdf", recs[1].Filename)
	assert.True(t, recs[1].IsPDF)
	assert.Contains(t, recs[1].Headers, "application/pdf")
}

func TestRecentLimit(t *testing.T) {
	h := newTestHistory(t)
	d := traffic.ResponseDetails{URL: "https://a/x", Method: "GET"}
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append("s1", d, "passed", "", false))
	}

	recs, err := h.Recent(3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestPruneBefore(t *testing.T) {
	h := newTestHistory(t)
	d := traffic.ResponseDetails{URL: "https://a/x", Method: "GET"}
	require.NoError(t, h.Append("s1", d, "passed", "", false))

	n, err := h.PruneBefore(time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := h.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEncodeHeadersEscapesNames(t *testing.T) {
	out := encodeHeaders(traffic.Header{{Name: "X.Custom", Value: "v"}})
	assert.Contains(t, out, "X.Custom")
}
