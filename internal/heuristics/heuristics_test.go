package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDFContentType(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"application/pdf", true},
		{"Application/PDF", true},
		{"application/x-pdf", true},
		{" application/pdf ", true},
		{"application/pdf; charset=binary", true},
		{"appl/pdf", true},
		{"application/octet-stream", false},
		{"text/html", false},
		{"application/pdfx", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPDFContentType(tt.value), "value=%q", tt.value)
	}
}

func TestIsHTMLContentType(t *testing.T) {
	assert.True(t, IsHTMLContentType("text/html"))
	assert.True(t, IsHTMLContentType("TEXT/HTML; charset=utf-8"))
	assert.False(t, IsHTMLContentType("text/plain"))
	assert.False(t, IsHTMLContentType("application/xhtml+xml"))
}

func TestIsInlineDisposition(t *testing.T) {
	assert.True(t, IsInlineDisposition(""))
	assert.True(t, IsInlineDisposition("inline"))
	assert.True(t, IsInlineDisposition("Inline; filename=a.pdf"))
	assert.True(t, IsInlineDisposition(`filename="a.pdf"`))
	assert.False(t, IsInlineDisposition("attachment"))
	assert.False(t, IsInlineDisposition(`attachment; filename="a.pdf"`))
}

func TestFromContentDispositionQuoted(t *testing.T) {
	d, ok := FromContentDisposition(`attachment; filename="a b.txt"`)
	require.True(t, ok)
	assert.Equal(t, "a b.txt", d.Name)
	assert.False(t, d.NeedsQuote)
}

func TestFromContentDispositionBare(t *testing.T) {
	d, ok := FromContentDisposition("attachment; filename=report.pdf")
	require.True(t, ok)
	assert.Equal(t, "report.pdf", d.Name)
	assert.False(t, d.NeedsQuote)
}

func TestFromContentDispositionExtendedNotation(t *testing.T) {
	d, ok := FromContentDisposition("attachment; filename*=UTF-8''r%C3%A9sum%C3%A9.pdf")
	require.True(t, ok)
	assert.Equal(t, "résumé.pdf", d.Name)
}

func TestFromContentDispositionExtendedDecodeFailure(t *testing.T) {
	// 解码失败退回剥离前缀后的原值
	d, ok := FromContentDisposition("attachment; filename*=UTF-8''bad%GGname.pdf")
	require.True(t, ok)
	assert.Equal(t, "bad%GGname.pdf", d.Name)
}

func TestFromContentDispositionPercentEncoded(t *testing.T) {
	d, ok := FromContentDisposition(`attachment; filename="r%C3%A9sum%C3%A9.pdf"`)
	require.True(t, ok)
	assert.Equal(t, "résumé.pdf", d.Name)
}

func TestFromContentDispositionBase64(t *testing.T) {
	// "notes1.pdf" 的 base64 编码，含填充
	d, ok := FromContentDisposition("attachment; filename=bm90ZXMxLnBkZg==")
	require.True(t, ok)
	assert.Equal(t, "notes1.pdf", d.Name)
}

func TestFromContentDispositionQuotingDefect(t *testing.T) {
	d, ok := FromContentDisposition("attachment; filename=a b.pdf")
	require.True(t, ok)
	assert.Equal(t, "a b.pdf", d.Name)
	assert.True(t, d.NeedsQuote)

	repaired := RepairDisposition("attachment; filename=a b.pdf", d.RawValue, d.Name)
	assert.Equal(t, `attachment; filename="a b.pdf"`, repaired)
}

func TestFromContentDispositionSingleQuoted(t *testing.T) {
	d, ok := FromContentDisposition("attachment; filename='a b.pdf'")
	require.True(t, ok)
	assert.Equal(t, "a b.pdf", d.Name)
	assert.True(t, d.NeedsQuote)
}

func TestFromContentDispositionNoParam(t *testing.T) {
	_, ok := FromContentDisposition("attachment")
	assert.False(t, ok)
}

func TestHasPDFExtension(t *testing.T) {
	assert.True(t, HasPDFExtension("a.pdf"))
	assert.True(t, HasPDFExtension("a.PDF"))
	assert.True(t, HasPDFExtension("a.pdfx"))
	assert.False(t, HasPDFExtension("a.pdf.txt"))
	assert.False(t, HasPDFExtension("pdf"))
}

func TestURLPathHasPDFExtension(t *testing.T) {
	assert.True(t, URLPathHasPDFExtension("https://example.com/a.pdf"))
	assert.True(t, URLPathHasPDFExtension("https://example.com/a.pdf?x=1"))
	assert.True(t, URLPathHasPDFExtension("https://example.com/a.pdfx#frag"))
	assert.False(t, URLPathHasPDFExtension("https://example.com/a.html?f=b.pdf"))
}

func TestFilenameFromURLLastSegment(t *testing.T) {
	name, ok := FilenameFromURL("https://example.com/files/report.pdf?dl=1")
	require.True(t, ok)
	assert.Equal(t, "report.pdf", name)
}

func TestFilenameFromURLQueryValue(t *testing.T) {
	name, ok := FilenameFromURL("https://example.com/get?id=42&file=notes.pdf")
	require.True(t, ok)
	assert.Equal(t, "notes.pdf", name)
}

func TestFilenameFromURLQueryDisposition(t *testing.T) {
	name, ok := FilenameFromURL("https://example.com/get?cd=filename%3D%22notes.pdf%22")
	require.True(t, ok)
	assert.Equal(t, "notes.pdf", name)
}

func TestFilenameFromURLNoCandidate(t *testing.T) {
	_, ok := FilenameFromURL("https://example.com/")
	assert.False(t, ok)
}

func TestPercentDecode(t *testing.T) {
	assert.Equal(t, "a b.pdf", PercentDecode("a%20b.pdf"))
	assert.Equal(t, "plain.pdf", PercentDecode("plain.pdf"))
	assert.Equal(t, "bad%GG", PercentDecode("bad%GG"))
}
