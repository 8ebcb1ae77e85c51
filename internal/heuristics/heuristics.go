package heuristics

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

var (
	// application/pdf 及常见厂商笔误（appl/pdf、application/x-pdf 等）
	pdfTypeRe  = regexp.MustCompile(`(?i)^\s*(?:app[acilnot]+/)?(?:x-)?pdf(?:;.*|\s*)?$`)
	htmlTypeRe = regexp.MustCompile(`(?i)^\s*text/html(?:;.*|\s*)?$`)

	// 空值、inline 以及裸 filename= 均按 inline 处理
	inlineDispositionRe = regexp.MustCompile(`(?i)^\s*(?:inline(?:;.*|\s*)?|filename.*|)$`)

	// filename / filename* 参数，值为引号包裹或裸值
	filenameParamRe = regexp.MustCompile(`(?i)filename[^;=` + "\n" + `]*=('[^']*'|"[^"]*"|[^;` + "\n" + `]*)`)

	// RFC 5987 扩展记法的 charset'language' 前缀
	extPrefixRe = regexp.MustCompile(`^.+'.*'`)

	leadQuoteRe  = regexp.MustCompile(`^\s*\\?['"]?`)
	trailQuoteRe = regexp.MustCompile(`\\?['"]?\s*$`)

	base64Re     = regexp.MustCompile(`(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)`)
	pctOctetRe   = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	whitespaceRe = regexp.MustCompile(`\s`)

	pdfExtRe     = regexp.MustCompile(`(?i)\.pdfx?$`)
	pdfURLPathRe = regexp.MustCompile(`(?i)^[^?#;]+\.pdfx?(?:$|[#?;])`)

	// URL 中 query/fragment/分号 之前的最后一个路径段
	urlSegmentRe = regexp.MustCompile(`([^/?#;]+)(?:[?#;]|$)`)
)

// DispositionFilename Content-Disposition 提取结果
type DispositionFilename struct {
	Name string

	// RawValue 原始捕获值，NeedsQuote 为真时供调用方在头内回写修复
	RawValue   string
	NeedsQuote bool
}

// IsPDFContentType 判断 Content-Type 是否为 PDF 类 MIME
func IsPDFContentType(value string) bool {
	return pdfTypeRe.MatchString(value)
}

// IsHTMLContentType 判断 Content-Type 是否为 text/html
func IsHTMLContentType(value string) bool {
	return htmlTypeRe.MatchString(value)
}

// IsInlineDisposition 判断 Content-Disposition 是否为 inline 形态
func IsInlineDisposition(value string) bool {
	return inlineDispositionRe.MatchString(value)
}

// HasPDFExtension 判断文件名是否以 .pdf/.pdfx 结尾
func HasPDFExtension(name string) bool {
	return pdfExtRe.MatchString(name)
}

// URLPathHasPDFExtension 判断 URL 路径部分是否以 .pdf/.pdfx 结尾
func URLPathHasPDFExtension(rawurl string) bool {
	return pdfURLPathRe.MatchString(rawurl)
}

// FromContentDisposition 从 Content-Disposition 值中提取文件名。
// 扩展记法剥离 charset'language' 前缀后做百分号解码；普通记法先去除
// 一层引号再按需解码；解码失败一律退回解码前的值。值含空白却未用
// 双引号包裹时置 NeedsQuote，由调用方决定是否回写修复。
func FromContentDisposition(value string) (DispositionFilename, bool) {
	m := filenameParamRe.FindStringSubmatch(value)
	if m == nil {
		return DispositionFilename{}, false
	}

	raw := m[1]
	if strings.HasPrefix(strings.ToLower(m[0]), "filename*") {
		name := extPrefixRe.ReplaceAllString(raw, "")
		if decoded, err := url.PathUnescape(name); err == nil {
			name = decoded
		}
		return DispositionFilename{Name: name, RawValue: raw}, true
	}

	name := stripQuotes(raw)
	name = PercentDecode(name)

	out := DispositionFilename{Name: name, RawValue: raw}
	if name != "" {
		if whitespaceRe.MatchString(name) && !strings.HasPrefix(raw, `"`) {
			// 宿主对未加引号的含空白值存在截断缺陷，需回写修复
			out.NeedsQuote = true
		}
		if b64 := base64Re.FindString(name); b64 != "" {
			if decoded, err := base64.StdEncoding.DecodeString(b64); err == nil {
				out.Name = string(decoded)
			}
		}
	}
	return out, true
}

// FilenameFromURL 从 URL 中提取候选文件名：优先取最后一个路径段，
// 段名不带 PDF 扩展时扫描 query 值（含内嵌 disposition 串的查询参数）
func FilenameFromURL(rawurl string) (string, bool) {
	var name string
	if m := urlSegmentRe.FindStringSubmatch(rawurl); m != nil {
		name = m[1]
	}

	q := queryString(rawurl)
	if (name == "" || !HasPDFExtension(name)) && q != "" {
		for _, value := range queryValues(q) {
			if HasPDFExtension(value) {
				return value, true
			}
			if d, ok := FromContentDisposition(value); ok {
				return d.Name, d.Name != ""
			}
		}
	}
	return name, name != ""
}

// PercentDecode 含百分号八位组时解码，失败退回原值
func PercentDecode(s string) string {
	if !pctOctetRe.MatchString(s) {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// RepairDisposition 将未加引号的文件名值回写为双引号包裹形式
func RepairDisposition(disposition, rawValue, name string) string {
	return strings.Replace(disposition, rawValue, `"`+name+`"`, 1)
}

func stripQuotes(s string) string {
	s = leadQuoteRe.ReplaceAllString(s, "")
	return trailQuoteRe.ReplaceAllString(s, "")
}

func queryString(rawurl string) string {
	if idx := strings.Index(rawurl, "?"); idx != -1 {
		return rawurl[idx+1:]
	}
	return ""
}

// queryValues 按出现顺序返回 query 值（已解码），保持与页面侧一致的遍历次序
func queryValues(query string) []string {
	var out []string
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		value := kv[1]
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out = append(out, value)
	}
	return out
}
