package saver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"runtime"

	"pdfrouter/internal/heuristics"
	"pdfrouter/internal/logger"
)

// ErrCancelled 用户取消下载，属预期结果而非失败
var ErrCancelled = errors.New("download cancelled by user")

// 文件系统保留字符，Windows 上必须替换
var reservedCharRe = regexp.MustCompile(`[/\\|"*?:<>]`)

const defaultFilename = "document.pdf"

// Downloader 发起保存到磁盘的下载，由传输层实现
type Downloader interface {
	Download(ctx context.Context, url, filename string, saveAs bool) error
}

// Saver 将查看器页面中的文档另存为本地文件
type Saver struct {
	dl       Downloader
	log      logger.Logger
	sanitize bool
}

// New 创建另存调度器
func New(dl Downloader, log logger.Logger) *Saver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Saver{dl: dl, log: log, sanitize: runtime.GOOS == "windows"}
}

// Save 从查看器框架 URL 解析原始文档地址与文件名并发起另存。
// 用户取消不视为失败；其余下载错误原样上抛。
func (s *Saver) Save(ctx context.Context, frameURL string) error {
	docURL, filename := resolve(frameURL, s.sanitize)
	if docURL == "" {
		return fmt.Errorf("frame url %q carries no document url", frameURL)
	}

	s.log.Info("发起另存下载", "url", docURL, "filename", filename)
	if err := s.dl.Download(ctx, docURL, filename, true); err != nil {
		if errors.Is(err, ErrCancelled) {
			s.log.Debug("用户取消另存", "url", docURL)
			return nil
		}
		return fmt.Errorf("download %s: %w", docURL, err)
	}
	return nil
}

// resolve 解析文档地址与保存文件名：优先 fname 参数，其次文档 URL 的
// 路径段与 query 值；解码后强制 .pdf 后缀，按需替换保留字符
func resolve(frameURL string, sanitize bool) (string, string) {
	u, err := url.Parse(frameURL)
	if err != nil {
		return "", defaultFilename
	}
	params := u.Query()
	docURL := params.Get("url")
	if docURL == "" {
		return "", defaultFilename
	}

	var filename string
	if params.Has("fname") {
		filename = params.Get("fname")
	} else if name, ok := heuristics.FilenameFromURL(docURL); ok {
		filename = name
	}

	if filename == "" {
		return docURL, defaultFilename
	}

	filename = heuristics.PercentDecode(filename)
	if !heuristics.HasPDFExtension(filename) {
		filename += ".pdf"
	}
	if sanitize {
		filename = reservedCharRe.ReplaceAllString(filename, "_")
	}
	return docURL, filename
}
