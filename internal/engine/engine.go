package engine

import (
	"context"
	"regexp"

	"pdfrouter/internal/correlation"
	"pdfrouter/internal/heuristics"
	"pdfrouter/internal/logger"
	"pdfrouter/pkg/model"
	"pdfrouter/pkg/traffic"
)

var (
	inlinePrefixRe   = regexp.MustCompile(`(?i)^\s*inline`)
	filenamePrefixRe = regexp.MustCompile(`(?i)^\s*(filename)`)

	// 宿主缓存包装 URL（历史遗留的 wyciwyg 形态），需先解包再比对
	cachedWrapperRe = regexp.MustCompile(`^wyciwyg://\d+/`)
)

// TabInspector 查询标签页当前状态，顶层导航分支在重定向前咨询它
type TabInspector interface {
	// CurrentURL 返回标签页当前加载的 URL
	CurrentURL(ctx context.Context, tab model.TargetID) (string, error)

	// IsBuiltinViewer 探测标签页文档是否为内置 PDF 查看器
	IsBuiltinViewer(ctx context.Context, tab model.TargetID) (bool, error)
}

// Navigator 对标签页发起整页导航
type Navigator interface {
	Navigate(ctx context.Context, tab model.TargetID, url string) error
}

// Meta 单次分类的附带结果，供事件与历史记录使用
type Meta struct {
	Filename string
	IsPDF    bool
}

// Engine 响应头拦截决策引擎。
// 每个响应恰好经历一次分类，关联条目在任何阻塞调用之前即被消费，
// 因此条目不可能被重复处理；同一 URL 的两次独立顶层导航仍可能
// 并发到达标签页查询步骤，这是已接受的窄竞态。
type Engine struct {
	store  *correlation.Store
	viewer *Viewer
	tabs   TabInspector
	nav    Navigator
	log    logger.Logger
}

// New 创建决策引擎
func New(store *correlation.Store, viewer *Viewer, tabs TabInspector, nav Navigator, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{store: store, viewer: viewer, tabs: tabs, nav: nav, log: log}
}

// Process 对单个响应做终结性分类。
// 仅顶层导航分支会在查询标签页状态时挂起；查询失败时默认重定向到查看器。
func (e *Engine) Process(ctx context.Context, d traffic.ResponseDetails) (traffic.Decision, Meta) {
	var meta Meta

	// 无标签页或非 GET 不做分类
	if d.TabID == "" || d.Method != "GET" {
		return traffic.Pass(), meta
	}

	// 仅导航与程序化请求参与分类，其余资源类型不登记处理
	switch d.Type {
	case traffic.ResourceMainFrame, traffic.ResourceSubFrame,
		traffic.ResourceObject, traffic.ResourceXHR:
	default:
		return traffic.Pass(), meta
	}

	if e.viewer.IsHost(d.URL) {
		// 查看器轮询端点 204 表示查看器尚未就绪，自重定向触发重试
		if e.viewer.IsViewerPage(d.URL) && d.StatusCode == 204 {
			e.log.Debug("查看器未就绪，自重定向重试", "url", d.URL)
			return traffic.Redirect(d.URL), meta
		}
		return traffic.Pass(), meta
	}

	if d.StatusCode != 200 {
		return traffic.Pass(), meta
	}

	if e.viewer.IsInfra(d.URL) {
		return traffic.Pass(), meta
	}

	disposition := d.Headers.Get("Content-Disposition")
	contentType := d.Headers.Get("Content-Type")
	hasDispositionHeader := d.Headers.Has("Content-Disposition")

	// 无任何可分类信息且无待消费意图
	if disposition == "" && contentType == "" && !e.store.Pending(d.URL) {
		return traffic.Pass(), meta
	}

	// 子资源上显式的 attachment disposition 不做干预
	if d.Type != traffic.ResourceMainFrame && disposition != "" &&
		!heuristics.IsInlineDisposition(disposition) {
		return traffic.Pass(), meta
	}

	headers := d.Headers.Clone()
	filename := ""
	isAttachment := false

	if name, ok := e.store.TakeForceDownload(d.URL); ok {
		isAttachment = true
		value := "attachment"
		if name != "" {
			filename = name
			value += `; filename="` + name + `"`
		}
		headers = headers.Append("Content-Disposition", value)
		e.log.Debug("应用强制下载意图", "url", d.URL, "filename", name)
	}

	if filename == "" && disposition != "" {
		if cand, ok := heuristics.FromContentDisposition(disposition); ok {
			filename = cand.Name
			if cand.NeedsQuote {
				disposition = heuristics.RepairDisposition(disposition, cand.RawValue, cand.Name)
			}
		}
	}

	if e.store.TakeSuppressOnce(d.URL) {
		return traffic.Rewrite(e.forceAttachment(headers, disposition, hasDispositionHeader)), meta
	}

	isPDF := false
	if contentType != "" {
		if heuristics.IsPDFContentType(contentType) {
			isPDF = true
		} else if !heuristics.IsHTMLContentType(contentType) &&
			heuristics.URLPathHasPDFExtension(d.URL) {
			isPDF = true
		}
	}
	if !isPDF && filename != "" && heuristics.HasPDFExtension(filename) {
		isPDF = true
	}

	meta.Filename = filename
	if !isPDF {
		if isAttachment {
			// 非 PDF 的强制下载仍要兑现 attachment 头
			return traffic.Rewrite(headers), meta
		}
		return traffic.Pass(), meta
	}
	meta.IsPDF = true

	redirectURL := e.viewer.BuildURL(d.URL, filename)

	switch d.Type {
	case traffic.ResourceXHR:
		// 程序化请求对用户不可见，改为整页导航并取消原请求
		if err := e.nav.Navigate(ctx, model.TargetID(d.TabID), redirectURL+"&pdf=true"); err != nil {
			e.log.Err(err, "标签页导航失败", "tab", d.TabID, "url", redirectURL)
		}
		return traffic.Cancel(), meta
	case traffic.ResourceSubFrame, traffic.ResourceObject:
		return traffic.Redirect(redirectURL + "&embedded=true&pdf=true"), meta
	}
	redirectURL += "&pdf=true"

	return e.resolveTopLevel(ctx, d, disposition, headers, redirectURL), meta
}

// resolveTopLevel 顶层导航的防回环检查：
// 标签页已在查看器页面时就地更新或不动，避免重复重定向；
// 原地重新加载内置查看器时放行；其余情况一律重定向。
func (e *Engine) resolveTopLevel(
	ctx context.Context,
	d traffic.ResponseDetails,
	disposition string,
	headers traffic.Header,
	redirectURL string,
) traffic.Decision {
	tabURL, err := e.tabs.CurrentURL(ctx, model.TargetID(d.TabID))
	if err != nil {
		e.log.Err(err, "查询标签页状态失败", "tab", d.TabID)
		return traffic.Redirect(redirectURL)
	}

	// 缓存包装形态的标签页先解包：落在查看器页面时就地处理，
	// 其余包装内容一律重定向；普通 URL 不走此分支
	if cachedWrapperRe.MatchString(tabURL) {
		unwrapped := cachedWrapperRe.ReplaceAllString(tabURL, "")
		if e.viewer.IsViewerPage(unwrapped) {
			if disposition != "" && disposition != d.Headers.Get("Content-Disposition") {
				headers = headers.Set("Content-Disposition", disposition)
				return traffic.Rewrite(headers)
			}
			return traffic.Pass()
		}
		return traffic.Redirect(redirectURL)
	}

	if tabURL == d.URL {
		builtin, err := e.tabs.IsBuiltinViewer(ctx, model.TargetID(d.TabID))
		if err != nil {
			e.log.Err(err, "探测内置查看器失败", "tab", d.TabID)
			return traffic.Redirect(redirectURL)
		}
		if builtin {
			// 内置查看器页面的原地刷新放行，避免弹回远端查看器
			return traffic.Pass()
		}
		return traffic.Redirect(redirectURL)
	}

	return traffic.Redirect(redirectURL)
}

// forceAttachment 将响应头改写为 attachment 形态
func (e *Engine) forceAttachment(headers traffic.Header, disposition string, hasHeader bool) traffic.Header {
	if hasHeader {
		if disposition != "" {
			switch {
			case inlinePrefixRe.MatchString(disposition):
				disposition = inlinePrefixRe.ReplaceAllString(disposition, "attachment")
			case filenamePrefixRe.MatchString(disposition):
				disposition = filenamePrefixRe.ReplaceAllString(disposition, "attachment; ${1}")
			}
			headers = headers.Set("Content-Disposition", disposition)
		}
		return headers
	}
	return headers.Append("Content-Disposition", "attachment")
}
