package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mafredri/cdp/protocol/browser"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"

	"pdfrouter/internal/saver"
	"pdfrouter/pkg/model"
)

// builtinViewerProbe 判定标签页是否正被浏览器内置 PDF 查看器占用
const builtinViewerProbe = `document.contentType == "application/pdf" && document.domain == "pdf.js"`

// CurrentURL 返回标签页当前提交的 URL（engine.TabInspector 实现）
func (m *Manager) CurrentURL(ctx context.Context, tab model.TargetID) (string, error) {
	if m.client == nil {
		return "", ErrNotAttached
	}
	hist, err := m.client.Page.GetNavigationHistory(ctx)
	if err != nil {
		return "", fmt.Errorf("navigation history: %w", err)
	}
	if hist.CurrentIndex < 0 || hist.CurrentIndex >= len(hist.Entries) {
		return "", fmt.Errorf("navigation history: no current entry")
	}
	return hist.Entries[hist.CurrentIndex].URL, nil
}

// IsBuiltinViewer 在页面里求值哨兵表达式探测内置查看器
func (m *Manager) IsBuiltinViewer(ctx context.Context, tab model.TargetID) (bool, error) {
	if m.client == nil {
		return false, ErrNotAttached
	}
	args := runtime.NewEvaluateArgs(builtinViewerProbe).SetReturnByValue(true)
	reply, err := m.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return false, fmt.Errorf("evaluate probe: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return false, fmt.Errorf("evaluate probe: %s", reply.ExceptionDetails.Text)
	}
	var isViewer bool
	if err := json.Unmarshal(reply.Result.Value, &isViewer); err != nil {
		return false, fmt.Errorf("evaluate probe: %w", err)
	}
	return isViewer, nil
}

// Download 以浏览器下载的方式保存文档（saver.Downloader 实现）。
// 通过 Browser 域开启下载事件后导航到文档地址，跟踪进度直到
// 结束；用户取消折算为 saver.ErrCancelled。
func (m *Manager) Download(ctx context.Context, url, filename string, saveAs bool) error {
	if m.client == nil {
		return ErrNotAttached
	}

	behavior := "allow"
	if saveAs {
		behavior = "allowAndName"
	}
	events := true
	err := m.client.Browser.SetDownloadBehavior(ctx, &browser.SetDownloadBehaviorArgs{
		Behavior:      behavior,
		EventsEnabled: &events,
	})
	if err != nil {
		return fmt.Errorf("set download behavior: %w", err)
	}

	progress, err := m.client.Browser.DownloadProgress(ctx)
	if err != nil {
		return fmt.Errorf("subscribe download progress: %w", err)
	}
	defer progress.Close()

	if _, err := m.client.Page.Navigate(ctx, page.NewNavigateArgs(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	for {
		ev, err := progress.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("download progress: %w", err)
		}
		switch string(ev.State) {
		case "completed":
			m.log.Info("另存下载完成", "url", url, "filename", filename)
			return nil
		case "canceled":
			return saver.ErrCancelled
		}
	}
}
