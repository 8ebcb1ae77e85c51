package ingress

import (
	"github.com/tidwall/gjson"

	"pdfrouter/internal/correlation"
	"pdfrouter/internal/logger"
	"pdfrouter/internal/tracker"
	"pdfrouter/pkg/model"
)

// Ingress 接收页面侧的强制下载意图并登记关联状态。
// filename 字段缺失与携带空串语义不同：缺失表示"别按 PDF 拦截，
// 让它直接下载"，登记一次性抑制标记；存在（含空串）登记强制下载条目。
type Ingress struct {
	store *correlation.Store
	trk   *tracker.Tracker
	log   logger.Logger
}

// New 创建消息入口
func New(store *correlation.Store, trk *tracker.Tracker, log logger.Logger) *Ingress {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingress{store: store, trk: trk, log: log}
}

// HandleRaw 处理页面侧发来的原始 JSON 消息 {url, filename?}。
// 返回后订阅已武装完毕，发送方可以安全地立即发起导航。
func (i *Ingress) HandleRaw(raw []byte, sender model.TargetID) error {
	urlField := gjson.GetBytes(raw, "url")
	if !urlField.Exists() || urlField.String() == "" || sender == "" {
		return nil
	}

	intent := model.DownloadIntent{URL: urlField.String()}
	if filename := gjson.GetBytes(raw, "filename"); filename.Exists() {
		intent.Filename = filename.String()
		intent.FilenameSet = true
	}
	return i.Handle(intent, sender)
}

// Handle 登记下载意图并武装重定向追踪。
// URL 已有待消费意图时忽略（单 URL 单意图不变式）。
func (i *Ingress) Handle(intent model.DownloadIntent, sender model.TargetID) error {
	if intent.URL == "" || sender == "" {
		return nil
	}
	if i.store.Pending(intent.URL) {
		i.log.Debug("忽略重复的下载意图", "url", intent.URL)
		return nil
	}

	if intent.FilenameSet {
		i.store.RecordForceDownload(intent.URL, intent.Filename)
	} else {
		i.store.RecordSuppressOnce(intent.URL)
	}
	i.log.Debug("登记下载意图", "url", intent.URL,
		"filenameSet", intent.FilenameSet, "filename", intent.Filename)

	return i.trk.Arm(intent.URL, sender)
}
