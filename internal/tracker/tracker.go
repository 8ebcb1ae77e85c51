package tracker

import (
	"sync"

	"pdfrouter/internal/correlation"
	"pdfrouter/internal/logger"
	"pdfrouter/pkg/model"
)

// SignalKind 网络生命周期信号类别
type SignalKind int

const (
	// SignalCompleted 请求正常结束（无重定向）
	SignalCompleted SignalKind = iota

	// SignalError 请求出错结束
	SignalError

	// SignalRedirect 网络层发出重定向
	SignalRedirect
)

// Signal 单个生命周期信号
type Signal struct {
	Kind        SignalKind
	URL         string
	RedirectURL string // Kind == SignalRedirect 时有效
}

// Filter 订阅过滤器：精确匹配单个 URL 与目标
type Filter struct {
	URL   string
	TabID model.TargetID
}

// Bus 网络生命周期信号源，由传输层实现
type Bus interface {
	// Subscribe 订阅匹配 filter 的信号，返回的取消函数幂等
	Subscribe(f Filter, fn func(Signal)) (cancel func(), err error)
}

// Tracker 跟随单条重定向链迁移关联条目。
// 每个被追踪 URL 同一时刻至多一个活动订阅，收到任意信号后先整体退订，
// 携带重定向目标时迁移条目并对新 URL 重新武装，否则追踪就此结束。
type Tracker struct {
	mu     sync.Mutex
	store  *correlation.Store
	bus    Bus
	log    logger.Logger
	active map[string]func()
}

// New 创建重定向追踪器
func New(store *correlation.Store, bus Bus, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Tracker{
		store:  store,
		bus:    bus,
		log:    log,
		active: make(map[string]func()),
	}
}

// Arm 对 URL 武装一次性订阅；已有订阅时先拆除再重建，避免监听器堆积
func (t *Tracker) Arm(url string, tab model.TargetID) error {
	t.mu.Lock()
	if cancel, ok := t.active[url]; ok {
		delete(t.active, url)
		t.mu.Unlock()
		cancel()
		t.mu.Lock()
	}
	t.mu.Unlock()

	cancel, err := t.bus.Subscribe(Filter{URL: url, TabID: tab}, func(sig Signal) {
		t.onSignal(url, tab, sig)
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.active[url] = cancel
	t.mu.Unlock()
	t.log.Debug("武装重定向追踪", "url", url, "tab", string(tab))
	return nil
}

// Close 拆除全部活动订阅
func (t *Tracker) Close() {
	t.mu.Lock()
	cancels := make([]func(), 0, len(t.active))
	for url, cancel := range t.active {
		cancels = append(cancels, cancel)
		delete(t.active, url)
	}
	t.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (t *Tracker) onSignal(url string, tab model.TargetID, sig Signal) {
	t.mu.Lock()
	cancel, ok := t.active[url]
	if ok {
		delete(t.active, url)
	}
	t.mu.Unlock()
	if ok {
		cancel()
	}

	if sig.Kind == SignalRedirect && sig.RedirectURL != "" {
		t.store.Migrate(url, sig.RedirectURL)
		t.log.Debug("重定向迁移关联条目", "from", url, "to", sig.RedirectURL)
		if err := t.Arm(sig.RedirectURL, tab); err != nil {
			t.log.Err(err, "重定向后重新武装失败", "url", sig.RedirectURL)
		}
		return
	}
	t.log.Debug("重定向追踪结束", "url", url, "kind", int(sig.Kind))
}
