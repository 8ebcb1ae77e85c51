package cdp

import (
	"github.com/mafredri/cdp/protocol/network"

	"pdfrouter/internal/tracker"
)

// signalSub 单个生命周期信号订阅
type signalSub struct {
	filter tracker.Filter
	fn     func(tracker.Signal)
}

// Subscribe 订阅匹配 filter 的网络生命周期信号（tracker.Bus 实现）
func (m *Manager) Subscribe(f tracker.Filter, fn func(tracker.Signal)) (func(), error) {
	m.subsMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = &signalSub{filter: f, fn: fn}
	m.subsMu.Unlock()

	cancel := func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
	return cancel, nil
}

// dispatchSignal 把信号分发给匹配的订阅者
func (m *Manager) dispatchSignal(url string, sig tracker.Signal) {
	if url == "" {
		return
	}
	m.subsMu.Lock()
	var fns []func(tracker.Signal)
	for _, s := range m.subs {
		if s.filter.URL != url {
			continue
		}
		if s.filter.TabID != "" && s.filter.TabID != m.target {
			continue
		}
		fns = append(fns, s.fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

// watchLifecycle 消费 Network 域事件并转译为生命周期信号。
// 重定向取自 requestWillBeSent 的 redirectResponse；结束与失败
// 事件只带 requestID，靠 reqURLs 映射回当前 URL。
func (m *Manager) watchLifecycle() {
	rws, err := m.client.Network.RequestWillBeSent(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅请求发出事件失败")
		return
	}
	defer rws.Close()

	lfin, err := m.client.Network.LoadingFinished(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅加载完成事件失败")
		return
	}

	lfail, err := m.client.Network.LoadingFailed(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅加载失败事件失败")
		lfin.Close()
		return
	}

	// 两条流由各自的消费协程负责关闭
	go m.consumeFinished(lfin)
	go m.consumeFailed(lfail)

	for {
		ev, err := rws.Recv()
		if err != nil {
			if m.ctx.Err() == nil {
				m.log.Err(err, "接收请求发出事件失败，停止信号转译")
			}
			return
		}
		if ev.RedirectResponse != nil {
			m.dispatchSignal(ev.RedirectResponse.URL, tracker.Signal{
				Kind:        tracker.SignalRedirect,
				URL:         ev.RedirectResponse.URL,
				RedirectURL: ev.Request.URL,
			})
		}
		m.reqMu.Lock()
		m.reqURLs[ev.RequestID] = ev.Request.URL
		m.reqMu.Unlock()
	}
}

func (m *Manager) consumeFinished(c network.LoadingFinishedClient) {
	defer c.Close()
	for {
		ev, err := c.Recv()
		if err != nil {
			return
		}
		url := m.takeRequestURL(ev.RequestID)
		m.dispatchSignal(url, tracker.Signal{Kind: tracker.SignalCompleted, URL: url})
	}
}

func (m *Manager) consumeFailed(c network.LoadingFailedClient) {
	defer c.Close()
	for {
		ev, err := c.Recv()
		if err != nil {
			return
		}
		url := m.takeRequestURL(ev.RequestID)
		if url != "" {
			m.log.Debug("请求出错结束", "url", url, "error", ev.ErrorText)
		}
		m.dispatchSignal(url, tracker.Signal{Kind: tracker.SignalError, URL: url})
	}
}

func (m *Manager) takeRequestURL(id network.RequestID) string {
	m.reqMu.Lock()
	defer m.reqMu.Unlock()
	url := m.reqURLs[id]
	delete(m.reqURLs, id)
	return url
}
