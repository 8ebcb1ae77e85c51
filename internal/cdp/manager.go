package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"

	"pdfrouter/internal/engine"
	"pdfrouter/internal/logger"
	"pdfrouter/pkg/model"
	"pdfrouter/pkg/traffic"
)

// ErrNotAttached 尚未附加浏览器目标
var ErrNotAttached = fmt.Errorf("not attached")

// DecisionFunc 决策回调，传输层应用决策后通知上层记录
type DecisionFunc func(d traffic.ResponseDetails, dec traffic.Decision, meta engine.Meta)

// Manager 单目标 CDP 会话管理器：附加目标、启用响应阶段拦截、
// 消费拦截事件流并把引擎决策落到 Fetch 域
type Manager struct {
	devtoolsURL    string
	processTimeout time.Duration
	log            logger.Logger

	conn   *rpcc.Conn
	client *cdp.Client
	ctx    context.Context
	cancel context.CancelFunc

	target      model.TargetID
	mainFrameID string

	engine     *engine.Engine
	onDecision DecisionFunc
	onDegraded func(err error)

	subsMu    sync.Mutex
	subs      map[int]*signalSub
	nextSubID int

	reqMu   sync.Mutex
	reqURLs map[network.RequestID]string
}

// New 创建会话管理器
func New(devtoolsURL string, processTimeoutMS int, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	to := time.Duration(processTimeoutMS) * time.Millisecond
	if to <= 0 {
		to = 5 * time.Second
	}
	return &Manager{
		devtoolsURL:    devtoolsURL,
		processTimeout: to,
		log:            log,
		subs:           make(map[int]*signalSub),
		reqURLs:        make(map[network.RequestID]string),
	}
}

// SetEngine 设置决策引擎
func (m *Manager) SetEngine(e *engine.Engine) { m.engine = e }

// SetOnDecision 设置决策回调
func (m *Manager) SetOnDecision(fn DecisionFunc) { m.onDecision = fn }

// SetOnDegraded 设置事件流意外断开时的降级回调
func (m *Manager) SetOnDegraded(fn func(err error)) { m.onDegraded = fn }

// Target 返回当前附加的目标
func (m *Manager) Target() model.TargetID { return m.target }

// AttachTarget 附加浏览器目标，target 为空时选择第一个页面目标
func (m *Manager) AttachTarget(target model.TargetID) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel

	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == string(target) || (target == "" && targets[i].Type == devtool.Page) {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		cancel()
		return fmt.Errorf("no matching target")
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return fmt.Errorf("dial target: %w", err)
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.target = model.TargetID(sel.ID)
	m.log.Info("附加浏览器目标", "target", sel.ID, "url", sel.URL)
	return nil
}

// ListTargets 列出可附加的浏览器目标
func (m *Manager) ListTargets() ([]model.TargetInfo, error) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		out = append(out, model.TargetInfo{
			ID:        model.TargetID(t.ID),
			Type:      string(t.Type),
			URL:       t.URL,
			Title:     t.Title,
			IsCurrent: model.TargetID(t.ID) == m.target,
		})
	}
	return out, nil
}

// Detach 分离目标并断开连接
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Enable 启用响应阶段拦截与生命周期信号消费
func (m *Manager) Enable() error {
	if m.client == nil {
		return ErrNotAttached
	}
	if err := m.client.Network.Enable(m.ctx, nil); err != nil {
		return fmt.Errorf("network enable: %w", err)
	}
	if err := m.client.Page.Enable(m.ctx); err != nil {
		return fmt.Errorf("page enable: %w", err)
	}

	// 记录主框架，用于区分顶层文档与子框架
	if tree, err := m.client.Page.GetFrameTree(m.ctx); err == nil {
		m.mainFrameID = string(tree.FrameTree.Frame.ID)
	}

	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageResponse},
	}
	if err := m.client.Fetch.Enable(m.ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return fmt.Errorf("fetch enable: %w", err)
	}

	go m.consume()
	go m.watchLifecycle()
	return nil
}

// Disable 停用拦截
func (m *Manager) Disable() error {
	if m.client == nil {
		return ErrNotAttached
	}
	return m.client.Fetch.Disable(m.ctx)
}

// consume 持续接收拦截事件并分发处理
func (m *Manager) consume() {
	rp, err := m.client.Fetch.RequestPaused(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅拦截事件流失败")
		return
	}
	defer rp.Close()

	m.log.Info("开始消费拦截事件流", "target", string(m.target))
	for {
		ev, err := rp.Recv()
		if err != nil {
			if m.ctx.Err() == nil {
				m.log.Err(err, "接收拦截事件失败，停止消费", "target", string(m.target))
				if m.onDegraded != nil {
					m.onDegraded(err)
				}
			}
			return
		}
		go m.handle(ev)
	}
}

// handle 处理一次拦截事件：分类并应用决策
func (m *Manager) handle(ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(m.ctx, m.processTimeout)
	defer cancel()
	start := time.Now()

	// 仅响应阶段会被暂停；请求阶段事件直接放行兜底
	if ev.ResponseStatusCode == nil {
		m.continueRequest(ctx, ev)
		return
	}

	details := m.toResponseDetails(ev)
	m.log.Debug("开始处理响应拦截", "url", details.URL,
		"status", details.StatusCode, "type", string(details.Type))

	if m.engine == nil {
		m.continueResponse(ctx, ev, nil)
		return
	}

	dec, meta := m.engine.Process(ctx, details)
	m.apply(ctx, ev, dec)
	if m.onDecision != nil {
		m.onDecision(details, dec, meta)
	}
	m.log.Debug("响应拦截处理完成", "url", details.URL,
		"decision", int(dec.Kind), "duration", time.Since(start))
}

// apply 将引擎决策落到 Fetch 域
func (m *Manager) apply(ctx context.Context, ev *fetch.RequestPausedReply, dec traffic.Decision) {
	switch dec.Kind {
	case traffic.DecisionHeaders:
		m.continueResponse(ctx, ev, toHeaderEntries(dec.ResponseHeaders))
	case traffic.DecisionRedirect:
		args := &fetch.FulfillRequestArgs{
			RequestID:    ev.RequestID,
			ResponseCode: 302,
			ResponseHeaders: []fetch.HeaderEntry{
				{Name: "Location", Value: dec.RedirectURL},
			},
		}
		if err := m.client.Fetch.FulfillRequest(ctx, args); err != nil {
			m.log.Err(err, "应用重定向决策失败", "requestID", string(ev.RequestID))
		}
	case traffic.DecisionCancel:
		args := &fetch.FailRequestArgs{
			RequestID:   ev.RequestID,
			ErrorReason: network.ErrorReasonAborted,
		}
		if err := m.client.Fetch.FailRequest(ctx, args); err != nil {
			m.log.Err(err, "取消请求失败", "requestID", string(ev.RequestID))
		}
	default:
		m.continueResponse(ctx, ev, nil)
	}
}

func (m *Manager) continueRequest(ctx context.Context, ev *fetch.RequestPausedReply) {
	args := &fetch.ContinueRequestArgs{RequestID: ev.RequestID}
	if err := m.client.Fetch.ContinueRequest(ctx, args); err != nil {
		m.log.Err(err, "放行请求失败", "requestID", string(ev.RequestID))
	}
}

func (m *Manager) continueResponse(ctx context.Context, ev *fetch.RequestPausedReply, headers []fetch.HeaderEntry) {
	args := &fetch.ContinueResponseArgs{RequestID: ev.RequestID}
	if len(headers) > 0 {
		// 协议要求覆盖响应头时必须同时给出状态码
		code := 200
		if ev.ResponseStatusCode != nil {
			code = *ev.ResponseStatusCode
		}
		args.ResponseCode = &code
		args.ResponseHeaders = headers
	}
	if err := m.client.Fetch.ContinueResponse(ctx, args); err != nil {
		m.log.Err(err, "放行响应失败", "requestID", string(ev.RequestID))
	}
}

// Navigate 对标签页发起整页导航（engine.Navigator 实现）
func (m *Manager) Navigate(ctx context.Context, tab model.TargetID, url string) error {
	if m.client == nil {
		return ErrNotAttached
	}
	_, err := m.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}
