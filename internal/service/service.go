package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	transport "pdfrouter/internal/cdp"
	"pdfrouter/internal/correlation"
	"pdfrouter/internal/engine"
	"pdfrouter/internal/ingress"
	"pdfrouter/internal/logger"
	"pdfrouter/internal/saver"
	"pdfrouter/internal/storage"
	"pdfrouter/internal/tracker"
	"pdfrouter/pkg/model"
	"pdfrouter/pkg/traffic"
)

const (
	defaultDevToolsURL   = "http://127.0.0.1:9222"
	defaultEventCapacity = 256
	saveTimeout          = 2 * time.Minute
)

// ErrNoSession 会话不存在
var ErrNoSession = errors.New("session not found")

// session 单个会话的全部运行时组件
type session struct {
	id     model.SessionID
	cfg    model.SessionConfig
	mgr    *transport.Manager
	store  *correlation.Store
	trk    *tracker.Tracker
	ing    *ingress.Ingress
	sv     *saver.Saver
	events chan model.Event
}

// Service 会话编排服务
type Service struct {
	mu        sync.RWMutex
	sessions  map[model.SessionID]*session
	log       logger.Logger
	viewerCfg engine.ViewerConfig
	history   *storage.History
}

// New 创建服务；history 可为 nil 表示不落库
func New(l logger.Logger, viewerCfg engine.ViewerConfig, history *storage.History) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{
		sessions:  make(map[model.SessionID]*session),
		log:       l,
		viewerCfg: viewerCfg,
		history:   history,
	}
}

// StartSession 启动会话并组装决策链路
func (s *Service) StartSession(cfg model.SessionConfig) (model.SessionID, error) {
	if cfg.DevToolsURL == "" {
		cfg.DevToolsURL = defaultDevToolsURL
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = defaultEventCapacity
	}

	id := model.SessionID(uuid.NewString())
	mgr := transport.New(cfg.DevToolsURL, cfg.ProcessTimeoutMS, s.log)
	store := correlation.NewStore()
	trk := tracker.New(store, mgr, s.log)
	eng := engine.New(store, engine.NewViewer(s.viewerCfg), mgr, mgr, s.log)
	mgr.SetEngine(eng)

	sess := &session{
		id:     id,
		cfg:    cfg,
		mgr:    mgr,
		store:  store,
		trk:    trk,
		ing:    ingress.New(store, trk, s.log),
		sv:     saver.New(mgr, s.log),
		events: make(chan model.Event, cfg.EventCapacity),
	}
	mgr.SetOnDecision(func(d traffic.ResponseDetails, dec traffic.Decision, meta engine.Meta) {
		s.onDecision(sess, d, dec, meta)
	})
	mgr.SetOnDegraded(func(err error) {
		s.emit(sess, model.Event{
			Type:      model.EventDegraded,
			Session:   sess.id,
			Target:    mgr.Target(),
			Outcome:   model.EventDegraded,
			Timestamp: time.Now().UnixMilli(),
		})
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.log.Info("启动会话", "sessionID", string(id), "devtools", cfg.DevToolsURL)
	return id, nil
}

// StopSession 停止会话并拆除链路
func (s *Service) StopSession(id model.SessionID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	sess.trk.Close()
	if err := sess.mgr.Detach(); err != nil {
		s.log.Warn("分离目标失败", "sessionID", string(id), "error", err)
	}
	s.log.Info("停止会话", "sessionID", string(id))
	return nil
}

// AttachTarget 为会话附加浏览器目标
func (s *Service) AttachTarget(id model.SessionID, target model.TargetID) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.mgr.AttachTarget(target)
}

// ListTargets 列出会话可见的浏览器目标
func (s *Service) ListTargets(id model.SessionID) ([]model.TargetInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.mgr.ListTargets()
}

// EnableInterception 启用响应拦截
func (s *Service) EnableInterception(id model.SessionID) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.mgr.Enable()
}

// DisableInterception 停用响应拦截
func (s *Service) DisableInterception(id model.SessionID) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.mgr.Disable()
}

// NotifyDownloadIntent 接收页面侧的强制下载意图（原始 JSON 形态）
func (s *Service) NotifyDownloadIntent(id model.SessionID, raw []byte) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.ing.HandleRaw(raw, sess.mgr.Target())
}

// SavePDF 把查看器页面中的文档另存到本地
func (s *Service) SavePDF(id model.SessionID, frameURL string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return sess.sv.Save(ctx, frameURL)
}

// SubscribeEvents 订阅会话事件流
func (s *Service) SubscribeEvents(id model.SessionID) (<-chan model.Event, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.events, nil
}

// RecentHistory 返回最近的分类记录，未配置存储时返回空
func (s *Service) RecentHistory(id model.SessionID, limit int) ([]storage.RouteRecord, error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(limit)
}

func (s *Service) get(id model.SessionID) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return sess, nil
}

// onDecision 决策落地后的统一出口：发布事件并落库
func (s *Service) onDecision(sess *session, d traffic.ResponseDetails, dec traffic.Decision, meta engine.Meta) {
	outcome := outcomeOf(dec.Kind)
	s.emit(sess, model.Event{
		Type:       model.EventIntercepted,
		Session:    sess.id,
		Target:     model.TargetID(d.TabID),
		URL:        d.URL,
		Method:     d.Method,
		StatusCode: d.StatusCode,
		Outcome:    outcome,
		Filename:   meta.Filename,
		Timestamp:  time.Now().UnixMilli(),
	})

	if s.history != nil {
		if err := s.history.Append(sess.id, d, outcome, meta.Filename, meta.IsPDF); err != nil {
			s.log.Err(err, "写入历史记录失败", "url", d.URL)
		}
	}
}

// emit 非阻塞投递，消费不及时直接丢弃
func (s *Service) emit(sess *session, ev model.Event) {
	select {
	case sess.events <- ev:
	default:
		s.log.Warn("事件通道已满，丢弃事件", "sessionID", string(sess.id), "url", ev.URL)
	}
}

func outcomeOf(kind traffic.DecisionKind) string {
	switch kind {
	case traffic.DecisionHeaders:
		return model.EventRewritten
	case traffic.DecisionRedirect:
		return model.EventRedirected
	case traffic.DecisionCancel:
		return model.EventCancelled
	default:
		return model.EventPassed
	}
}
