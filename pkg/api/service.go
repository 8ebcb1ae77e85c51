package api

import (
	"pdfrouter/internal/engine"
	"pdfrouter/internal/logger"
	"pdfrouter/internal/service"
	"pdfrouter/internal/storage"
	"pdfrouter/pkg/model"
)

// Service 服务接口
type Service interface {
	// StartSession 启动会话
	StartSession(cfg model.SessionConfig) (model.SessionID, error)

	// StopSession 停止会话
	StopSession(id model.SessionID) error

	// AttachTarget 附加目标
	AttachTarget(id model.SessionID, target model.TargetID) error

	// ListTargets 列出目标
	ListTargets(id model.SessionID) ([]model.TargetInfo, error)

	// EnableInterception 启用拦截
	EnableInterception(id model.SessionID) error

	// DisableInterception 禁用拦截
	DisableInterception(id model.SessionID) error

	// NotifyDownloadIntent 接收页面侧强制下载意图
	NotifyDownloadIntent(id model.SessionID, raw []byte) error

	// SavePDF 把查看器中的文档另存到本地
	SavePDF(id model.SessionID, frameURL string) error

	// SubscribeEvents 订阅事件
	SubscribeEvents(id model.SessionID) (<-chan model.Event, error)

	// RecentHistory 查询最近的分类历史
	RecentHistory(id model.SessionID, limit int) ([]storage.RouteRecord, error)
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, viewerCfg engine.ViewerConfig, history *storage.History) Service {
	return service.New(l, viewerCfg, history)
}
