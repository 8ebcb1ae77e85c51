package model

type SessionID string
type TargetID string

// SessionConfig 会话启动配置
type SessionConfig struct {
	DevToolsURL      string `json:"devToolsURL"`
	EventCapacity    int    `json:"eventCapacity"`
	ProcessTimeoutMS int    `json:"processTimeoutMS"`
}

// Event 拦截过程对外发布的事件
type Event struct {
	Type       string    `json:"type"`
	Session    SessionID `json:"session"`
	Target     TargetID  `json:"target"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
	Outcome    string    `json:"outcome"`
	Filename   string    `json:"filename"`
	Timestamp  int64     `json:"timestamp"`
}

// 事件类型
const (
	EventIntercepted = "intercepted"
	EventPassed      = "passed"
	EventRewritten   = "rewritten"
	EventRedirected  = "redirected"
	EventCancelled   = "cancelled"
	EventDegraded    = "degraded"
)

// TargetInfo 浏览器目标信息
type TargetInfo struct {
	ID        TargetID `json:"id"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	IsCurrent bool     `json:"isCurrent"`
}

// DownloadIntent 页面侧传入的强制下载意图。
// FilenameSet 区分"未携带 filename 字段"与"携带空文件名"两种语义。
type DownloadIntent struct {
	URL         string
	Filename    string
	FilenameSet bool
}
