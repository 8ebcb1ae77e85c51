package traffic

import "strings"

// Header 封装通用的响应头操作，保留原始顺序与大小写
type Header []Entry

// Entry 单个响应头条目
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Get 获取指定 Header 的值（大小写不敏感），不存在返回空串
func (h Header) Get(key string) string {
	for i := range h {
		if strings.EqualFold(h[i].Name, key) {
			return h[i].Value
		}
	}
	return ""
}

// Has 判断指定 Header 是否存在（大小写不敏感）
func (h Header) Has(key string) bool {
	for i := range h {
		if strings.EqualFold(h[i].Name, key) {
			return true
		}
	}
	return false
}

// Set 覆盖指定 Header 的值，不存在则追加
func (h Header) Set(key, value string) Header {
	for i := range h {
		if strings.EqualFold(h[i].Name, key) {
			h[i].Value = value
			return h
		}
	}
	return append(h, Entry{Name: key, Value: value})
}

// Append 追加一个 Header 条目，不去重
func (h Header) Append(key, value string) Header {
	return append(h, Entry{Name: key, Value: value})
}

// Clone 深拷贝，避免决策过程修改原始事件数据
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// ResourceType 请求的资源类别
type ResourceType string

const (
	ResourceMainFrame ResourceType = "main_frame"
	ResourceSubFrame  ResourceType = "sub_frame"
	ResourceObject    ResourceType = "object"
	ResourceXHR       ResourceType = "xmlhttprequest"
	ResourceOther     ResourceType = "other"
)

// ResponseDetails 中立的响应模型，引擎每次分类的输入
type ResponseDetails struct {
	RequestID  string       // 事务唯一ID
	URL        string       // 完整URL
	Method     string       // HTTP方法
	StatusCode int          // 状态码
	Headers    Header       // 响应头
	TabID      string       // 所属标签页（目标），空表示无标签页
	Type       ResourceType // 资源类型
}

// DecisionKind 决策类别
type DecisionKind int

const (
	// DecisionPass 原样放行，不做任何修改
	DecisionPass DecisionKind = iota

	// DecisionHeaders 重写响应头后继续
	DecisionHeaders

	// DecisionRedirect 重定向到新URL
	DecisionRedirect

	// DecisionCancel 取消本次请求（配合外部导航动作使用）
	DecisionCancel
)

// Decision 引擎对单次响应的终结性决策
type Decision struct {
	Kind            DecisionKind
	ResponseHeaders Header // Kind == DecisionHeaders 时有效
	RedirectURL     string // Kind == DecisionRedirect 时有效
}

// Pass 放行决策
func Pass() Decision { return Decision{Kind: DecisionPass} }

// Rewrite 重写响应头决策
func Rewrite(h Header) Decision {
	return Decision{Kind: DecisionHeaders, ResponseHeaders: h}
}

// Redirect 重定向决策
func Redirect(url string) Decision {
	return Decision{Kind: DecisionRedirect, RedirectURL: url}
}

// Cancel 取消决策
func Cancel() Decision { return Decision{Kind: DecisionCancel} }
