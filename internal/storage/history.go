package storage

import (
	"time"

	"github.com/tidwall/sjson"
	"gorm.io/gorm"

	"pdfrouter/pkg/model"
	"pdfrouter/pkg/traffic"
)

// History 路由决策历史
type History struct {
	db *gorm.DB
}

// NewHistory 创建历史存取器
func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// Append 追加一条分类记录
func (h *History) Append(session model.SessionID, d traffic.ResponseDetails, outcome, filename string, isPDF bool) error {
	rec := RouteRecord{
		SessionID:    string(session),
		TargetID:     d.TabID,
		URL:          d.URL,
		Method:       d.Method,
		StatusCode:   d.StatusCode,
		ResourceType: string(d.Type),
		Outcome:      outcome,
		Filename:     filename,
		IsPDF:        isPDF,
		Headers:      encodeHeaders(d.Headers),
	}
	return h.db.Create(&rec).Error
}

// Recent 返回最近 limit 条记录，新的在前
func (h *History) Recent(limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []RouteRecord
	err := h.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

// PruneBefore 清理早于 t 的记录
func (h *History) PruneBefore(t time.Time) (int64, error) {
	res := h.db.Where("created_at < ?", t).Delete(&RouteRecord{})
	return res.RowsAffected, res.Error
}

// encodeHeaders 将响应头编码为 JSON 对象快照
func encodeHeaders(headers traffic.Header) string {
	out := "{}"
	for _, entry := range headers {
		if v, err := sjson.Set(out, escapePath(entry.Name), entry.Value); err == nil {
			out = v
		}
	}
	return out
}

// escapePath 转义 sjson 路径元字符，头名整体作为单个键
func escapePath(key string) string {
	escaped := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, key[i])
	}
	return string(escaped)
}
