package storage

import "time"

// RouteRecord 单次响应分类的落库记录
type RouteRecord struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"index"`
	TargetID     string
	URL          string `gorm:"index"`
	Method       string
	StatusCode   int
	ResourceType string
	Outcome      string // passed / rewritten / redirected / cancelled
	Filename     string
	IsPDF        bool
	Headers      string // 响应头 JSON 快照
	CreatedAt    time.Time
}
