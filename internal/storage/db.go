package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"pdfrouter/internal/logger"
)

// Open 打开数据库连接并执行自动迁移
func Open(dsn string, log logger.Logger) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "pdfrouter.sqlite3"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&RouteRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
