package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pdfrouter/internal/config"
	"pdfrouter/internal/engine"
	"pdfrouter/internal/logger"
	"pdfrouter/internal/storage"
	"pdfrouter/pkg/api"
	"pdfrouter/pkg/model"
)

// main 是无头守护进程入口：附加浏览器目标、启用响应拦截，
// 然后把路由事件打到日志，直到收到退出信号
func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		devtoolsURL = flag.String("devtools", "", "DevTools 地址，覆盖配置文件")
		target      = flag.String("target", "", "目标 ID，留空附加第一个页面")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "加载配置失败:", err)
		os.Exit(1)
	}
	if *devtoolsURL != "" {
		cfg.DevTools.URL = *devtoolsURL
	}

	log := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		Writers:  cfg.Log.Writer,
		FilePath: cfg.Log.FilePath,
	})

	db, err := storage.Open(cfg.Sqlite.Dsn, log)
	if err != nil {
		log.Err(err, "打开数据库失败", "dsn", cfg.Sqlite.Dsn)
		os.Exit(1)
	}
	defer storage.Close(db)

	viewerCfg := engine.ViewerConfig{
		BaseURL:       cfg.Viewer.BaseURL,
		AltBases:      cfg.Viewer.AltBases,
		HostPrefix:    cfg.Viewer.HostPrefix,
		InfraPrefixes: cfg.Viewer.InfraPrefixes,
		InfraContains: cfg.Viewer.InfraContains,
	}

	svc := api.NewService(log, viewerCfg, storage.NewHistory(db))
	id, err := svc.StartSession(model.SessionConfig{
		DevToolsURL:      cfg.DevTools.URL,
		ProcessTimeoutMS: cfg.DevTools.ProcessTimeoutMS,
	})
	if err != nil {
		log.Err(err, "启动会话失败")
		os.Exit(1)
	}
	defer svc.StopSession(id)

	if err := svc.AttachTarget(id, model.TargetID(*target)); err != nil {
		log.Err(err, "附加目标失败", "target", *target)
		os.Exit(1)
	}
	if err := svc.EnableInterception(id); err != nil {
		log.Err(err, "启用拦截失败")
		os.Exit(1)
	}

	events, err := svc.SubscribeEvents(id)
	if err != nil {
		log.Err(err, "订阅事件失败")
		os.Exit(1)
	}
	go func() {
		for ev := range events {
			log.Info("路由事件", "outcome", ev.Outcome, "url", ev.URL,
				"status", ev.StatusCode, "filename", ev.Filename)
		}
	}()

	log.Info("拦截已启用", "devtools", cfg.DevTools.URL, "sessionID", string(id))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("收到退出信号，停止服务")
}
