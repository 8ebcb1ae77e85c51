package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	DevTools struct {
		URL              string `yaml:"url"`
		ProcessTimeoutMS int    `yaml:"processTimeoutMS"`
	} `yaml:"devtools"`

	Viewer struct {
		BaseURL       string   `yaml:"baseURL"`
		AltBases      []string `yaml:"altBases"`
		HostPrefix    string   `yaml:"hostPrefix"`
		InfraPrefixes []string `yaml:"infraPrefixes"`
		InfraContains []string `yaml:"infraContains"`
	} `yaml:"viewer"`

	Sqlite struct {
		Dsn string `yaml:"dsn"`
	} `yaml:"sqlite"`

	Log struct {
		Level    string   `yaml:"level"`
		Writer   []string `yaml:"writer"`
		FilePath string   `yaml:"filePath"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.DevTools.URL = "http://127.0.0.1:9222"
	cfg.DevTools.ProcessTimeoutMS = 5000
	cfg.Viewer.BaseURL = "https://docs.google.com/viewer"
	cfg.Viewer.AltBases = []string{"https://docs.google.com/viewerng/viewer"}
	cfg.Viewer.HostPrefix = "https://docs.google.com/"
	cfg.Viewer.InfraPrefixes = []string{
		"https://accounts.google.com/",
		"https://clients6.google.com/",
		"https://content.googleapis.com/",
	}
	cfg.Viewer.InfraContains = []string{
		"viewer.googleusercontent.com/viewer/secure/pdf/",
	}
	cfg.Sqlite.Dsn = "pdfrouter.sqlite3"
	cfg.Log.Level = "debug"
	cfg.Log.Writer = []string{"console", "file"}
	cfg.Log.FilePath = "pdfrouter.log"
	return cfg
}

// Load 从文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
