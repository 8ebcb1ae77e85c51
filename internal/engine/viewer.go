package engine

import (
	"net/url"
	"strings"
)

// ViewerConfig 远端查看器的地址语法与基础设施端点
type ViewerConfig struct {
	// BaseURL 重定向目标，如 https://docs.google.com/viewer
	BaseURL string

	// AltBases 同样视为查看器页面的其他入口（如 viewerng 变体）
	AltBases []string

	// HostPrefix 查看器宿主前缀，宿主自身流量一律放行
	HostPrefix string

	// InfraPrefixes 按前缀匹配的基础设施端点（认证、API）
	InfraPrefixes []string

	// InfraContains 按包含匹配的基础设施片段（安全代理）
	InfraContains []string
}

// DefaultViewerConfig 缺省查看器配置
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{
		BaseURL:    "https://docs.google.com/viewer",
		AltBases:   []string{"https://docs.google.com/viewerng/viewer"},
		HostPrefix: "https://docs.google.com/",
		InfraPrefixes: []string{
			"https://accounts.google.com/",
			"https://clients6.google.com/",
			"https://content.googleapis.com/",
		},
		InfraContains: []string{
			"viewer.googleusercontent.com/viewer/secure/pdf/",
		},
	}
}

// Viewer 查看器地址判定与重定向 URL 构造
type Viewer struct {
	cfg   ViewerConfig
	pages []string
}

// NewViewer 创建查看器判定器，零值配置回退到缺省值
func NewViewer(cfg ViewerConfig) *Viewer {
	if cfg.BaseURL == "" {
		cfg = DefaultViewerConfig()
	}
	pages := make([]string, 0, 1+len(cfg.AltBases))
	pages = append(pages, cfg.BaseURL+"?url=")
	for _, alt := range cfg.AltBases {
		pages = append(pages, alt+"?url=")
	}
	return &Viewer{cfg: cfg, pages: pages}
}

// IsHost 判断 URL 是否属于查看器宿主
func (v *Viewer) IsHost(rawurl string) bool {
	return v.cfg.HostPrefix != "" && strings.HasPrefix(rawurl, v.cfg.HostPrefix)
}

// IsViewerPage 判断 URL 是否为查看器页面本身
func (v *Viewer) IsViewerPage(rawurl string) bool {
	for _, p := range v.pages {
		if strings.HasPrefix(rawurl, p) {
			return true
		}
	}
	return false
}

// IsInfra 判断 URL 是否为查看器基础设施端点
func (v *Viewer) IsInfra(rawurl string) bool {
	for _, p := range v.cfg.InfraPrefixes {
		if strings.HasPrefix(rawurl, p) {
			return true
		}
	}
	for _, s := range v.cfg.InfraContains {
		if strings.Contains(rawurl, s) {
			return true
		}
	}
	return false
}

// BuildURL 构造查看器重定向地址：?url=<原始URL>[&fname=<文件名>]
func (v *Viewer) BuildURL(original, filename string) string {
	out := v.cfg.BaseURL + "?url=" + url.QueryEscape(original)
	if filename != "" {
		out += "&fname=" + url.QueryEscape(filename)
	}
	return out
}
