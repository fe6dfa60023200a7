package server

import (
	"net"
	"net/http"
	"time"

	"github.com/fedcache/fedcache/internal/config"
	"github.com/fedcache/fedcache/internal/version"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          16,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ResponseHeaderTimeout: 60 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewDownloadClient 返回共享 http.Client，Timeout 覆盖整个下载过程。
func NewDownloadClient(cfg *config.Config) *http.Client {
	timeout := 10 * time.Minute
	userAgent := "fedcache/" + version.Version
	if cfg != nil {
		if cfg.Global.DownloadTimeout.DurationValue() > 0 {
			timeout = cfg.Global.DownloadTimeout.DurationValue()
		}
		if cfg.Global.UserAgent != "" {
			userAgent = cfg.Global.UserAgent
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      defaultTransport.Clone(),
			userAgent: userAgent,
		},
	}
}

// userAgentTransport 为未显式设置 User-Agent 的请求补齐默认值。
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
