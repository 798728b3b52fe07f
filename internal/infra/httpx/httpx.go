package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// 大文件（webcams.webm 可达数 GB）不设整体超时；只约束握手与首包。
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 30 * time.Second

	// DefaultUserAgent 标识本工具；部分 BBB 前置代理会拒绝空 UA。
	DefaultUserAgent = "bbbdl/1.0 (+https://github.com/John-Robertt/bbbdl)"
)

// Transport 把“UA + keep-alive 策略”固化为统一策略。
//
// 重试不在这里做：重试预算与间隔由 fetch 层统一控制（避免两层重试叠加）。
type Transport struct {
	Base *http.Transport

	UserAgent string

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		r.Header.Set("User-Agent", ua)
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// NewAssetClient 构造用于下载录制资源的 HTTP client。
//
// 规则：
// - proxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - proxyURL 为空：直连（不读取环境变量代理，行为可预测）
// - 无整体超时：取消依赖调用方的 context
func NewAssetClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	disableKeepAlives := false
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy.url 必须包含 scheme 与 host")
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{
			Base:              base,
			UserAgent:         DefaultUserAgent,
			DisableKeepAlives: disableKeepAlives,
		},
	}, nil
}
