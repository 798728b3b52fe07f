// Package fetch 负责把远端录制资源下载到本地目录：有界重试、冲突策略、进度上报。
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/infra/fsx"
)

const (
	DefaultMaxRetries       = 10
	DefaultRetryDelay       = 5 * time.Second
	DefaultProgressInterval = 200 * time.Millisecond
)

// Result 是单个 URL 的最终结果。Status 取 domain.FileStatus*。
// 调用方不需要区分 downloaded 与 skipped：两者都是成功。
type Result struct {
	URL      string
	Path     string
	Status   string
	Bytes    int64
	Attempts int
	Err      error
}

// OK 报告结果是否为成功（下载或按策略跳过）。
func (r Result) OK() bool { return r.Status != domain.FileStatusFailed }

// Reporter 观察下载过程。实现无需并发安全：Fetcher 串行调用。
type Reporter interface {
	OnProgress(p Progress)
	OnResult(r Result)
}

// ErrorHandler 在单个 URL 最终失败时被调用一次；批次随后继续。
type ErrorHandler func(rawURL string, err error)

// Fetcher 是资源下载器。零值不可用，请使用 New。
type Fetcher struct {
	Client *http.Client

	// MaxRetries 为首次尝试之后的最大重试次数；RetryDelay 为固定间隔。
	MaxRetries int
	RetryDelay time.Duration

	ProgressInterval time.Duration

	Reporter Reporter
	OnError  ErrorHandler
	Log      logrus.FieldLogger

	now func() time.Time
}

// New 构造一个使用默认重试预算（10 次、间隔 5s）的 Fetcher。
func New(c *http.Client) *Fetcher {
	if c == nil {
		c = http.DefaultClient
	}
	return &Fetcher{
		Client:           c,
		MaxRetries:       DefaultMaxRetries,
		RetryDelay:       DefaultRetryDelay,
		ProgressInterval: DefaultProgressInterval,
		Log:              logrus.StandardLogger(),
		now:              time.Now,
	}
}

// StatusError 表示服务端返回了非 2xx 状态码。
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Transient 报告该状态码是否值得重试：5xx、408、429。
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

// Fetch 把 rawURL 下载到 dir 下（文件名取 URL 路径最后一段），按 policy 处理同名冲突。
//
// 失败不会 panic 也不会中断调用方：结果里带 Err，并调用一次 OnError。
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string, policy domain.ConflictPolicy) Result {
	res := Result{URL: rawURL, Status: domain.FileStatusFailed}

	name, err := fileName(rawURL)
	if err != nil {
		return f.fail(res, err)
	}
	if fi, err := os.Stat(dir); err != nil {
		return f.fail(res, errors.Wrap(err, "目标目录不可用"))
	} else if !fi.IsDir() {
		return f.fail(res, &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"})
	}
	rule, ok := ruleFor(policy)
	if !ok {
		return f.fail(res, errors.Errorf("未知冲突策略：%v", policy))
	}

	res.Path = filepath.Join(dir, name)
	existing, exists, err := fsx.RegularFileSize(res.Path)
	if err != nil {
		return f.fail(res, err)
	}

	replace := true
	if exists && !rule.needSize {
		switch rule.resolve(existing, -1) {
		case actSkip:
			return f.done(res, domain.FileStatusSkipped)
		case actRename:
			unique, err := fsx.UniqueName(dir, name)
			if err != nil {
				return f.fail(res, err)
			}
			name = unique
			res.Path = filepath.Join(dir, name)
			replace = false
		}
	}

	log := f.logger().WithFields(logrus.Fields{"url": rawURL, "file": name})
	skipped := false
	op := func() error {
		res.Attempts++
		n, skip, err := f.attempt(ctx, rawURL, dir, name, replace, rule, exists, existing)
		res.Bytes = n
		skipped = skip
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{"attempt": res.Attempts, "retry_in": wait}).Warnf("下载失败，准备重试：%v", err)
	}

	if err := backoff.RetryNotify(op, f.policy(ctx), notify); err != nil {
		return f.fail(res, err)
	}
	if skipped {
		return f.done(res, domain.FileStatusSkipped)
	}
	log.WithField("bytes", res.Bytes).Debug("下载完成")
	return f.done(res, domain.FileStatusDownloaded)
}

// attempt 执行一次完整的 GET + 落盘。返回的 error 若是 *backoff.PermanentError 则不再重试。
func (f *Fetcher) attempt(ctx context.Context, rawURL, dir, name string, replace bool, rule conflictRule, exists bool, existing int64) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, false, backoff.Permanent(errors.Wrap(err, "构造请求失败"))
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, backoff.Permanent(ctx.Err())
		}
		return 0, false, errors.Wrap(err, "请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		if se.Transient() {
			return 0, false, se
		}
		return 0, false, backoff.Permanent(se)
	}

	if exists && rule.needSize && rule.resolve(existing, resp.ContentLength) == actSkip {
		return 0, true, nil
	}

	body := newProgressReader(resp.Body, Progress{
		Name:  name,
		URL:   rawURL,
		Total: resp.ContentLength,
	}, f.progressInterval(), f.clock(), f.emitProgress)

	n, err := fsx.WriteStreamAtomic(dir, name, body, replace)
	if err != nil {
		if errors.Is(err, os.ErrExist) || fsx.IsPathTypeConflict(err) {
			return n, false, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return n, false, backoff.Permanent(ctx.Err())
		}
		return n, false, errors.Wrap(err, "写入失败")
	}
	return n, false, nil
}

func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	max := f.MaxRetries
	if max < 0 {
		max = 0
	}
	delay := f.RetryDelay
	if delay < 0 {
		delay = 0
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(max))
	return backoff.WithContext(b, ctx)
}

func (f *Fetcher) fail(res Result, err error) Result {
	res.Status = domain.FileStatusFailed
	res.Err = &domain.TransportError{URL: res.URL, Attempts: res.Attempts, Err: err}
	f.logger().WithFields(logrus.Fields{"url": res.URL, "attempts": res.Attempts}).Errorf("下载最终失败：%v", err)
	if f.OnError != nil {
		f.OnError(res.URL, res.Err)
	}
	if f.Reporter != nil {
		f.Reporter.OnResult(res)
	}
	return res
}

func (f *Fetcher) done(res Result, status string) Result {
	res.Status = status
	if f.Reporter != nil {
		f.Reporter.OnResult(res)
	}
	return res
}

func (f *Fetcher) emitProgress(p Progress) {
	if f.Reporter != nil {
		f.Reporter.OnProgress(p)
	}
}

func (f *Fetcher) logger() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}

func (f *Fetcher) clock() func() time.Time {
	if f.now == nil {
		return time.Now
	}
	return f.now
}

func (f *Fetcher) progressInterval() time.Duration {
	if f.ProgressInterval <= 0 {
		return DefaultProgressInterval
	}
	return f.ProgressInterval
}

// fileName 校验 rawURL 为绝对 http(s) URI，并取路径最后一段作为文件名。
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errors.Wrap(err, "URL 无效")
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.Errorf("URL 必须是绝对 http(s) 地址：%q", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", errors.Errorf("URL 缺少文件名：%q", rawURL)
	}
	return name, nil
}
