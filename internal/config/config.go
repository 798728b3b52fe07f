package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

const (
	// FileName 是可选配置文件名，固定在 cwd 下查找。
	FileName = "bbbdl.json"

	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	DefaultConflictPolicy = domain.Overwrite
	DefaultMaxRetries     = 10
	DefaultRetryDelay     = 5 * time.Second
	DefaultLogLevel       = "warn"

	maxRetriesLimit = 100
	maxDelayLimit   = 10 * time.Minute
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
type CLIArgs struct {
	URL string

	OutDir    string
	OutDirSet bool
}

// FileConfig 对应 bbbdl.json 的解析结构。
type FileConfig struct {
	OutDir         string       `json:"outdir"`
	ConflictPolicy string       `json:"conflict_policy"`
	Retry          *RetryConfig `json:"retry"`
	Proxy          *ProxyConfig `json:"proxy"`
	Log            *LogConfig   `json:"log"`
}

type RetryConfig struct {
	Max     *int `json:"max"`
	DelayMs *int `json:"delay_ms"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	URL string

	// OutDir 为空表示未指定：运行结束后输出目录会被重命名为会议名。
	OutDir    string
	OutDirSet bool

	ConflictPolicy domain.ConflictPolicy
	MaxRetries     int
	RetryDelay     time.Duration

	ProxyURL string

	LogLevel logrus.Level
	LogFile  string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <cwd>/bbbdl.json（可选），然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - outdir：CLI -d/--outdir > config outdir > 未指定
// - 其他字段：仅由 config 控制（CLI 不暴露），缺省取内置默认值
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	eff := EffectiveConfig{
		URL:            strings.TrimSpace(cli.URL),
		ConflictPolicy: DefaultConflictPolicy,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
	}

	// outdir：CLI > config
	switch {
	case cli.OutDirSet:
		if strings.TrimSpace(cli.OutDir) == "" {
			return invalid("-d/--outdir 不能为空")
		}
		eff.OutDir, eff.OutDirSet = absCleanFrom(cwdAbs, cli.OutDir), true
	case strings.TrimSpace(fc.OutDir) != "":
		eff.OutDir, eff.OutDirSet = absCleanFrom(cwdAbs, fc.OutDir), true
	}

	if s := strings.TrimSpace(fc.ConflictPolicy); s != "" {
		p, err := domain.ParseConflictPolicy(s)
		if err != nil {
			return invalid("conflict_policy 无效：%w", err)
		}
		eff.ConflictPolicy = p
	}

	if fc.Retry != nil {
		if fc.Retry.Max != nil {
			if *fc.Retry.Max < 0 || *fc.Retry.Max > maxRetriesLimit {
				return invalid("retry.max 必须在 [0, %d] 内，实际 %d", maxRetriesLimit, *fc.Retry.Max)
			}
			eff.MaxRetries = *fc.Retry.Max
		}
		if fc.Retry.DelayMs != nil {
			d := time.Duration(*fc.Retry.DelayMs) * time.Millisecond
			if d < 0 || d > maxDelayLimit {
				return invalid("retry.delay_ms 必须在 [0, %d] 内，实际 %d", maxDelayLimit.Milliseconds(), *fc.Retry.DelayMs)
			}
			eff.RetryDelay = d
		}
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil {
			return invalid("proxy.url 无效：%w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return invalid("proxy.url 必须包含 scheme 与 host：%q", eff.ProxyURL)
		}
	}

	level := DefaultLogLevel
	if fc.Log != nil {
		if s := strings.TrimSpace(fc.Log.Level); s != "" {
			level = s
		}
		if s := strings.TrimSpace(fc.Log.File); s != "" {
			eff.LogFile = absCleanFrom(cwdAbs, s)
		}
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return invalid("log.level 无效：%w", err)
	}
	eff.LogLevel = lvl

	return eff, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
