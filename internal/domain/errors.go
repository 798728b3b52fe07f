package domain

import (
	"errors"
	"fmt"
)

const (
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeMissingAsset  = "missing_asset"
	ErrCodeIOFailed      = "io_failed"
	ErrCodeConfigInvalid = "config_invalid"
)

// InputError 表示输入（回放 URL）不合法；终止运行，不重试。
type InputError struct {
	Input  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("输入无效：%q：%s", e.Input, e.Reason)
}

// TransportError 表示单个文件在重试预算耗尽后仍下载失败。
// 只影响该文件；批次继续。
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("下载失败（尝试 %d 次）：%s：%v", e.Attempts, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError 表示 XML 等元数据文档无法解析；终止运行。
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析失败：%s：%v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingAssetError 表示必需的资源/字段缺失（duration、webcam 流、metadata.xml 等）。
type MissingAssetError struct {
	Asset  string
	Detail string
}

func (e *MissingAssetError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("缺少必需资源：%s", e.Asset)
	}
	return fmt.Sprintf("缺少必需资源：%s（%s）", e.Asset, e.Detail)
}

// FSError 表示写工程文件/重命名目录等文件系统操作失败。
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s 失败：%q：%v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// ErrorCode 把错误映射为稳定的 error_code；无法识别时返回 ""。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var (
		ie *InputError
		te *TransportError
		pe *ParseError
		me *MissingAssetError
		fe *FSError
	)
	switch {
	case errors.As(err, &ie):
		return ErrCodeInvalidInput
	case errors.As(err, &me):
		return ErrCodeMissingAsset
	case errors.As(err, &pe):
		return ErrCodeParseFailed
	case errors.As(err, &te):
		return ErrCodeFetchFailed
	case errors.As(err, &fe):
		return ErrCodeIOFailed
	default:
		return ""
	}
}
