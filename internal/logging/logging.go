// Package logging 配置进程级 logrus 日志：stderr 文本输出，可选追加到文件。
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000 Z07:00"

type utcFormatter struct {
	logrus.Formatter
}

func (f utcFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Time = entry.Time.UTC()
	return f.Formatter.Format(entry)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup 配置 logger。file 非空时额外以追加方式写入该文件（不带颜色）。
// 返回的 Closer 负责关闭日志文件；调用方应在退出前 Close。
func Setup(logger *logrus.Logger, out io.Writer, level logrus.Level, file string) (io.Closer, error) {
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(utcFormatter{&logrus.TextFormatter{
		TimestampFormat:  timestampFormat,
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	}})

	if file == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	writers := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		writers[lvl] = f
	}
	logger.AddHook(lfshook.NewHook(writers, utcFormatter{&logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
	}}))
	return f, nil
}
