package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{URL: " https://h/playback "})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.URL != "https://h/playback" {
		t.Fatalf("期望 URL 去空白，实际=%q", eff.URL)
	}
	if eff.OutDirSet || eff.OutDir != "" {
		t.Fatalf("期望未指定 outdir，实际=%q (set=%v)", eff.OutDir, eff.OutDirSet)
	}
	if eff.ConflictPolicy != domain.Overwrite {
		t.Fatalf("期望默认 overwrite，实际=%v", eff.ConflictPolicy)
	}
	if eff.MaxRetries != 10 || eff.RetryDelay != 5*time.Second {
		t.Fatalf("期望默认重试 10 次/5s，实际 %d/%v", eff.MaxRetries, eff.RetryDelay)
	}
	if eff.LogLevel != logrus.WarnLevel {
		t.Fatalf("期望默认 warn，实际=%v", eff.LogLevel)
	}
}

func TestLoadEffective_FileValues(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
  "outdir": "out",
  "conflict_policy": "skip-unless-smaller",
  "retry": {"max": 2, "delay_ms": 250},
  "proxy": {"url": "http://127.0.0.1:7890"},
  "log": {"level": "debug", "file": "logs/bbbdl.log"}
}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.OutDirSet || eff.OutDir != filepath.Join(cwd, "out") {
		t.Fatalf("期望 outdir=%q，实际=%q", filepath.Join(cwd, "out"), eff.OutDir)
	}
	if eff.ConflictPolicy != domain.SkipUnlessSmaller {
		t.Fatalf("期望 skip_unless_smaller，实际=%v", eff.ConflictPolicy)
	}
	if eff.MaxRetries != 2 || eff.RetryDelay != 250*time.Millisecond {
		t.Fatalf("重试配置不符合预期：%d/%v", eff.MaxRetries, eff.RetryDelay)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy 不符合预期：%q", eff.ProxyURL)
	}
	if eff.LogLevel != logrus.DebugLevel || eff.LogFile != filepath.Join(cwd, "logs", "bbbdl.log") {
		t.Fatalf("log 配置不符合预期：%v %q", eff.LogLevel, eff.LogFile)
	}
}

func TestLoadEffective_OutDirCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"outdir":"from-config"}`))

	eff, err := LoadEffective(cwd, CLIArgs{OutDir: "from-cli", OutDirSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutDir != filepath.Join(cwd, "from-cli") {
		t.Fatalf("期望 CLI 覆盖配置，实际=%q", eff.OutDir)
	}

	abs := filepath.Join(t.TempDir(), "abs")
	eff, err = LoadEffective(cwd, CLIArgs{OutDir: abs, OutDirSet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.OutDir != abs {
		t.Fatalf("期望绝对路径原样保留，实际=%q", eff.OutDir)
	}
}

func TestLoadEffective_RetryZeroAllowed(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"retry":{"max":0,"delay_ms":0}}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.MaxRetries != 0 || eff.RetryDelay != 0 {
		t.Fatalf("期望显式 0 生效，实际 %d/%v", eff.MaxRetries, eff.RetryDelay)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"json":          `{`,
		"policy":        `{"conflict_policy":"sometimes"}`,
		"retry max":     `{"retry":{"max":-1}}`,
		"retry delay":   `{"retry":{"delay_ms":3600000}}`,
		"proxy parse":   `{"proxy":{"url":"http://[::1"}}`,
		"proxy no host": `{"proxy":{"url":"127.0.0.1:7890"}}`,
		"log level":     `{"log":{"level":"loud"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_EmptyCLIOutDir(t *testing.T) {
	_, err := LoadEffective(t.TempDir(), CLIArgs{OutDir: " ", OutDirSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
