package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/bbbdl/internal/app/run"
	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/logging"
)

func main() {
	if code := runCmd(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(os.Stdout)
			return 0
		}
	}

	ca, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage(os.Stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		URL:       ca.URL,
		OutDir:    ca.OutDir,
		OutDirSet: ca.OutDirSet,
	})
	if err != nil {
		emitReport(reportForConfigError(ca, err))
		return 1
	}

	logger := logrus.StandardLogger()
	closer, err := logging.Setup(logger, os.Stderr, eff.LogLevel, eff.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开日志文件失败：%v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr, err := run.ExecuteWithObserver(ctx, eff, run.Options{Cwd: cwd, Log: logger}, obs)

	emitReport(rr)
	if interactive {
		emitLocations(progressW, rr)
	}
	if err != nil {
		return 1
	}
	return 0
}

type cliArgs struct {
	URL       string
	OutDir    string
	OutDirSet bool
}

func parseArgs(args []string) (cliArgs, error) {
	ca := cliArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-d" || a == "--outdir":
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			ca.OutDir = args[i]
			ca.OutDirSet = true
		case strings.HasPrefix(a, "--outdir="):
			ca.OutDir = strings.TrimPrefix(a, "--outdir=")
			ca.OutDirSet = true
		case strings.HasPrefix(a, "-d="):
			ca.OutDir = strings.TrimPrefix(a, "-d=")
			ca.OutDirSet = true
		case strings.HasPrefix(a, "-"):
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ca.URL != "" {
				return cliArgs{}, fmt.Errorf("只能指定一个 URL：%q 与 %q", ca.URL, a)
			}
			ca.URL = a
		}
	}

	if strings.TrimSpace(ca.URL) == "" {
		return cliArgs{}, fmt.Errorf("缺少回放 URL")
	}
	if ca.OutDirSet && strings.TrimSpace(ca.OutDir) == "" {
		return cliArgs{}, fmt.Errorf("-d/--outdir 不能为空")
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  bbbdl <url> [-d|--outdir <dir>]

下载一场 BigBlueButton 录制的全部资源，并生成 Shotcut/MLT 工程文件。

参数：
  url           回放地址：https://<host>/playback/presentation/2.3/<meeting-id>
  -d, --outdir  输出目录（未指定时输出到 ./<meeting-id>，完成后重命名为会议名）
  -h, --help    显示帮助

配置文件（可选）：当前目录下的 bbbdl.json
  outdir / conflict_policy / retry.max / retry.delay_ms / proxy.url / log.level / log.file
`)
}

func emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：status=%s downloaded=%d skipped=%d failed=%d",
		rr.Status, rr.Summary.Downloaded, rr.Summary.Skipped, rr.Summary.Failed,
	)

	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		if rr.Status == domain.StatusFailed {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summary)
	if rr.Status == domain.StatusFailed {
		fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
}

func reportForConfigError(ca cliArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		URL:        ca.URL,
		StartedAt:  now,
		FinishedAt: now,
	}
	rr.Fail(err)
	rr.ErrorCode = config.Code(err)
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, rr domain.RunReport) {
	if w == nil || rr.OutDir == "" {
		return
	}
	if rr.Project != "" {
		fmt.Fprintf(w, "project: %s\n", filepath.Join(rr.OutDir, rr.Project))
	}
	fmt.Fprintf(w, "report: %s\n", filepath.Join(rr.OutDir, run.ReportFileName))
}
