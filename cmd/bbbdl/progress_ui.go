package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/bbbdl/internal/app/run"
	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/fetch"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	now       func() time.Time
	startedAt time.Time

	// 进度行的最小打印间隔。
	minInterval time.Duration
	lastPrinted time.Time
	// 当前组内正在下载的序号（从 1 开始）。
	index map[string]int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:           w,
		now:         time.Now,
		minInterval: 2 * time.Second,
		index:       map[string]int{},
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, pb domain.PlaybackURL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] bbbdl %s\n", now.Format("15:04:05"), pb.MeetingID)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  url: %s\n", truncate(eff.URL, 160))
	if eff.OutDirSet && eff.OutDir != "" {
		fmt.Fprintf(p.w, "  outdir: %s\n", eff.OutDir)
	} else {
		fmt.Fprintf(p.w, "  outdir: %s (完成后重命名为会议名)\n", filepath.Join(".", pb.MeetingID))
	}
	fmt.Fprintf(p.w, "  conflict_policy: %s\n", eff.ConflictPolicy)
	fmt.Fprintf(p.w, "  retry: max=%d delay=%s\n", eff.MaxRetries, eff.RetryDelay)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if eff.LogFile != "" {
		fmt.Fprintf(p.w, "  log: %s (%s)\n", eff.LogLevel, eff.LogFile)
	} else {
		fmt.Fprintf(p.w, "  log: %s\n", eff.LogLevel)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = now
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "setup":
		fmt.Fprintf(p.w, "准备目录: %s (%s)\n", stringField(fields, "dir"), formatShortDuration(dur))
	case "data", "videos", "slides", "textfiles":
		files := intField(fields, "files")
		if files == 0 {
			fmt.Fprintf(p.w, "下载 %s: 无文件\n", name)
			break
		}
		fmt.Fprintf(p.w, "下载 %s: files=%d downloaded=%d skipped=%d failed=%d (%s)\n",
			name, files,
			intField(fields, "downloaded"),
			intField(fields, "skipped"),
			intField(fields, "failed"),
			formatShortDuration(dur),
		)
	case "timeline":
		fmt.Fprintf(p.w, "时间线: duration=%s slides=%d tracks=%d (%s)\n",
			formatElapsed(time.Duration(intField(fields, "duration_ms"))*time.Millisecond),
			intField(fields, "slides"),
			intField(fields, "tracks"),
			formatShortDuration(dur),
		)
	case "project":
		fmt.Fprintf(p.w, "工程文件: %s %s (%s)\n",
			stringField(fields, "file"),
			humanize.Bytes(uint64(intField(fields, "bytes"))),
			formatShortDuration(dur),
		)
	case "rename":
		fmt.Fprintf(p.w, "重命名目录: %s (%s)\n", stringField(fields, "dir"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = p.now()
}

func (p *progressUI) OnProgress(group string, pr fetch.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 节流：最终结果由 OnFileDone 打印，这里只在长下载期间给出中间进度。
	now := p.now()
	if now.Sub(p.lastPrinted) < p.minInterval {
		return
	}

	idx := p.index[group] + 1
	if pr.Total < 0 {
		fmt.Fprintf(p.w, "  [%s #%d] %s %s\n",
			group, idx, truncate(pr.Name, 60), humanize.Bytes(uint64(pr.Done)),
		)
	} else {
		eta := "?"
		if pr.ETA >= 0 {
			eta = formatElapsed(pr.ETA)
		}
		fmt.Fprintf(p.w, "  [%s #%d] %s %5.1f%% %s/%s ETA %s\n",
			group, idx, truncate(pr.Name, 60), pr.Fraction*100,
			humanize.Bytes(uint64(pr.Done)), humanize.Bytes(uint64(pr.Total)), eta,
		)
	}
	p.lastPrinted = now
}

func (p *progressUI) OnFileDone(group string, idx, total int, res fetch.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.index[group] = idx
	name := res.Path
	if name == "" {
		name = lastSegment(res.URL)
	} else {
		name = filepath.Base(name)
	}

	switch res.Status {
	case domain.FileStatusFailed:
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		fmt.Fprintf(p.w, "[%s %d/%d] FAIL %s attempts=%d: %s\n",
			group, idx, total, name, res.Attempts, truncate(msg, 160),
		)
	case domain.FileStatusSkipped:
		fmt.Fprintf(p.w, "[%s %d/%d] SKIP %s (已存在)\n", group, idx, total, name)
	default:
		fmt.Fprintf(p.w, "[%s %d/%d] OK %s %s\n", group, idx, total, name, humanize.Bytes(uint64(res.Bytes)))
	}

	p.lastPrinted = p.now()
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func lastSegment(raw string) string {
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
