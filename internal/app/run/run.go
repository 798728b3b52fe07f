package run

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/bbbdl/internal/app/planner"
	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/fetch"
	"github.com/John-Robertt/bbbdl/internal/infra/fsx"
	"github.com/John-Robertt/bbbdl/internal/infra/httpx"
	"github.com/John-Robertt/bbbdl/internal/meta"
	"github.com/John-Robertt/bbbdl/internal/mlt"
	"github.com/John-Robertt/bbbdl/internal/notes"
	"github.com/John-Robertt/bbbdl/internal/scan"
	"github.com/John-Robertt/bbbdl/internal/timeline"
)

// ReportFileName 是写入输出目录的运行报告。
const ReportFileName = "report.json"

// Options 是运行时可注入的依赖；零值即为生产配置。
type Options struct {
	// Client 为空时按 eff.ProxyURL 构造。
	Client *http.Client
	// Cwd 是未指定 outdir 时输出目录与重命名目标的基准目录；为空时取进程 cwd。
	Cwd string
	Log logrus.FieldLogger
}

// Execute 执行一次完整下载与工程生成。
func Execute(ctx context.Context, eff config.EffectiveConfig, opts Options) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, opts, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 单个文件下载失败只记入报告；URL 非法、元数据缺失/损坏、webcam 流缺失、
// 写工程文件或重命名目录失败会终止运行并返回 error（报告同时带 error_code）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, opts Options, obs Observer) (domain.RunReport, error) {
	r := &runner{
		ctx:  ctx,
		eff:  eff,
		opts: opts,
		obs:  obs,
		log:  opts.Log,
		rr: domain.RunReport{
			URL:       eff.URL,
			StartedAt: time.Now().UTC(),
		},
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	err := r.run()
	r.finish(err)
	return r.rr, err
}

type runner struct {
	ctx  context.Context
	eff  config.EffectiveConfig
	opts Options
	obs  Observer
	log  logrus.FieldLogger

	pb       domain.PlaybackURL
	layout   planner.Layout
	prepared bool
	fetcher  *fetch.Fetcher

	// assets 记录已成功落盘的资源：URL -> 绝对路径。
	assets map[string]string

	rr domain.RunReport
}

func (r *runner) run() error {
	pb, err := domain.ParsePlaybackURL(r.eff.URL)
	if err != nil {
		return err
	}
	r.pb = pb
	r.rr.MeetingID = pb.MeetingID
	if r.obs != nil {
		r.obs.OnStart(r.eff, pb)
	}
	r.log = r.log.WithField("meeting_id", pb.MeetingID)

	cwd := r.opts.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return &domain.FSError{Op: "读取工作目录", Path: ".", Err: err}
		}
	}
	root := r.eff.OutDir
	if !r.eff.OutDirSet || root == "" {
		root = filepath.Join(cwd, pb.MeetingID)
	}

	if err := r.phase("setup", func() (map[string]any, error) { return r.setup(root) }); err != nil {
		return err
	}
	if err := r.setupFetcher(); err != nil {
		return err
	}

	for _, g := range planner.Plan(pb) {
		if err := r.fetchGroup(g); err != nil {
			return err
		}
	}

	var ov meta.Overlay
	if path, ok := r.asset("shapes.svg"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return &domain.FSError{Op: "读取", Path: path, Err: err}
		}
		if ov, err = meta.ParseOverlay(b, pb.PrefixURL()); err != nil {
			return err
		}
		for _, g := range planner.OverlayGroups(ov.ImageURLs, ov.TextURLs) {
			if err := r.fetchGroup(g); err != nil {
				return err
			}
		}
	} else {
		r.log.Warn("未获取到 shapes.svg：不生成幻灯片轨道")
	}

	r.exportNotes()

	var (
		rec domain.RecordingMetadata
		tl  domain.Timeline
	)
	err = r.phase("timeline", func() (map[string]any, error) {
		path, ok := r.asset("metadata.xml")
		if !ok {
			return nil, &domain.MissingAssetError{Asset: "data/metadata.xml", Detail: "下载失败或不存在"}
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.FSError{Op: "读取", Path: path, Err: err}
		}
		if rec, err = meta.ParseRecording(b, pb.MeetingID); err != nil {
			return nil, err
		}
		r.rr.MeetingName = rec.MeetingName

		streams, err := scan.ProbeStreams(r.layout.Root)
		if err != nil {
			return nil, &domain.FSError{Op: "检查媒体流", Path: r.layout.Videos, Err: err}
		}
		if tl, err = timeline.Assemble(rec, ov.Slides, streams); err != nil {
			return nil, err
		}
		for _, tr := range tl.Tracks {
			r.rr.Tracks = append(r.rr.Tracks, tr.ID)
		}
		return map[string]any{
			"duration_ms": rec.DurationMs,
			"slides":      len(ov.Slides),
			"tracks":      len(tl.Tracks),
		}, nil
	})
	if err != nil {
		return err
	}

	err = r.phase("project", func() (map[string]any, error) {
		b, err := mlt.Encode(tl)
		if err != nil {
			return nil, err
		}
		name := planner.ProjectFileName(rec.MeetingName, pb.MeetingID)
		if err := fsx.WriteFileAtomicReplace(r.layout.Root, name, b); err != nil {
			return nil, &domain.FSError{Op: "写入工程文件", Path: filepath.Join(r.layout.Root, name), Err: err}
		}
		r.rr.Project = name
		return map[string]any{"file": name, "bytes": len(b)}, nil
	})
	if err != nil {
		return err
	}

	if !r.eff.OutDirSet {
		dst := filepath.Join(cwd, planner.SanitizeName(rec.MeetingName, pb.MeetingID))
		if dst != r.layout.Root {
			err := r.phase("rename", func() (map[string]any, error) {
				if err := fsx.MoveDir(r.layout.Root, dst); err != nil {
					return nil, &domain.FSError{Op: "重命名输出目录", Path: dst, Err: err}
				}
				r.layout = planner.NewLayout(dst)
				r.rr.OutDir = r.layout.Root
				return map[string]any{"dir": dst}, nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runner) phase(name string, fn func() (map[string]any, error)) error {
	started := time.Now()
	fields, err := fn()
	dur := time.Since(started)
	if err != nil {
		r.log.WithField("phase", name).Errorf("阶段失败：%v", err)
		return err
	}
	r.log.WithFields(logrus.Fields{"phase": name, "dur": dur}).Info("阶段完成")
	if r.obs != nil {
		r.obs.OnPhaseDone(name, fields, dur)
	}
	return nil
}

// setup 清空输出目录并创建各类别子目录。
func (r *runner) setup(root string) (map[string]any, error) {
	r.layout = planner.NewLayout(root)
	r.rr.OutDir = r.layout.Root
	if err := fsx.EmptyDir(r.layout.Root); err != nil {
		return nil, &domain.FSError{Op: "清空输出目录", Path: r.layout.Root, Err: err}
	}
	for _, d := range r.layout.Dirs() {
		if err := fsx.EnsureDir(d); err != nil {
			return nil, &domain.FSError{Op: "创建目录", Path: d, Err: err}
		}
	}
	r.prepared = true
	return map[string]any{"dir": r.layout.Root}, nil
}

func (r *runner) setupFetcher() error {
	c := r.opts.Client
	if c == nil {
		var err error
		if c, err = httpx.NewAssetClient(r.eff.ProxyURL); err != nil {
			return &config.Error{Code: config.ErrCodeInvalid, Path: "proxy.url", Err: err}
		}
	}
	f := fetch.New(c)
	f.MaxRetries = r.eff.MaxRetries
	f.RetryDelay = r.eff.RetryDelay
	f.Log = r.log
	r.fetcher = f
	r.assets = map[string]string{}
	return nil
}

// fetchGroup 串行下载一组 URL；单个失败只记入报告。ctx 取消时返回其错误。
func (r *runner) fetchGroup(g planner.Group) error {
	if len(g.URLs) == 0 {
		if r.obs != nil {
			r.obs.OnPhaseDone(g.Name, map[string]any{"files": 0}, 0)
		}
		return nil
	}

	var failed int
	r.fetcher.OnError = func(rawURL string, err error) {
		failed++
		r.log.WithFields(logrus.Fields{"group": g.Name, "url": rawURL}).Warnf("跳过该文件：%v", err)
	}
	r.fetcher.Reporter = nil
	if r.obs != nil {
		r.fetcher.Reporter = &groupReporter{obs: r.obs, group: g.Name, total: len(g.URLs)}
	}

	return r.phase(g.Name, func() (map[string]any, error) {
		results := r.fetcher.FetchAll(r.ctx, g.URLs, r.layout.Dir(g), r.eff.ConflictPolicy)
		var downloaded, skipped int
		for _, res := range results {
			r.record(g, res)
			switch res.Status {
			case domain.FileStatusDownloaded:
				downloaded++
			case domain.FileStatusSkipped:
				skipped++
			}
		}
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]any{
			"files":      len(g.URLs),
			"downloaded": downloaded,
			"skipped":    skipped,
			"failed":     failed,
		}, nil
	})
}

func (r *runner) record(g planner.Group, res fetch.Result) {
	fr := domain.FileResult{Group: g.SubDir, URL: res.URL, Status: res.Status}
	if res.Path != "" {
		if rel, err := filepath.Rel(r.layout.Root, res.Path); err == nil {
			fr.Path = filepath.ToSlash(rel)
		}
	}
	if res.Err != nil {
		fr.Error = res.Err.Error()
	}
	if res.OK() {
		r.assets[res.URL] = res.Path
	}
	r.rr.Files = append(r.rr.Files, fr)
}

// asset 返回 data 组中文档的本地路径（仅当下载成功或按策略保留了已有文件）。
func (r *runner) asset(doc string) (string, bool) {
	p, ok := r.assets[r.pb.AssetURL(doc)]
	return p, ok
}

// exportNotes 把 notes.html 转为 notes.txt；失败只记日志。
func (r *runner) exportNotes() {
	path, ok := r.asset("notes.html")
	if !ok {
		return
	}
	started := time.Now()
	b, err := os.ReadFile(path)
	if err == nil {
		var text string
		if text, err = notes.ExtractText(b); err == nil && text != "" {
			err = fsx.WriteFileAtomicReplace(r.layout.Root, notes.FileName, []byte(text))
		}
		if err == nil && r.obs != nil {
			r.obs.OnPhaseDone("notes", map[string]any{"chars": len([]rune(text))}, time.Since(started))
		}
	}
	if err != nil {
		r.log.Warnf("导出共享笔记失败：%v", err)
	}
}

func (r *runner) finish(err error) {
	if err != nil {
		r.rr.Fail(err)
		if r.rr.ErrorCode == "" {
			r.rr.ErrorCode = config.Code(err)
		}
	}
	r.rr.FinishedAt = time.Now().UTC()
	r.rr.Finalize()

	if !r.prepared {
		return
	}
	b, mErr := json.MarshalIndent(r.rr, "", "  ")
	if mErr == nil {
		mErr = fsx.WriteFileAtomicReplace(r.layout.Root, ReportFileName, append(b, '\n'))
	}
	if mErr != nil {
		r.log.WithField("dir", r.layout.Root).Warnf("写入 %s 失败：%v", ReportFileName, mErr)
	}
}
