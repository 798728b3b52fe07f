package run

import (
	"time"

	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/fetch"
)

// Observer 用于把“运行进度/阶段/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 下载严格串行，事件来自调用 Execute 的 goroutine。
type Observer interface {
	// OnStart 在 URL 校验通过后立刻调用。
	OnStart(eff config.EffectiveConfig, pb domain.PlaybackURL)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 转发单个文件的下载进度（已按 fetch 层的间隔节流）。
	OnProgress(group string, p fetch.Progress)
	// OnFileDone 在组内第 idx 个（从 1 开始）文件结束时调用。
	OnFileDone(group string, idx, total int, res fetch.Result)
}

// groupReporter 把 fetch.Reporter 事件转成带组信息的 Observer 事件。
type groupReporter struct {
	obs   Observer
	group string
	total int
	done  int
}

func (r *groupReporter) OnProgress(p fetch.Progress) {
	r.obs.OnProgress(r.group, p)
}

func (r *groupReporter) OnResult(res fetch.Result) {
	r.done++
	r.obs.OnFileDone(r.group, r.done, r.total, res)
}
