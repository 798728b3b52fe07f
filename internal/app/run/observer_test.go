package run

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/fetch"
)

type recordObserver struct {
	startCalls int
	phases     []string
	files      map[string]int
	progress   int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, pb domain.PlaybackURL) {
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnProgress(group string, p fetch.Progress) {
	o.progress++
}

func (o *recordObserver) OnFileDone(group string, idx, total int, res fetch.Result) {
	if o.files == nil {
		o.files = map[string]int{}
	}
	o.files[group]++
	if idx > total {
		panic("idx 超出 total")
	}
}

func TestExecuteWithObserver_EmitsPhaseAndFileEvents(t *testing.T) {
	_, srv := newFakeBBB(t, map[string]string{
		"metadata.xml":       metadataXML,
		"video/webcams.webm": "w",
	})
	obs := &recordObserver{}

	_, err := ExecuteWithObserver(context.Background(), testConfig(srv), Options{Client: srv.Client(), Cwd: t.TempDir()}, obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{"setup", "data", "videos", "timeline", "project", "rename"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段顺序期望 %v，实际 %v", wantPhases, obs.phases)
	}
	if obs.files["data"] != 11 || obs.files["videos"] != 3 {
		t.Fatalf("文件事件数不符合预期：%v", obs.files)
	}
	if obs.progress == 0 {
		t.Fatalf("期望至少一个进度事件")
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	_, srv := newFakeBBB(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr, err := Execute(ctx, testConfig(srv), Options{Client: srv.Client(), Cwd: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if rr.Status != domain.StatusFailed {
		t.Fatalf("期望 failed，实际 %s", rr.Status)
	}
}
