package run

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/bbbdl/internal/config"
	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/mlt"
)

const testMeetingID = "0123456789abcdef0123456789abcdef01234567-1600000000000"

const metadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<recording>
  <id>` + testMeetingID + `</id>
  <meta><meetingName>Physics 101</meetingName></meta>
  <playback><format>presentation</format><duration>10000</duration></playback>
</recording>`

const deskshareOnlySVG = `<svg xmlns:xlink="http://www.w3.org/1999/xlink">
  <image in="0" out="10" xlink:href="presentation/deskshare.png" width="1280" height="720"/>
</svg>`

// fakeBBB 模拟录制服务器：只响应 files 中的路径，其余返回 404。
type fakeBBB struct {
	mu    sync.Mutex
	files map[string]string
	hits  map[string]int
}

func newFakeBBB(t *testing.T, files map[string]string) (*fakeBBB, *httptest.Server) {
	t.Helper()
	f := &fakeBBB{files: map[string]string{}, hits: map[string]int{}}
	for k, v := range files {
		f.files["/presentation/"+testMeetingID+"/"+k] = v
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		body, ok := f.files[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func testConfig(srv *httptest.Server) config.EffectiveConfig {
	return config.EffectiveConfig{
		URL:            srv.URL + "/playback/presentation/2.3/" + testMeetingID,
		ConflictPolicy: domain.Overwrite,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}
}

func TestExecute_DeskShareNoSlides(t *testing.T) {
	_, srv := newFakeBBB(t, map[string]string{
		"metadata.xml":             metadataXML,
		"shapes.svg":               deskshareOnlySVG,
		"notes.html":               `<html><body>hello<br>world</body></html>`,
		"video/webcams.webm":       "webcam-bytes",
		"deskshare/deskshare.webm": "deskshare-bytes",
	})
	cwd := t.TempDir()

	rr, err := Execute(context.Background(), testConfig(srv), Options{Client: srv.Client(), Cwd: cwd})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rr.Status != domain.StatusOK || rr.MeetingName != "Physics 101" {
		t.Fatalf("报告不符合预期：%+v", rr)
	}

	// 未指定 outdir：输出目录从 <meeting-id> 重命名为会议名。
	outDir := filepath.Join(cwd, "Physics 101")
	if rr.OutDir != outDir {
		t.Fatalf("期望 out_dir=%q，实际=%q", outDir, rr.OutDir)
	}
	if _, err := os.Stat(filepath.Join(cwd, testMeetingID)); !os.IsNotExist(err) {
		t.Fatalf("期望原目录已被重命名，Stat err=%v", err)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "Physics 101.mlt"))
	if err != nil {
		t.Fatalf("读取工程文件失败：%v", err)
	}
	tl, err := mlt.Decode(b)
	if err != nil {
		t.Fatalf("解析工程文件失败：%v", err)
	}
	if len(tl.Tracks) != 2 {
		t.Fatalf("期望 2 条轨道，实际 %d", len(tl.Tracks))
	}
	wantKinds := []domain.TrackKind{domain.TrackDeskShare, domain.TrackAudio}
	for i, tr := range tl.Tracks {
		if tr.Kind != wantKinds[i] {
			t.Fatalf("轨道 %d 期望 %v，实际 %v", i, wantKinds[i], tr.Kind)
		}
		if len(tr.Entries) != 1 || tr.Entries[0].Blank || tr.DurationMs() != 10000 {
			t.Fatalf("轨道 %s 期望单个 10000ms 片段，实际 %+v", tr.ID, tr.Entries)
		}
	}
	if strings.Join(rr.Tracks, ",") != "deskshare_video,webcam_audio" {
		t.Fatalf("tracks 不符合预期：%v", rr.Tracks)
	}

	for _, rel := range []string{"videos/webcams.webm", "videos/deskshare.webm", "data/metadata.xml", "notes.txt", ReportFileName} {
		if _, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("期望存在 %s：%v", rel, err)
		}
	}
	notesText, _ := os.ReadFile(filepath.Join(outDir, "notes.txt"))
	if string(notesText) != "hello\nworld\n" {
		t.Fatalf("notes.txt 不符合预期：%q", notesText)
	}

	// 11 个 data 文档中只有 3 个存在；webcams.mp4 不存在。
	if rr.Summary.Downloaded != 5 || rr.Summary.Failed != 9 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}

	var onDisk domain.RunReport
	rb, err := os.ReadFile(filepath.Join(outDir, ReportFileName))
	if err != nil {
		t.Fatalf("读取报告失败：%v", err)
	}
	if err := json.Unmarshal(rb, &onDisk); err != nil {
		t.Fatalf("报告不是合法 JSON：%v", err)
	}
	if onDisk.Project != "Physics 101.mlt" || onDisk.Summary != rr.Summary {
		t.Fatalf("磁盘报告与返回值不一致：%+v", onDisk)
	}
}

func TestExecute_SlidesAndExplicitOutDir(t *testing.T) {
	shapes := `<svg xmlns:xlink="http://www.w3.org/1999/xlink">
  <image in="1.125" out="12.5" xlink:href="presentation/p1/slide-1.png" width="1600" height="900" text="presentation/p1/textfiles/slide-1.txt"/>
  <image in="12.5" out="20" xlink:href="presentation/p1/slide-2.png" width="1600" height="900" text="presentation/p1/textfiles/slide-2.txt"/>
</svg>`
	fake, srv := newFakeBBB(t, map[string]string{
		"metadata.xml":                          metadataXML,
		"shapes.svg":                            shapes,
		"video/webcams.mp4":                     "mp4",
		"presentation/p1/slide-1.png":           "png1",
		"presentation/p1/slide-2.png":           "png2",
		"presentation/p1/textfiles/slide-1.txt": "text1",
	})
	out := filepath.Join(t.TempDir(), "out")
	eff := testConfig(srv)
	eff.OutDir, eff.OutDirSet = out, true

	rr, err := Execute(context.Background(), eff, Options{Client: srv.Client(), Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rr.OutDir != out {
		t.Fatalf("指定 outdir 时不应重命名：%q", rr.OutDir)
	}

	for _, rel := range []string{"slides/slide-1.png", "slides/slide-2.png", "textfiles/slide-1.txt", "videos/webcams.mp4", "Physics 101.mlt"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("期望存在 %s：%v", rel, err)
		}
	}
	if n := fake.hits["/presentation/"+testMeetingID+"/presentation/p1/textfiles/slide-2.txt"]; n != 1 {
		t.Fatalf("404 不应重试，实际请求 %d 次", n)
	}

	b, _ := os.ReadFile(filepath.Join(out, "Physics 101.mlt"))
	tl, err := mlt.Decode(b)
	if err != nil {
		t.Fatalf("解析工程文件失败：%v", err)
	}
	if len(tl.Tracks) != 2 || tl.Tracks[0].Kind != domain.TrackAudio || tl.Tracks[1].Kind != domain.TrackSlideshow {
		t.Fatalf("期望 audio + slideshow，实际 %+v", tl.Tracks)
	}
	want := []domain.Entry{
		domain.BlankEntry(1125),
		domain.ClipEntry("slide-1", 0, 11375),
		domain.ClipEntry("slide-2", 0, 7500),
	}
	got := tl.Tracks[1].Entries
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个片段，实际 %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("片段 %d 期望 %+v，实际 %+v", i, want[i], got[i])
		}
	}
}

func TestExecute_MissingWebcamIsFatal(t *testing.T) {
	_, srv := newFakeBBB(t, map[string]string{
		"metadata.xml":             metadataXML,
		"deskshare/deskshare.webm": "deskshare",
	})
	cwd := t.TempDir()

	rr, err := Execute(context.Background(), testConfig(srv), Options{Client: srv.Client(), Cwd: cwd})
	if err == nil {
		t.Fatalf("期望错误，实际为 nil")
	}
	if rr.Status != domain.StatusFailed || rr.ErrorCode != domain.ErrCodeMissingAsset {
		t.Fatalf("报告不符合预期：status=%s code=%s", rr.Status, rr.ErrorCode)
	}
	// 失败时不重命名，报告仍写入原输出目录。
	if _, err := os.Stat(filepath.Join(cwd, testMeetingID, ReportFileName)); err != nil {
		t.Fatalf("期望失败报告存在：%v", err)
	}
}

func TestExecute_MissingMetadataIsFatal(t *testing.T) {
	_, srv := newFakeBBB(t, map[string]string{"video/webcams.webm": "w"})

	rr, err := Execute(context.Background(), testConfig(srv), Options{Client: srv.Client(), Cwd: t.TempDir()})
	var me *domain.MissingAssetError
	if !errors.As(err, &me) || me.Asset != "data/metadata.xml" {
		t.Fatalf("期望 metadata 缺失错误，实际 %v", err)
	}
	if rr.ErrorCode != domain.ErrCodeMissingAsset {
		t.Fatalf("期望 error_code=%s，实际 %s", domain.ErrCodeMissingAsset, rr.ErrorCode)
	}
}

func TestExecute_InvalidURL(t *testing.T) {
	cwd := t.TempDir()
	rr, err := Execute(context.Background(), config.EffectiveConfig{URL: "https://example.com/playback/presentation/2.0/abc"}, Options{Cwd: cwd})
	if domain.ErrorCode(err) != domain.ErrCodeInvalidInput {
		t.Fatalf("期望 invalid_input，实际 %v", err)
	}
	if rr.ErrorCode != domain.ErrCodeInvalidInput {
		t.Fatalf("报告 error_code 不符合预期：%s", rr.ErrorCode)
	}
	entries, _ := os.ReadDir(cwd)
	if len(entries) != 0 {
		t.Fatalf("URL 非法时不应创建任何目录，实际 %d 项", len(entries))
	}
}

func TestExecute_RenameTargetExists(t *testing.T) {
	_, srv := newFakeBBB(t, map[string]string{
		"metadata.xml":       metadataXML,
		"video/webcams.webm": "w",
	})
	cwd := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cwd, "Physics 101"), 0o755); err != nil {
		t.Fatalf("mkdir：%v", err)
	}

	rr, err := Execute(context.Background(), testConfig(srv), Options{Client: srv.Client(), Cwd: cwd})
	if domain.ErrorCode(err) != domain.ErrCodeIOFailed {
		t.Fatalf("期望 io_failed，实际 %v", err)
	}
	if rr.OutDir != filepath.Join(cwd, testMeetingID) {
		t.Fatalf("重命名失败时 out_dir 应保持原目录：%q", rr.OutDir)
	}
	if _, err := os.Stat(filepath.Join(cwd, testMeetingID, "Physics 101.mlt")); err != nil {
		t.Fatalf("工程文件应已写入原目录：%v", err)
	}
}
