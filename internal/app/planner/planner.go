package planner

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// 输出目录下的固定子目录；不同类别互不重叠，避免跨组文件名冲突。
const (
	DataDir      = "data"
	VideosDir    = "videos"
	SlidesDir    = "slides"
	TextFilesDir = "textfiles"
)

// dataDocs 是每次运行都会尝试下载的元数据文档（相对 <prefix>/）。
var dataDocs = []string{
	"presentation_text.json",
	"captions.json",
	"slides_new.xml",
	"cursor.xml",
	"metadata.xml",
	"panzooms.xml",
	"deskshare.xml",
	"notes.html",
	"polls.json",
	"external_videos.json",
	"shapes.svg",
}

// videoStreams 中 webcams.mp4 是 webcams.webm 的回退；两者都会尝试下载。
var videoStreams = []string{
	"video/webcams.webm",
	"video/webcams.mp4",
	"deskshare/deskshare.webm",
}

// Group 是同一目标子目录下按顺序下载的一批 URL。
type Group struct {
	Name   string
	SubDir string
	URLs   []string
}

// Layout 是一次运行的输出目录结构（绝对路径）。
type Layout struct {
	Root      string
	Data      string
	Videos    string
	Slides    string
	TextFiles string
}

// NewLayout 以 root 为输出目录构造 Layout（不做任何写入）。
func NewLayout(root string) Layout {
	root = filepath.Clean(root)
	return Layout{
		Root:      root,
		Data:      filepath.Join(root, DataDir),
		Videos:    filepath.Join(root, VideosDir),
		Slides:    filepath.Join(root, SlidesDir),
		TextFiles: filepath.Join(root, TextFilesDir),
	}
}

// Dirs 返回需要预先创建的子目录，顺序固定。
func (l Layout) Dirs() []string {
	return []string{l.Data, l.Videos, l.Slides, l.TextFiles}
}

// Dir 把组的 SubDir 映射到绝对路径。
func (l Layout) Dir(g Group) string {
	return filepath.Join(l.Root, g.SubDir)
}

// Plan 生成固定的两组下载：data 文档与 videos 媒体流。
// 幻灯片与文本层要等 shapes.svg 解析后由 OverlayGroups 生成。
func Plan(pb domain.PlaybackURL) []Group {
	return []Group{
		{Name: "data", SubDir: DataDir, URLs: assetURLs(pb, dataDocs)},
		{Name: "videos", SubDir: VideosDir, URLs: assetURLs(pb, videoStreams)},
	}
}

// OverlayGroups 生成幻灯片图片组与文本层组；URL 已由解析层去重。
func OverlayGroups(imageURLs, textURLs []string) []Group {
	return []Group{
		{Name: "slides", SubDir: SlidesDir, URLs: append([]string(nil), imageURLs...)},
		{Name: "textfiles", SubDir: TextFilesDir, URLs: append([]string(nil), textURLs...)},
	}
}

func assetURLs(pb domain.PlaybackURL, rels []string) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, pb.AssetURL(r))
	}
	return out
}

// SanitizeName 把会议名转换为可用作文件/目录名的字符串。
//
// 规则：
// - 路径分隔符与控制字符替换为 "_"
// - 去掉首尾空白与结尾的 "."
// - 结果为空、"." 或 ".." 时回退到 fallback
func SanitizeName(name, fallback string) string {
	s := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".")
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}

// ProjectFileName 返回 <name>.mlt。
func ProjectFileName(meetingName, meetingID string) string {
	return SanitizeName(meetingName, meetingID) + ".mlt"
}
