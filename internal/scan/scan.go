package scan

import (
	"os"
	"path"
	"path/filepath"

	"github.com/John-Robertt/bbbdl/internal/domain"
	"github.com/John-Robertt/bbbdl/internal/infra/fsx"
)

// VideosDir 是输出目录下存放媒体流的子目录名。
const VideosDir = "videos"

// 候选文件按优先级排列：webcam 先找 webm，再回退 mp4。
var (
	webcamCandidates    = []string{"webcams.webm", "webcams.mp4"}
	deskShareCandidates = []string{"deskshare.webm"}
)

// ProbeStreams 检查 <root>/videos 下实际存在的媒体流。
//
// 规则（硬约束）：
// - 只做 stat，不读文件内容，也不校验媒体格式
// - 只认普通文件；同名目录视为不存在
// - 返回的路径相对 root，使用 "/" 分隔（直接写入工程文件）
func ProbeStreams(root string) (domain.StreamSet, error) {
	dir := filepath.Join(filepath.Clean(root), VideosDir)
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StreamSet{}, nil
		}
		return domain.StreamSet{}, err
	}
	if !fi.IsDir() {
		return domain.StreamSet{}, &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}

	webcam, err := firstPresent(dir, webcamCandidates)
	if err != nil {
		return domain.StreamSet{}, err
	}
	desk, err := firstPresent(dir, deskShareCandidates)
	if err != nil {
		return domain.StreamSet{}, err
	}
	return domain.StreamSet{Webcam: webcam, DeskShare: desk}, nil
}

func firstPresent(dir string, names []string) (string, error) {
	for _, name := range names {
		_, ok, err := fsx.RegularFileSize(filepath.Join(dir, name))
		if fsx.IsPathTypeConflict(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if ok {
			return path.Join(VideosDir, name), nil
		}
	}
	return "", nil
}
