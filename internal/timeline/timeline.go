// Package timeline 把录制元数据与磁盘上的媒体流组装成多轨时间线。
package timeline

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// 轨道与 producer 的固定标识；序列化层按原样写入工程文件。
const (
	DeskShareProducerID = "deskshare"
	WebcamProducerID    = "webcam"

	DeskShareTrackID = "deskshare_video"
	AudioTrackID     = "webcam_audio"
	SlidesTrackID    = "slides"

	DeskShareTrackName = "Deskshare"
	AudioTrackName     = "Webcam Audio"
	SlidesTrackName    = "Slides"
)

// Assemble 生成时间线：DeskShare（可选）-> Audio（必需）-> Slideshow（有幻灯片时）。
//
// 幻灯片先按 InMs 稳定排序，再用游标补空白：
// - InMs > 游标：先插入长度为差值的 Blank
// - InMs < 游标（与上一张重叠）：从游标处截断；完全被覆盖的丢弃
// - Clip 的 in/out 是相对时长 [0, OutMs-起点)
func Assemble(rec domain.RecordingMetadata, slides []domain.SlideRecord, streams domain.StreamSet) (domain.Timeline, error) {
	if rec.DurationMs <= 0 {
		return domain.Timeline{}, &domain.MissingAssetError{Asset: "metadata.xml", Detail: "回放时长必须为正数"}
	}
	if streams.Webcam == "" {
		return domain.Timeline{}, &domain.MissingAssetError{
			Asset:  "videos/webcams.webm",
			Detail: "也未找到 videos/webcams.mp4",
		}
	}

	var tl domain.Timeline

	if streams.DeskShare != "" {
		tl.Producers = append(tl.Producers, domain.Producer{ID: DeskShareProducerID, Resource: streams.DeskShare, Kind: domain.ProducerVideo})
		tl.Tracks = append(tl.Tracks, domain.Track{
			ID:      DeskShareTrackID,
			Name:    DeskShareTrackName,
			Kind:    domain.TrackDeskShare,
			Entries: []domain.Entry{domain.ClipEntry(DeskShareProducerID, 0, rec.DurationMs)},
		})
	}

	tl.Producers = append(tl.Producers, domain.Producer{ID: WebcamProducerID, Resource: streams.Webcam, Kind: domain.ProducerAudio})
	tl.Tracks = append(tl.Tracks, domain.Track{
		ID:      AudioTrackID,
		Name:    AudioTrackName,
		Kind:    domain.TrackAudio,
		Entries: []domain.Entry{domain.ClipEntry(WebcamProducerID, 0, rec.DurationMs)},
	})

	if len(slides) > 0 {
		producers, track, err := slideshow(slides)
		if err != nil {
			return domain.Timeline{}, err
		}
		if len(track.Entries) > 0 {
			tl.Producers = append(tl.Producers, producers...)
			tl.Tracks = append(tl.Tracks, track)
		}
	}
	return tl, nil
}

func slideshow(slides []domain.SlideRecord) ([]domain.Producer, domain.Track, error) {
	ordered := make([]domain.SlideRecord, len(slides))
	copy(ordered, slides)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].InMs < ordered[j].InMs })

	track := domain.Track{ID: SlidesTrackID, Name: SlidesTrackName, Kind: domain.TrackSlideshow}
	var producers []domain.Producer
	seen := map[string]string{}

	var cursor int64
	for _, s := range ordered {
		if s.ID == "" || s.File == "" {
			return nil, domain.Track{}, errors.Errorf("幻灯片记录缺少 id 或文件：%+v", s)
		}
		if s.InMs < 0 || s.OutMs <= s.InMs {
			return nil, domain.Track{}, errors.Errorf("幻灯片 %s 区间非法：[%d, %d)", s.ID, s.InMs, s.OutMs)
		}
		if s.OutMs <= cursor {
			continue
		}
		id := slideProducerID(s.ID)
		if file, ok := seen[id]; ok && file != s.File {
			return nil, domain.Track{}, &domain.ParseError{
				File: "shapes.svg",
				Err:  errors.Errorf("幻灯片 id 冲突：%s 同时指向 %s 与 %s", id, file, s.File),
			}
		} else if !ok {
			seen[id] = s.File
			producers = append(producers, domain.Producer{ID: id, Resource: s.File, Kind: domain.ProducerImage})
		}

		start := s.InMs
		if start > cursor {
			track.Entries = append(track.Entries, domain.BlankEntry(start-cursor))
		} else {
			start = cursor
		}
		track.Entries = append(track.Entries, domain.ClipEntry(id, 0, s.OutMs-start))
		cursor = s.OutMs
	}
	return producers, track, nil
}

// slideProducerID 避开媒体流占用的固定 producer id（例如名为 webcam.png 的幻灯片）。
func slideProducerID(id string) string {
	switch id {
	case WebcamProducerID, DeskShareProducerID:
		return SlidesTrackID + "_" + id
	}
	return id
}
