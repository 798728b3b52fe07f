package domain

// ProducerKind 区分 producer 引用的资源类型，决定序列化时的 service 与流索引。
type ProducerKind int

const (
	// ProducerVideo 只取视频流（audio_index=-1）。
	ProducerVideo ProducerKind = iota
	// ProducerAudio 只取音频流（video_index=-1）。
	ProducerAudio
	// ProducerImage 静态图片。
	ProducerImage
)

// Producer 是工程文件中对单个媒体/图片资源的命名引用。
type Producer struct {
	ID       string
	Resource string // 相对输出目录
	Kind     ProducerKind
}

// TrackKind 是封闭的轨道类型集合。
type TrackKind int

const (
	TrackDeskShare TrackKind = iota
	TrackAudio
	TrackSlideshow
)

func (k TrackKind) String() string {
	switch k {
	case TrackDeskShare:
		return "deskshare"
	case TrackAudio:
		return "audio"
	case TrackSlideshow:
		return "slideshow"
	default:
		return "unknown"
	}
}

// Entry 是轨道上的一个片段：Blank（占位空白）或 Clip（引用 producer 的 [InMs, OutMs)）。
type Entry struct {
	Blank    bool
	LengthMs int64 // 仅 Blank

	Producer string // 仅 Clip
	InMs     int64
	OutMs    int64
}

// BlankEntry 构造一个空白片段。
func BlankEntry(lengthMs int64) Entry {
	return Entry{Blank: true, LengthMs: lengthMs}
}

// ClipEntry 构造一个引用 producer 的片段。
func ClipEntry(producer string, inMs, outMs int64) Entry {
	return Entry{Producer: producer, InMs: inMs, OutMs: outMs}
}

// DurationMs 返回片段在轨道上占用的时长。
func (e Entry) DurationMs() int64 {
	if e.Blank {
		return e.LengthMs
	}
	return e.OutMs - e.InMs
}

// Track 是一条音频或视频轨道。ID/Name 对应工程文件中的 playlist id 与显示名。
type Track struct {
	ID      string
	Name    string
	Kind    TrackKind
	Entries []Entry
}

// DurationMs 是轨道所有片段时长之和。
func (t Track) DurationMs() int64 {
	var sum int64
	for _, e := range t.Entries {
		sum += e.DurationMs()
	}
	return sum
}

// Timeline 是交给序列化边界的唯一产物。
// Tracks 顺序固定：DeskShare -> Audio -> Slideshow（存在者才出现）。
type Timeline struct {
	Producers []Producer
	Tracks    []Track
}

// Track 按类型查找轨道。
func (t Timeline) Track(kind TrackKind) (Track, bool) {
	for _, tr := range t.Tracks {
		if tr.Kind == kind {
			return tr, true
		}
	}
	return Track{}, false
}
