package domain

// SlideRecord 描述一张幻灯片图片在回放中的显示区间。
//
// 不变量（由解析层保证）：
// - InMs >= 0，OutMs > InMs
// - Width/Height > 0
// - File 为相对输出目录的路径（例如 "slides/slide-1.png"）
type SlideRecord struct {
	ID     string
	File   string
	InMs   int64
	OutMs  int64
	Width  float64
	Height float64
}

// DurationMs 返回幻灯片的屏上时长。
func (s SlideRecord) DurationMs() int64 { return s.OutMs - s.InMs }

// RecordingMetadata 来自 metadata.xml；解析后不再修改。
type RecordingMetadata struct {
	DurationMs  int64
	MeetingName string
	MeetingID   string
}

// StreamSet 描述 videos/ 下实际存在的媒体流（只做 stat）。
// 字段为相对输出目录的路径；空串表示不存在。
type StreamSet struct {
	Webcam    string
	DeskShare string
}
