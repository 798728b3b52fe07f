package meta

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// ParseRecording 解析 metadata.xml。
//
// duration（毫秒）是必需字段；会议名按以下顺序回退：
// recording/meeting@name -> recording/meta/meetingName -> recording/meta/bbb-recording-name -> meetingID。
func ParseRecording(data []byte, meetingID string) (domain.RecordingMetadata, error) {
	root, err := parseTree(data)
	if err != nil {
		return domain.RecordingMetadata{}, &domain.ParseError{File: "metadata.xml", Err: err}
	}
	if root.Name != "recording" {
		return domain.RecordingMetadata{}, &domain.ParseError{
			File: "metadata.xml",
			Err:  errors.Errorf("根元素应为 <recording>，实际为 <%s>", root.Name),
		}
	}

	raw := root.child("playback").child("duration").text()
	if raw == "" {
		return domain.RecordingMetadata{}, &domain.MissingAssetError{Asset: "metadata.xml", Detail: "无法确定回放时长（playback/duration）"}
	}
	d, err := number(raw)
	if err != nil {
		return domain.RecordingMetadata{}, &domain.ParseError{File: "metadata.xml", Err: errors.Wrap(err, "playback/duration")}
	}
	durationMs := int64(d + 0.5)
	if durationMs <= 0 {
		return domain.RecordingMetadata{}, &domain.MissingAssetError{Asset: "metadata.xml", Detail: "回放时长必须为正数"}
	}

	return domain.RecordingMetadata{
		DurationMs:  durationMs,
		MeetingName: meetingName(root, meetingID),
		MeetingID:   meetingID,
	}, nil
}

func meetingName(root *node, meetingID string) string {
	if v, ok := root.child("meeting").attr("name"); ok {
		return v
	}
	m := root.child("meta")
	for _, key := range []string{"meetingName", "bbb-recording-name"} {
		if v := strings.TrimSpace(m.child(key).text()); v != "" {
			return v
		}
	}
	return meetingID
}
