package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// PlaybackURL 是一次录制回放的唯一入口（形如 <base>/playback/presentation/2.3/<meeting-id>）。
//
// 约束：要么得到唯一 MeetingID，要么失败；不做“猜测式”修正。
type PlaybackURL struct {
	BaseURL   string
	MeetingID string
}

var playbackRE = regexp.MustCompile(`(?i)^(https?://.*)/playback/presentation/2\.3/([a-f0-9]{40}-[0-9]{13})`)

// ParsePlaybackURL 校验并解析回放 URL。失败返回 *InputError。
func ParsePlaybackURL(raw string) (PlaybackURL, error) {
	s := strings.TrimSpace(raw)
	m := playbackRE.FindStringSubmatch(s)
	if m == nil || m[1] == "" || m[2] == "" {
		return PlaybackURL{}, &InputError{Input: raw, Reason: "URL 无效或回放版本不受支持（仅支持 presentation/2.3）"}
	}
	return PlaybackURL{BaseURL: m[1], MeetingID: m[2]}, nil
}

// PrefixURL 返回所有派生资源共享的前缀：<base>/presentation/<meeting-id>。
func (p PlaybackURL) PrefixURL() string {
	return fmt.Sprintf("%s/presentation/%s", p.BaseURL, p.MeetingID)
}

// AssetURL 把相对路径（如 "video/webcams.webm"）拼到 PrefixURL 之后。
func (p PlaybackURL) AssetURL(rel string) string {
	return p.PrefixURL() + "/" + strings.TrimLeft(rel, "/")
}
