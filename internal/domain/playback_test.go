package domain

import (
	"errors"
	"testing"
)

const testMeetingID = "0123456789abcdef0123456789abcdef01234567-1600000000000"

func TestParsePlaybackURL_OK(t *testing.T) {
	p, err := ParsePlaybackURL("https://bbb.example.com/playback/presentation/2.3/" + testMeetingID)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.BaseURL != "https://bbb.example.com" {
		t.Fatalf("base url 不一致：%q", p.BaseURL)
	}
	if p.MeetingID != testMeetingID {
		t.Fatalf("meeting id 不一致：%q", p.MeetingID)
	}
	if got := p.AssetURL("video/webcams.webm"); got != "https://bbb.example.com/presentation/"+testMeetingID+"/video/webcams.webm" {
		t.Fatalf("asset url 不一致：%q", got)
	}
}

func TestParsePlaybackURL_HexIsCaseInsensitive(t *testing.T) {
	id := "0123456789ABCDEF0123456789ABCDEF01234567-1600000000000"
	p, err := ParsePlaybackURL("http://h/sub/playback/presentation/2.3/" + id + "?t=1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.BaseURL != "http://h/sub" || p.MeetingID != id {
		t.Fatalf("解析结果不一致：%+v", p)
	}
}

func TestParsePlaybackURL_Invalid(t *testing.T) {
	cases := []string{
		"",
		"ftp://h/playback/presentation/2.3/" + testMeetingID,
		"https://h/playback/presentation/2.0/" + testMeetingID,
		"https://h/playback/presentation/2.3/0123-1600000000000",
		"https://h/playback/presentation/2.3/0123456789abcdef0123456789abcdef01234567-16000",
	}
	for _, c := range cases {
		_, err := ParsePlaybackURL(c)
		var ie *InputError
		if !errors.As(err, &ie) {
			t.Fatalf("%q：期望 *InputError，实际 %T %v", c, err, err)
		}
		if ErrorCode(err) != ErrCodeInvalidInput {
			t.Fatalf("%q：error_code 不一致：%q", c, ErrorCode(err))
		}
	}
}

func TestParseConflictPolicy(t *testing.T) {
	for in, want := range map[string]ConflictPolicy{
		"make_unique":         MakeUnique,
		"OVERWRITE":           Overwrite,
		"skip":                Skip,
		"skip-unless-smaller": SkipUnlessSmaller,
	} {
		got, err := ParseConflictPolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q：期望 %v，实际 %v err=%v", in, want, got, err)
		}
		if back, _ := ParseConflictPolicy(got.String()); back != got {
			t.Fatalf("String() 无法回解析：%q", got.String())
		}
	}
	if _, err := ParseConflictPolicy("replace"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
