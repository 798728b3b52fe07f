package mlt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FormatTimecode 把毫秒格式化为 HH:MM:SS.mmm。小时不按 24 取模。
func FormatTimecode(ms int64) string {
	neg := ms < 0
	if neg {
		ms = -ms
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	f := ms % 1000
	out := fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, f)
	if neg {
		return "-" + out
	}
	return out
}

// ParseTimecode 解析 HH:MM:SS[.fff]（小数部分最多 3 位有效）。
func ParseTimecode(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, errors.Errorf("时间码格式应为 HH:MM:SS.mmm：%q", s)
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || h < 0 {
		return 0, errors.Errorf("时间码小时无效：%q", s)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m < 0 || m > 59 {
		return 0, errors.Errorf("时间码分钟无效：%q", s)
	}

	secPart, fracPart, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 || sec > 59 {
		return 0, errors.Errorf("时间码秒无效：%q", s)
	}
	var ms int64
	if fracPart != "" {
		if len(fracPart) > 3 {
			fracPart = fracPart[:3]
		}
		for len(fracPart) < 3 {
			fracPart += "0"
		}
		ms, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil || ms < 0 {
			return 0, errors.Errorf("时间码毫秒无效：%q", s)
		}
	}
	return h*3_600_000 + m*60_000 + sec*1000 + ms, nil
}
