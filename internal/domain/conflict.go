package domain

import (
	"fmt"
	"strings"
)

// ConflictPolicy 决定目标路径已有同名文件时的处理方式。
// 每次 Fetch 调用只生效一个策略；批次之间可以切换。
type ConflictPolicy int

const (
	// MakeUnique 同名时改用不冲突的新文件名，永不覆盖。
	MakeUnique ConflictPolicy = iota
	// Overwrite 无条件覆盖。
	Overwrite
	// Skip 同名即放弃（不报错、不触碰已有文件）。
	Skip
	// SkipUnlessSmaller 已有文件 >= 远端大小则放弃，否则覆盖。
	SkipUnlessSmaller
)

func (p ConflictPolicy) String() string {
	switch p {
	case MakeUnique:
		return "make_unique"
	case Overwrite:
		return "overwrite"
	case Skip:
		return "skip"
	case SkipUnlessSmaller:
		return "skip_unless_smaller"
	default:
		return fmt.Sprintf("ConflictPolicy(%d)", int(p))
	}
}

// ParseConflictPolicy 解析配置文件中的策略名（大小写不敏感，允许 '-' 代替 '_'）。
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	switch v {
	case "make_unique":
		return MakeUnique, nil
	case "overwrite":
		return Overwrite, nil
	case "skip":
		return Skip, nil
	case "skip_unless_smaller":
		return SkipUnlessSmaller, nil
	default:
		return 0, fmt.Errorf("conflict_policy 只能是 make_unique|overwrite|skip|skip_unless_smaller，实际是 %q", s)
	}
}
