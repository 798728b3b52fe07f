package fetch

import (
	"github.com/John-Robertt/bbbdl/internal/domain"
)

// action 是冲突策略对“目标已存在”给出的处理结论。
type action int

const (
	actReplace action = iota // 覆盖同名文件
	actRename                // 改用不冲突的新文件名
	actSkip                  // 放弃本次下载（视为成功）
)

func (a action) String() string {
	switch a {
	case actReplace:
		return "replace"
	case actRename:
		return "rename"
	case actSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// conflictRule 是单个策略的解析函数。
//
// needSize=true 表示结论依赖远端大小，必须在拿到响应头之后再调用 resolve；
// 否则在发请求之前就能决定（Skip 因此不会产生任何网络请求）。
type conflictRule struct {
	needSize bool
	// resolve 只在目标已存在时调用。incoming<0 表示远端未声明大小。
	resolve func(existing, incoming int64) action
}

var conflictRules = map[domain.ConflictPolicy]conflictRule{
	domain.MakeUnique: {
		resolve: func(_, _ int64) action { return actRename },
	},
	domain.Overwrite: {
		resolve: func(_, _ int64) action { return actReplace },
	},
	domain.Skip: {
		resolve: func(_, _ int64) action { return actSkip },
	},
	domain.SkipUnlessSmaller: {
		needSize: true,
		resolve: func(existing, incoming int64) action {
			// 相等也跳过；远端大小未知时无法比较，按覆盖处理。
			if incoming >= 0 && existing >= incoming {
				return actSkip
			}
			return actReplace
		},
	},
}

func ruleFor(p domain.ConflictPolicy) (conflictRule, bool) {
	r, ok := conflictRules[p]
	return r, ok
}
