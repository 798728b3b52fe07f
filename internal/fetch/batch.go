package fetch

import (
	"context"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// FetchAll 严格串行地把 urls 下载到 dir：同一时刻只有一个请求在途，前一个结束才开始下一个。
//
// 单个 URL 的失败不会中断批次；结果与输入一一对应、顺序一致。
// ctx 取消后不再开始新的下载，返回已完成部分。
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, dir string, policy domain.ConflictPolicy) []Result {
	out := make([]Result, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		out = append(out, f.Fetch(ctx, u, dir, policy))
	}
	return out
}
