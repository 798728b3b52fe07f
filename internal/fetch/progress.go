package fetch

import (
	"io"
	"time"
)

// Progress 是单个文件的下载进度快照。
type Progress struct {
	Name string
	URL  string

	Done  int64
	Total int64 // -1 表示远端未声明大小

	// Fraction 取值 [0,1]；Total 未知时为 0。
	Fraction float64
	// ETA 为预计剩余时间；无法估计时为 -1。
	ETA time.Duration
}

// progressReader 在读取过程中按节流间隔上报进度；读到 EOF 时一定上报最终值。
type progressReader struct {
	r     io.Reader
	base  Progress
	every time.Duration
	now   func() time.Time
	emit  func(Progress)

	started time.Time
	last    time.Time
	done    int64
	final   bool
}

func newProgressReader(r io.Reader, base Progress, every time.Duration, now func() time.Time, emit func(Progress)) *progressReader {
	t := now()
	pr := &progressReader{r: r, base: base, every: every, now: now, emit: emit, started: t, last: t}
	pr.report()
	return pr
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += int64(n)
	if err == io.EOF {
		if !p.final {
			p.final = true
			p.report()
		}
		return n, err
	}
	if n > 0 && p.now().Sub(p.last) >= p.every {
		p.report()
	}
	return n, err
}

func (p *progressReader) report() {
	if p.emit == nil {
		return
	}
	now := p.now()
	p.last = now
	p.emit(snapshot(p.base, p.done, now.Sub(p.started)))
}

func snapshot(base Progress, done int64, elapsed time.Duration) Progress {
	out := base
	out.Done = done
	out.ETA = -1
	if out.Total > 0 {
		out.Fraction = float64(done) / float64(out.Total)
		if out.Fraction > 1 {
			out.Fraction = 1
		}
		if done > 0 && done <= out.Total {
			remain := float64(out.Total-done) / float64(done)
			out.ETA = time.Duration(float64(elapsed) * remain)
		}
	}
	return out
}
