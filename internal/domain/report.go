package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	FileStatusDownloaded = "downloaded"
	FileStatusSkipped    = "skipped"
	FileStatusFailed     = "failed"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	URL         string `json:"url"`
	MeetingID   string `json:"meeting_id"`
	MeetingName string `json:"meeting_name"`
	OutDir      string `json:"out_dir"`
	Project     string `json:"project"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary ReportSummary `json:"summary"`
	Tracks  []string      `json:"tracks"`
	Files   []FileResult  `json:"files"`
}

type ReportSummary struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// FileResult 记录一个远端资源的最终结果。Group 为目标子目录（data/videos/slides/textfiles）。
type FileResult struct {
	Group  string `json:"group"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Fail 把运行标记为失败，并记录 error_code/error_msg。
func (r *RunReport) Fail(err error) {
	r.Status = StatusFailed
	r.ErrorCode = ErrorCode(err)
	r.ErrorMsg = err.Error()
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) 空切片输出为 []（而不是 null）
// 3) summary 由 files 计算得出；files 保持下载顺序
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Status == "" {
		r.Status = StatusOK
	}
	if r.Files == nil {
		r.Files = []FileResult{}
	}
	if r.Tracks == nil {
		r.Tracks = []string{}
	}

	var s ReportSummary
	for _, f := range r.Files {
		switch f.Status {
		case FileStatusDownloaded:
			s.Downloaded++
		case FileStatusSkipped:
			s.Skipped++
		case FileStatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
