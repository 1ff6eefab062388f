package replay

import (
	"path/filepath"

	"go.uber.org/zap"

	"wisefido-vision/internal/pose"
)

// Outcome 单个缓存的回放结果
type Outcome struct {
	Name   string  `json:"name"`
	File   string  `json:"file"`
	Frames int     `json:"frames"`
	Motion float64 `json:"motion_index"`
	Score  float64 `json:"score"`
	IsFall bool    `json:"is_fall"`
	Error  string  `json:"error,omitempty"`
}

// Runner 离线回放
type Runner struct {
	detector *pose.Detector
	logger   *zap.Logger
}

// NewRunner 创建回放器
func NewRunner(detector *pose.Detector, logger *zap.Logger) *Runner {
	return &Runner{
		detector: detector,
		logger:   logger,
	}
}

// RunFiles 依次回放完整的缓存文件
func (r *Runner) RunFiles(paths []string) []Outcome {
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, Entry{Name: filepath.Base(p), File: p})
	}
	return r.Run(entries)
}

// Run 依次回放清单条目，单个条目失败不影响其他条目
func (r *Runner) Run(entries []Entry) []Outcome {
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		out := r.runEntry(e)
		if out.Error != "" {
			r.logger.Warn("Replay failed",
				zap.String("name", e.Name),
				zap.String("file", e.File),
				zap.String("error", out.Error),
			)
		} else {
			r.logger.Debug("Replay evaluated",
				zap.String("name", e.Name),
				zap.Int("frames", out.Frames),
				zap.Float64("score", out.Score),
				zap.Bool("is_fall", out.IsFall),
			)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (r *Runner) runEntry(e Entry) Outcome {
	out := Outcome{Name: e.Name, File: e.File}

	raw, err := LoadCache(e.File)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if len(raw) > 0 {
		raw, err = slice(raw, e.Start, e.End)
		if err != nil {
			out.Error = err.Error()
			return out
		}
	}

	cache, err := pose.ParseCache(raw)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := r.detector.Evaluate(cache)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Frames = res.Frames
	out.Motion = res.Motion
	out.Score = res.Score
	out.IsFall = res.IsFall
	return out
}

// Failed 统计失败条目数
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}
