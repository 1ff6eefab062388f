package pose

import (
	"gonum.org/v1/gonum/mat"
)

// Result 一次检测的完整结果
type Result struct {
	IsFall bool
	Score  float64
	Motion float64    // sigmoid 参数（关节角波动程度）
	Frames int        // 窗口帧数
	Angles *mat.Dense // Mx8 角度矩阵
}

// Detector 基于关节角变化的跌倒检测器
// 无状态，可并发使用
type Detector struct{}

// NewDetector 创建检测器
func NewDetector() *Detector {
	return &Detector{}
}

// Detect 检测窗口内是否发生跌倒，返回判定结果和置信度
func (d *Detector) Detect(cache Cache) (bool, float64, error) {
	res, err := d.Evaluate(cache)
	if err != nil {
		return false, 0, err
	}
	return res.IsFall, res.Score, nil
}

// DetectRaw 对 Mx17x2 的原始数组执行检测
func (d *Detector) DetectRaw(raw [][][]float64) (bool, float64, error) {
	cache, err := ParseCache(raw)
	if err != nil {
		return false, 0, err
	}
	return d.Detect(cache)
}

// Evaluate 检测并返回中间结果（角度矩阵、波动程度）
func (d *Detector) Evaluate(cache Cache) (*Result, error) {
	if err := cache.Validate(); err != nil {
		return nil, err
	}

	angles := AngleMatrix(cache)
	motion := MotionIndex(angles)
	score := FallScore(motion)

	return &Result{
		IsFall: IsFall(score),
		Score:  score,
		Motion: motion,
		Frames: len(cache),
		Angles: angles,
	}, nil
}
