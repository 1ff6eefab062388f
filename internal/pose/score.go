package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// 经验常数：人工调参得到，不是物理量。修改会改变已有部署的判定结果。
const (
	// MotionNormalizer 平均每个角度维度的累计变化量除以该值后作为 sigmoid 的参数
	MotionNormalizer = 107.0
	// FallThreshold 跌倒判定阈值（百分比）
	FallThreshold = 77.0
)

// MotionIndex 计算窗口内关节角的整体波动程度
// 相邻帧各角度差的绝对值求和，再除以角度数量和 MotionNormalizer
func MotionIndex(angles *mat.Dense) float64 {
	if angles == nil {
		return 0
	}
	rows, cols := angles.Dims()
	var total float64
	for i := 0; i+1 < rows; i++ {
		for j := 0; j < cols; j++ {
			total += math.Abs(angles.At(i+1, j) - angles.At(i, j))
		}
	}
	return total / NumAngles / MotionNormalizer
}

// FallScore 将波动程度映射为 (0, 100) 的跌倒置信度
func FallScore(x float64) float64 {
	score := 100 / (1 + math.Exp(-x))
	// x 很大时 exp(-x) 下溢，结果保持在开区间内
	if score >= 100 {
		return math.Nextafter(100, 0)
	}
	if score <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return score
}

// IsFall 置信度达到阈值即判定为跌倒
func IsFall(score float64) bool {
	return score >= FallThreshold
}
