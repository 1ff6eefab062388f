package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// NumAngles 每帧提取的关节角数量
const NumAngles = 8

// AngleVector 单帧的 8 个关节角（度）
type AngleVector [NumAngles]float64

// jointAngle 以 origin 为顶点、指向 a 和 b 的两个向量之间的夹角
type jointAngle struct {
	origin func(f *Frame) Keypoint
	a, b   func(f *Frame) Keypoint
}

func joint(index int) func(f *Frame) Keypoint {
	return func(f *Frame) Keypoint { return f[index] }
}

var (
	shoulderMid = func(f *Frame) Keypoint { return midpoint(f[LeftShoulder], f[RightShoulder]) }
	hipMid      = func(f *Frame) Keypoint { return midpoint(f[LeftHip], f[RightHip]) }
)

// angleDefs 列顺序固定，修改会改变评分结果
var angleDefs = [NumAngles]jointAngle{
	{origin: joint(LeftKnee), a: joint(LeftHip), b: joint(LeftAnkle)},
	{origin: joint(RightKnee), a: joint(RightHip), b: joint(RightAnkle)},
	{origin: joint(RightHip), a: joint(LeftHip), b: joint(RightKnee)},
	{origin: joint(LeftHip), a: joint(LeftKnee), b: joint(RightHip)},
	{origin: joint(LeftShoulder), a: joint(LeftElbow), b: joint(LeftHip)},
	{origin: joint(RightShoulder), a: joint(RightElbow), b: joint(RightHip)},
	{origin: shoulderMid, a: joint(Nose), b: joint(RightHip)},
	{origin: hipMid, a: joint(Nose), b: joint(RightShoulder)},
}

// Angle 返回两个向量之间的无符号夹角（度）
// 任一向量长度为 0 时返回 0
func Angle(v1, v2 r2.Vec) float64 {
	v1, v2 = unitScale(v1), unitScale(v2)
	n1, n2 := r2.Norm(v1), r2.Norm(v2)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	cos := r2.Dot(v1, v2) / (n1 * n2)
	if !isFinite(cos) {
		return 0
	}
	// 浮点误差可能使 cos 略超出 [-1, 1]
	cos = math.Max(-1, math.Min(1, cos))
	return math.Abs(math.Acos(cos) * 180 / math.Pi)
}

// unitScale 按最大分量缩放，使点积和模长不会溢出（夹角不变）
func unitScale(v r2.Vec) r2.Vec {
	s := math.Max(math.Abs(v.X), math.Abs(v.Y))
	if s == 0 || !isFinite(s) {
		return v
	}
	return r2.Vec{X: v.X / s, Y: v.Y / s}
}

// vector 从 a 指向 b 的向量
func vector(a, b Keypoint) r2.Vec {
	return r2.Sub(b.vec(), a.vec())
}

// FrameAngles 计算单帧的 8 个关节角
func FrameAngles(f *Frame) AngleVector {
	var out AngleVector
	for i, def := range angleDefs {
		o := def.origin(f)
		out[i] = Angle(vector(o, def.a(f)), vector(o, def.b(f)))
	}
	return out
}

// AngleMatrix 计算整个窗口的 Mx8 角度矩阵，空窗口返回 nil
func AngleMatrix(c Cache) *mat.Dense {
	if len(c) == 0 {
		return nil
	}
	m := mat.NewDense(len(c), NumAngles, nil)
	for i := range c {
		angles := FrameAngles(&c[i])
		m.SetRow(i, angles[:])
	}
	return m
}
