package pose

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"
)

// MaxCoordinate 坐标绝对值上限，保证向量相减和求中点不溢出
const MaxCoordinate = math.MaxFloat64 / 4

// COCO-17 关键点索引（与上游姿态估计模型输出顺序一致）
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16

	NumKeypoints = 17
)

// requiredJoints 跌倒算法实际读取的关键点
var requiredJoints = [...]int{
	Nose,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// Keypoint 图像坐标系中的二维关键点
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// vec 转换为 gonum 向量
func (k Keypoint) vec() r2.Vec {
	return r2.Vec{X: k.X, Y: k.Y}
}

// Frame 单帧骨架（17 个关键点）
type Frame [NumKeypoints]Keypoint

// Cache 按时间顺序排列的骨架窗口（M 帧）
type Cache []Frame

// Validate 校验窗口：至少 1 帧，且算法读取的关键点必须是有限数值
func (c Cache) Validate() error {
	if len(c) == 0 {
		return &InvalidInputError{Frame: -1, Keypoint: -1, Reason: "skeleton cache is empty"}
	}
	for i := range c {
		if err := c[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (f *Frame) validate(index int) error {
	for _, j := range requiredJoints {
		kp := f[j]
		if !isFinite(kp.X) || !isFinite(kp.Y) {
			return &InvalidInputError{Frame: index, Keypoint: j, Reason: "coordinate is not a finite number"}
		}
		if math.Abs(kp.X) > MaxCoordinate || math.Abs(kp.Y) > MaxCoordinate {
			return &InvalidInputError{Frame: index, Keypoint: j, Reason: "coordinate magnitude is too large"}
		}
	}
	return nil
}

// ParseFrame 将 17x2 的原始数组解析为 Frame
func ParseFrame(raw [][]float64) (Frame, error) {
	return parseFrame(raw, -1)
}

// ParseCache 将 Mx17x2 的原始数组解析为 Cache（不修改输入）
func ParseCache(raw [][][]float64) (Cache, error) {
	if len(raw) == 0 {
		return nil, &InvalidInputError{Frame: -1, Keypoint: -1, Reason: "skeleton cache is empty"}
	}
	cache := make(Cache, len(raw))
	for i, rawFrame := range raw {
		frame, err := parseFrame(rawFrame, i)
		if err != nil {
			return nil, err
		}
		cache[i] = frame
	}
	return cache, nil
}

func parseFrame(raw [][]float64, index int) (Frame, error) {
	var frame Frame
	if len(raw) != NumKeypoints {
		return frame, &InvalidInputError{
			Frame:    index,
			Keypoint: -1,
			Reason:   "frame must contain exactly 17 keypoints, got " + strconv.Itoa(len(raw)),
		}
	}
	for j, point := range raw {
		if len(point) != 2 {
			return frame, &InvalidInputError{
				Frame:    index,
				Keypoint: j,
				Reason:   "keypoint must be an (x, y) pair, got " + strconv.Itoa(len(point)) + " values",
			}
		}
		frame[j] = Keypoint{X: point[0], Y: point[1]}
	}
	if err := frame.validate(index); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// midpoint 两个关键点的中点
func midpoint(a, b Keypoint) Keypoint {
	return Keypoint{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
