package pose

import (
	"errors"
	"fmt"
)

// InvalidInputError 骨架输入格式错误（空窗口、关键点缺失、坐标非数值等）
// Frame / Keypoint 为 -1 表示不适用
type InvalidInputError struct {
	Frame    int
	Keypoint int
	Reason   string
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.Frame >= 0 && e.Keypoint >= 0:
		return fmt.Sprintf("invalid skeleton input: frame %d, keypoint %d: %s", e.Frame, e.Keypoint, e.Reason)
	case e.Frame >= 0:
		return fmt.Sprintf("invalid skeleton input: frame %d: %s", e.Frame, e.Reason)
	case e.Keypoint >= 0:
		return fmt.Sprintf("invalid skeleton input: keypoint %d: %s", e.Keypoint, e.Reason)
	default:
		return "invalid skeleton input: " + e.Reason
	}
}

// IsInvalidInput 判断错误链中是否包含 InvalidInputError
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}
