package models

// FallResult 一次窗口检测的结果（写入 Redis 缓存和结果 Stream）
type FallResult struct {
	DeviceID    string  `json:"device_id"`
	TenantID    string  `json:"tenant_id"`
	IsFall      bool    `json:"is_fall"`
	FallScore   float64 `json:"fall_score"`
	MotionIndex float64 `json:"motion_index"`
	Frames      int     `json:"frames"`
	WindowStart int64   `json:"window_start"` // 窗口首帧时间戳（毫秒）
	WindowEnd   int64   `json:"window_end"`   // 窗口末帧时间戳（毫秒）
	EvaluatedAt int64   `json:"evaluated_at"` // Unix 秒
	AlarmID     string  `json:"alarm_id,omitempty"`
}
