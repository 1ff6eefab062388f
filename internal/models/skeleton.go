package models

// SkeletonMessage 上游姿态估计发布的单帧骨架（MQTT 消息体）
type SkeletonMessage struct {
	Timestamp int64       `json:"timestamp"`          // Unix 毫秒
	TrackID   string      `json:"track_id,omitempty"` // 上游跟踪 ID，不参与检测
	Keypoints [][]float64 `json:"keypoints"`          // 17 x [x, y]
}

// StoredFrame Redis 窗口中保存的单帧
type StoredFrame struct {
	Timestamp int64       `json:"ts"`
	Keypoints [][]float64 `json:"kp"`
}
