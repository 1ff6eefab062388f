package models

import (
	"time"
)

// AlarmEvent 报警事件（对应 alarm_events 表）
type AlarmEvent struct {
	EventID       string    `json:"event_id" db:"event_id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	DeviceID      string    `json:"device_id" db:"device_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	Category      string    `json:"category" db:"category"`         // safety, clinical, behavioral, device
	AlarmLevel    string    `json:"alarm_level" db:"alarm_level"`   // ALERT, CRIT, WARNING, etc.
	AlarmStatus   string    `json:"alarm_status" db:"alarm_status"` // active, acknowledged
	TriggeredAt   time.Time `json:"triggered_at" db:"triggered_at"`
	TriggerData   string    `json:"trigger_data" db:"trigger_data"`     // JSONB
	NotifiedUsers string    `json:"notified_users" db:"notified_users"` // JSONB
	Metadata      string    `json:"metadata" db:"metadata"`             // JSONB
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// TriggerData 触发数据快照（JSONB 结构）
type TriggerData struct {
	EventType     string   `json:"event_type"`
	Source        string   `json:"source"` // "Vision"
	Confidence    *int     `json:"confidence,omitempty"`
	FallScore     *float64 `json:"fall_score,omitempty"`
	MotionIndex   *float64 `json:"motion_index,omitempty"`
	WindowFrames  *int     `json:"window_frames,omitempty"`
	DurationSec   *int     `json:"duration_sec,omitempty"`
	SNOMEDCode    *string  `json:"snomed_code,omitempty"`
	SNOMEDDisplay *string  `json:"snomed_display,omitempty"`
}

// 报警常量
const (
	EventTypeFall     = "Fall"
	CategorySafety    = "safety"
	AlarmLevelAlert   = "ALERT"
	AlarmStatusActive = "active"
	SourceVision      = "Vision"

	SNOMEDFall        = "161898004"
	SNOMEDFallDisplay = "Fall"
)
