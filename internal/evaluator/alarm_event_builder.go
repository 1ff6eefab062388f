package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"wisefido-vision/internal/models"
)

// AlarmEventBuilder 报警事件构建器
type AlarmEventBuilder struct {
	tenantID string
	deviceID string
}

// NewAlarmEventBuilder 创建报警事件构建器
func NewAlarmEventBuilder(tenantID, deviceID string) *AlarmEventBuilder {
	return &AlarmEventBuilder{
		tenantID: tenantID,
		deviceID: deviceID,
	}
}

// BuildAlarmEvent 构建报警事件
func (b *AlarmEventBuilder) BuildAlarmEvent(
	eventType string,
	category string,
	alarmLevel string,
	triggerData *models.TriggerData,
	metadata map[string]interface{},
) (*models.AlarmEvent, error) {
	now := time.Now()

	triggerDataJSON, err := json.Marshal(triggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	metadataJSON := "{}"
	if metadata != nil {
		metadataBytes, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(metadataBytes)
	}

	return &models.AlarmEvent{
		EventID:       uuid.New().String(),
		TenantID:      b.tenantID,
		DeviceID:      b.deviceID,
		EventType:     eventType,
		Category:      category,
		AlarmLevel:    alarmLevel,
		AlarmStatus:   models.AlarmStatusActive,
		TriggeredAt:   now,
		TriggerData:   string(triggerDataJSON),
		NotifiedUsers: "[]",
		Metadata:      metadataJSON,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// BuildFallTriggerData 根据检测结果构建跌倒触发数据
// confidence 为四舍五入后的跌倒置信度
func BuildFallTriggerData(result *models.FallResult) *models.TriggerData {
	confidence := int(math.Round(result.FallScore))
	score := result.FallScore
	motion := result.MotionIndex
	frames := result.Frames
	code := models.SNOMEDFall
	display := models.SNOMEDFallDisplay

	td := &models.TriggerData{
		EventType:     models.EventTypeFall,
		Source:        models.SourceVision,
		Confidence:    &confidence,
		FallScore:     &score,
		MotionIndex:   &motion,
		WindowFrames:  &frames,
		SNOMEDCode:    &code,
		SNOMEDDisplay: &display,
	}
	if result.WindowEnd > result.WindowStart {
		duration := int((result.WindowEnd - result.WindowStart) / 1000)
		td.DurationSec = &duration
	}
	return td
}
