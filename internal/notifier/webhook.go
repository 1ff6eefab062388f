package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-vision/internal/models"
)

// WebhookPayload 推送给下游的跌倒报警
type WebhookPayload struct {
	EventID     string          `json:"event_id"`
	TenantID    string          `json:"tenant_id"`
	DeviceID    string          `json:"device_id"`
	EventType   string          `json:"event_type"`
	Category    string          `json:"category"`
	AlarmLevel  string          `json:"alarm_level"`
	TriggeredAt int64           `json:"triggered_at"` // Unix 毫秒
	TriggerData json.RawMessage `json:"trigger_data"`
	Metadata    json.RawMessage `json:"metadata"`
}

// WebhookNotifier 通过 HTTP POST 推送报警
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 推送器
// 网络错误和 5xx 响应按 retries 次数重试
func NewWebhookNotifier(url string, timeout time.Duration, retries int, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Notify 推送一条报警事件
func (n *WebhookNotifier) Notify(ctx context.Context, event *models.AlarmEvent) error {
	payload := WebhookPayload{
		EventID:     event.EventID,
		TenantID:    event.TenantID,
		DeviceID:    event.DeviceID,
		EventType:   event.EventType,
		Category:    event.Category,
		AlarmLevel:  event.AlarmLevel,
		TriggeredAt: event.TriggeredAt.UnixMilli(),
		TriggerData: rawJSON(event.TriggerData, "{}"),
		Metadata:    rawJSON(event.Metadata, "{}"),
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		n.logger.Error("Webhook returned error",
			zap.String("event_id", event.EventID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}

	n.logger.Info("Alarm pushed to webhook",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}

func rawJSON(s, def string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage(def)
	}
	return json.RawMessage(s)
}
