package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-vision/internal/models"
)

func testEvent() *models.AlarmEvent {
	triggeredAt := time.UnixMilli(1700000000123)
	return &models.AlarmEvent{
		EventID:     "event-1",
		TenantID:    "tenant-1",
		DeviceID:    "device-1",
		EventType:   models.EventTypeFall,
		Category:    models.CategorySafety,
		AlarmLevel:  models.AlarmLevelAlert,
		TriggeredAt: triggeredAt,
		TriggerData: `{"source":"Vision","confidence":88}`,
		Metadata:    "",
	}
}

func TestWebhookNotifier_Notify(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, time.Second, 0, zap.NewNop())

	err := n.Notify(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, "event-1", received.EventID)
	assert.Equal(t, "Fall", received.EventType)
	assert.Equal(t, int64(1700000000123), received.TriggeredAt)
	assert.JSONEq(t, `{"source":"Vision","confidence":88}`, string(received.TriggerData))
	assert.JSONEq(t, `{}`, string(received.Metadata))
}

func TestWebhookNotifier_RetriesServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, time.Second, 2, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), testEvent()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookNotifier_ClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, time.Second, 2, zap.NewNop())

	err := n.Notify(context.Background(), testEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
