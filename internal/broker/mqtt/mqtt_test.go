package mqtt

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		vehicle string
		wantErr bool
	}{
		{"vehicle from topic", "fleet/notifications/64b7f0c2", `{"title":"Geofence exit","severity":"warning"}`, "64b7f0c2", false},
		{"payload vehicle wins", "fleet/notifications/abc", `{"title":"x","vehicle_id":"def"}`, "def", false},
		{"general topic", "fleet/notifications/general/extra", `{"title":"x"}`, "", false},
		{"bad json", "fleet/notifications/abc", `{`, "", true},
		{"bad severity", "fleet/notifications/abc", `{"title":"x","severity":"panic"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Decode(tt.topic, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.vehicle, n.VehicleID)
		})
	}
}

func TestSubscriber_HandleBroadcastsToFeed(t *testing.T) {
	feed := alerts.NewFeed(alerts.NewMemoryStore(), 10, nil)
	sub := NewSubscriber(nil, "", feed, nil)

	sub.Handle(nil, fakeMessage{
		topic:   "fleet/notifications/v9",
		payload: []byte(`{"id":"evt-1","title":"Harsh braking","severity":"urgent","category":"maintenance"}`),
	})

	live := feed.Live()
	require.Len(t, live, 1)
	assert.Equal(t, "evt-1-live", live[0].ID)
	assert.Equal(t, models.SeverityUrgent, live[0].Severity)
	assert.Equal(t, "v9", live[0].VehicleID)
}

func TestSubscriber_HandleDropsMalformed(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	feed := alerts.NewFeed(alerts.NewMemoryStore(), 10, logger)
	sub := NewSubscriber(nil, DefaultTopic, feed, logger)

	sub.Handle(nil, fakeMessage{topic: "fleet/notifications/v9", payload: []byte("not json")})
	sub.Handle(nil, fakeMessage{topic: "fleet/notifications/v9", payload: []byte(`{"severity":"info"}`)})

	assert.Empty(t, feed.Live())
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
