package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"apex-http-service/internal/domain/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	mqtt.Token
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic string
	qos   byte
	body  []byte
}

// stubClient 记录发布内容，未覆盖的方法不会被调用
type stubClient struct {
	mqtt.Client
	mu         sync.Mutex
	connected  bool
	publishErr error
	messages   []published
}

func (c *stubClient) IsConnected() bool { return c.connected }
func (c *stubClient) Connect() mqtt.Token {
	c.connected = true
	return &doneToken{}
}
func (c *stubClient) Disconnect(uint) { c.connected = false }
func (c *stubClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, body: payload.([]byte)})
	return &doneToken{err: c.publishErr}
}

func TestMQTTPublishDispatch(t *testing.T) {
	client := &stubClient{}
	svc := NewMQTTServiceWithClient(testConfig(), client)

	require.NoError(t, svc.Connect())
	assert.True(t, svc.IsConnected())

	eta := 3
	dispatch := &models.Dispatch{DispatchNumber: "DSP-1", GuardID: 12, IncidentID: 5, Priority: models.PriorityHigh, ETAMinutes: &eta}
	dispatch.ID = 9
	incident := &models.Incident{ID: 5, IncidentNumber: "INC-5", Title: "Alarm", Severity: models.SeverityHigh, Tier: 2}

	require.NoError(t, svc.PublishDispatch(dispatch, incident))
	require.Len(t, client.messages, 2)
	assert.Equal(t, "apex/guards/12/dispatch", client.messages[0].topic)
	assert.Equal(t, byte(1), client.messages[0].qos)
	assert.Equal(t, "apex/incidents/5", client.messages[1].topic)

	var msg struct {
		Type    string               `json:"type"`
		Payload DispatchNotification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(client.messages[0].body, &msg))
	assert.Equal(t, EventDispatchCreated, msg.Type)
	assert.Equal(t, "INC-5", msg.Payload.IncidentNumber)
	assert.Equal(t, 2, msg.Payload.Tier)
	require.NotNil(t, msg.Payload.ETAMinutes)
	assert.Equal(t, 3, *msg.Payload.ETAMinutes)

	svc.Disconnect()
	assert.False(t, svc.IsConnected())
	assert.Error(t, svc.PublishIncident(EventIncidentStatus, incident))
}

func TestMQTTPublishError(t *testing.T) {
	client := &stubClient{connected: true, publishErr: errors.New("broker rejected")}
	svc := NewMQTTServiceWithClient(testConfig(), client)

	err := svc.PublishIncident(EventIncidentUpdated, &models.Incident{ID: 1})
	assert.EqualError(t, err, "broker rejected")
}
