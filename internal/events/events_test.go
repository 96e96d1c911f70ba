package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; unused mqtt.Client methods panic.
type fakeClient struct {
	mqtt.Client
	token        *fakeToken
	messages     []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	p := newMQTTPublisher(client, "vehicles")

	err := p.Publish(context.Background(), Event{Type: ServiceCreated, VehicleID: "v1", ServiceID: "s1"})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	msg := client.messages[0]
	assert.Equal(t, "vehicles/v1/events", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got Event
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, ServiceCreated, got.Type)
	assert.Equal(t, "s1", got.ServiceID)
	assert.False(t, got.At.IsZero())

	p.Close()
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"), true)}
	p := newMQTTPublisher(client, "vehicles")

	err := p.Publish(context.Background(), Event{Type: VehicleDeleted, VehicleID: "v1"})
	assert.EqualError(t, err, "not connected")
}

func TestMQTTPublisher_PublishCancelled(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, false)}
	p := newMQTTPublisher(client, "vehicles")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, Event{Type: VehicleUpdated, VehicleID: "v1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMQTTPublisher_NoBroker(t *testing.T) {
	_, err := NewMQTTPublisher("", "client", "vehicles")
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: ServiceDeleted}))
	p.Close()
}
