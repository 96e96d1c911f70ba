// Package events announces changes to vehicles and their service history
// over MQTT so dashboards can refresh their statistics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Type names a change.
type Type string

const (
	VehicleCreated Type = "vehicle.created"
	VehicleUpdated Type = "vehicle.updated"
	VehicleDeleted Type = "vehicle.deleted"
	ServiceCreated Type = "service.created"
	ServiceUpdated Type = "service.updated"
	ServiceDeleted Type = "service.deleted"
)

// Event is the payload published for each change.
type Event struct {
	Type      Type      `json:"event"`
	VehicleID string    `json:"vehicle_id"`
	ServiceID string    `json:"service_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers change events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close()                              {}

const (
	qosAtLeastOnce = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTPublisher publishes events to <prefix>/<vehicle_id>/events.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to broker and returns a publisher.
func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	if broker == "" {
		return nil, fmt.Errorf("mqtt broker is not configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return newMQTTPublisher(client, prefix), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Topic returns the topic events of a vehicle go to.
func (p *MQTTPublisher) Topic(vehicleID string) string {
	return fmt.Sprintf("%s/%s/events", p.prefix, vehicleID)
}

// Publish sends an event and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(event.VehicleID), qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s timed out", p.Topic(event.VehicleID))
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
