package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshTopic is published by the model pipeline after new
// outputs are written.
const DefaultRefreshTopic = "ml/models/updated"

// ModelUpdate is the optional body of a refresh message.
type ModelUpdate struct {
	Model     string    `json:"model"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ModelTrigger refreshes the dashboard whenever a model-updated message
// arrives on the MQTT topic.
type ModelTrigger struct {
	dash       *Dashboard
	topic      string
	client     mqtt.Client
	invalidate func(context.Context) error
}

func NewModelTrigger(d *Dashboard, topic string) *ModelTrigger {
	if topic == "" {
		topic = DefaultRefreshTopic
	}
	return &ModelTrigger{dash: d, topic: topic}
}

// OnUpdate registers fn to run before the refresh, e.g. to drop a cached
// payload that the update made stale.
func (t *ModelTrigger) OnUpdate(fn func(context.Context) error) {
	t.invalidate = fn
}

// Start connects to broker and subscribes to the refresh topic.
func (t *ModelTrigger) Start(broker, clientID string) error {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// subscriptions are lost on reconnect with a clean session
		if token := c.Subscribe(t.topic, 0, t.handle); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", t.topic).Msg("mqtt subscribe failed")
			return
		}
		log.Info().Str("topic", t.topic).Msg("listening for model updates")
	})

	t.client = mqtt.NewClient(opts)
	if token := t.client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (t *ModelTrigger) Stop() {
	if t.client != nil {
		t.client.Disconnect(250)
	}
}

func (t *ModelTrigger) handle(_ mqtt.Client, msg mqtt.Message) {
	var upd ModelUpdate
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &upd); err != nil {
			log.Debug().Err(err).Str("topic", msg.Topic()).Msg("ignoring unreadable model update body")
		}
	}
	if t.invalidate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("invalidate on model update failed")
		}
		cancel()
	}
	err := t.dash.TryTrigger()
	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = log.Info()
	case errors.Is(err, ErrRefreshInFlight), errors.Is(err, ErrRateLimited):
		ev = log.Warn().Err(err)
	default:
		ev = log.Error().Err(err)
	}
	ev.Str("topic", msg.Topic()).
		Str("model", upd.Model).
		Str("version", upd.Version).
		Bool("started", err == nil).
		Msg("model update received")
}
