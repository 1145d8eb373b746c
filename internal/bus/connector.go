// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/layersync/internal/connector"
	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/metrics"
	"github.com/tomtom215/layersync/internal/models"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "layersync"

// Message metadata keys.
const (
	metaOrigin = "origin"
	metaAction = "action"
	metaCodec  = "codec"
)

// ErrSubscriptionClosed is returned by Serve when the subscriber closes the
// message channel while the connector is still running.
var ErrSubscriptionClosed = errors.New("bus subscription closed")

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of trial publishes allowed while half-open.
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold uint32
}

// Config configures the bus connector.
type Config struct {
	// Prefix is the subject prefix; events go to <Prefix>.events.
	Prefix string
	// Codec is "json" or "msgpack".
	Codec string
	// Origin identifies this instance. Generated when empty.
	Origin  string
	Breaker BreakerConfig
}

// DefaultConfig returns the defaults for the bus connector.
func DefaultConfig() Config {
	return Config{
		Prefix: DefaultPrefix,
		Codec:  CodecJSON,
		Breaker: BreakerConfig{
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Topic returns the subject all events share.
func Topic(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ".events"
}

// Connector is the message bus interface connector.
type Connector struct {
	connector.Base

	pub        message.Publisher
	sub        message.Subscriber
	codec      Codec
	topic      string
	origin     string
	breaker    *gobreaker.CircuitBreaker[any]
	dispatcher connector.Dispatcher
	events     *logging.EventLogger
	now        func() time.Time
}

var _ connector.Connector = (*Connector)(nil)

// New creates a bus connector on a watermill publisher and subscriber. The
// connector owns both and closes them in Close.
func New(pub message.Publisher, sub message.Subscriber, cfg Config) (*Connector, error) {
	if pub == nil || sub == nil {
		return nil, fmt.Errorf("bus requires a publisher and a subscriber")
	}
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	origin := cfg.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	topic := Topic(cfg.Prefix)
	return &Connector{
		Base:    connector.NewBase(connector.RoleInterface, false),
		pub:     pub,
		sub:     sub,
		codec:   codec,
		topic:   topic,
		origin:  origin,
		breaker: newBreaker(topic, cfg.Breaker),
		events:  logging.NewEventLogger(),
		now:     time.Now,
	}, nil
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Bus circuit breaker state changed")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), float64(to))
		},
	})
}

// Origin returns the id this instance stamps on its events.
func (c *Connector) Origin() string {
	return c.origin
}

// Topic returns the subject the connector publishes and subscribes on.
func (c *Connector) Topic() string {
	return c.topic
}

// BreakerState returns the publish circuit breaker state.
func (c *Connector) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Init keeps the dispatcher remote events are applied through.
func (c *Connector) Init(d connector.Dispatcher, _ connector.Options) error {
	c.dispatcher = d
	return nil
}

// Close closes the publisher and the subscriber.
func (c *Connector) Close() error {
	return errors.Join(c.pub.Close(), c.sub.Close())
}

// Serve subscribes to the topic and applies remote events until ctx is
// canceled. Events are applied one at a time in arrival order.
func (c *Connector) Serve(ctx context.Context) error {
	msgs, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}
	c.events.LogSubscriptionStarted(c.topic)
	defer c.events.LogSubscriptionStopped(c.topic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			c.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (c *Connector) codecFor(msg *message.Message) Codec {
	name := msg.Metadata.Get(metaCodec)
	if name == "" || name == c.codec.Name() {
		return c.codec
	}
	codec, err := NewCodec(name)
	if err != nil {
		return c.codec
	}
	return codec
}

// handle decodes one message and applies it. Undecodable messages are
// dropped; redelivery would not fix them.
func (c *Connector) handle(ctx context.Context, msg *message.Message) {
	if origin := msg.Metadata.Get(metaOrigin); origin == c.origin {
		metrics.RecordBusReceive(msg.Metadata.Get(metaAction), "ignored")
		c.events.LogEventIgnored(ctx, msg.UUID, "own event")
		return
	}

	var ev Event
	if err := c.codecFor(msg).Unmarshal(msg.Payload, &ev); err != nil {
		metrics.RecordBusReceive("unknown", "malformed")
		c.events.LogEventFailed(ctx, msg.UUID, err)
		return
	}
	if ev.Origin == c.origin {
		metrics.RecordBusReceive(string(ev.Action), "ignored")
		c.events.LogEventIgnored(ctx, ev.ID, "own event")
		return
	}
	if err := ev.Validate(); err != nil {
		metrics.RecordBusReceive(string(ev.Action), "malformed")
		c.events.LogEventFailed(ctx, ev.ID, err)
		return
	}
	if c.dispatcher == nil {
		metrics.RecordBusReceive(string(ev.Action), "ignored")
		c.events.LogEventIgnored(ctx, ev.ID, "not initialized")
		return
	}

	done := make(chan *models.CallbackResult, 1)
	if err := c.apply(ctx, &ev, func(res *models.CallbackResult) { done <- res }); err != nil {
		metrics.RecordBusReceive(string(ev.Action), "malformed")
		c.events.LogEventFailed(ctx, ev.ID, err)
		return
	}

	select {
	case res := <-done:
		if res.IsOK() {
			metrics.RecordBusReceive(string(ev.Action), "applied")
			c.events.LogEventApplied(ctx, ev.ID, string(ev.Action), ev.Origin)
			return
		}
		metrics.RecordBusReceive(string(ev.Action), "rejected")
		logging.Debug().
			Str("event_id", ev.ID).
			Str("action", string(ev.Action)).
			Str("result", res.Result.String()).
			Str("error", res.Error).
			Msg("Remote event rejected")
	case <-ctx.Done():
	}
}

// apply routes a validated event to the dispatcher.
func (c *Connector) apply(ctx context.Context, ev *Event, cb models.Callback) error {
	d := c.dispatcher
	meta := models.Meta{Source: c.ID(), User: ev.User}

	switch ev.Action {
	case ActionUpdateLayer:
		var l models.Layer
		if err := ev.decodeObject(&l); err != nil {
			return err
		}
		d.UpdateLayer(ctx, &l, meta, cb)
	case ActionDeleteLayer:
		d.DeleteLayer(ctx, ev.LayerID, meta, cb)
	case ActionUpdateFeature:
		var f models.Feature
		if err := ev.decodeObject(&f); err != nil {
			return err
		}
		d.UpdateFeature(ctx, ev.LayerID, &f, meta, cb)
	case ActionDeleteFeature:
		d.DeleteFeature(ctx, ev.LayerID, ev.FeatureID, meta, cb)
	case ActionUpdateLogs:
		var logs map[string][]models.Log
		if err := ev.decodeObject(&logs); err != nil {
			return err
		}
		d.UpdateLogs(ctx, ev.LayerID, ev.FeatureID, logs, meta, cb)
	case ActionUpdateProperty:
		var value any
		if len(ev.Object) > 0 {
			if err := ev.decodeObject(&value); err != nil {
				return err
			}
		}
		d.UpdateProperty(ctx, ev.LayerID, ev.FeatureID, ev.Property, value, ev.UseLog, meta, cb)
	case ActionAddProject:
		var p models.Project
		if err := ev.decodeObject(&p); err != nil {
			return err
		}
		d.AddProject(ctx, &p, meta, cb)
	case ActionDeleteProject:
		d.DeleteProject(ctx, ev.ProjectID, meta, cb)
	case ActionUpdateKey:
		var value models.KeyValue
		if err := ev.decodeObject(&value); err != nil {
			return err
		}
		d.UpdateKey(ctx, ev.KeyID, value, meta, cb)
	case ActionDeleteKey:
		d.DeleteKey(ctx, ev.KeyID, meta, cb)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, ev.Action)
	}
	return nil
}

// publish stamps and sends an event. object, when non-nil, becomes the
// event's JSON payload.
func (c *Connector) publish(ctx context.Context, ev *Event, object any, meta models.Meta, cb models.Callback) {
	ev.ID = uuid.NewString()
	ev.Origin = c.origin
	ev.User = meta.User
	ev.Time = c.now().UnixMilli()

	err := c.send(ctx, ev, object)
	metrics.RecordBusPublish(string(ev.Action), err)
	if err != nil {
		logging.Warn().Err(err).Str("action", string(ev.Action)).Msg("Bus publish failed")
		connector.Complete(cb, models.Failuref(models.ResultError, "bus publish %s: %v", ev.Action, err))
		return
	}
	c.events.LogEventPublished(ctx, ev.ID, string(ev.Action), c.topic)
	connector.Complete(cb, models.OK())
}

func (c *Connector) send(ctx context.Context, ev *Event, object any) error {
	if object != nil {
		raw, err := json.Marshal(object)
		if err != nil {
			return fmt.Errorf("encode object: %w", err)
		}
		ev.Object = raw
	}
	data, err := c.codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(ev.ID, data)
	msg.Metadata.Set(metaOrigin, c.origin)
	msg.Metadata.Set(metaAction, string(ev.Action))
	msg.Metadata.Set(metaCodec, c.codec.Name())
	msg.SetContext(ctx)

	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.pub.Publish(c.topic, msg)
	})
	return err
}

// AddLayer publishes a new layer. Remote instances upsert it.
func (c *Connector) AddLayer(ctx context.Context, l *models.Layer, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionUpdateLayer, LayerID: l.ID}, l, meta, cb)
}

// UpdateLayer publishes a changed layer.
func (c *Connector) UpdateLayer(ctx context.Context, l *models.Layer, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionUpdateLayer, LayerID: l.ID}, l, meta, cb)
}

// DeleteLayer publishes a layer removal.
func (c *Connector) DeleteLayer(ctx context.Context, layerID string, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionDeleteLayer, LayerID: layerID}, nil, meta, cb)
}

// AddFeature publishes a new feature. Remote instances upsert it.
func (c *Connector) AddFeature(ctx context.Context, layerID string, f *models.Feature, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionUpdateFeature, LayerID: layerID, FeatureID: f.ID}, f, meta, cb)
}

// UpdateFeature publishes a changed feature.
func (c *Connector) UpdateFeature(ctx context.Context, layerID string, f *models.Feature, _ bool, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionUpdateFeature, LayerID: layerID, FeatureID: f.ID}, f, meta, cb)
}

// DeleteFeature publishes a feature removal.
func (c *Connector) DeleteFeature(ctx context.Context, layerID, featureID string, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionDeleteFeature, LayerID: layerID, FeatureID: featureID}, nil, meta, cb)
}

// UpdateLogs publishes merged log entries.
func (c *Connector) UpdateLogs(ctx context.Context, layerID, featureID string, logs map[string][]models.Log, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionUpdateLogs, LayerID: layerID, FeatureID: featureID}, logs, meta, cb)
}

// AddLog publishes one log entry as a logs update.
func (c *Connector) AddLog(ctx context.Context, layerID, featureID, property string, log models.Log, meta models.Meta, cb models.Callback) {
	logs := map[string][]models.Log{property: {log}}
	c.publish(ctx, &Event{Action: ActionUpdateLogs, LayerID: layerID, FeatureID: featureID}, logs, meta, cb)
}

// UpdateProperty publishes a property change.
func (c *Connector) UpdateProperty(ctx context.Context, layerID, featureID, property string, value any, useLog bool, meta models.Meta, cb models.Callback) {
	ev := &Event{Action: ActionUpdateProperty, LayerID: layerID, FeatureID: featureID, Property: property, UseLog: useLog}
	raw, err := json.Marshal(value)
	if err != nil {
		connector.Complete(cb, models.Failuref(models.ResultError, "bus publish %s: %v", ev.Action, err))
		return
	}
	ev.Object = raw
	c.publish(ctx, ev, nil, meta, cb)
}

// AddProject publishes a new project.
func (c *Connector) AddProject(ctx context.Context, p *models.Project, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionAddProject, ProjectID: p.ID}, p, meta, cb)
}

// DeleteProject publishes a project removal.
func (c *Connector) DeleteProject(ctx context.Context, projectID string, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionDeleteProject, ProjectID: projectID}, nil, meta, cb)
}

// UpdateKey publishes a key write.
func (c *Connector) UpdateKey(ctx context.Context, keyID string, value models.KeyValue, meta models.Meta, cb models.Callback) {
	if value == nil {
		value = models.KeyValue{}
	}
	c.publish(ctx, &Event{Action: ActionUpdateKey, KeyID: keyID}, value, meta, cb)
}

// DeleteKey publishes a key removal.
func (c *Connector) DeleteKey(ctx context.Context, keyID string, meta models.Meta, cb models.Callback) {
	c.publish(ctx, &Event{Action: ActionDeleteKey, KeyID: keyID}, nil, meta, cb)
}
