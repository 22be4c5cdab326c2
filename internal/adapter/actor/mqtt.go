package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/config"
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/events"
	"github.com/berfenger/powerwall2mqtt/internal/mqtt"
	"github.com/berfenger/powerwall2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_CONNECT_TIMEOUT   = 10 * time.Second
	MQTT_SUBSCRIBE_TIMEOUT = 2 * time.Second
	MQTT_PUBLISH_TIMEOUT   = 5 * time.Second
)

type MQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.MQTTClient
	batch    *publishBatch
	logger   *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

// MQTTReady is sent to the parent every time the actor is connected and
// subscribed to its command topics.
type MQTTReady struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	Error error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message any
	retain  bool
}

// publishBatch tracks the publish results of a group of messages.
type publishBatch struct {
	pending int
	total   int
	err     error
	done    func(ctx actor.Context, published int, err error)
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, MQTT_CONNECT_TIMEOUT)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.client.SubscribeToCommandTopics(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				root.Send(self, ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, MQTT_SUBSCRIBE_TIMEOUT)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Info("mqtt connected", zap.String("base_topic", state.config.MQTT.BaseTopic))
		state.behavior.Become(state.DefaultReceive)
		if ctx.Parent() != nil {
			ctx.Send(ctx.Parent(), MQTTReady{})
		}
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
			State:   "connecting",
		})
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.Int("events", len(msg.Events)))
		state.publish(ctx, state.events2MQTTMessages(msg.Events, msg.Retain), nil)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishDiscoveryRequest", zap.Int("nodes", len(msg.Nodes)))
		req := actorutil.ForRequest(msg)
		if !state.config.MQTT.HADiscoveryEnable {
			req.Respond(ctx, domain.PublishDiscoveryResponse{})
			return
		}
		msgs, err := state.discoveryMessages(msg.Nodes)
		if err != nil {
			state.logger.Error("mqtt@default PublishDiscoveryRequest error", zap.Error(err))
			req.Respond(ctx, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ResponseWithError(err)})
			return
		}
		state.publish(ctx, msgs, func(ctx actor.Context, published int, err error) {
			req.Respond(ctx, domain.PublishDiscoveryResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Published:          published,
			})
		})
	case domain.RemoveDiscoveryRequest:
		state.logger.Debug("mqtt@default RemoveDiscoveryRequest", zap.Int("nodes", len(msg.Nodes)))
		req := actorutil.ForRequest(msg)
		state.publish(ctx, state.removalMessages(msg.Nodes), func(ctx actor.Context, removed int, err error) {
			req.Respond(ctx, domain.RemoveDiscoveryResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Removed:            removed,
			})
		})
	case domain.PublishNoticesRequest:
		state.logger.Debug("mqtt@default PublishNoticesRequest", zap.Int("notices", len(msg.Notices)))
		msgs := []rawMessage{{
			topic:   state.client.BridgeNoticesTopic(),
			message: events.NoticesPayload(msg.Notices),
			retain:  true,
		}}
		msgs = append(msgs, state.events2MQTTMessages(events.NoticesToUpdateEvents(msg.Notices), true)...)
		state.publish(ctx, msgs, nil)
	case domain.SaveLogLevelRequest:
		state.logger.Debug("mqtt@default SaveLogLevelRequest", zap.Int("level", msg.Level))
		state.publish(ctx, []rawMessage{{
			topic:   state.client.BridgeLogLevelTopic(),
			message: fmt.Sprintf("%d", msg.Level),
			retain:  true,
		}}, nil)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// PublishResultReceive waits for the results of the current batch. Anything
// else is stashed until the batch completes.
func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		batch := state.batch
		batch.pending--
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
			if batch.err == nil {
				batch.err = msg.Error
			}
		}
		if batch.pending > 0 {
			return
		}
		state.batch = nil
		state.behavior.UnbecomeStacked()
		if batch.done != nil {
			published := batch.total
			if batch.err != nil {
				published = 0
			}
			batch.done(ctx, published, batch.err)
		}
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) publish(ctx actor.Context, msgs []rawMessage, done func(ctx actor.Context, published int, err error)) {
	if len(msgs) == 0 {
		if done != nil {
			done(ctx, 0, nil)
		}
		return
	}
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.batch = &publishBatch{pending: len(msgs), total: len(msgs), done: done}
	for _, m := range msgs {
		state.logger.Sugar().Debugf("mqtt@publish: %s => %v", m.topic, m.message)
		state.client.Publish(m.topic, m.message, 1, m.retain, func(err error) {
			root.Send(self, publishResult{Error: err})
		}, MQTT_PUBLISH_TIMEOUT)
	}
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) events2MQTTMessages(evs []domain.SensorUpdateEvent, retain bool) []rawMessage {
	msgs := make([]rawMessage, 0, len(evs))
	for _, e := range evs {
		if m := state.event2MQTTMessage(e); m != nil {
			m.retain = m.retain || retain
			msgs = append(msgs, *m)
		}
	}
	return msgs
}

func (state *MQTTActor) event2MQTTMessage(event domain.SensorUpdateEvent) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
		}
	case domain.InputNumberSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.InputNumberStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
			retain:  true,
		}
	case domain.SelectSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SelectStateTopic(msg.Id),
			message: msg.Value,
			retain:  true,
		}
	case domain.TextEntityUpdateEvent:
		return &rawMessage{
			topic:   state.client.TextStateTopic(msg.Id),
			message: msg.Value,
			retain:  true,
		}
	case domain.TextSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) discoveryMessages(nodes []domain.Node) ([]rawMessage, error) {
	var msgs []rawMessage
	var errs []error
	for _, node := range nodes {
		for _, m := range mqtt.NodeToHADiscoveryMessages(state.client, node) {
			payload, err := json.Marshal(m.Config)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			msgs = append(msgs, rawMessage{topic: m.Topic, message: payload, retain: true})
		}
	}
	return msgs, errors.Join(errs...)
}

func (state *MQTTActor) removalMessages(nodes []domain.Node) []rawMessage {
	var msgs []rawMessage
	for _, node := range nodes {
		for _, topic := range mqtt.NodeDiscoveryTopics(state.client, node) {
			msgs = append(msgs, rawMessage{topic: topic, message: []byte{}, retain: true})
		}
	}
	return msgs
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	} else {
		return mqtt.MQTT_PAYLOAD_OFF
	}
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishDiscoveryRequest:
		published := 0
		for _, node := range msg.Nodes {
			published += len(mqtt.NodeToHADiscoveryMessages(state.client, node))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{Published: published})
	case domain.RemoveDiscoveryRequest:
		removed := 0
		for _, node := range msg.Nodes {
			removed += len(mqtt.NodeDiscoveryTopics(state.client, node))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.RemoveDiscoveryResponse{Removed: removed})
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@dummy publish", zap.Int("messages", len(state.events2MQTTMessages(msg.Events, msg.Retain))))
	}
}
