package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/powerwall2mqtt/internal/adapter/actor"
	"github.com/berfenger/powerwall2mqtt/internal/config"
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	. "github.com/berfenger/powerwall2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const HEALTH_CHECK_TIMEOUT = 1 * time.Second

type MQTTActorProvider func() *adactor.MQTTActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	mqttActor          *actor.PID
	controllerActor    *actor.PID
	mqttActorProvider  MQTTActorProvider
	lifecycleProvider  LifecycleProvider
	mqttReadyCount     int
	logger             *zap.Logger
}

type healthCheckResult struct {
	healthy         map[string]bool
	controllerState string
	checksReceived  int
	respondTo       *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, mqttActorProvider MQTTActorProvider, lifecycleProvider LifecycleProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		mqttActorProvider: mqttActorProvider,
		lifecycleProvider: lifecycleProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Controller child
		controllerActorPID, err := state.startControllerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.controllerActor = controllerActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, HEALTH_CHECK_TIMEOUT/2), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Controller Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.controllerActor, domain.ActorHealthRequest{}, HEALTH_CHECK_TIMEOUT/2), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CONTROLLER,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(HEALTH_CHECK_TIMEOUT)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the controller
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
		if err != nil {
			state.logger.Warn("ignoring command", zap.String("command", msg.Command.Command),
				zap.String("id", msg.Command.DeviceId), zap.Error(err))
			return
		}
		if cmd != nil {
			ctx.Send(state.controllerActor, cmd)
		}
	case adactor.MQTTReady:
		state.mqttReadyCount++
		// the controller publishes everything on start, only reconnections need a refresh
		if state.mqttReadyCount > 1 {
			state.logger.Info("mqtt reconnected, refreshing hub")
			ctx.Send(state.controllerActor, domain.HubOnlineCommand{})
		}
	case *actor.Terminated:
		state.logger.Error("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if msg.Id == domain.ACTOR_ID_CONTROLLER {
			state.currentHealthCheck.controllerState = msg.State
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startControllerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 1*time.Minute, decider)

	controllerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControllerActor(&state.config, state.mqttActor, state.lifecycleProvider, state.logger)
	}, actor.WithSupervisor(supervisor))
	controllerPID, err := ctx.SpawnNamed(controllerProps, domain.ACTOR_ID_CONTROLLER)
	if err != nil {
		return nil, err
	}

	return controllerPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{
		domain.ACTOR_ID_MQTT:       false,
		domain.ACTOR_ID_CONTROLLER: false,
	}
	state.controllerState = ""
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(state.healthy)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.controllerState,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
