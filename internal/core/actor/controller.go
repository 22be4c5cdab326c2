package actor

import (
	"context"
	"fmt"
	"time"

	adactor "github.com/berfenger/powerwall2mqtt/internal/adapter/actor"
	"github.com/berfenger/powerwall2mqtt/internal/config"
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/port"
	. "github.com/berfenger/powerwall2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// LifecycleProvider builds the controller logic once the hub it reports to exists.
type LifecycleProvider func(hub port.Hub) port.Lifecycle

// ControllerActor owns a port.Lifecycle and serializes every call into it:
// poll ticks, parameter updates and commands.
type ControllerActor struct {
	ActorWithStates
	config    *config.Config
	scheduler *scheduler.TimerScheduler
	stash     *Stash
	mqttActor *actor.PID
	provider  LifecycleProvider
	lifecycle port.Lifecycle
	params    map[string]string
	timeout   time.Duration

	cancelShortPoll scheduler.CancelFunc
	cancelLongPoll  scheduler.CancelFunc

	logger *zap.Logger
}

type shortPollTick struct {
}

type longPollTick struct {
}

func NewControllerActor(cfg *config.Config, mqttActor *actor.PID, provider LifecycleProvider, logger *zap.Logger) *ControllerActor {
	act := &ControllerActor{
		config:          cfg,
		mqttActor:       mqttActor,
		provider:        provider,
		stash:           &Stash{},
		params:          map[string]string{},
		logger:          ActorLogger(domain.ACTOR_ID_CONTROLLER, logger),
		ActorWithStates: NewActorWithStates(),
	}
	act.timeout = act.taskTimeout()
	for k, v := range config.InitialParameters(cfg.Gateway) {
		act.params[k] = v
	}
	act.Become(CTStartingState{
		actor: act,
	})
	return act
}

// Starting state

type CTStartingState struct {
	actor *ControllerActor
}

func (state CTStartingState) Name() string {
	return "starting"
}

func (state CTStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("controller@starting started")

		hub := adactor.NewMQTTHub(ctx.ActorSystem().Root, state.actor.mqttActor, state.actor.logger)
		state.actor.lifecycle = state.actor.provider(hub)
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		state.actor.lifecycle.ConfigChanged(state.actor.params)
		state.actor.run("start", state.actor.lifecycle.Start)

		state.actor.scheduleShortPoll(ctx)
		state.actor.scheduleLongPoll(ctx)
		state.actor.Become(CTRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("controller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CTRunningState struct {
	actor *ControllerActor
}

func (state CTRunningState) Name() string {
	return "running"
}

func (state CTRunningState) Receive(ctx actor.Context) {
	act := state.actor
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		act.logger.Debug("controller@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROLLER,
			Healthy: true,
			State:   act.lifecycle.State(),
		})
	case shortPollTick:
		act.run("short_poll", act.lifecycle.ShortPoll)
		act.scheduleShortPoll(ctx)
	case longPollTick:
		act.run("long_poll", act.lifecycle.LongPoll)
		act.scheduleLongPoll(ctx)
	case domain.ParameterUpdate:
		act.logger.Debug("controller@running: parameter update", zap.String("key", msg.Key))
		act.params[msg.Key] = msg.Value
		act.lifecycle.ConfigChanged(act.params)
	case domain.ControllerCommand:
		var cmdErr error
		act.run(msg.CommandName(), func(c context.Context) {
			cmdErr = act.lifecycle.Command(c, msg)
		})
		if cmdErr != nil {
			act.logger.Warn("command failed", zap.String("command", msg.CommandName()), zap.Error(cmdErr))
		}
		ForRequest(msg).Respond(ctx, domain.ControllerCommandResponse{
			ActorResponseMixIn: domain.ResponseWithError(cmdErr),
			Command:            msg.CommandName(),
		})
	case *actor.Stopping:
		act.stop()
	case *actor.Restarting:
		act.stop()
	default:
		act.logger.Debug("controller@running: recv", zap.String("state", act.StateName()), zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ControllerActor) scheduleShortPoll(ctx actor.Context) {
	if interval := state.config.MonitorConfig.ShortPollInterval(); interval > 0 {
		state.cancelShortPoll = state.scheduler.RequestOnce(interval, ctx.Self(), shortPollTick{})
	}
}

func (state *ControllerActor) scheduleLongPoll(ctx actor.Context) {
	if interval := state.config.MonitorConfig.LongPollInterval(); interval > 0 {
		state.cancelLongPoll = state.scheduler.RequestOnce(interval, ctx.Self(), longPollTick{})
	}
}

// run executes a blocking lifecycle operation. The context deadline bounds
// every gateway and hub call; run itself always waits for fn to return, so
// the lifecycle is never touched by two goroutines at once.
func (state *ControllerActor) run(name string, fn func(context.Context)) {
	timeout := state.timeout
	NewBackgroundTaskErr(nil, func() error {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(c)
		return c.Err()
	}).OnError(func(err error) {
		state.logger.Warn("controller task failed", zap.String("task", name), zap.Error(err))
	}).Run()
}

// taskTimeout covers one hub round trip plus the gateway calls of a poll
// with a session refresh.
func (state *ControllerActor) taskTimeout() time.Duration {
	gw := state.config.Gateway.Timeout()
	if gw <= 0 {
		gw = 10 * time.Second
	}
	return 4*gw + adactor.DEFAULT_HUB_TIMEOUT
}

func (state *ControllerActor) stop() {
	if state.cancelShortPoll != nil {
		state.cancelShortPoll()
	}
	if state.cancelLongPoll != nil {
		state.cancelLongPoll()
	}
	if state.lifecycle != nil {
		state.run("stop", state.lifecycle.Stop)
	}
}
