package actor

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	adactor "github.com/berfenger/powerwall2mqtt/internal/adapter/actor"
	"github.com/berfenger/powerwall2mqtt/internal/config"
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/core/port"
	"github.com/berfenger/powerwall2mqtt/internal/mqtt"
	"github.com/berfenger/powerwall2mqtt/internal/util"
	"github.com/berfenger/powerwall2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type lifecycleCalls struct {
	hub        port.Hub
	started    int
	stopped    int
	shortPolls int
	longPolls  int
	params     map[string]string
	commands   []string
}

type fakeLifecycle struct {
	mu         sync.Mutex
	calls      lifecycleCalls
	commandErr error
}

func (f *fakeLifecycle) Start(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.started++
}

func (f *fakeLifecycle) ShortPoll(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.shortPolls++
}

func (f *fakeLifecycle) LongPoll(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.longPolls++
}

func (f *fakeLifecycle) Query(context.Context) {}

func (f *fakeLifecycle) Stop(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.stopped++
}

func (f *fakeLifecycle) Delete(context.Context) {}

func (f *fakeLifecycle) ConfigChanged(raw map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.params = maps.Clone(raw)
}

func (f *fakeLifecycle) Command(_ context.Context, cmd domain.ControllerCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.commands = append(f.calls.commands, cmd.CommandName())
	return f.commandErr
}

func (f *fakeLifecycle) State() string {
	return "configured"
}

func (f *fakeLifecycle) snapshot() lifecycleCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.calls
	snap.params = maps.Clone(f.calls.params)
	snap.commands = append([]string(nil), f.calls.commands...)
	return snap
}

func (f *fakeLifecycle) provider() LifecycleProvider {
	return func(hub port.Hub) port.Lifecycle {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls.hub = hub
		return f
	}
}

type masterFixture struct {
	as        *actor.ActorSystem
	pid       *actor.PID
	lifecycle *fakeLifecycle
}

func newMasterFixture(t *testing.T, cfg config.Config) *masterFixture {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)

	lc := &fakeLifecycle{}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, lc.provider(), logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return &masterFixture{as: as, pid: pid, lifecycle: lc}
}

func (f *masterFixture) command(cmd *mqtt.ParsedMQTTCommand) {
	f.as.Root.Send(f.pid, adactor.ParsedCommand{Command: cmd})
}

func TestMasterActor(t *testing.T) {
	f := newMasterFixture(t, util.LoadTestConfig())

	var healthResp domain.ActorHealthResponse
	assert.Eventually(t, func() bool {
		res, err := f.as.Root.RequestFuture(f.pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
		if err != nil {
			return false
		}
		healthResp = res.(domain.ActorHealthResponse)
		return healthResp.Healthy
	}, 5*time.Second, 100*time.Millisecond)

	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)
	assert.Equal(t, "configured", healthResp.State)

	snap := f.lifecycle.snapshot()
	assert.Equal(t, 1, snap.started)
	assert.NotNil(t, snap.hub)
	assert.Equal(t, "-.-.-.-", snap.params["ip_address"])
}

func TestMasterRoutesCommands(t *testing.T) {
	f := newMasterFixture(t, util.LoadTestConfig())

	f.command(&mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_BUTTON, DeviceId: domain.BUTTON_ID_QUERY})
	f.command(&mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_SELECT, DeviceId: domain.SELECT_ID_OPERATION_MODE, Payload: "backup"})
	// invalid commands are dropped
	f.command(&mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_BUTTON, DeviceId: "unknown"})
	f.command(&mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_HA_STATUS, Payload: "offline"})
	f.command(&mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_TEXT, DeviceId: "ip_address", Payload: "10.0.0.9"})

	assert.Eventually(t, func() bool {
		snap := f.lifecycle.snapshot()
		return len(snap.commands) == 2 && snap.params["ip_address"] == "10.0.0.9"
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{domain.COMMAND_QUERY, domain.COMMAND_OPERATION}, f.lifecycle.snapshot().commands)
}

func TestMasterRefreshesHubOnReconnect(t *testing.T) {
	f := newMasterFixture(t, util.LoadTestConfig())

	// first ready is the initial connection
	f.as.Root.Send(f.pid, adactor.MQTTReady{})
	f.as.Root.Send(f.pid, adactor.MQTTReady{})

	assert.Eventually(t, func() bool {
		return len(f.lifecycle.snapshot().commands) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{domain.COMMAND_HUB_ONLINE}, f.lifecycle.snapshot().commands)
}

func TestControllerActorPollsAndResponds(t *testing.T) {
	require := require.New(t)
	cfg := util.LoadTestConfig()
	cfg.MonitorConfig.PollIntervalMillis = 20
	cfg.MonitorConfig.LongPollIntervalMillis = 50
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	mqttPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return adactor.NewTestMQTTActor(&cfg, logger) }))
	lc := &fakeLifecycle{commandErr: errors.New("rejected")}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewControllerActor(&cfg, mqttPID, lc.provider(), logger)
	}))

	require.Eventually(func() bool {
		snap := lc.snapshot()
		return snap.shortPolls >= 3 && snap.longPolls >= 1
	}, 5*time.Second, 20*time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.OperationCommand{Mode: "backup"}, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := res.(domain.ControllerCommandResponse)
	require.True(ok)
	require.Equal(domain.COMMAND_OPERATION, resp.Command)
	require.EqualError(resp.GetResponseError(), "rejected")

	res, err = as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	require.Equal(domain.ACTOR_ID_CONTROLLER, res.(domain.ActorHealthResponse).Id)

	require.NoError(as.Root.StopFuture(pid).Wait())
	require.Equal(1, lc.snapshot().stopped)
}

func TestControllerRunWaitsPastDeadline(t *testing.T) {
	require := require.New(t)
	cfg := util.LoadTestConfig()
	core, logs := observer.New(zapcore.WarnLevel)
	act := NewControllerActor(&cfg, nil, nil, zap.New(core))
	act.timeout = 20 * time.Millisecond

	var finished atomic.Bool
	act.run("slow", func(c context.Context) {
		// ignores its deadline on purpose
		<-c.Done()
		time.Sleep(1100 * time.Millisecond)
		finished.Store(true)
	})

	require.True(finished.Load(), "run returned while the task was still running")
	require.Equal(1, logs.FilterMessage("controller task failed").Len())

	act.timeout = time.Second
	act.run("fast", func(context.Context) {})
	require.Equal(1, logs.FilterMessage("controller task failed").Len())
}
