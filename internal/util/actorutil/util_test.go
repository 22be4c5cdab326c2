package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtonCommands(t *testing.T) {
	assert := assert.New(t)

	msg, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_BUTTON, DeviceId: domain.BUTTON_ID_UPDATE_PROFILE})
	assert.NoError(err)
	assert.Equal(domain.UpdateProfileCommand{}, msg)

	msg, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_BUTTON, DeviceId: domain.BUTTON_ID_REMOVE_NOTICES_ALL})
	assert.NoError(err)
	assert.Equal(domain.RemoveNoticesAllCommand{}, msg)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_BUTTON, DeviceId: "self_destruct"})
	assert.ErrorIs(err, domain.ErrUnsupportedCommand)
}

func TestEntityCommands(t *testing.T) {
	require := require.New(t)

	msg, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_SELECT, DeviceId: domain.SELECT_ID_OPERATION_MODE, Payload: "backup"})
	require.NoError(err)
	require.Equal(domain.OperationCommand{Mode: "backup"}, msg)

	msg, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_NUMBER, DeviceId: domain.INPUT_NUMBER_ID_LOG_LEVEL, Payload: "20.0"})
	require.NoError(err)
	debug, ok := msg.(domain.DebugCommand)
	require.True(ok)
	require.Equal(20, *debug.Level)

	msg, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_TEXT, DeviceId: "ip_address", Payload: "10.0.0.2"})
	require.NoError(err)
	require.Equal(domain.ParameterUpdate{Key: "ip_address", Value: "10.0.0.2"}, msg)

	msg, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_LOG_LEVEL, Payload: "10"})
	require.NoError(err)
	require.Equal(domain.RestoreLogLevelCommand{Level: 10}, msg)
}

func TestHubStatusCommands(t *testing.T) {
	assert := assert.New(t)

	msg, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_HA_STATUS, Payload: "online"})
	assert.NoError(err)
	assert.Equal(domain.HubOnlineCommand{}, msg)

	msg, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_HA_STATUS, Payload: "offline"})
	assert.NoError(err)
	assert.Nil(msg)
}

func TestGenericCommands(t *testing.T) {
	assert := assert.New(t)
	generic := func(name, payload string) (any, error) {
		return ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.MQTT_COMMAND_GENERIC, DeviceId: name, Payload: payload})
	}

	msg, err := generic("DEBUG", "")
	assert.NoError(err)
	assert.Nil(msg.(domain.DebugCommand).Level)

	msg, err = generic("DEBUG", `{"value": 10}`)
	assert.NoError(err)
	assert.Equal(10, *msg.(domain.DebugCommand).Level)

	msg, err = generic("debug", `{"value": "40"}`)
	assert.NoError(err)
	assert.Equal(40, *msg.(domain.DebugCommand).Level)

	msg, err = generic("OPERATION", `{"value": "autonomous"}`)
	assert.NoError(err)
	assert.Equal(domain.OperationCommand{Mode: "autonomous"}, msg)

	msg, err = generic("OPERATION", "scheduler")
	assert.NoError(err)
	assert.Equal(domain.OperationCommand{Mode: "scheduler"}, msg)

	msg, err = generic("DELETE", "")
	assert.NoError(err)
	assert.Equal(domain.DeleteCommand{}, msg)

	_, err = generic("DEBUG", `{"value": `)
	assert.Error(err)

	_, err = generic("DEBUG", `{"value": "loud"}`)
	assert.Error(err)

	_, err = generic("REBOOT", "")
	assert.ErrorIs(err, domain.ErrUnsupportedCommand)
}

func TestBackgroundTask(t *testing.T) {
	assert := assert.New(t)

	var got error
	NewBackgroundTaskErr(nil, func() error { return errors.New("boom") }).
		OnError(func(err error) { got = err }).
		Run()
	assert.EqualError(got, "boom")

	var value int
	NewBackgroundTask(nil, func() (*int, error) {
		v := 42
		return &v, nil
	}).OnSuccess(func(v int) { value = v }).Run()
	assert.Equal(42, value)

	got = nil
	NewBackgroundTask(nil, func() (*int, error) { return nil, nil }).
		OnError(func(err error) { got = err }).
		Run()
	assert.Error(got)

	got = nil
	NewBackgroundTaskErr(nil, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}).WithTimeout(10 * time.Millisecond).OnError(func(err error) { got = err }).Run()
	assert.Error(got)
}
