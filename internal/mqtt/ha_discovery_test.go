package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerNodeDiscovery(t *testing.T) {
	require := require.New(t)
	c := testClient()
	dev := domain.ControllerDevice("loremtopic")
	texts := []domain.GenericText{
		domain.ParameterText(dev, "ip_address", "IP Address", false),
		domain.ParameterText(dev, "password", "Password", true),
	}

	msgs := NodeToHADiscoveryMessages(c, domain.ControllerNode(dev, true, texts))
	// 4 sensors, 3 buttons, 1 select, 2 texts, 1 number
	require.Len(msgs, 11)

	byTopic := map[string]HADiscoveryConfig{}
	for _, m := range msgs {
		byTopic[m.Topic] = m.Config
	}

	bridge, ok := byTopic["homeassistant/binary_sensor/"+dev.Id+"/bridge/config"]
	require.True(ok)
	require.Equal("loremtopic/bridge/state", bridge.StateTopic)
	require.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)
	require.Empty(bridge.AvTopic)

	status := byTopic["homeassistant/binary_sensor/"+dev.Id+"/pw_status/config"]
	require.Equal(MQTT_PAYLOAD_ON, status.PayloadOn)
	require.Equal("loremtopic/bridge/state", status.AvTopic)

	sel := byTopic["homeassistant/select/"+dev.Id+"/operation_mode/config"]
	require.Equal([]string{"self_consumption", "backup", "autonomous", "scheduler"}, sel.Options)
	require.Equal("loremtopic/select/operation_mode/set", sel.CommandTopic)

	button := byTopic["homeassistant/button/"+dev.Id+"/update_profile/config"]
	require.Equal("loremtopic/button/update_profile/press", button.CommandTopic)
	require.Equal(MQTT_PAYLOAD_PRESS, button.PayloadPress)
	require.Empty(button.StateTopic)

	ip := byTopic["homeassistant/text/"+dev.Id+"/ip_address/config"]
	require.Equal("loremtopic/text/ip_address/state", ip.StateTopic)

	pass := byTopic["homeassistant/text/"+dev.Id+"/password/config"]
	require.Empty(pass.StateTopic)
	require.Equal(domain.TEXT_MODE_PASSWORD, pass.Mode)

	logLevel := byTopic["homeassistant/number/"+dev.Id+"/log_level/config"]
	require.EqualValues(10, logLevel.Min)
	require.EqualValues(50, logLevel.Max)
}

func TestMeterNodeDiscovery(t *testing.T) {
	assert := assert.New(t)
	c := testClient()
	dev := domain.ControllerDevice("loremtopic")
	node := domain.MeterNode(dev, domain.Meters[0])

	topics := NodeDiscoveryTopics(c, node)
	assert.Len(topics, len(domain.MeterSlots))
	assert.Contains(topics, "homeassistant/sensor/"+node.Device.Id+"/pw_grid_instant_power/config")

	msg := GenericSensorToHADiscoveryMessage(c, node.Sensors[0])
	assert.Equal("loremtopic/sensor/pw_grid_instant_power/state", msg.StateTopic)
	assert.Equal(dev.Id, msg.Device.ViaDevice)

	raw, err := json.Marshal(msg)
	assert.NoError(err)
	var decoded map[string]any
	assert.NoError(json.Unmarshal(raw, &decoded))
	assert.Equal("mqtt", decoded["platform"])
	assert.NotContains(decoded, "command_topic")
}
