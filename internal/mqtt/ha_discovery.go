package mqtt

import (
	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
)

const (
	HA_COMPONENT_BUTTON = "button"
	HA_COMPONENT_SELECT = "select"
	HA_COMPONENT_TEXT   = "text"
	HA_COMPONENT_NUMBER = "number"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic,omitempty"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	PayloadPress      string            `json:"payload_press,omitempty"`
	Options           []string          `json:"options,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Min               float64           `json:"min,omitempty"`
	Max               float64           `json:"max,omitempty"`
	Step              float64           `json:"step,omitempty"`
	Mode              string            `json:"mode,omitempty"`
	InitialValue      float64           `json:"initial,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// HADiscoveryMessage is a discovery config ready to be published on Topic.
type HADiscoveryMessage struct {
	Topic  string
	Config HADiscoveryConfig
}

func (c *MQTTClient) HADiscoverySensorTopic(sensor domain.GenericSensor) string {
	return c.HADiscoveryTopic(sensor.SensorType, sensor.Device.Id, sensor.Id)
}

func (c *MQTTClient) HADiscoveryButtonTopic(button domain.GenericButton) string {
	return c.HADiscoveryTopic(HA_COMPONENT_BUTTON, button.Device.Id, button.Id)
}

func (c *MQTTClient) HADiscoverySelectTopic(sel domain.GenericSelect) string {
	return c.HADiscoveryTopic(HA_COMPONENT_SELECT, sel.Device.Id, sel.Id)
}

func (c *MQTTClient) HADiscoveryTextTopic(text domain.GenericText) string {
	return c.HADiscoveryTopic(HA_COMPONENT_TEXT, text.Device.Id, text.Id)
}

func (c *MQTTClient) HADiscoveryInputNumberTopic(inputNumber domain.GenericInputNumber) string {
	return c.HADiscoveryTopic(HA_COMPONENT_NUMBER, inputNumber.Device.Id, inputNumber.Id)
}

// NodeToHADiscoveryMessages builds the discovery config of every entity in node.
func NodeToHADiscoveryMessages(client *MQTTClient, node domain.Node) []HADiscoveryMessage {
	var msgs []HADiscoveryMessage
	for _, s := range node.Sensors {
		msgs = append(msgs, HADiscoveryMessage{client.HADiscoverySensorTopic(s), GenericSensorToHADiscoveryMessage(client, s)})
	}
	for _, b := range node.Buttons {
		msgs = append(msgs, HADiscoveryMessage{client.HADiscoveryButtonTopic(b), GenericButtonToHADiscoveryMessage(client, b)})
	}
	for _, s := range node.Selects {
		msgs = append(msgs, HADiscoveryMessage{client.HADiscoverySelectTopic(s), GenericSelectToHADiscoveryMessage(client, s)})
	}
	for _, t := range node.Texts {
		msgs = append(msgs, HADiscoveryMessage{client.HADiscoveryTextTopic(t), GenericTextToHADiscoveryMessage(client, t)})
	}
	for _, n := range node.InputNumbers {
		msgs = append(msgs, HADiscoveryMessage{client.HADiscoveryInputNumberTopic(n), GenericInputNumberToHADiscoveryMessage(client, n)})
	}
	return msgs
}

// NodeDiscoveryTopics lists the discovery topics of node. Publishing an empty
// retained payload on them removes the entities from Home Assistant.
func NodeDiscoveryTopics(client *MQTTClient, node domain.Node) []string {
	msgs := NodeToHADiscoveryMessages(client, node)
	topics := make([]string, 0, len(msgs))
	for _, m := range msgs {
		topics = append(topics, m.Topic)
	}
	return topics
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	case sensor.SensorType == domain.SENSOR_TYPE_SENSOR:
		topic = client.SensorStateTopic(sensor.Id)
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		topic = client.BinarySensorStateTopic(sensor.Id)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
		// the bridge state is the availability topic itself
		disConfig.AvTopic = ""
	} else if sensor.SensorType == domain.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_ON
		disConfig.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return disConfig
}

func GenericButtonToHADiscoveryMessage(client *MQTTClient, button domain.GenericButton) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:         device(button.Device),
		CommandTopic:   client.ButtonCommandTopic(button.Id),
		AvTopic:        client.BridgeStateTopic(),
		EntityCategory: button.EntityCategory,
		Name:           button.Name,
		UniqueId:       button.UniqueId,
		Icon:           button.Icon,
		Platform:       "mqtt",
		PayloadPress:   MQTT_PAYLOAD_PRESS,
	}
}

func GenericSelectToHADiscoveryMessage(client *MQTTClient, sel domain.GenericSelect) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(sel.Device),
		StateTopic:   client.SelectStateTopic(sel.Id),
		CommandTopic: client.SelectCommandTopic(sel.Id),
		AvTopic:      client.BridgeStateTopic(),
		Name:         sel.Name,
		UniqueId:     sel.UniqueId,
		Icon:         sel.Icon,
		Platform:     "mqtt",
		Options:      sel.Options,
	}
}

func GenericTextToHADiscoveryMessage(client *MQTTClient, text domain.GenericText) HADiscoveryConfig {
	disConfig := HADiscoveryConfig{
		Device:         device(text.Device),
		CommandTopic:   client.TextCommandTopic(text.Id),
		AvTopic:        client.BridgeStateTopic(),
		EntityCategory: text.EntityCategory,
		Name:           text.Name,
		UniqueId:       text.UniqueId,
		Icon:           text.Icon,
		Platform:       "mqtt",
		Mode:           text.Mode,
	}
	// secrets are write only
	if text.Mode != domain.TEXT_MODE_PASSWORD {
		disConfig.StateTopic = client.TextStateTopic(text.Id)
	}
	return disConfig
}

func GenericInputNumberToHADiscoveryMessage(client *MQTTClient, inputNumber domain.GenericInputNumber) HADiscoveryConfig {
	topic := client.InputNumberStateTopic(inputNumber.Id)
	cmdTopic := client.InputNumberCommandTopic(inputNumber.Id)
	disConfig := HADiscoveryConfig{
		Device:         device(inputNumber.Device),
		StateTopic:     topic,
		CommandTopic:   cmdTopic,
		AvTopic:        client.BridgeStateTopic(),
		EntityCategory: inputNumber.EntityCategory,
		Name:           inputNumber.Name,
		UniqueId:       inputNumber.UniqueId,
		Icon:           inputNumber.Icon,
		Platform:       "mqtt",
		Min:            inputNumber.Min,
		Max:            inputNumber.Max,
		Step:           inputNumber.Step,
		Mode:           inputNumber.Mode,
		InitialValue:   inputNumber.InitialValue,
	}
	return disConfig
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
