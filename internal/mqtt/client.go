package mqtt

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	MQTT_PAYLOAD_PRESS   = "PRESS"

	MQTT_COMMAND_BUTTON    = "button"
	MQTT_COMMAND_SELECT    = "select"
	MQTT_COMMAND_NUMBER    = "number"
	MQTT_COMMAND_TEXT      = "text"
	MQTT_COMMAND_GENERIC   = "command"
	MQTT_COMMAND_LOG_LEVEL = "log_level"
	MQTT_COMMAND_HA_STATUS = "ha_status"
)

var ErrNotACommand = errors.New("not a command topic")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("powerwall_%d", rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:     mqtt.NewClient(opts),
		cfg:        cfg.MQTT,
		extractors: commandExtractors(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client     mqtt.Client
	cfg        config.MQTTConfig
	extractors []commandExtractor
}

type commandExtractor struct {
	command string
	regexp  *regexp.Regexp
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Param    string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) BridgeNoticesTopic() string {
	return fmt.Sprintf("%s/bridge/notices", c.baseTopic())
}

func (c *MQTTClient) BridgeLogLevelTopic() string {
	return fmt.Sprintf("%s/bridge/log_level", c.baseTopic())
}

func (c *MQTTClient) HAStatusTopic() string {
	return fmt.Sprintf("%s/status", c.cfg.HADiscoveryTopic)
}

func (c *MQTTClient) HADiscoveryTopic(component, deviceId, entityId string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.cfg.HADiscoveryTopic, component, deviceId, entityId)
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) ButtonCommandTopic(id string) string {
	return fmt.Sprintf("%s/button/%s/press", c.baseTopic(), id)
}

func (c *MQTTClient) SelectStateTopic(id string) string {
	return fmt.Sprintf("%s/select/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) SelectCommandTopic(id string) string {
	return fmt.Sprintf("%s/select/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) TextStateTopic(id string) string {
	return fmt.Sprintf("%s/text/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) TextCommandTopic(id string) string {
	return fmt.Sprintf("%s/text/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) InputNumberStateTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/state", c.baseTopic(), id)
}

func (c *MQTTClient) InputNumberCommandTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/set", c.baseTopic(), id)
}

func (c *MQTTClient) GenericCommandTopic(name string) string {
	return fmt.Sprintf("%s/command/%s", c.baseTopic(), name)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.parseCommand(msg.Topic(), string(msg.Payload()))
}

func (c *MQTTClient) parseCommand(topic, payload string) (*ParsedMQTTCommand, error) {
	if topic == c.HAStatusTopic() {
		return &ParsedMQTTCommand{Command: MQTT_COMMAND_HA_STATUS, Payload: payload}, nil
	}
	if topic == c.BridgeLogLevelTopic() {
		if _, err := strconv.Atoi(strings.TrimSpace(payload)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", payload, err)
		}
		return &ParsedMQTTCommand{Command: MQTT_COMMAND_LOG_LEVEL, Payload: strings.TrimSpace(payload)}, nil
	}
	for _, ex := range c.extractors {
		matches := ex.regexp.FindStringSubmatch(topic)
		if len(matches) != 2 {
			continue
		}
		if ex.command == MQTT_COMMAND_NUMBER {
			// try to parse a valid number
			if _, err := strconv.ParseFloat(payload, 64); err != nil {
				return nil, err
			}
		}
		return &ParsedMQTTCommand{
			DeviceId: matches[1],
			Command:  ex.command,
			Payload:  payload,
		}, nil
	}
	return nil, ErrNotACommand
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// SubscribeToCommandTopics subscribes to every topic under the base topic
// and to the Home Assistant status topic.
func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.SubscribeMultiple(map[string]byte{
		c.commandTopic():  1,
		c.HAStatusTopic(): 1,
	}, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func commandExtractors(baseTopic string) []commandExtractor {
	base := regexp.QuoteMeta(baseTopic)
	return []commandExtractor{
		{MQTT_COMMAND_BUTTON, regexp.MustCompile(fmt.Sprintf("^%s/button/([a-zA-Z0-9_]+)/press$", base))},
		{MQTT_COMMAND_SELECT, regexp.MustCompile(fmt.Sprintf("^%s/select/([a-zA-Z0-9_]+)/set$", base))},
		{MQTT_COMMAND_NUMBER, regexp.MustCompile(fmt.Sprintf("^%s/number/([a-zA-Z0-9_]+)/set$", base))},
		{MQTT_COMMAND_TEXT, regexp.MustCompile(fmt.Sprintf("^%s/text/([a-zA-Z0-9_]+)/set$", base))},
		{MQTT_COMMAND_GENERIC, regexp.MustCompile(fmt.Sprintf("^%s/command/([A-Za-z_]+)$", base))},
	}
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
