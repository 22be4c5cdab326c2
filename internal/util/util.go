package util

import (
	"github.com/berfenger/powerwall2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:  zap.DebugLevel,
		LogFormat: config.LOG_FORMAT_CONSOLE,
		Gateway: config.GatewayConfig{
			Host:               "-.-.-.-",
			Password:           "secret",
			SerialNumber:       "TG0000000000",
			Credentialed:       true,
			InsecureSkipVerify: true,
			TimeoutMillis:      2000,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "powerwall",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis:     5000,
			LongPollIntervalMillis: 60000,
		},
		Port: 8080,
	}
}
