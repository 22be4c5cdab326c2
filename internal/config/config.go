package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	LogFormat string        `mapstructure:"log_format"`
	Gateway   GatewayConfig `mapstructure:"gateway"`
	MQTT      MQTTConfig    `mapstructure:"mqtt"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type GatewayConfig struct {
	Host               string
	Password           string
	SerialNumber       string `mapstructure:"serial_number"`
	Credentialed       bool
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	ForceSmOff         bool   `mapstructure:"force_sm_off"`
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMillis) * time.Millisecond
}

type MonitorConfig struct {
	PollIntervalMillis     uint32 `mapstructure:"poll_interval_millis"`
	LongPollIntervalMillis uint32 `mapstructure:"long_poll_interval_millis"`
}

func (m MonitorConfig) ShortPollInterval() time.Duration {
	return time.Duration(m.PollIntervalMillis) * time.Millisecond
}

func (m MonitorConfig) LongPollInterval() time.Duration {
	return time.Duration(m.LongPollIntervalMillis) * time.Millisecond
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

var baseTopicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// InitialParameters seeds the raw parameter set the controller receives before
// any value arrives over MQTT. Unset values are left out so defaults apply.
func InitialParameters(cfg GatewayConfig) map[string]string {
	params := map[string]string{}
	if cfg.Host != "" {
		params["ip_address"] = cfg.Host
	}
	if cfg.Credentialed {
		if cfg.SerialNumber != "" {
			params["serial_number"] = cfg.SerialNumber
		}
		if cfg.Password != "" {
			params["password"] = cfg.Password
		}
	}
	return params
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
