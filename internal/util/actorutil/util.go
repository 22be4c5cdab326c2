package actorutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.DPanicLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// commandPayload is the optional JSON body of a generic command.
type commandPayload struct {
	Value json.RawMessage `json:"value"`
}

// ParsedMQTTCommandToCommand maps a command received over MQTT to the message
// the controller understands: a domain.ControllerCommand or a
// domain.ParameterUpdate. A nil message without error means the command is
// valid but needs no action.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (any, error) {
	switch cmd.Command {
	case mqtt.MQTT_COMMAND_BUTTON:
		switch cmd.DeviceId {
		case domain.BUTTON_ID_UPDATE_PROFILE:
			return domain.UpdateProfileCommand{}, nil
		case domain.BUTTON_ID_REMOVE_NOTICES_ALL:
			return domain.RemoveNoticesAllCommand{}, nil
		case domain.BUTTON_ID_QUERY:
			return domain.QueryCommand{}, nil
		}
	case mqtt.MQTT_COMMAND_SELECT:
		if cmd.DeviceId == domain.SELECT_ID_OPERATION_MODE {
			return domain.OperationCommand{Mode: strings.TrimSpace(cmd.Payload)}, nil
		}
	case mqtt.MQTT_COMMAND_NUMBER:
		if cmd.DeviceId == domain.INPUT_NUMBER_ID_LOG_LEVEL {
			level, err := parseLevel(cmd.Payload)
			if err != nil {
				return nil, err
			}
			return domain.DebugCommand{Level: &level}, nil
		}
	case mqtt.MQTT_COMMAND_TEXT:
		return domain.ParameterUpdate{Key: cmd.DeviceId, Value: cmd.Payload}, nil
	case mqtt.MQTT_COMMAND_LOG_LEVEL:
		level, err := parseLevel(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.RestoreLogLevelCommand{Level: level}, nil
	case mqtt.MQTT_COMMAND_HA_STATUS:
		if cmd.Payload == mqtt.MQTT_PAYLOAD_ONLINE {
			return domain.HubOnlineCommand{}, nil
		}
		return nil, nil
	case mqtt.MQTT_COMMAND_GENERIC:
		return genericCommand(cmd.DeviceId, cmd.Payload)
	}
	return nil, fmt.Errorf("%w: %s %s", domain.ErrUnsupportedCommand, cmd.Command, cmd.DeviceId)
}

func genericCommand(name, payload string) (any, error) {
	value, err := commandValue(payload)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(name) {
	case domain.COMMAND_UPDATE_PROFILE:
		return domain.UpdateProfileCommand{}, nil
	case domain.COMMAND_REMOVE_NOTICES_ALL:
		return domain.RemoveNoticesAllCommand{}, nil
	case domain.COMMAND_QUERY:
		return domain.QueryCommand{}, nil
	case domain.COMMAND_DELETE:
		return domain.DeleteCommand{}, nil
	case domain.COMMAND_DEBUG:
		if value == "" {
			return domain.DebugCommand{}, nil
		}
		level, err := parseLevel(value)
		if err != nil {
			return nil, err
		}
		return domain.DebugCommand{Level: &level}, nil
	case domain.COMMAND_OPERATION:
		return domain.OperationCommand{Mode: value}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCommand, name)
}

// commandValue extracts the value of a {"value": ...} payload. Plain text
// payloads are taken as the value itself.
func commandValue(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil
	}
	if !strings.HasPrefix(payload, "{") {
		return payload, nil
	}
	var p commandPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("invalid command payload: %w", err)
	}
	if len(p.Value) == 0 || string(p.Value) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	return string(p.Value), nil
}

func parseLevel(payload string) (int, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", payload, err)
	}
	return int(value), nil
}
