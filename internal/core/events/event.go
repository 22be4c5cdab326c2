package events

import (
	"encoding/json"
	"sort"
	"strings"

	. "github.com/berfenger/powerwall2mqtt/internal/core/domain"
	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"
	"github.com/samber/lo"
)

func ControllerStatusToUpdateEvents(running bool) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_CONTROLLER_STATUS,
			},
			Value: running,
		},
	}
}

func OperationModeToUpdateEvents(mode powerwall.OperatingMode) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_OPERATION_MODE,
			},
			Value:    float64(mode),
			Decimals: 0,
		},
		SelectSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SELECT_ID_OPERATION_MODE,
			},
			Value: mode.String(),
		},
	}
}

func LogLevelToUpdateEvents(level int) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: INPUT_NUMBER_ID_LOG_LEVEL,
			},
			Value:    float64(level),
			Decimals: 0,
		},
	}
}

// NoticesToUpdateEvents renders the active notices as a single line, sorted by key.
func NoticesToUpdateEvents(notices map[string]string) []SensorUpdateEvent {
	keys := lo.Keys(notices)
	sort.Strings(keys)
	messages := lo.Map(keys, func(k string, _ int) string { return notices[k] })
	return []SensorUpdateEvent{
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_NOTICES,
			},
			Value: strings.Join(messages, "; "),
		},
	}
}

// NoticesPayload is the retained JSON document of active notices.
func NoticesPayload(notices map[string]string) string {
	if notices == nil {
		notices = map[string]string{}
	}
	b, _ := json.Marshal(notices)
	return string(b)
}

// ParameterToUpdateEvent mirrors a parameter value on its text entity.
func ParameterToUpdateEvent(key, value string) SensorUpdateEvent {
	return TextEntityUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: key,
		},
		Value: value,
	}
}
