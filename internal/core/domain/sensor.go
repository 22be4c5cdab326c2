package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/powerwall2mqtt/pkg/powerwall"
	"github.com/carlmjohnson/versioninfo"
	"github.com/samber/lo"
)

const (
	CONTROLLER_ADDRESS = "pw"
	CONTROLLER_NAME    = "PowerWall"

	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_CONTROLLER_STATUS  = "pw_status"
	SENSOR_ID_OPERATION_MODE     = "pw_operation_mode"
	SENSOR_ID_NOTICES            = "notices"
	BUTTON_ID_UPDATE_PROFILE     = "update_profile"
	BUTTON_ID_REMOVE_NOTICES_ALL = "remove_notices_all"
	BUTTON_ID_QUERY              = "query"
	INPUT_NUMBER_ID_LOG_LEVEL    = "log_level"
	SELECT_ID_OPERATION_MODE     = "operation_mode"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_APPARENT_POWER  = "apparent_power"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_FREQUENCY       = "frequency"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_REACTIVE_POWER  = "reactive_power"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	INPUT_NUMBER_MODE_BOX        = "box"
	INPUT_NUMBER_MODE_SLIDER     = "slider"
	TEXT_MODE_TEXT               = "text"
	TEXT_MODE_PASSWORD           = "password"
)

// MeterDefinition binds a gateway aggregate key to its hub node.
type MeterDefinition struct {
	Key     string
	Address string
	Name    string
}

var Meters = []MeterDefinition{
	{Key: "site", Address: "pw_grid", Name: "Grid"},
	{Key: "battery", Address: "pw_battery", Name: "Battery"},
	{Key: "load", Address: "pw_load", Name: "Home"},
	{Key: "solar", Address: "pw_solar", Name: "Solar"},
	{Key: "busway", Address: "pw_busway", Name: "Busway"},
	{Key: "frequency", Address: "pw_frequency", Name: "Frequency"},
	{Key: "generator", Address: "pw_generator", Name: "Generator"},
}

type MeterSlot struct {
	Measurement      powerwall.Measurement
	Name             string
	Unit             string
	DeviceClass      string
	StateClass       string
	EnabledByDefault *bool
}

var MeterSlots = []MeterSlot{
	{Measurement: powerwall.InstantPower, Name: "Power", Unit: "W", DeviceClass: DEVICE_CLASS_POWER, StateClass: STATE_CLASS_MEASUREMENT},
	{Measurement: powerwall.InstantReactivePower, Name: "Reactive power", Unit: "var", DeviceClass: DEVICE_CLASS_REACTIVE_POWER, StateClass: STATE_CLASS_MEASUREMENT, EnabledByDefault: optionalBool(false)},
	{Measurement: powerwall.InstantApparentPower, Name: "Apparent power", Unit: "VA", DeviceClass: DEVICE_CLASS_APPARENT_POWER, StateClass: STATE_CLASS_MEASUREMENT, EnabledByDefault: optionalBool(false)},
	{Measurement: powerwall.Frequency, Name: "Frequency", Unit: "Hz", DeviceClass: DEVICE_CLASS_FREQUENCY, StateClass: STATE_CLASS_MEASUREMENT},
	{Measurement: powerwall.EnergyExported, Name: "Energy exported", Unit: "Wh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING},
	{Measurement: powerwall.EnergyImported, Name: "Energy imported", Unit: "Wh", DeviceClass: DEVICE_CLASS_ENERGY, StateClass: STATE_CLASS_TOTAL_INCREASING},
	{Measurement: powerwall.InstantAverageVoltage, Name: "Voltage", Unit: "V", DeviceClass: DEVICE_CLASS_VOLTAGE, StateClass: STATE_CLASS_MEASUREMENT},
	{Measurement: powerwall.InstantTotalCurrent, Name: "Current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT},
	{Measurement: powerwall.IACurrent, Name: "Phase A current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT, EnabledByDefault: optionalBool(false)},
	{Measurement: powerwall.IBCurrent, Name: "Phase B current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT, EnabledByDefault: optionalBool(false)},
	{Measurement: powerwall.ICCurrent, Name: "Phase C current", Unit: "A", DeviceClass: DEVICE_CLASS_CURRENT, StateClass: STATE_CLASS_MEASUREMENT, EnabledByDefault: optionalBool(false)},
}

func MeterSensorId(address string, m powerwall.Measurement) string {
	return fmt.Sprintf("%s_%s", address, m)
}

func ControllerDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("powerwall_%s", md5HashShort(baseTopic)),
		Manufacturer: "Tesla",
		Model:        "Powerwall Gateway",
		Version:      versioninfo.Short(),
		Name:         CONTROLLER_NAME,
	}
}

func MeterDevice(controller Device, meter MeterDefinition) Device {
	return Device{
		Id:           fmt.Sprintf("%s_%s", controller.Id, meter.Address),
		Manufacturer: "Tesla",
		Model:        "Powerwall Meter",
		Version:      controller.Version,
		Name:         fmt.Sprintf("%s %s", CONTROLLER_NAME, meter.Name),
		ViaDevice:    controller.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func MeterNode(controller Device, meter MeterDefinition) Node {
	device := MeterDevice(controller, meter)
	sensors := lo.Map(MeterSlots, func(slot MeterSlot, i int) GenericSensor {
		id := MeterSensorId(meter.Address, slot.Measurement)
		dev := device
		// full device info travels with the first entity only
		if i > 0 {
			dev = IdDevice(device)
		}
		return GenericSensor{
			Device:            dev,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              slot.Name,
			StateClass:        slot.StateClass,
			DeviceClass:       slot.DeviceClass,
			UnitOfMeasurement: slot.Unit,
			EnabledByDefault:  slot.EnabledByDefault,
			UniqueId:          uniqueId(device.Id, id),
		}
	})
	return Node{
		Address: meter.Address,
		Name:    meter.Name,
		Device:  device,
		Sensors: sensors,
	}
}

func ControllerSensors(device Device, credentialed bool) []GenericSensor {
	sensors := []GenericSensor{
		{
			Device:         device,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Connection state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(device.Id, SENSOR_ID_BRIDGE_STATE),
		},
		{
			Device:         IdDevice(device),
			Id:             SENSOR_ID_CONTROLLER_STATUS,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Node server status",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(device.Id, SENSOR_ID_CONTROLLER_STATUS),
		},
		{
			Device:         IdDevice(device),
			Id:             SENSOR_ID_NOTICES,
			SensorType:     SENSOR_TYPE_SENSOR,
			Name:           "Notices",
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			Icon:           "mdi:alert-circle-outline",
			UniqueId:       uniqueId(device.Id, SENSOR_ID_NOTICES),
		},
	}
	if credentialed {
		sensors = append(sensors, GenericSensor{
			Device:     IdDevice(device),
			Id:         SENSOR_ID_OPERATION_MODE,
			SensorType: SENSOR_TYPE_SENSOR,
			Name:       "Operation mode index",
			StateClass: STATE_CLASS_MEASUREMENT,
			Icon:       "mdi:home-battery",
			UniqueId:   uniqueId(device.Id, SENSOR_ID_OPERATION_MODE),
		})
	}
	return sensors
}

func ControllerButtons(device Device) []GenericButton {
	return []GenericButton{
		{
			Device:         IdDevice(device),
			Id:             BUTTON_ID_UPDATE_PROFILE,
			Name:           "Update profile",
			Icon:           "mdi:file-refresh",
			EntityCategory: ENTITY_CLASS_CONFIG,
			UniqueId:       uniqueId(device.Id, BUTTON_ID_UPDATE_PROFILE),
		},
		{
			Device:         IdDevice(device),
			Id:             BUTTON_ID_REMOVE_NOTICES_ALL,
			Name:           "Remove notices",
			Icon:           "mdi:notification-clear-all",
			EntityCategory: ENTITY_CLASS_CONFIG,
			UniqueId:       uniqueId(device.Id, BUTTON_ID_REMOVE_NOTICES_ALL),
		},
		{
			Device:   IdDevice(device),
			Id:       BUTTON_ID_QUERY,
			Name:     "Query",
			Icon:     "mdi:refresh",
			UniqueId: uniqueId(device.Id, BUTTON_ID_QUERY),
		},
	}
}

func ControllerInputNumbers(device Device) []GenericInputNumber {
	return []GenericInputNumber{
		{
			Device:         IdDevice(device),
			Id:             INPUT_NUMBER_ID_LOG_LEVEL,
			Name:           "Log level",
			Icon:           "mdi:math-log",
			Min:            10,
			Max:            50,
			Step:           10,
			Mode:           INPUT_NUMBER_MODE_BOX,
			InitialValue:   DEFAULT_LOG_LEVEL,
			EntityCategory: ENTITY_CLASS_CONFIG,
			UniqueId:       uniqueId(device.Id, INPUT_NUMBER_ID_LOG_LEVEL),
		},
	}
}

func OperationModeSelect(device Device) GenericSelect {
	return GenericSelect{
		Device:   IdDevice(device),
		Id:       SELECT_ID_OPERATION_MODE,
		Name:     "Operation mode",
		Icon:     "mdi:home-battery-outline",
		Options:  powerwall.OperatingModeNames(),
		UniqueId: uniqueId(device.Id, SELECT_ID_OPERATION_MODE),
	}
}

func ParameterText(device Device, key, name string, secret bool) GenericText {
	mode := TEXT_MODE_TEXT
	if secret {
		mode = TEXT_MODE_PASSWORD
	}
	return GenericText{
		Device:         IdDevice(device),
		Id:             key,
		Name:           name,
		Mode:           mode,
		Icon:           "mdi:form-textbox",
		EntityCategory: ENTITY_CLASS_CONFIG,
		UniqueId:       uniqueId(device.Id, key),
	}
}

func ControllerNode(device Device, credentialed bool, texts []GenericText) Node {
	node := Node{
		Address:      CONTROLLER_ADDRESS,
		Name:         CONTROLLER_NAME,
		Device:       device,
		Sensors:      ControllerSensors(device, credentialed),
		Buttons:      ControllerButtons(device),
		InputNumbers: ControllerInputNumbers(device),
		Texts:        texts,
	}
	if credentialed {
		node.Selects = []GenericSelect{OperationModeSelect(device)}
	}
	return node
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
