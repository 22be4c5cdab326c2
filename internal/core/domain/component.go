package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, total_increasing (for acc energy)
	DeviceClass       string // voltage, current, power, energy
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericButton struct {
	Device         Device
	Id             string
	Name           string
	UniqueId       string
	Icon           string
	EntityCategory string
}

type GenericSelect struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
	Options  []string
}

type GenericText struct {
	Device         Device
	Id             string
	Name           string
	UniqueId       string
	Icon           string
	Mode           string // text, password
	EntityCategory string
}

type GenericInputNumber struct {
	Device         Device
	Id             string
	Name           string
	UniqueId       string
	Icon           string
	Max            float64
	Min            float64
	Step           float64
	Mode           string
	InitialValue   float64
	EntityCategory string
}

// Node groups the entities the hub shows for one device.
type Node struct {
	Address      string
	Name         string
	Device       Device
	Sensors      []GenericSensor
	Buttons      []GenericButton
	Selects      []GenericSelect
	Texts        []GenericText
	InputNumbers []GenericInputNumber
}
