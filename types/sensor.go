package types

// Unit is a unit of measurement string as shown to the user.
type Unit string

const (
	UnitNone             Unit = ""
	UnitWatt             Unit = "W"
	UnitKilowattHour     Unit = "kWh"
	UnitVolt             Unit = "V"
	UnitDecibelMilliwatt Unit = "dBm"
	UnitDecibel          Unit = "dB"
	UnitSecond           Unit = "s"
	UnitPercent          Unit = "%"
)

// DeviceClass classifies what a sensor measures.
type DeviceClass string

const (
	DeviceClassNone           DeviceClass = ""
	DeviceClassApparentPower  DeviceClass = "apparent_power"
	DeviceClassBattery        DeviceClass = "battery"
	DeviceClassCurrent        DeviceClass = "current"
	DeviceClassDuration       DeviceClass = "duration"
	DeviceClassEnergy         DeviceClass = "energy"
	DeviceClassFrequency      DeviceClass = "frequency"
	DeviceClassHumidity       DeviceClass = "humidity"
	DeviceClassPower          DeviceClass = "power"
	DeviceClassPowerFactor    DeviceClass = "power_factor"
	DeviceClassSignalStrength DeviceClass = "signal_strength"
	DeviceClassTemperature    DeviceClass = "temperature"
	DeviceClassTimestamp      DeviceClass = "timestamp"
	DeviceClassVoltage        DeviceClass = "voltage"
)

var deviceClasses = map[DeviceClass]struct{}{
	DeviceClassNone: {}, DeviceClassApparentPower: {}, DeviceClassBattery: {},
	DeviceClassCurrent: {}, DeviceClassDuration: {}, DeviceClassEnergy: {},
	DeviceClassFrequency: {}, DeviceClassHumidity: {}, DeviceClassPower: {},
	DeviceClassPowerFactor: {}, DeviceClassSignalStrength: {},
	DeviceClassTemperature: {}, DeviceClassTimestamp: {}, DeviceClassVoltage: {},
}

// Valid reports whether d is a known device class (or none).
func (d DeviceClass) Valid() bool {
	_, ok := deviceClasses[d]
	return ok
}

// StateClass says whether a value is an instantaneous measurement or a total.
type StateClass string

const (
	StateClassNone            StateClass = ""
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotal           StateClass = "total"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

func (s StateClass) Valid() bool {
	switch s {
	case StateClassNone, StateClassMeasurement, StateClassTotal, StateClassTotalIncreasing:
		return true
	}
	return false
}

// EntityCategory marks a sensor as configuration or diagnostic.
type EntityCategory string

const (
	EntityCategoryNone       EntityCategory = ""
	EntityCategoryConfig     EntityCategory = "config"
	EntityCategoryDiagnostic EntityCategory = "diagnostic"
)

func (e EntityCategory) Valid() bool {
	switch e {
	case EntityCategoryNone, EntityCategoryConfig, EntityCategoryDiagnostic:
		return true
	}
	return false
}

// SensorConfig is one validated optional sensor block.
type SensorConfig struct {
	Key              string         // config key, e.g. "power"
	ID               string         // object id; generated when absent
	Name             string         // display name
	Unit             Unit           // unit_of_measurement
	DeviceClass      DeviceClass    // device_class
	StateClass       StateClass     // state_class
	AccuracyDecimals int            // accuracy_decimals
	Icon             string         // optional, "mdi:..."
	Internal         bool           // hidden from the frontend
	EntityCategory   EntityCategory // optional
}
