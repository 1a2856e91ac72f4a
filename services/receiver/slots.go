package receiver

import (
	"loragw/services/sensor"
	"loragw/types"
)

// Optional sensor keys, in the order they are attached.
const (
	KeyPower         = "power"
	KeyConsumption   = "consumption"
	KeyGeneration    = "generation"
	KeyBattery       = "battery"
	KeyRSSI          = "rssi"
	KeySNR           = "snr"
	KeyPacketCounter = "packet_counter"
	KeyMissedPackets = "missed_packets"
)

// slot binds one optional sensor key to its template and setter.
type slot[S any] struct {
	key    string
	schema sensor.Schema
	attach func(r Receiver[S], s S)
}

// slots is the fixed attach table. Order matters.
func slots[S any]() []slot[S] {
	return []slot[S]{
		{
			key: KeyPower,
			schema: sensor.Schema{
				Unit:             types.UnitWatt,
				DeviceClass:      types.DeviceClassPower,
				StateClass:       types.StateClassMeasurement,
				AccuracyDecimals: 1,
			},
			attach: func(r Receiver[S], s S) { r.SetPowerSensor(s) },
		},
		{
			key: KeyConsumption,
			schema: sensor.Schema{
				Unit:             types.UnitKilowattHour,
				DeviceClass:      types.DeviceClassEnergy,
				StateClass:       types.StateClassTotalIncreasing,
				AccuracyDecimals: 3,
			},
			attach: func(r Receiver[S], s S) { r.SetConsumptionSensor(s) },
		},
		{
			key: KeyGeneration,
			schema: sensor.Schema{
				Unit:             types.UnitKilowattHour,
				DeviceClass:      types.DeviceClassEnergy,
				StateClass:       types.StateClassTotalIncreasing,
				AccuracyDecimals: 3,
			},
			attach: func(r Receiver[S], s S) { r.SetGenerationSensor(s) },
		},
		{
			key: KeyBattery,
			schema: sensor.Schema{
				Unit:             types.UnitVolt,
				DeviceClass:      types.DeviceClassVoltage,
				StateClass:       types.StateClassMeasurement,
				AccuracyDecimals: 2,
			},
			attach: func(r Receiver[S], s S) { r.SetBatterySensor(s) },
		},
		{
			key: KeyRSSI,
			schema: sensor.Schema{
				Unit:             types.UnitDecibelMilliwatt,
				DeviceClass:      types.DeviceClassSignalStrength,
				StateClass:       types.StateClassMeasurement,
				AccuracyDecimals: 0,
			},
			attach: func(r Receiver[S], s S) { r.SetRSSISensor(s) },
		},
		{
			key: KeySNR,
			schema: sensor.Schema{
				Unit:             types.UnitDecibel,
				StateClass:       types.StateClassMeasurement,
				AccuracyDecimals: 1,
			},
			attach: func(r Receiver[S], s S) { r.SetSNRSensor(s) },
		},
		{
			key: KeyPacketCounter,
			schema: sensor.Schema{
				StateClass: types.StateClassMeasurement,
			},
			attach: func(r Receiver[S], s S) { r.SetPacketCounterSensor(s) },
		},
		{
			key: KeyMissedPackets,
			schema: sensor.Schema{
				StateClass: types.StateClassMeasurement,
			},
			attach: func(r Receiver[S], s S) { r.SetMissedPacketsSensor(s) },
		},
	}
}

// SensorKeys lists the optional sensor keys in attach order.
func SensorKeys() []string {
	t := slots[struct{}]()
	out := make([]string, len(t))
	for i, s := range t {
		out[i] = s.key
	}
	return out
}

// Template returns the sensor template for an optional key.
func Template(key string) (sensor.Schema, bool) {
	for _, s := range slots[struct{}]() {
		if s.key == key {
			return s.schema, true
		}
	}
	return sensor.Schema{}, false
}
