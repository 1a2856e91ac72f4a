package types

// ReceiverConfig is a validated lora_receiver block.
type ReceiverConfig struct {
	ID            string   // component object id
	SetupPriority *float32 // nil => component default

	DIO1Pin int
	RSTPin  int
	BusyPin int

	// Present optional sensors, in declaration order.
	Sensors []SensorConfig
}

// Sensor returns the sensor block for key, if present.
func (c ReceiverConfig) Sensor(key string) (SensorConfig, bool) {
	for _, s := range c.Sensors {
		if s.Key == key {
			return s, true
		}
	}
	return SensorConfig{}, false
}

// Has reports whether the optional sensor key is present.
func (c ReceiverConfig) Has(key string) bool {
	_, ok := c.Sensor(key)
	return ok
}
