package lorarx

import (
	"loragw/errcode"
	"loragw/services/component"
	"loragw/services/receiver"
	"loragw/services/sensor"
	"loragw/types"
)

// Host is the runtime side of the receiver binding: it builds Components and
// hands them to a component registry.
type Host struct {
	Deps     Deps
	Registry *component.Registry
}

// NewReceiver builds an unconfigured Component.
func (h *Host) NewReceiver(id string) (receiver.Receiver[*sensor.Sensor], error) {
	return New(id, h.Deps), nil
}

// Register adds the Component to the registry with the configured priority.
func (h *Host) Register(id string, r receiver.Receiver[*sensor.Sensor], cfg types.ReceiverConfig) error {
	c, ok := r.(*Component)
	if !ok {
		return errcode.New(errcode.RegisterFailed, id, "not a LoRa receiver component")
	}
	if h.Registry == nil {
		return errcode.New(errcode.RegisterFailed, id, "no component registry")
	}
	return h.Registry.Register(id, c, cfg.SetupPriority)
}

// Binding returns a receiver binding that builds runtime components.
func (h *Host) Binding(sensors *sensor.Factory) *receiver.Binding[*sensor.Sensor] {
	return receiver.New[*sensor.Sensor](h, h, sensors, h.Deps.Logger)
}
