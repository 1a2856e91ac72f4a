// Package receiver binds a lora_receiver config block to a receiver
// component: it validates the block, then constructs, registers and wires
// the receiver through injected collaborators.
//
//	b := receiver.New[S](factory, registry, sensors, logger)
//	cfg, err := b.Validate(raw)   // no collaborator is touched
//	r, err := b.Apply(cfg)        // construct, sensors, register, pins, attach
//
// S is the sensor handle type of the host: a code expression when generating
// firmware source, a live sensor when running.
package receiver

import (
	"loragw/errcode"
	"loragw/types"

	"github.com/charmbracelet/log"
)

// Receiver is the setter surface of a receiver component.
type Receiver[S any] interface {
	SetDIO1Pin(pin int)
	SetRSTPin(pin int)
	SetBusyPin(pin int)

	SetPowerSensor(s S)
	SetConsumptionSensor(s S)
	SetGenerationSensor(s S)
	SetBatterySensor(s S)
	SetRSSISensor(s S)
	SetSNRSensor(s S)
	SetPacketCounterSensor(s S)
	SetMissedPacketsSensor(s S)
}

// Factory constructs a receiver with the given object id.
type Factory[S any] interface {
	NewReceiver(id string) (Receiver[S], error)
}

// Registry hands a constructed receiver to the host lifecycle.
type Registry[S any] interface {
	Register(id string, r Receiver[S], cfg types.ReceiverConfig) error
}

// SensorFactory creates one sensor handle from a validated sensor block.
type SensorFactory[S any] interface {
	NewSensor(cfg types.SensorConfig) (S, error)
}

// Binding validates and applies lora_receiver blocks.
type Binding[S any] struct {
	factory  Factory[S]
	registry Registry[S]
	sensors  SensorFactory[S]
	log      *log.Logger
	table    []slot[S]
}

// New returns a binding over the given collaborators. logger may be nil.
func New[S any](f Factory[S], r Registry[S], s SensorFactory[S], logger *log.Logger) *Binding[S] {
	if logger == nil {
		logger = log.Default()
	}
	return &Binding[S]{
		factory:  f,
		registry: r,
		sensors:  s,
		log:      logger,
		table:    slots[S](),
	}
}

// Validate checks raw without side effects. See validate.go for the rules.
func (b *Binding[S]) Validate(raw map[string]any) (types.ReceiverConfig, error) {
	return validate(b.table, raw)
}

// Apply constructs and wires a receiver from a validated config. Sensor
// handles are created before the receiver is registered, so a sensor failure
// leaves nothing registered. The first collaborator failure aborts; nothing
// is retried.
func (b *Binding[S]) Apply(cfg types.ReceiverConfig) (Receiver[S], error) {
	r, err := b.factory.NewReceiver(cfg.ID)
	if err != nil {
		return nil, errcode.Wrap(errcode.ConstructFailed, cfg.ID, err)
	}
	if r == nil {
		return nil, errcode.New(errcode.ConstructFailed, cfg.ID, "factory returned no receiver")
	}

	type pending struct {
		slot   slot[S]
		handle S
	}
	var attach []pending
	for _, s := range b.table {
		sc, ok := cfg.Sensor(s.key)
		if !ok {
			continue
		}
		h, err := b.sensors.NewSensor(sc)
		if err != nil {
			return nil, errcode.Wrap(errcode.SensorFailed, s.key, err)
		}
		attach = append(attach, pending{slot: s, handle: h})
	}

	if err := b.registry.Register(cfg.ID, r, cfg); err != nil {
		return nil, errcode.Wrap(errcode.RegisterFailed, cfg.ID, err)
	}

	r.SetDIO1Pin(cfg.DIO1Pin)
	r.SetRSTPin(cfg.RSTPin)
	r.SetBusyPin(cfg.BusyPin)

	for _, p := range attach {
		p.slot.attach(r, p.handle)
	}

	b.log.Info("receiver configured", "id", cfg.ID,
		"dio1", cfg.DIO1Pin, "rst", cfg.RSTPin, "busy", cfg.BusyPin, "sensors", len(attach))
	return r, nil
}

// Configure validates raw and applies it.
func (b *Binding[S]) Configure(raw map[string]any) (Receiver[S], error) {
	cfg, err := b.Validate(raw)
	if err != nil {
		return nil, err
	}
	return b.Apply(cfg)
}
