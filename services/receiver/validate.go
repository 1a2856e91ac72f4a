package receiver

import (
	"math"
	"sort"

	"loragw/errcode"
	"loragw/services/sensor"
	"loragw/types"
	"loragw/x/conv"
)

// Component-level keys.
const (
	KeyDIO1Pin       = "dio1_pin"
	KeyRSTPin        = "rst_pin"
	KeyBusyPin       = "busy_pin"
	KeyID            = "id"
	KeySetupPriority = "setup_priority"
)

// DefaultID is the object id used when the block has no "id".
const DefaultID = "lora_receiver"

// validate checks, in order: the three pins, id, setup_priority, each present
// sensor block in table order, then unknown keys. The first failure wins.
func validate[S any](table []slot[S], raw map[string]any) (types.ReceiverConfig, error) {
	var cfg types.ReceiverConfig

	pins := []struct {
		key string
		dst *int
	}{
		{KeyDIO1Pin, &cfg.DIO1Pin},
		{KeyRSTPin, &cfg.RSTPin},
		{KeyBusyPin, &cfg.BusyPin},
	}
	for _, p := range pins {
		v, ok := raw[p.key]
		if !ok || v == nil {
			return types.ReceiverConfig{}, errcode.New(errcode.MissingRequiredField, p.key, "required")
		}
		n, ok := conv.Int(v)
		if !ok {
			return types.ReceiverConfig{}, errcode.New(errcode.TypeMismatch, p.key,
				"expected int, got "+conv.TypeName(v))
		}
		if n < 0 {
			return types.ReceiverConfig{}, errcode.New(errcode.InvalidValue, p.key, "pin must not be negative")
		}
		*p.dst = n
	}

	cfg.ID = DefaultID
	if v, ok := raw[KeyID]; ok {
		id, isStr := v.(string)
		if !isStr {
			return types.ReceiverConfig{}, errcode.New(errcode.TypeMismatch, KeyID,
				"expected string, got "+conv.TypeName(v))
		}
		if !sensor.IsIdent(id) {
			return types.ReceiverConfig{}, errcode.New(errcode.InvalidValue, KeyID, "not an identifier")
		}
		cfg.ID = id
	}

	if v, ok := raw[KeySetupPriority]; ok {
		f, isNum := conv.Float(v)
		if !isNum {
			return types.ReceiverConfig{}, errcode.New(errcode.TypeMismatch, KeySetupPriority,
				"expected float, got "+conv.TypeName(v))
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return types.ReceiverConfig{}, errcode.New(errcode.InvalidValue, KeySetupPriority, "not finite")
		}
		p := float32(f)
		cfg.SetupPriority = &p
	}

	known := map[string]bool{
		KeyDIO1Pin: true, KeyRSTPin: true, KeyBusyPin: true,
		KeyID: true, KeySetupPriority: true,
	}
	ids := map[string]string{cfg.ID: KeyID}
	for _, s := range table {
		known[s.key] = true
		v, ok := raw[s.key]
		if !ok {
			continue
		}
		sc, err := s.schema.Validate(s.key, v)
		if err != nil {
			return types.ReceiverConfig{}, err
		}
		if sc.ID == "" {
			sc.ID = cfg.ID + "_" + s.key
		}
		if other, dup := ids[sc.ID]; dup {
			return types.ReceiverConfig{}, errcode.New(errcode.InvalidSensorConfig, s.key+"."+sensor.FieldID,
				"id "+sc.ID+" already used by "+other)
		}
		ids[sc.ID] = s.key
		cfg.Sensors = append(cfg.Sensors, sc)
	}

	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return types.ReceiverConfig{}, errcode.New(errcode.UnknownKey, unknown[0], "unknown key")
	}
	return cfg, nil
}
