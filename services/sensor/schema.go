package sensor

import (
	"sort"
	"strings"

	"loragw/errcode"
	"loragw/types"
	"loragw/x/conv"
	"loragw/x/mathx"
)

// Sensor block field names.
const (
	FieldName             = "name"
	FieldID               = "id"
	FieldUnit             = "unit_of_measurement"
	FieldDeviceClass      = "device_class"
	FieldStateClass       = "state_class"
	FieldAccuracyDecimals = "accuracy_decimals"
	FieldIcon             = "icon"
	FieldInternal         = "internal"
	FieldEntityCategory   = "entity_category"
)

// Schema is the per-key template a sensor block is validated against.
// Absent fields take the template's values.
type Schema struct {
	Unit             types.Unit
	DeviceClass      types.DeviceClass
	StateClass       types.StateClass
	AccuracyDecimals int
}

// Validate checks one sensor block and returns its typed form. raw may be nil
// (bare "key:" in YAML), meaning every field takes its default. All failures
// carry errcode.InvalidSensorConfig and the dotted key of the bad field.
func (s Schema) Validate(key string, raw any) (types.SensorConfig, error) {
	cfg := types.SensorConfig{
		Key:              key,
		Name:             DefaultName(key),
		Unit:             s.Unit,
		DeviceClass:      s.DeviceClass,
		StateClass:       s.StateClass,
		AccuracyDecimals: s.AccuracyDecimals,
	}
	if raw == nil {
		return cfg, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return cfg, errcode.New(errcode.InvalidSensorConfig, key,
			"expected a mapping, got "+conv.TypeName(raw))
	}

	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		v := m[f]
		path := key + "." + f
		bad := func(msg string) error {
			return errcode.New(errcode.InvalidSensorConfig, path, msg)
		}
		switch f {
		case FieldName:
			str, ok := v.(string)
			if !ok || str == "" {
				return cfg, bad("expected a non-empty string")
			}
			cfg.Name = str
		case FieldID:
			str, ok := v.(string)
			if !ok || !IsIdent(str) {
				return cfg, bad("expected an identifier")
			}
			cfg.ID = str
		case FieldUnit:
			str, ok := v.(string)
			if !ok {
				return cfg, bad("expected a string, got " + conv.TypeName(v))
			}
			cfg.Unit = types.Unit(str)
		case FieldDeviceClass:
			str, ok := v.(string)
			if !ok || !types.DeviceClass(str).Valid() {
				return cfg, bad("unknown device class")
			}
			cfg.DeviceClass = types.DeviceClass(str)
		case FieldStateClass:
			str, ok := v.(string)
			if !ok || !types.StateClass(str).Valid() {
				return cfg, bad("unknown state class")
			}
			cfg.StateClass = types.StateClass(str)
		case FieldAccuracyDecimals:
			n, ok := conv.Int(v)
			if !ok {
				return cfg, bad("expected an integer, got " + conv.TypeName(v))
			}
			if !mathx.Between(n, 0, mathx.MaxDecimals) {
				return cfg, bad("must be between 0 and 8")
			}
			cfg.AccuracyDecimals = n
		case FieldIcon:
			str, ok := v.(string)
			if !ok || !validIcon(str) {
				return cfg, bad(`expected "namespace:name"`)
			}
			cfg.Icon = str
		case FieldInternal:
			b, ok := v.(bool)
			if !ok {
				return cfg, bad("expected a bool, got " + conv.TypeName(v))
			}
			cfg.Internal = b
		case FieldEntityCategory:
			str, ok := v.(string)
			if !ok || !types.EntityCategory(str).Valid() {
				return cfg, bad("unknown entity category")
			}
			cfg.EntityCategory = types.EntityCategory(str)
		default:
			return cfg, bad("unknown field")
		}
	}
	return cfg, nil
}

// DefaultName turns a config key into a display name: "packet_counter" ->
// "Packet Counter".
func DefaultName(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		switch w {
		case "rssi", "snr":
			words[i] = strings.ToUpper(w)
		case "":
		default:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// IsIdent reports whether s is usable as a C identifier.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func validIcon(s string) bool {
	ns, name, ok := strings.Cut(s, ":")
	return ok && ns != "" && name != ""
}
