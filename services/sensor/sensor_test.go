package sensor

import (
	"io"
	"testing"
	"time"

	"loragw/bus"
	"loragw/errcode"
	"loragw/types"

	"github.com/charmbracelet/log"
)

var powerSchema = Schema{
	Unit:             types.UnitWatt,
	DeviceClass:      types.DeviceClassPower,
	StateClass:       types.StateClassMeasurement,
	AccuracyDecimals: 1,
}

func TestValidate_NilTakesTemplate(t *testing.T) {
	cfg, err := powerSchema.Validate("power", nil)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Key != "power" || cfg.Name != "Power" || cfg.Unit != types.UnitWatt ||
		cfg.DeviceClass != types.DeviceClassPower || cfg.StateClass != types.StateClassMeasurement ||
		cfg.AccuracyDecimals != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate_Overrides(t *testing.T) {
	cfg, err := powerSchema.Validate("power", map[string]any{
		"name":              "Grid Power",
		"id":                "grid_power",
		"accuracy_decimals": 0,
		"icon":              "mdi:flash",
		"internal":          true,
		"entity_category":   "diagnostic",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Name != "Grid Power" || cfg.ID != "grid_power" || cfg.AccuracyDecimals != 0 ||
		cfg.Icon != "mdi:flash" || !cfg.Internal || cfg.EntityCategory != types.EntityCategoryDiagnostic {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]struct {
		raw     any
		wantKey string
	}{
		"not a mapping":      {raw: "yes", wantKey: "power"},
		"negative accuracy":  {raw: map[string]any{"accuracy_decimals": -1}, wantKey: "power.accuracy_decimals"},
		"too much accuracy":  {raw: map[string]any{"accuracy_decimals": 9}, wantKey: "power.accuracy_decimals"},
		"string accuracy":    {raw: map[string]any{"accuracy_decimals": "two"}, wantKey: "power.accuracy_decimals"},
		"bad device class":   {raw: map[string]any{"device_class": "loudness"}, wantKey: "power.device_class"},
		"bad state class":    {raw: map[string]any{"state_class": "sometimes"}, wantKey: "power.state_class"},
		"bad id":             {raw: map[string]any{"id": "9lives"}, wantKey: "power.id"},
		"bad icon":           {raw: map[string]any{"icon": "flash"}, wantKey: "power.icon"},
		"non-bool internal":  {raw: map[string]any{"internal": "yes"}, wantKey: "power.internal"},
		"unknown field":      {raw: map[string]any{"filters": []any{}}, wantKey: "power.filters"},
		"numeric unit":       {raw: map[string]any{"unit_of_measurement": 5}, wantKey: "power.unit_of_measurement"},
		"bad entity":         {raw: map[string]any{"entity_category": "misc"}, wantKey: "power.entity_category"},
		"empty display name": {raw: map[string]any{"name": ""}, wantKey: "power.name"},
	}
	for name, tc := range cases {
		_, err := powerSchema.Validate("power", tc.raw)
		if errcode.Of(err) != errcode.InvalidSensorConfig {
			t.Fatalf("%s: code = %v (err %v)", name, errcode.Of(err), err)
		}
		if got := errcode.KeyOf(err); got != tc.wantKey {
			t.Fatalf("%s: key = %q, want %q", name, got, tc.wantKey)
		}
	}
}

func TestValidate_FloatAccuracyAccepted(t *testing.T) {
	// JSON decoders hand back float64 for every number.
	cfg, err := powerSchema.Validate("power", map[string]any{"accuracy_decimals": 2.0})
	if err != nil || cfg.AccuracyDecimals != 2 {
		t.Fatalf("cfg = %+v, err = %v", cfg, err)
	}
}

func TestDefaultName(t *testing.T) {
	cases := map[string]string{
		"power":          "Power",
		"packet_counter": "Packet Counter",
		"missed_packets": "Missed Packets",
		"rssi":           "RSSI",
		"snr":            "SNR",
	}
	for in, want := range cases {
		if got := DefaultName(in); got != want {
			t.Fatalf("DefaultName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFactory_IDsAndDuplicates(t *testing.T) {
	f := NewFactory(nil, log.New(io.Discard))

	s, err := f.NewSensor(types.SensorConfig{Key: "power"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.ObjectID() != "sensor_power" {
		t.Fatalf("id = %q", s.ObjectID())
	}
	if _, err := f.NewSensor(types.SensorConfig{Key: "other", ID: "sensor_power"}); errcode.Of(err) != errcode.DuplicateID {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := f.NewSensor(types.SensorConfig{Key: "x", AccuracyDecimals: -2}); errcode.Of(err) != errcode.InvalidSensorConfig {
		t.Fatalf("accuracy err = %v", err)
	}
	if got, ok := f.Get("sensor_power"); !ok || got != s {
		t.Fatal("Get did not return the registered sensor")
	}
	if n := len(f.Sensors()); n != 1 {
		t.Fatalf("sensors = %d", n)
	}
}

func TestSensor_PublishStateRoundsAndRetains(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	f := NewFactory(conn, log.New(io.Discard))
	f.now = func() time.Time { return time.UnixMilli(1234) }

	s, err := f.NewSensor(types.SensorConfig{
		Key: "battery", ID: "bat", Name: "Battery", Unit: types.UnitVolt, AccuracyDecimals: 2,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.HasState() {
		t.Fatal("state before first publish")
	}
	s.PublishState(3.14159)

	if v, ok := s.State(); !ok || v != 3.14 {
		t.Fatalf("state = %v, %v", v, ok)
	}
	m, ok := conn.Retained(StateTopic("bat"))
	if !ok {
		t.Fatal("state not retained")
	}
	st, ok := m.Payload.(types.SensorState)
	if !ok || st.Value != 3.14 || st.Unit != types.UnitVolt || st.TS != 1234 || st.Name != "Battery" {
		t.Fatalf("payload = %#v", m.Payload)
	}
}
