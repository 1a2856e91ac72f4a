package lorarx

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"loragw/bus"
	"loragw/drivers/sx1262"
	"loragw/errcode"
	"loragw/hal"
	"loragw/platform"
	"loragw/services/component"
	"loragw/services/sensor"
	"loragw/types"

	"github.com/charmbracelet/log"
	"tinygo.org/x/drivers/lora"
)

type rig struct {
	pins    *platform.HostPins
	radio   *platform.SimRadio
	sensors *sensor.Factory
	reg     *component.Registry
	conn    *bus.Connection
	rx      *Component
}

// newRig runs the full binding: config map -> component with sensors.
func newRig(t *testing.T, raw map[string]any) *rig {
	t.Helper()
	logger := log.New(io.Discard)
	b := bus.NewBus(32)
	conn := b.NewConnection("test")
	r := &rig{
		pins:    platform.DefaultPinFactory(),
		sensors: sensor.NewFactory(conn, logger),
		reg:     component.NewRegistry(conn, logger),
		conn:    conn,
	}
	host := &Host{
		Deps: Deps{
			Pins:   r.pins,
			Logger: logger,
			Radio: func(dio1, _, _ hal.GPIOPin) (Radio, error) {
				r.radio = platform.NewSimRadio(dio1)
				return r.radio, nil
			},
		},
		Registry: r.reg,
	}
	rcv, err := host.Binding(r.sensors).Configure(raw)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	r.rx = rcv.(*Component)
	return r
}

func allSensors() map[string]any {
	return map[string]any{
		"dio1_pin": 20, "rst_pin": 15, "busy_pin": 2,
		"power": nil, "consumption": nil, "generation": nil, "battery": nil,
		"rssi": nil, "snr": nil, "packet_counter": nil, "missed_packets": nil,
	}
}

func frame(counter uint32) types.MeterData {
	return types.MeterData{
		PowerW:         -150.25,
		ConsumptionKWh: 1234.5678,
		GenerationKWh:  12.3456,
		BatteryV:       3.777,
		PacketCounter:  counter,
	}
}

func value(t *testing.T, r *rig, id string) float64 {
	t.Helper()
	s, ok := r.sensors.Get(id)
	if !ok {
		t.Fatalf("sensor %s missing", id)
	}
	v, ok := s.State()
	if !ok {
		t.Fatalf("sensor %s has no state", id)
	}
	return v
}

func TestSetup_ConfiguresPinsAndRadio(t *testing.T) {
	r := newRig(t, allSensors())
	if failed := r.reg.Setup(context.Background()); len(failed) != 0 {
		t.Fatalf("failed = %v", failed)
	}
	rst, _ := r.pins.Get(15)
	if !rst.IsOutput() || !rst.Get() {
		t.Fatal("reset line not driven high")
	}
	dio1, _ := r.pins.Get(20)
	if dio1.IsOutput() {
		t.Fatal("DIO1 should be an input")
	}
	cfg := r.radio.Config()
	if cfg.Freq != 433_000_000 || cfg.Sf != lora.SpreadingFactor7 || cfg.SyncWord != 0x12 {
		t.Fatalf("profile = %+v", cfg)
	}
	if r.radio.Starts != 1 || !r.rx.Stats().Initialized {
		t.Fatalf("starts = %d, stats = %+v", r.radio.Starts, r.rx.Stats())
	}
}

func TestLoop_PublishesDecodedFrame(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())

	r.radio.InjectMeter(frame(7), types.LinkQuality{RSSI: -87, SNR: 6.25})
	if err := r.rx.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}

	cases := map[string]float64{
		"lora_receiver_power":          -150.3,
		"lora_receiver_consumption":    1234.568,
		"lora_receiver_generation":     12.346,
		"lora_receiver_battery":        3.78,
		"lora_receiver_rssi":           -87,
		"lora_receiver_snr":            6.3,
		"lora_receiver_packet_counter": 7,
		"lora_receiver_missed_packets": 0,
	}
	for id, want := range cases {
		if got := value(t, r, id); got != want {
			t.Fatalf("%s = %v, want %v", id, got, want)
		}
	}
	if _, ok := r.conn.Retained(sensor.StateTopic("lora_receiver_power")); !ok {
		t.Fatal("power state not retained on the bus")
	}
	if r.radio.Starts != 2 {
		t.Fatalf("receive not restarted: starts = %d", r.radio.Starts)
	}
	if d, ok := r.rx.LastData(); !ok || d.PacketCounter != 7 {
		t.Fatalf("last data = %+v, %v", d, ok)
	}
}

func TestLoop_IdleWhenDIO1Low(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())
	if err := r.rx.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if r.rx.Stats().Packets != 0 {
		t.Fatal("packet counted without DIO1")
	}
}

func TestLoop_MissedPacketAccounting(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())
	q := types.LinkQuality{RSSI: -90, SNR: 5}

	// First frame never counts as a gap, whatever its counter.
	for _, n := range []uint32{10, 11, 14, 15, 20} {
		r.radio.InjectMeter(frame(n), q)
		if err := r.rx.Loop(context.Background()); err != nil {
			t.Fatalf("loop %d: %v", n, err)
		}
	}
	st := r.rx.Stats()
	if st.Missed != 6 || st.Packets != 5 || st.LastCounter != 20 {
		t.Fatalf("stats = %+v", st)
	}
	if got := value(t, r, "lora_receiver_missed_packets"); got != 6 {
		t.Fatalf("missed sensor = %v", got)
	}

	// A counter reset (transmitter reboot) adds nothing.
	r.radio.InjectMeter(frame(1), q)
	_ = r.rx.Loop(context.Background())
	if st := r.rx.Stats(); st.Missed != 6 || st.LastCounter != 1 {
		t.Fatalf("after reset stats = %+v", st)
	}

	r.rx.ResetMissedPackets()
	if r.rx.Stats().Missed != 0 || value(t, r, "lora_receiver_missed_packets") != 0 {
		t.Fatal("missed packets not reset")
	}
}

func TestLoop_CounterStartingAtZeroCountsGap(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())
	q := types.LinkQuality{RSSI: -90, SNR: 5}

	for _, n := range []uint32{0, 3} {
		r.radio.InjectMeter(frame(n), q)
		if err := r.rx.Loop(context.Background()); err != nil {
			t.Fatalf("loop %d: %v", n, err)
		}
	}
	if st := r.rx.Stats(); st.Missed != 2 || st.Packets != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLoop_InvalidLengthCounted(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())

	r.radio.Inject([]byte{1, 2, 3, 4}, -100, 1)
	if err := r.rx.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}
	st := r.rx.Stats()
	if st.Invalid != 1 || st.Packets != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if s, _ := r.sensors.Get("lora_receiver_power"); s.HasState() {
		t.Fatal("invalid frame published a state")
	}
}

func TestLoop_OnlyAttachedSensorsPublished(t *testing.T) {
	r := newRig(t, map[string]any{"dio1_pin": 20, "rst_pin": 15, "busy_pin": 2, "rssi": nil})
	r.reg.Setup(context.Background())
	r.radio.InjectMeter(frame(1), types.LinkQuality{RSSI: -70, SNR: 9})
	if err := r.rx.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if n := len(r.sensors.Sensors()); n != 1 {
		t.Fatalf("sensors = %d", n)
	}
	if got := value(t, r, "lora_receiver_rssi"); got != -70 {
		t.Fatalf("rssi = %v", got)
	}
}

func TestSecondsSinceLastPacket(t *testing.T) {
	r := newRig(t, allSensors())
	r.reg.Setup(context.Background())
	if got := r.rx.SecondsSinceLastPacket(); got != NeverReceived {
		t.Fatalf("before first packet = %d", got)
	}

	base := time.Unix(1_700_000_000, 0)
	r.rx.now = func() time.Time { return base }
	r.radio.InjectMeter(frame(1), types.LinkQuality{})
	_ = r.rx.Loop(context.Background())

	r.rx.now = func() time.Time { return base.Add(42500 * time.Millisecond) }
	if got := r.rx.SecondsSinceLastPacket(); got != 42 {
		t.Fatalf("seconds = %d", got)
	}
}

func TestSetup_PinErrorsFailComponent(t *testing.T) {
	cases := map[string]struct {
		raw  map[string]any
		want errcode.Code
	}{
		"unknown pin": {raw: map[string]any{"dio1_pin": 40, "rst_pin": 15, "busy_pin": 2}, want: errcode.UnknownPin},
		"shared pin":  {raw: map[string]any{"dio1_pin": 2, "rst_pin": 15, "busy_pin": 2}, want: errcode.PinInUse},
	}
	for name, tc := range cases {
		r := newRig(t, tc.raw)
		err := r.rx.Setup(context.Background())
		if errcode.Of(err) != tc.want {
			t.Fatalf("%s: err = %v", name, err)
		}
		if failed := r.reg.Setup(context.Background()); len(failed) != 1 {
			t.Fatalf("%s: registry failed = %v", name, failed)
		}
	}
}

type brokenRadio struct{ receiveErr error }

func (b *brokenRadio) Configure(lora.Config) error     { return nil }
func (b *brokenRadio) StartReceive() error             { return nil }
func (b *brokenRadio) Receive() (sx1262.Packet, error) { return sx1262.Packet{}, b.receiveErr }

func TestSetup_RadioFailureLeavesIdle(t *testing.T) {
	pins := platform.DefaultPinFactory()
	c := New("rx", Deps{
		Pins:   pins,
		Logger: log.New(io.Discard),
		Radio: func(_, _, _ hal.GPIOPin) (Radio, error) {
			return nil, sx1262.ErrBusyTimeout
		},
	})
	c.SetDIO1Pin(1)
	c.SetRSTPin(2)
	c.SetBusyPin(3)
	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dio1, _ := pins.Get(1)
	dio1.Drive(true)
	if err := c.Loop(context.Background()); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if c.Stats().Initialized {
		t.Fatal("component initialised without a radio")
	}
}

func TestLoop_CRCAndReceiveErrors(t *testing.T) {
	pins := platform.DefaultPinFactory()
	radio := &brokenRadio{receiveErr: sx1262.ErrCRC}
	c := New("rx", Deps{
		Pins:   pins,
		Logger: log.New(io.Discard),
		Radio:  func(_, _, _ hal.GPIOPin) (Radio, error) { return radio, nil },
	})
	c.SetDIO1Pin(1)
	c.SetRSTPin(2)
	c.SetBusyPin(3)
	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	dio1, _ := pins.Get(1)
	dio1.Drive(true)

	if err := c.Loop(context.Background()); err != nil {
		t.Fatalf("crc loop: %v", err)
	}
	if c.Stats().CRCErrors != 1 {
		t.Fatalf("stats = %+v", c.Stats())
	}

	radio.receiveErr = sx1262.ErrBusyTimeout
	if err := c.Loop(context.Background()); !errors.Is(err, sx1262.ErrBusyTimeout) {
		t.Fatalf("loop err = %v", err)
	}
}

func TestHost_RegisterRejectsForeignReceiver(t *testing.T) {
	h := &Host{Registry: component.NewRegistry(nil, log.New(io.Discard))}
	err := h.Register("x", nil, types.ReceiverConfig{})
	if errcode.Of(err) != errcode.RegisterFailed {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigure_SensorFailureRegistersNothing(t *testing.T) {
	logger := log.New(io.Discard)
	conn := bus.NewBus(8).NewConnection("test")
	sensors := sensor.NewFactory(conn, logger)
	if _, err := sensors.NewSensor(types.SensorConfig{Key: "power", ID: "meter_power"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg := component.NewRegistry(conn, logger)
	host := &Host{Deps: Deps{Pins: platform.DefaultPinFactory(), Logger: logger}, Registry: reg}

	_, err := host.Binding(sensors).Configure(map[string]any{
		"id": "rx2", "dio1_pin": 20, "rst_pin": 15, "busy_pin": 2,
		"power": map[string]any{"id": "meter_power"},
	})
	if errcode.Of(err) != errcode.SensorFailed {
		t.Fatalf("err = %v", err)
	}
	if ids := reg.IDs(); len(ids) != 0 {
		t.Fatalf("registered after sensor failure: %v", ids)
	}
}

func TestHost_SetupPriorityOverride(t *testing.T) {
	raw := allSensors()
	raw["setup_priority"] = 900
	raw["id"] = "meter_rx"
	r := newRig(t, raw)
	ids := r.reg.IDs()
	if len(ids) != 1 || ids[0] != "meter_rx" {
		t.Fatalf("ids = %v", ids)
	}
	if _, ok := r.sensors.Get("meter_rx_power"); !ok {
		t.Fatal("sensor ids not derived from receiver id")
	}
}
