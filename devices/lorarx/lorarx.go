// Package lorarx is the runtime LoRa receiver component. It listens for
// meter frames on an SX1262-class radio and fans the decoded values out to
// the sensors attached by the configuration binding.
package lorarx

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"loragw/drivers/sx1262"
	"loragw/errcode"
	"loragw/hal"
	"loragw/services/component"
	"loragw/services/sensor"
	"loragw/types"

	"github.com/charmbracelet/log"
	"tinygo.org/x/drivers/lora"
)

// NeverReceived is reported by SecondsSinceLastPacket before the first frame.
const NeverReceived = 999999

// Radio is the part of the transceiver the component drives.
type Radio interface {
	Configure(cfg lora.Config) error
	StartReceive() error
	Receive() (sx1262.Packet, error)
}

// RadioBuilder creates the radio once the control lines are claimed and
// configured.
type RadioBuilder func(dio1, rst, busy hal.GPIOPin) (Radio, error)

// DefaultProfile must match the transmitter: 433 MHz, BW 125 kHz, SF7,
// CR 4/5, private sync word 0x12, 8 symbol preamble, CRC on.
func DefaultProfile() lora.Config {
	return lora.Config{
		Freq:           433_000_000,
		Bw:             lora.Bandwidth_125_0,
		Sf:             lora.SpreadingFactor7,
		Cr:             lora.CodingRate4_5,
		SyncWord:       0x12,
		Preamble:       8,
		HeaderType:     lora.HeaderExplicit,
		Crc:            lora.CRCOn,
		Iq:             lora.IQStandard,
		LoraTxPowerDBm: 14,
	}
}

// Deps are the collaborators of a Component.
type Deps struct {
	Pins    hal.PinFactory
	Radio   RadioBuilder
	Logger  *log.Logger
	Profile *lora.Config // nil => DefaultProfile()
}

// Stats is a snapshot of the receive counters.
type Stats struct {
	Initialized bool
	Packets     uint32
	Invalid     uint32
	CRCErrors   uint32
	Missed      uint32
	LastCounter uint32
	LastRSSI    int16
	LastSNR     float32
	LastPacket  time.Time
}

// Component implements the receiver setter surface and component.Component.
type Component struct {
	id      string
	deps    Deps
	profile lora.Config
	log     *log.Logger
	now     func() time.Time

	dio1Pin, rstPin, busyPin int

	power, consumption, generation, battery *sensor.Sensor
	rssi, snr, packetCounter, missedPackets *sensor.Sensor

	mu          sync.Mutex
	dio1        hal.GPIOPin
	radio       Radio
	initialized bool
	last        types.MeterData
	stats       Stats
}

// New returns an unconfigured component; pins and sensors arrive through the
// setters before Setup.
func New(id string, d Deps) *Component {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	profile := DefaultProfile()
	if d.Profile != nil {
		profile = *d.Profile
	}
	return &Component{
		id:      id,
		deps:    d,
		profile: profile,
		log:     logger.WithPrefix(id),
		now:     time.Now,
	}
}

func (c *Component) ID() string { return c.id }

// ---- setters ----

func (c *Component) SetDIO1Pin(pin int) { c.dio1Pin = pin }
func (c *Component) SetRSTPin(pin int)  { c.rstPin = pin }
func (c *Component) SetBusyPin(pin int) { c.busyPin = pin }

func (c *Component) SetPowerSensor(s *sensor.Sensor)         { c.power = s }
func (c *Component) SetConsumptionSensor(s *sensor.Sensor)   { c.consumption = s }
func (c *Component) SetGenerationSensor(s *sensor.Sensor)    { c.generation = s }
func (c *Component) SetBatterySensor(s *sensor.Sensor)       { c.battery = s }
func (c *Component) SetRSSISensor(s *sensor.Sensor)          { c.rssi = s }
func (c *Component) SetSNRSensor(s *sensor.Sensor)           { c.snr = s }
func (c *Component) SetPacketCounterSensor(s *sensor.Sensor) { c.packetCounter = s }
func (c *Component) SetMissedPacketsSensor(s *sensor.Sensor) { c.missedPackets = s }

// ---- lifecycle ----

func (c *Component) SetupPriority() float32 { return component.PriorityData }

type claim struct {
	name string
	num  int
	pin  hal.GPIOPin
}

// Setup claims and configures the three control lines, then brings the radio
// up. Pin problems fail the component. A radio that does not come up is
// logged and leaves the component idle.
func (c *Component) Setup(ctx context.Context) error {
	if c.deps.Pins == nil {
		return errcode.New(errcode.UnknownPin, c.id, "no pin factory")
	}
	claims := []*claim{
		{name: "dio1_pin", num: c.dio1Pin},
		{name: "rst_pin", num: c.rstPin},
		{name: "busy_pin", num: c.busyPin},
	}
	seen := map[int]string{}
	for _, cl := range claims {
		if other, dup := seen[cl.num]; dup {
			return errcode.New(errcode.PinInUse, cl.name, "pin already used by "+other)
		}
		seen[cl.num] = cl.name
		p, ok := c.deps.Pins.ByNumber(cl.num)
		if !ok {
			return errcode.New(errcode.UnknownPin, cl.name, "no such pin")
		}
		cl.pin = p
	}
	dio1, rst, busy := claims[0].pin, claims[1].pin, claims[2].pin
	if err := dio1.ConfigureInput(hal.PullNone); err != nil {
		return errcode.Wrap(errcode.Error, "dio1_pin", err)
	}
	if err := rst.ConfigureOutput(true); err != nil {
		return errcode.Wrap(errcode.Error, "rst_pin", err)
	}
	if err := busy.ConfigureInput(hal.PullNone); err != nil {
		return errcode.Wrap(errcode.Error, "busy_pin", err)
	}

	c.log.Info("setting up LoRa receiver",
		"dio1", c.dio1Pin, "rst", c.rstPin, "busy", c.busyPin,
		"freq_mhz", float64(c.profile.Freq)/1e6)
	c.log.Debug("initial pin states", "dio1", dio1.Get(), "busy", busy.Get())

	c.mu.Lock()
	c.dio1 = dio1
	c.mu.Unlock()

	if c.deps.Radio == nil {
		c.log.Error("no radio configured; receiver idle")
		return nil
	}
	radio, err := c.deps.Radio(dio1, rst, busy)
	if err != nil {
		c.log.Error("radio init failed", "err", err)
		return nil
	}
	if r, ok := radio.(interface{ Reset() }); ok {
		r.Reset()
	}
	if err := radio.Configure(c.profile); err != nil {
		c.log.Error("radio configure failed", "err", err)
		return nil
	}

	c.mu.Lock()
	c.radio = radio
	c.initialized = true
	c.stats.Initialized = true
	c.mu.Unlock()

	if err := radio.StartReceive(); err != nil {
		c.log.Error("failed to start receive mode", "err", err)
		return nil
	}
	c.log.Info("receiving", "freq_mhz", float64(c.profile.Freq)/1e6)
	return nil
}

// Loop reads one frame when DIO1 signals one.
func (c *Component) Loop(ctx context.Context) error {
	c.mu.Lock()
	ready := c.initialized
	dio1, radio := c.dio1, c.radio
	c.mu.Unlock()
	if !ready || !dio1.Get() {
		return nil
	}

	pkt, err := radio.Receive()
	switch {
	case errors.Is(err, sx1262.ErrNoPacket):
		return nil
	case errors.Is(err, sx1262.ErrCRC):
		c.mu.Lock()
		c.stats.CRCErrors++
		c.mu.Unlock()
		c.log.Warn("dropped frame with bad CRC")
		return radio.StartReceive()
	case err != nil:
		return err
	}

	c.handle(pkt)
	return radio.StartReceive()
}

func (c *Component) handle(pkt sx1262.Packet) {
	d, err := types.DecodeMeterData(pkt.Payload)
	if err != nil {
		c.mu.Lock()
		c.stats.Invalid++
		c.mu.Unlock()
		c.log.Warn("invalid packet received", "len", len(pkt.Payload), "expected", types.MeterDataSize)
		return
	}

	c.mu.Lock()
	var gap uint32
	if last := c.stats.LastCounter; c.stats.Packets > 0 && d.PacketCounter > last+1 {
		gap = d.PacketCounter - (last + 1)
		c.stats.Missed += gap
	}
	c.stats.LastCounter = d.PacketCounter
	c.stats.LastRSSI = pkt.RSSI
	c.stats.LastSNR = pkt.SNR
	c.stats.LastPacket = c.now()
	c.stats.Packets++
	c.last = d
	missed := c.stats.Missed
	c.mu.Unlock()

	if gap > 0 {
		c.log.Warn("missed packets", "count", gap)
	}
	c.log.Info("packet received",
		"counter", d.PacketCounter,
		"power_w", d.PowerW,
		"consumption_kwh", d.ConsumptionKWh,
		"generation_kwh", d.GenerationKWh,
		"battery_v", d.BatteryV,
		"rssi_dbm", pkt.RSSI,
		"snr_db", pkt.SNR)

	publish(c.power, float64(d.PowerW))
	publish(c.consumption, float64(d.ConsumptionKWh))
	publish(c.generation, float64(d.GenerationKWh))
	publish(c.battery, float64(d.BatteryV))
	publish(c.rssi, float64(pkt.RSSI))
	publish(c.snr, float64(pkt.SNR))
	publish(c.packetCounter, float64(d.PacketCounter))
	publish(c.missedPackets, float64(missed))
}

func publish(s *sensor.Sensor, v float64) {
	if s != nil {
		s.PublishState(v)
	}
}

// DumpConfig logs the radio profile and pins.
func (c *Component) DumpConfig() {
	c.log.Info("LoRa receiver",
		"freq_mhz", float64(c.profile.Freq)/1e6,
		"bw_khz", bandwidthKHz(c.profile.Bw),
		"sf", c.profile.Sf,
		"cr", "4/"+strconv.Itoa(4+int(c.profile.Cr)),
		"sync_word", c.profile.SyncWord,
		"dio1", c.dio1Pin, "rst", c.rstPin, "busy", c.busyPin)
}

func bandwidthKHz(bw uint8) float64 {
	switch bw {
	case lora.Bandwidth_125_0:
		return 125
	case lora.Bandwidth_250_0:
		return 250
	case lora.Bandwidth_500_0:
		return 500
	}
	return 0
}

// ---- queries ----

// SecondsSinceLastPacket returns NeverReceived before the first frame.
func (c *Component) SecondsSinceLastPacket() uint32 {
	c.mu.Lock()
	last := c.stats.LastPacket
	c.mu.Unlock()
	if last.IsZero() {
		return NeverReceived
	}
	return uint32(c.now().Sub(last) / time.Second)
}

// ResetMissedPackets zeroes the missed-packet counter.
func (c *Component) ResetMissedPackets() {
	c.mu.Lock()
	c.stats.Missed = 0
	c.mu.Unlock()
	publish(c.missedPackets, 0)
	c.log.Info("missed packet counter reset")
}

// Stats returns a snapshot of the counters.
func (c *Component) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LastData returns the last decoded frame.
func (c *Component) LastData() (types.MeterData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.stats.Packets > 0
}
