// platform/host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"sync"

	"loragw/drivers/sx1262"
	"loragw/hal"
	"loragw/types"

	"tinygo.org/x/drivers/lora"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements hal.GPIOPin for host runs and tests.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    hal.Pull
}

func (p *FakePin) ConfigureInput(pull hal.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

// Set drives the line only while configured as an output.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	if p.modeOut {
		p.level = level
	}
	p.mu.Unlock()
}

// Drive forces the level of an input line, as external hardware would.
func (p *FakePin) Drive(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) Number() int { return p.number }

// HostPins returns stable *FakePin instances for numbers in [0, MaxPin].
type HostPins struct {
	MaxPin int

	mu   sync.Mutex
	pins map[int]*FakePin
}

// DefaultPinFactory provides a host GPIO factory with RP2-sized numbering.
func DefaultPinFactory() *HostPins {
	return &HostPins{MaxPin: 28, pins: make(map[int]*FakePin)}
}

func (f *HostPins) ByNumber(n int) (hal.GPIOPin, bool) {
	p, ok := f.Get(n)
	return p, ok
}

// Get exposes the underlying *FakePin, creating it on first use.
func (f *HostPins) Get(n int) (*FakePin, bool) {
	if n < 0 || n > f.MaxPin {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// ----------------------------- Radio (host) ----------------------------------

// SimRadio stands in for an SX1262 on the host. Injected frames are queued
// and DIO1 is raised while the queue is non-empty.
type SimRadio struct {
	mu        sync.Mutex
	dio1      *FakePin
	cfg       lora.Config
	listening bool
	queue     []sx1262.Packet

	Configures int
	Starts     int
}

// NewSimRadio binds the radio to the DIO1 line it should raise. dio1 may be
// any hal.GPIOPin; only *FakePin lines are driven.
func NewSimRadio(dio1 hal.GPIOPin) *SimRadio {
	fp, _ := dio1.(*FakePin)
	return &SimRadio{dio1: fp}
}

func (r *SimRadio) Configure(cfg lora.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.Configures++
	return nil
}

func (r *SimRadio) StartReceive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listening = true
	r.Starts++
	r.syncIRQ()
	return nil
}

// Receive pops one frame, or returns sx1262.ErrNoPacket.
func (r *SimRadio) Receive() (sx1262.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		r.syncIRQ()
		return sx1262.Packet{}, sx1262.ErrNoPacket
	}
	p := r.queue[0]
	r.queue = r.queue[1:]
	r.syncIRQ()
	return p, nil
}

// Config returns the last applied profile.
func (r *SimRadio) Config() lora.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Inject queues a raw frame.
func (r *SimRadio) Inject(payload []byte, rssi int16, snr float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, sx1262.Packet{
		Payload: append([]byte(nil), payload...),
		RSSI:    rssi,
		SNR:     snr,
	})
	r.syncIRQ()
}

// InjectMeter queues an encoded meter frame.
func (r *SimRadio) InjectMeter(m types.MeterData, q types.LinkQuality) {
	r.Inject(m.AppendBinary(nil), q.RSSI, q.SNR)
}

// Pending reports how many frames are queued.
func (r *SimRadio) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *SimRadio) syncIRQ() {
	if r.dio1 != nil {
		r.dio1.Drive(r.listening && len(r.queue) > 0)
	}
}

// Meter is a deterministic synthetic transmitter for host runs.
type Meter struct {
	counter  uint32
	consumed float32
	produced float32
}

// Next returns the following frame. skip > 0 pretends that many frames were
// lost on air.
func (m *Meter) Next(skip uint32) (types.MeterData, types.LinkQuality) {
	m.counter += 1 + skip
	step := float32(m.counter % 60)
	power := 350 + 10*step
	if m.counter%7 == 0 {
		power = -120 // feeding in
		m.produced += 0.002
	} else {
		m.consumed += power / 3_600_000 * 5
	}
	d := types.MeterData{
		PowerW:         power,
		ConsumptionKWh: m.consumed,
		GenerationKWh:  m.produced,
		BatteryV:       3.7 + step/600,
		PacketCounter:  m.counter,
	}
	q := types.LinkQuality{
		RSSI: -70 - int16(m.counter%25),
		SNR:  9.5 - float32(m.counter%8)/2,
	}
	return d, q
}
