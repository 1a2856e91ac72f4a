// Package sx1262 drives a Semtech SX1262 LoRa transceiver at the command
// level: reset/busy handshake, receive configuration and packet readout.
//
//	d := sx1262.New(spi, cs, rst, busy)
//	d.Reset()
//	err := d.Configure(cfg)   // lora.Config profile
//	err = d.StartReceive()    // continuous RX
//	...
//	pkt, err := d.Receive()   // ErrNoPacket until RxDone is raised
//
// Every command waits for BUSY to go low first. Modulation itself happens in
// the chip; the driver only writes parameters and reads results.
package sx1262

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lora"
)

// Errors returned by the driver.
var (
	ErrBusyTimeout           = errors.New("sx1262: busy timeout")
	ErrNoPacket              = errors.New("sx1262: no packet")
	ErrCRC                   = errors.New("sx1262: crc error")
	ErrUnsupportedBandwidth  = errors.New("sx1262: unsupported bandwidth")
	ErrUnsupportedCodingRate = errors.New("sx1262: unsupported coding rate")
	ErrUnsupportedSF         = errors.New("sx1262: unsupported spreading factor")
)

// DefaultBusyTimeout bounds WaitBusy before the module is reset.
const DefaultBusyTimeout = 3 * time.Second

// Pin is the subset of a GPIO line the driver needs.
type Pin interface {
	Get() bool
	Set(level bool)
}

// Packet is one received LoRa frame with its link measurements.
type Packet struct {
	Payload []byte
	RSSI    int16   // dBm
	SNR     float32 // dB
}

// Device wraps an SPI connection plus the control lines of one SX1262.
type Device struct {
	spi  drivers.SPI
	cs   Pin // nil if the bus asserts chip select itself
	rst  Pin
	busy Pin

	BusyTimeout time.Duration
	sleep       func(time.Duration)
	now         func() time.Time

	cfg lora.Config
}

// New returns a driver. cs may be nil.
func New(spi drivers.SPI, cs, rst, busy Pin) *Device {
	return &Device{
		spi:         spi,
		cs:          cs,
		rst:         rst,
		busy:        busy,
		BusyTimeout: DefaultBusyTimeout,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Config returns the last profile applied by Configure.
func (d *Device) Config() lora.Config { return d.cfg }

// Reset pulses NRESET low for 10 ms and waits for the chip to boot.
func (d *Device) Reset() {
	d.rst.Set(false)
	d.sleep(10 * time.Millisecond)
	d.rst.Set(true)
	d.sleep(10 * time.Millisecond)
}

// WaitBusy polls BUSY until low. On timeout the module is reset.
func (d *Device) WaitBusy() error {
	start := d.now()
	for d.busy.Get() {
		if d.now().Sub(start) > d.BusyTimeout {
			d.Reset()
			return ErrBusyTimeout
		}
		d.sleep(time.Millisecond)
	}
	return nil
}

func (d *Device) tx(w, r []byte) error {
	if err := d.WaitBusy(); err != nil {
		return err
	}
	if d.cs != nil {
		d.cs.Set(false)
		defer d.cs.Set(true)
	}
	return d.spi.Tx(w, r)
}

// Command writes an opcode with its parameters.
func (d *Device) Command(op byte, params ...byte) error {
	w := make([]byte, 0, 1+len(params))
	w = append(w, op)
	w = append(w, params...)
	return d.tx(w, nil)
}

// Read issues a get-style opcode and returns n data bytes (status dropped).
func (d *Device) Read(op byte, n int) ([]byte, error) {
	w := make([]byte, 2+n)
	r := make([]byte, 2+n)
	w[0] = op
	if err := d.tx(w, r); err != nil {
		return nil, err
	}
	return r[2:], nil
}

// WriteRegister writes data starting at addr.
func (d *Device) WriteRegister(addr uint16, data ...byte) error {
	return d.Command(cmdWriteRegister, append([]byte{byte(addr >> 8), byte(addr)}, data...)...)
}

// ReadBuffer reads n bytes of the data buffer starting at offset.
func (d *Device) ReadBuffer(offset byte, n int) ([]byte, error) {
	w := make([]byte, 3+n)
	r := make([]byte, 3+n)
	w[0] = cmdReadBuffer
	w[1] = offset
	w[2] = nop
	if err := d.tx(w, r); err != nil {
		return nil, err
	}
	return r[3:], nil
}

// FrequencyWord converts a carrier frequency to the SetRfFrequency argument.
func FrequencyWord(hz uint32) uint32 {
	return uint32((uint64(hz) << 25) / xtalHz)
}

// SyncWordRegisters expands a LoRa sync word to the two register bytes.
// One-byte forms (e.g. 0x12, 0x34) use the chip's nibble layout; wider values
// are taken as the raw register pair.
func SyncWordRegisters(sw uint16) (msb, lsb byte) {
	if sw > 0xFF {
		return byte(sw >> 8), byte(sw)
	}
	b := byte(sw)
	return (b & 0xF0) | 0x04, (b&0x0F)<<4 | 0x04
}

func modulation(cfg lora.Config) (sf, bw, cr byte, err error) {
	if cfg.Sf < 5 || cfg.Sf > 12 {
		return 0, 0, 0, ErrUnsupportedSF
	}
	switch cfg.Bw {
	case lora.Bandwidth_125_0:
		bw = bw125
	case lora.Bandwidth_250_0:
		bw = bw250
	case lora.Bandwidth_500_0:
		bw = bw500
	default:
		return 0, 0, 0, ErrUnsupportedBandwidth
	}
	switch cfg.Cr {
	case lora.CodingRate4_5:
		cr = cr45
	case lora.CodingRate4_6:
		cr = cr46
	case lora.CodingRate4_7:
		cr = cr47
	case lora.CodingRate4_8:
		cr = cr48
	default:
		return 0, 0, 0, ErrUnsupportedCodingRate
	}
	return cfg.Sf, bw, cr, nil
}

// Configure puts the chip in LoRa mode with the given profile. The radio is
// left in standby; call StartReceive to listen.
func (d *Device) Configure(cfg lora.Config) error {
	sf, bw, cr, err := modulation(cfg)
	if err != nil {
		return err
	}
	fw := FrequencyWord(cfg.Freq)
	msb, lsb := SyncWordRegisters(cfg.SyncWord)
	mask := irqRxMask

	steps := []struct {
		op     byte
		params []byte
	}{
		{cmdSetStandby, []byte{standbyRC}},
		{cmdSetRegulatorMode, []byte{regulatorDCDC}},
		{cmdSetPacketType, []byte{packetTypeLoRa}},
		{cmdSetRfFrequency, []byte{byte(fw >> 24), byte(fw >> 16), byte(fw >> 8), byte(fw)}},
		{cmdSetModulationParams, []byte{sf, bw, cr, cfg.Ldr}},
		{cmdSetPacketParams, []byte{byte(cfg.Preamble >> 8), byte(cfg.Preamble), cfg.HeaderType, 0xFF, cfg.Crc, cfg.Iq}},
		{cmdSetBufferBaseAddress, []byte{0x00, 0x00}},
		{cmdSetDioIrqParams, []byte{byte(mask >> 8), byte(mask), byte(mask >> 8), byte(mask), 0, 0, 0, 0}},
	}
	for _, s := range steps {
		if err := d.Command(s.op, s.params...); err != nil {
			return err
		}
	}
	if err := d.WriteRegister(regLoRaSyncWordMSB, msb, lsb); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// StartReceive enters continuous receive.
func (d *Device) StartReceive() error {
	t := uint32(rxContinuous)
	return d.Command(cmdSetRx, byte(t>>16), byte(t>>8), byte(t))
}

// IRQStatus returns the pending IRQ flags.
func (d *Device) IRQStatus() (uint16, error) {
	b, err := d.Read(cmdGetIrqStatus, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ClearIRQ clears the given IRQ flags.
func (d *Device) ClearIRQ(mask uint16) error {
	return d.Command(cmdClearIrqStatus, byte(mask>>8), byte(mask))
}

// Receive reads one frame if RxDone is pending. It returns ErrNoPacket when
// nothing arrived (or only a timeout fired) and ErrCRC for a corrupted frame
// or header. Any pending RX interrupt is cleared before returning.
func (d *Device) Receive() (Packet, error) {
	irq, err := d.IRQStatus()
	if err != nil {
		return Packet{}, err
	}
	if irq&irqRxMask == 0 {
		return Packet{}, ErrNoPacket
	}
	// Clear before returning, or DIO1 stays high.
	if err := d.ClearIRQ(IRQAll); err != nil {
		return Packet{}, err
	}
	switch {
	case irq&(IRQCRCErr|IRQHeaderErr) != 0:
		return Packet{}, ErrCRC
	case irq&IRQRxDone == 0:
		return Packet{}, ErrNoPacket
	}

	st, err := d.Read(cmdGetRxBufferStatus, 2)
	if err != nil {
		return Packet{}, err
	}
	payload, err := d.ReadBuffer(st[1], int(st[0]))
	if err != nil {
		return Packet{}, err
	}
	ps, err := d.Read(cmdGetPacketStatus, 3)
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Payload: payload,
		RSSI:    -int16(ps[0]) / 2,
		SNR:     float32(int8(ps[1])) / 4,
	}, nil
}
