// platform/rp2.go
//go:build rp2040 || rp2350

package platform

import (
	"context"
	"errors"
	"io"
	"machine"

	"loragw/drivers/sx1262"
	"loragw/hal"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// Waveshare Pico-LoRa-SX1262 wiring. DIO1, RST and BUSY come from config;
// the SPI lines and chip select are fixed by the HAT.
const (
	RadioSCK  = machine.GP10
	RadioSDO  = machine.GP11
	RadioSDI  = machine.GP12
	RadioCS   = machine.GP3
	RadioHz   = 8 * machine.MHz
	ConsoleTX = machine.GP0
	ConsoleRX = machine.GP1
)

// DefaultPinFactory maps logical numbers directly to machine.Pin(n), which
// matches Pico/Pico 2 GP numbering.
func DefaultPinFactory() hal.PinFactory { return rp2PinFactory{} }

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (hal.GPIOPin, bool) {
	// Constrain to RP2's user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull hal.Pull) error {
	var mode machine.PinMode
	switch pull {
	case hal.PullUp:
		mode = machine.PinInputPullup
	case hal.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

// NewRadio configures SPI1 and the chip-select line and returns an SX1262
// driver on the given control lines. The lines must already be configured.
func NewRadio(dio1, rst, busy hal.GPIOPin) (*sx1262.Device, error) {
	_ = dio1 // polled by the receiver component
	spi := machine.SPI1
	if err := spi.Configure(machine.SPIConfig{
		Frequency: RadioHz,
		SCK:       RadioSCK,
		SDO:       RadioSDO,
		SDI:       RadioSDI,
		Mode:      0,
	}); err != nil {
		return nil, err
	}
	cs := &rp2Pin{p: RadioCS, n: int(RadioCS)}
	_ = cs.ConfigureOutput(true)
	return sx1262.New(spi, cs, rst, busy), nil
}

// Console returns uart0 configured at baud, for log output.
func Console(baud uint32) io.Writer {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       ConsoleTX,
		RX:       ConsoleRX,
	})
	return u
}

// DialUART opens uart0 or uart1 for the bridge link.
func DialUART(port int, baud uint32, tx, rx int) (io.ReadWriteCloser, error) {
	var u *uartx.UART
	switch port {
	case 0:
		u = uartx.UART0
	case 1:
		u = uartx.UART1
	default:
		return nil, errors.New("unknown uart port")
	}
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(tx),
		RX:       machine.Pin(rx),
	}); err != nil {
		return nil, err
	}
	return serialPort{u: u}, nil
}

// serialPort adapts uartx to io.ReadWriteCloser. Close is a no-op; the
// hardware stays configured.
type serialPort struct{ u *uartx.UART }

func (p serialPort) Read(b []byte) (int, error) {
	return p.u.RecvSomeContext(context.Background(), b)
}
func (p serialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p serialPort) Close() error                { return nil }
