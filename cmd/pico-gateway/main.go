//go:build rp2040 || rp2350

// Command pico-gateway is the firmware image for a Pico with the
// Pico-LoRa-SX1262 HAT. Logs go to uart0.
package main

import (
	"context"
	"io"
	"time"

	"loragw/bus"
	"loragw/devices/lorarx"
	"loragw/hal"
	"loragw/platform"
	"loragw/services/bridge"
	"loragw/services/component"
	"loragw/services/config"
	"loragw/services/heartbeat"
	"loragw/services/sensor"

	"github.com/charmbracelet/log"
)

const device = "pico"

func main() {
	// Allow USB CDC to enumerate before we log.
	time.Sleep(2 * time.Second)

	logger := log.NewWithOptions(platform.Console(115200), log.Options{Level: log.InfoLevel})
	logger.Info("boot", "device", device)

	ctx := config.WithDevice(context.Background(), device)
	b := bus.NewBus(8)

	doc, err := config.Embedded(device)
	if err != nil {
		halt(logger, "config", err)
	}
	section, err := config.Section(doc, "lora_receiver")
	if err != nil {
		halt(logger, "config", err)
	}

	host := &lorarx.Host{
		Deps: lorarx.Deps{
			Pins:   platform.DefaultPinFactory(),
			Logger: logger,
			Radio: func(dio1, rst, busy hal.GPIOPin) (lorarx.Radio, error) {
				return platform.NewRadio(dio1, rst, busy)
			},
		},
		Registry: component.NewRegistry(b.NewConnection("components"), logger.WithPrefix("app")),
	}
	sensors := sensor.NewFactory(b.NewConnection("sensors"), logger.WithPrefix("sensor"))

	r, err := host.Binding(sensors).Configure(section)
	if err != nil {
		halt(logger, "lora_receiver", err)
	}
	rx := r.(*lorarx.Component)

	host.Registry.Setup(ctx)
	host.Registry.DumpConfig()

	bridge.UARTDial = func(_ context.Context, u bridge.UARTConfig) (io.ReadWriteCloser, error) {
		return platform.DialUART(u.Port, u.Baud, u.TxPin, u.RxPin)
	}
	go bridge.Start(ctx, b.NewConnection("bridge"), logger.WithPrefix("bridge"))

	cfgSvc := config.NewConfigService()
	cfgSvc.Logger = logger.WithPrefix("config")
	cfgSvc.Start(ctx, b.NewConnection("config"))

	hb := &heartbeat.Service{
		Logger: logger.WithPrefix("heartbeat"),
		Status: func() []any {
			st := rx.Stats()
			return []any{
				"packets", st.Packets,
				"missed", st.Missed,
				"rssi", st.LastRSSI,
				"seconds_since_last_packet", rx.SecondsSinceLastPacket(),
			}
		},
	}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	_ = host.Registry.Run(ctx, 10*time.Millisecond)
}

// halt logs err and parks; there is nowhere to exit to.
func halt(logger *log.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	select {}
}
