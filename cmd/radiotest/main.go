//go:build rp2040 || rp2350

// Command radiotest brings up the SX1262 HAT without the component stack:
// it resets and configures the radio with the default profile, then logs
// every frame and a status line every few seconds.
package main

import (
	"errors"
	"time"

	"loragw/devices/lorarx"
	"loragw/drivers/sx1262"
	"loragw/hal"
	"loragw/platform"
	"loragw/types"

	"github.com/charmbracelet/log"
)

// Pico-LoRa-SX1262 control lines.
const (
	pinDIO1 = 20
	pinRST  = 15
	pinBusy = 2

	statusEvery = 5 * time.Second
)

func main() {
	time.Sleep(2 * time.Second)
	logger := log.NewWithOptions(platform.Console(115200), log.Options{Prefix: "radiotest", Level: log.DebugLevel})

	pins := platform.DefaultPinFactory()
	dio1 := mustPin(logger, pins, pinDIO1)
	rst := mustPin(logger, pins, pinRST)
	busy := mustPin(logger, pins, pinBusy)
	_ = dio1.ConfigureInput(hal.PullNone)
	_ = rst.ConfigureOutput(true)
	_ = busy.ConfigureInput(hal.PullNone)

	radio, err := platform.NewRadio(dio1, rst, busy)
	if err != nil {
		fail(logger, "spi", err)
	}
	radio.Reset()
	if err := radio.WaitBusy(); err != nil {
		fail(logger, "busy after reset", err)
	}
	profile := lorarx.DefaultProfile()
	if err := radio.Configure(profile); err != nil {
		fail(logger, "configure", err)
	}
	if err := radio.StartReceive(); err != nil {
		fail(logger, "start rx", err)
	}
	logger.Info("listening", "freq", profile.Freq, "sf", profile.Sf, "sync", profile.SyncWord)

	var frames, bad, crc int
	status := time.NewTicker(statusEvery)
	defer status.Stop()
	for {
		select {
		case <-status.C:
			irq, err := radio.IRQStatus()
			logger.Info("status", "frames", frames, "bad", bad, "crc", crc, "irq", irq, "err", err, "dio1", dio1.Get())
		default:
		}
		if !dio1.Get() {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		pkt, err := radio.Receive()
		switch {
		case errors.Is(err, sx1262.ErrNoPacket):
			continue
		case errors.Is(err, sx1262.ErrCRC):
			crc++
			logger.Warn("crc error")
		case err != nil:
			logger.Error("receive", "err", err)
		default:
			frames++
			d, derr := types.DecodeMeterData(pkt.Payload)
			if derr != nil {
				bad++
				logger.Warn("bad frame", "len", len(pkt.Payload), "rssi", pkt.RSSI)
			} else {
				logger.Info("frame", "counter", d.PacketCounter, "power", d.PowerW,
					"battery", d.BatteryV, "rssi", pkt.RSSI, "snr", pkt.SNR)
			}
		}
		_ = radio.StartReceive()
	}
}

func mustPin(logger *log.Logger, f hal.PinFactory, n int) hal.GPIOPin {
	p, ok := f.ByNumber(n)
	if !ok {
		fail(logger, "pin", errors.New("no such pin"))
	}
	return p
}

func fail(logger *log.Logger, step string, err error) {
	logger.Error("FAIL", "step", step, "err", err)
	select {}
}
