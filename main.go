//go:build !rp2040 && !rp2350

// Command loragw runs the LoRa meter receiver on the host against a simulated
// radio. The receiver block comes from -config or the embedded device config.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
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
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

func main() {
	// .env is optional; explicit flags still win.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("LORAGW_CONFIG"), "path to a YAML config (overrides -device)")
	device := flag.String("device", envOr("LORAGW_DEVICE", "host"), "embedded config to use")
	level := flag.String("level", envOr("LORAGW_LOG_LEVEL", "info"), "log level")
	every := flag.Duration("tx", 5*time.Second, "simulated transmitter period (0 disables)")
	loss := flag.Uint("loss", 0, "simulated frames lost before each delivered frame")
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.Fatal("bad log level", "level", *level, "err", err)
	}
	log.SetLevel(lvl)
	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = config.WithDevice(ctx, *device)

	b := bus.NewBus(16)

	cfgSvc := config.NewConfigService()
	cfgSvc.Path = *configPath
	cfgSvc.Logger = logger.WithPrefix("config")
	doc, err := cfgSvc.Resolve(ctx)
	if err != nil {
		log.Fatal("config", "err", err)
	}
	section, err := config.Section(doc, "lora_receiver")
	if err != nil {
		log.Fatal("config", "err", err)
	}

	var radio *platform.SimRadio
	pins := platform.DefaultPinFactory()
	host := &lorarx.Host{
		Deps: lorarx.Deps{
			Pins:   pins,
			Logger: logger,
			Radio: func(dio1, _, _ hal.GPIOPin) (lorarx.Radio, error) {
				radio = platform.NewSimRadio(dio1)
				return radio, nil
			},
		},
		Registry: component.NewRegistry(b.NewConnection("components"), logger.WithPrefix("app")),
	}
	sensors := sensor.NewFactory(b.NewConnection("sensors"), logger.WithPrefix("sensor"))

	r, err := host.Binding(sensors).Configure(section)
	if err != nil {
		log.Fatal("lora_receiver", "err", err)
	}
	rx := r.(*lorarx.Component)

	if failed := host.Registry.Setup(ctx); len(failed) > 0 {
		logger.Warn("components failed setup", "ids", failed)
	}
	host.Registry.DumpConfig()

	bridge.RegisterTransport("tcp", newTCPTransport)
	go bridge.Start(ctx, b.NewConnection("bridge"), logger.WithPrefix("bridge"))
	cfgSvc.Start(ctx, b.NewConnection("config"))
	hb := &heartbeat.Service{
		Logger: logger.WithPrefix("heartbeat"),
		Status: func() []any {
			st := rx.Stats()
			return []any{
				"packets", st.Packets,
				"missed", st.Missed,
				"seconds_since_last_packet", rx.SecondsSinceLastPacket(),
			}
		},
	}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	if radio != nil && *every > 0 {
		go transmit(ctx, radio, *every, uint32(*loss))
	}

	if err := host.Registry.Run(ctx, 20*time.Millisecond); err != nil && ctx.Err() == nil {
		log.Fatal("run", "err", err)
	}
	logger.Info("stopped")
}

// transmit plays the synthetic meter into the simulated radio.
func transmit(ctx context.Context, radio *platform.SimRadio, every time.Duration, loss uint32) {
	var m platform.Meter
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d, q := m.Next(loss)
			radio.InjectMeter(d, q)
		}
	}
}

// tcpTransport lets a host run feed the bridge to a TCP listener.
type tcpTransport struct{ addr string }

func newTCPTransport(cfg bridge.TransportConfig) (bridge.Transport, error) {
	if cfg.Addr == "" {
		return nil, errors.New("tcp transport requires addr")
	}
	return &tcpTransport{addr: cfg.Addr}, nil
}

func (t *tcpTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", t.addr)
}

func (t *tcpTransport) String() string { return "tcp " + t.addr }

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
