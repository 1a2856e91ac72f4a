// Package bridge forwards sensor states over a framed serial link to an
// upstream host.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"sync"
	"time"

	"loragw/bus"
	"loragw/types"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	topicConfig = bus.T("config", "bridge")
	topicState  = bus.T("bridge", "state")
	// sensor/<id>/state
	topicSensors = bus.T("sensor", "+", "state")
)

// Start starts the bridge service. It blocks until ctx is cancelled.
// It waits for config on config/bridge and (re)configures the link.
func Start(ctx context.Context, conn *bus.Connection, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{conn: conn, log: logger}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the bridge block of the device config.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	// Ping period in seconds; 0 means 5.
	Ping float64 `yaml:"ping,omitempty"`
}

type TransportConfig struct {
	// "uart" (provided here) or other names registered via RegisterTransport.
	Type string      `yaml:"type"`
	UART *UARTConfig `yaml:"uart,omitempty"`
	// Addr is used by stream transports registered by the host (e.g. "tcp").
	Addr string `yaml:"addr,omitempty"`
}

// UARTConfig is handed to the platform dialler.
type UARTConfig struct {
	Port  int    `yaml:"port"` // uart0 / uart1
	Baud  uint32 `yaml:"baud"`
	RxPin int    `yaml:"rx_pin"`
	TxPin int    `yaml:"tx_pin"`
}

func (c Config) pingEvery() time.Duration {
	const def = 5 * time.Second
	if c.Ping <= 0 || c.Ping > float64(math.MaxInt64/int64(time.Second)) {
		return def
	}
	// time.NewTicker panics on zero, which a sub-nanosecond ping truncates to.
	if d := time.Duration(c.Ping * float64(time.Second)); d > 0 {
		return d
	}
	return def
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection
	log  *log.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.log.Warn("bridge config rejected", "err", err)
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", errors.Wrapf(err, "retry in %s", delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info("bridge link up", "transport", tr.String())
		s.publishState("up", "link_established", nil)
		if err := s.handleLink(ctx, rwc, cfg.pingEvery()); err != nil {
			_ = rwc.Close()
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", errors.Wrapf(err, "retry in %s", delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		_ = rwc.Close()
		return
	}
}

// handleLink forwards every sensor state (retained ones first) as a pub
// frame and pings the peer until the link or ctx ends.
func (s *Service) handleLink(ctx context.Context, rwc io.ReadWriteCloser, ping time.Duration) error {
	rd := newFramedReader(rwc)
	wr := newFramedWriter(rwc)

	states := s.conn.Subscribe(topicSensors)
	defer s.conn.Unsubscribe(states)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			f, err := rd.ReadFrame()
			if err != nil {
				errCh <- err
				return
			}
			if f.Type != framePong {
				s.log.Debug("bridge frame ignored", "type", f.Type)
			}
		}
	}()

	tick := time.NewTicker(ping)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = wr.WriteFrame(Frame{Type: frameClose})
			return nil
		case err := <-errCh:
			if err == nil || err == io.EOF {
				return errors.New("link closed by peer")
			}
			return err
		case <-tick.C:
			if err := wr.WriteFrame(Frame{Type: framePing}); err != nil {
				return err
			}
		case m, ok := <-states.Channel():
			if !ok {
				return nil
			}
			st, ok := m.Payload.(types.SensorState)
			if !ok {
				continue
			}
			payload, err := EncodeState(m.Topic, st)
			if err != nil {
				s.log.Warn("bridge encode failed", "topic", m.Topic.String(), "err", err)
				continue
			}
			if err := wr.WriteFrame(Frame{Type: framePub, Payload: payload}); err != nil {
				return err
			}
		}
	}
}

// EncodeState renders a pub frame payload: the topic, a NUL, then the state
// as JSON.
func EncodeState(t bus.Topic, st types.SensorState) ([]byte, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(t.String())+1+len(body))
	out = append(out, t.String()...)
	out = append(out, 0)
	return append(out, body...), nil
}

// DecodeState splits a pub frame payload produced by EncodeState.
func DecodeState(p []byte) (string, types.SensorState, error) {
	var st types.SensorState
	for i, c := range p {
		if c == 0 {
			err := json.Unmarshal(p[i+1:], &st)
			return string(p[:i]), st, err
		}
	}
	return "", st, errors.New("pub frame without topic separator")
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport is a pluggable link dialler/owner.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("uart_dial_not_set")
)

// RegisterTransport allows external packages to add transports.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		return newUARTTransport(cfg)
	default:
		return nil, errors.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// UARTDial is injected by platform code. It must open the configured UART.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error)

type uartTransport struct {
	cfg TransportConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("uart transport requires uart config")
	}
	return &uartTransport{cfg: cfg}, nil
}

func (u *uartTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	return UARTDial(ctx, *u.cfg.UART)
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Framing: type, length MSB, length LSB, payload
// -----------------------------------------------------------------------------

const (
	framePing  byte = 0x01
	framePong  byte = 0x02
	framePub   byte = 0x10
	frameClose byte = 0x7f
)

type Frame struct {
	Type    byte
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct{ w io.Writer }

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	typ := hdr[0]
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: buf}, nil
}

func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > 0xFFFF {
		return errors.Errorf("frame too large: %d", len(f.Payload))
	}
	buf := make([]byte, 0, 3+len(f.Payload))
	buf = append(buf, f.Type, byte(len(f.Payload)>>8), byte(len(f.Payload)))
	buf = append(buf, f.Payload...)
	_, err := fw.w.Write(buf)
	return err
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

// decodeConfig accepts YAML text or an already decoded mapping.
func decodeConfig(p any) (Config, error) {
	var cfg Config
	var raw []byte
	switch v := p.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case map[string]any:
		b, err := yaml.Marshal(v)
		if err != nil {
			return cfg, errors.Wrap(err, "re-encode bridge config")
		}
		raw = b
	default:
		return cfg, errors.Errorf("unsupported config payload type: %T", p)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "decode bridge config")
	}
	if cfg.Transport.Type == "" {
		return cfg, errors.New("bridge config: transport.type is required")
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
