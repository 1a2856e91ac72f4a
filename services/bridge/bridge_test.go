package bridge

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"loragw/bus"
	"loragw/types"

	"github.com/charmbracelet/log"
)

func TestBridge_ForwardsSensorStatesAndReportsLinkLoss(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge_test")

	// Retained before the link comes up; must be forwarded on connect.
	st := types.SensorState{ID: "meter_power", Name: "Power", Value: 412.5, Unit: types.UnitWatt, TS: 1}
	conn.Publish(conn.NewMessage(bus.T("sensor", "meter_power", "state"), st, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn, log.New(io.Discard))

	stateSub := conn.Subscribe(topicState)
	defer conn.Unsubscribe(stateSub)

	first := nextStatePayload(t, stateSub, 500*time.Millisecond)
	assertLevelStatus(t, first, "idle", "awaiting_config")

	prevDial := UARTDial
	defer func() { UARTDial = prevDial }()
	remotes := make(chan io.ReadWriteCloser, 4)
	pubs := make(chan []byte, 8)
	UARTDial = func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error) {
		if u.Baud != 115200 || u.Port != 1 {
			t.Errorf("uart config = %+v", u)
		}
		lc, rc := net.Pipe()
		remotes <- rc
		go remotePeer(rc, pubs)
		return lc, nil
	}

	cfg := map[string]any{
		"transport": map[string]any{
			"type": "uart",
			"uart": map[string]any{"port": 1, "baud": 115200, "rx_pin": 5, "tx_pin": 4},
		},
	}
	conn.Publish(conn.NewMessage(topicConfig, cfg, true))

	up := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, up, "up", "link_established")

	select {
	case p := <-pubs:
		topic, got, err := DecodeState(p)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if topic != "sensor/meter_power/state" || got != st {
			t.Fatalf("forwarded %q %+v", topic, got)
		}
	case <-time.After(time.Second):
		t.Fatal("retained sensor state not forwarded")
	}

	remote := <-remotes
	_ = remote.Close()

	degraded := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, degraded, "degraded", "link_lost_retrying")
}

func TestBridge_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("bridge_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn, log.New(io.Discard))

	stateSub := conn.Subscribe(topicState)
	defer conn.Unsubscribe(stateSub)

	_ = nextStatePayload(t, stateSub, 500*time.Millisecond) // initial awaiting_config

	conn.Publish(conn.NewMessage(topicConfig, "transport:\n  type: bogus\n", false))

	errState := nextStatePayload(t, stateSub, time.Second)
	assertLevelStatus(t, errState, "error", "transport_init_failed")
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig("transport:\n  type: uart\n  uart:\n    baud: 9600\nping: 0.5\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Transport.UART == nil || cfg.Transport.UART.Baud != 9600 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.pingEvery() != 500*time.Millisecond {
		t.Fatalf("ping = %v", cfg.pingEvery())
	}
	for _, p := range []float64{0, -1, 1e-10, 1e300} {
		if got := (Config{Ping: p}).pingEvery(); got != 5*time.Second {
			t.Fatalf("pingEvery(%v) = %v", p, got)
		}
	}
	if _, err := decodeConfig(map[string]any{"ping": 1}); err == nil {
		t.Fatal("expected error without transport type")
	}
	if _, err := decodeConfig(42); err == nil {
		t.Fatal("expected error for int payload")
	}
	if _, err := newTransport(TransportConfig{Type: "uart"}); err == nil {
		t.Fatal("expected error for uart without uart block")
	}
}

func TestDecodeState_RequiresSeparator(t *testing.T) {
	if _, _, err := DecodeState([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// remotePeer answers pings and hands pub payloads to pubs. It exits on
// read/write error.
func remotePeer(c io.ReadWriteCloser, pubs chan<- []byte) {
	defer c.Close()
	rd := newFramedReader(c)
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			return
		}
		switch f.Type {
		case framePing:
			if _, err := c.Write([]byte{framePong, 0x00, 0x00}); err != nil {
				return
			}
		case framePub:
			select {
			case pubs <- f.Payload:
			default:
			}
		}
	}
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
