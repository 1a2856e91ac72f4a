package heartbeat

import (
	"context"
	"math"
	"time"

	"loragw/bus"
	"loragw/x/conv"

	"github.com/charmbracelet/log"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

// DefaultInterval applies until config/heartbeat says otherwise.
const DefaultInterval = 10 * time.Second

// Service logs a periodic liveness line. Status, if set, adds key/value pairs
// to each line (e.g. receiver link health).
type Service struct {
	Logger *log.Logger
	Status func() []any
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(DefaultInterval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			logger.Info("heartbeat service stopping")
			return
		case <-tick.C:
			var kv []any
			if s.Status != nil {
				kv = s.Status()
			}
			logger.Info("heartbeat", kv...)
		case msg := <-cfgSub.Channel():
			if iv, ok := Interval(msg.Payload); ok {
				tick.Reset(iv)
				logger.Info("heartbeat interval set", "interval", iv)
			}
		}
	}
}

// Interval reads {"interval": seconds} from a config payload.
func Interval(payload any) (time.Duration, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	f, ok := conv.Float(m["interval"])
	if !ok || f <= 0 || f > maxSeconds {
		return 0, false
	}
	// Sub-nanosecond values truncate to zero and would panic the ticker.
	d := time.Duration(f * float64(time.Second))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// maxSeconds is the longest interval a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
