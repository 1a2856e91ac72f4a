// Package sensor builds sensor handles from validated sensor blocks and
// publishes their states on the bus.
//
// Topics:
//
//	sensor/<id>/state   retained types.SensorState
package sensor

import (
	"sync"
	"time"

	"loragw/bus"
	"loragw/errcode"
	"loragw/types"
	"loragw/x/mathx"

	"github.com/charmbracelet/log"
)

const topicPrefix = "sensor"

// StateTopic is the retained topic a sensor publishes to.
func StateTopic(id string) bus.Topic { return bus.T(topicPrefix, id, "state") }

// Sensor is a single measured value with its presentation metadata.
type Sensor struct {
	cfg  types.SensorConfig
	conn *bus.Connection
	now  func() time.Time

	mu    sync.RWMutex
	value float64
	has   bool
}

func (s *Sensor) Config() types.SensorConfig { return s.cfg }
func (s *Sensor) ObjectID() string           { return s.cfg.ID }
func (s *Sensor) Name() string               { return s.cfg.Name }

// PublishState rounds v to the sensor's accuracy and publishes it retained.
func (s *Sensor) PublishState(v float64) {
	v = mathx.RoundTo(v, s.cfg.AccuracyDecimals)
	s.mu.Lock()
	s.value, s.has = v, true
	s.mu.Unlock()

	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(StateTopic(s.cfg.ID), types.SensorState{
		ID:    s.cfg.ID,
		Name:  s.cfg.Name,
		Value: v,
		Unit:  s.cfg.Unit,
		TS:    s.now().UnixMilli(),
	}, true))
}

// State returns the last published value.
func (s *Sensor) State() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.has
}

func (s *Sensor) HasState() bool {
	_, ok := s.State()
	return ok
}

// -----------------------------------------------------------------------------
// Factory
// -----------------------------------------------------------------------------

// Factory creates sensors with unique object ids. conn may be nil, in which
// case states are kept but not published.
type Factory struct {
	conn *bus.Connection
	log  *log.Logger
	now  func() time.Time

	mu    sync.Mutex
	byID  map[string]*Sensor
	order []*Sensor
}

func NewFactory(conn *bus.Connection, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &Factory{
		conn: conn,
		log:  logger,
		now:  time.Now,
		byID: make(map[string]*Sensor),
	}
}

// NewSensor registers a sensor. A missing id becomes "sensor_<key>".
func (f *Factory) NewSensor(cfg types.SensorConfig) (*Sensor, error) {
	if cfg.ID == "" {
		cfg.ID = "sensor_" + cfg.Key
	}
	if !IsIdent(cfg.ID) {
		return nil, errcode.New(errcode.InvalidSensorConfig, cfg.Key+"."+FieldID, "not an identifier")
	}
	if cfg.AccuracyDecimals < 0 || cfg.AccuracyDecimals > mathx.MaxDecimals {
		return nil, errcode.New(errcode.InvalidSensorConfig, cfg.Key+"."+FieldAccuracyDecimals, "out of range")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byID[cfg.ID]; dup {
		return nil, errcode.New(errcode.DuplicateID, cfg.Key, "sensor id "+cfg.ID+" already in use")
	}
	s := &Sensor{cfg: cfg, conn: f.conn, now: f.now}
	f.byID[cfg.ID] = s
	f.order = append(f.order, s)

	f.log.Debug("sensor registered", "id", cfg.ID, "unit", cfg.Unit, "device_class", cfg.DeviceClass)
	return s, nil
}

// Get looks a sensor up by object id.
func (f *Factory) Get(id string) (*Sensor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	return s, ok
}

// Sensors returns every sensor in creation order.
func (f *Factory) Sensors() []*Sensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Sensor(nil), f.order...)
}
