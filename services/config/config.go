package config

import (
	"context"
	"os"
	"sort"

	"loragw/bus"
	"loragw/errcode"
	"loragw/x/conv"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// String constants
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key holding the device id.
const CtxDeviceKey ctxKey = "device"

// WithDevice returns ctx carrying the device id.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, CtxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Topic returns the retained topic for a top-level key.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

// -----------------------------------------------------------------------------
// Decoding
// -----------------------------------------------------------------------------

// Decode parses a YAML document whose top level must be a mapping.
func Decode(raw []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	if v == nil {
		return nil, errors.New("empty config document")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("config document is a %s, not a mapping", conv.TypeName(v))
	}
	return m, nil
}

// Load reads and decodes a YAML file.
func Load(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return m, nil
}

// Embedded decodes the embedded config for device.
func Embedded(device string) (map[string]any, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errors.Errorf("no embedded config for device: %s", device)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "embedded config %s", device)
	}
	return m, nil
}

// Section returns the mapping stored under key. A bare "key:" yields an
// empty mapping.
func Section(doc map[string]any, key string) (map[string]any, error) {
	v, ok := doc[key]
	if !ok {
		return nil, errcode.New(errcode.MissingRequiredField, key, "section not found")
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errcode.New(errcode.TypeMismatch, key, "expected mapping, got "+conv.TypeName(v))
	}
	return m, nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

// ConfigService publishes each top-level config key retained on config/<key>.
// Path, when set, wins over the embedded config.
type ConfigService struct {
	Name   string
	Path   string
	Logger *log.Logger
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName, Logger: log.Default()}
}

// Resolve returns the config document for this run.
func (s *ConfigService) Resolve(ctx context.Context) (map[string]any, error) {
	if s.Path != "" {
		return Load(s.Path)
	}
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return nil, errors.New("missing device ID in context")
	}
	return Embedded(device)
}

// Publish sends every top-level key of doc as a retained message, in key order.
func Publish(conn *bus.Connection, doc map[string]any) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conn.Publish(conn.NewMessage(Topic(k), doc[k], true))
	}
}

// publishConfig resolves the config and publishes it as retained messages.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	doc, err := s.Resolve(ctx)
	if err != nil {
		return err
	}
	Publish(conn, doc)
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			s.logger().Error("config publish failed", "err", err)
		}
	}()
}

func (s *ConfigService) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}
