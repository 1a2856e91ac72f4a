// Package codegen renders a lora_receiver binding as firmware source.
//
// A Program records declarations and setup statements in call order. It
// plays all three host roles for receiver.Binding[Expr]: receiver factory,
// component registry and sensor factory.
package codegen

import (
	"io"
	"strconv"
	"strings"

	"loragw/errcode"
	"loragw/services/receiver"
	"loragw/types"
)

// Expr is a source expression, usually a variable name.
type Expr string

const (
	receiverClass = "lora_receiver::LoRaReceiverComponent"
	sensorClass   = "sensor::Sensor"
)

// Program accumulates generated source.
type Program struct {
	includes []string
	globals  []string
	setup    []string
	vars     map[string]bool
}

func NewProgram() *Program {
	return &Program{vars: make(map[string]bool)}
}

// AddInclude adds a header once.
func (p *Program) AddInclude(h string) {
	for _, x := range p.includes {
		if x == h {
			return
		}
	}
	p.includes = append(p.includes, h)
}

// Add appends one setup statement.
func (p *Program) Add(stmt string) { p.setup = append(p.setup, stmt) }

// Statements returns the setup statements in order.
func (p *Program) Statements() []string { return append([]string(nil), p.setup...) }

// Globals returns the global declarations in order.
func (p *Program) Globals() []string { return append([]string(nil), p.globals...) }

// declare introduces a global pointer variable and its construction.
func (p *Program) declare(id, class string) (Expr, error) {
	if p.vars[id] {
		return "", errcode.New(errcode.DuplicateID, id, "variable already declared")
	}
	p.vars[id] = true
	p.globals = append(p.globals, class+" *"+id+";")
	p.Add(id + " = new " + class + "();")
	return Expr(id), nil
}

func call(v Expr, method string, args ...string) string {
	return string(v) + "->" + method + "(" + strings.Join(args, ", ") + ");"
}

// NewReceiver emits the receiver declaration.
func (p *Program) NewReceiver(id string) (receiver.Receiver[Expr], error) {
	v, err := p.declare(id, receiverClass)
	if err != nil {
		return nil, err
	}
	p.AddInclude("esphome/components/lora_receiver/lora_receiver.h")
	return &Var{p: p, name: v}, nil
}

// Register emits the component registration.
func (p *Program) Register(id string, _ receiver.Receiver[Expr], cfg types.ReceiverConfig) error {
	if !p.vars[id] {
		return errcode.New(errcode.RegisterFailed, id, "unknown variable")
	}
	p.Add("App.register_component(" + id + ");")
	if cfg.SetupPriority != nil {
		p.Add(call(Expr(id), "set_setup_priority", floatLit(*cfg.SetupPriority)))
	}
	return nil
}

// NewSensor emits a sensor declaration with its metadata.
func (p *Program) NewSensor(cfg types.SensorConfig) (Expr, error) {
	v, err := p.declare(cfg.ID, sensorClass)
	if err != nil {
		return "", err
	}
	p.AddInclude("esphome/components/sensor/sensor.h")
	p.Add("App.register_sensor(" + cfg.ID + ");")
	p.Add(call(v, "set_name", strconv.Quote(cfg.Name)))
	if cfg.Internal {
		p.Add(call(v, "set_internal", "true"))
	}
	if cfg.Icon != "" {
		p.Add(call(v, "set_icon", strconv.Quote(cfg.Icon)))
	}
	if cfg.EntityCategory != types.EntityCategoryNone {
		p.Add(call(v, "set_entity_category", "ENTITY_CATEGORY_"+strings.ToUpper(string(cfg.EntityCategory))))
	}
	if cfg.Unit != types.UnitNone {
		p.Add(call(v, "set_unit_of_measurement", strconv.Quote(string(cfg.Unit))))
	}
	p.Add(call(v, "set_accuracy_decimals", strconv.Itoa(cfg.AccuracyDecimals)))
	if cfg.DeviceClass != types.DeviceClassNone {
		p.Add(call(v, "set_device_class", strconv.Quote(string(cfg.DeviceClass))))
	}
	if cfg.StateClass != types.StateClassNone {
		p.Add(call(v, "set_state_class", "sensor::STATE_CLASS_"+strings.ToUpper(string(cfg.StateClass))))
	}
	return v, nil
}

func floatLit(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + "f"
}

// String renders includes, globals and a setup() body.
func (p *Program) String() string {
	var b strings.Builder
	for _, h := range p.includes {
		b.WriteString("#include \"" + h + "\"\n")
	}
	if len(p.includes) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("using namespace esphome;\n\n")
	for _, g := range p.globals {
		b.WriteString(g + "\n")
	}
	if len(p.globals) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("void setup() {\n")
	for _, s := range p.setup {
		b.WriteString("  " + s + "\n")
	}
	b.WriteString("  App.setup();\n}\n\nvoid loop() {\n  App.loop();\n}\n")
	return b.String()
}

// WriteTo writes the rendered program.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}

// -----------------------------------------------------------------------------
// Var
// -----------------------------------------------------------------------------

// Var is a generated receiver variable; its setters emit method calls.
type Var struct {
	p    *Program
	name Expr
}

func (v *Var) Name() Expr { return v.name }

func (v *Var) set(method, arg string) { v.p.Add(call(v.name, method, arg)) }

func (v *Var) SetDIO1Pin(pin int)            { v.set("set_dio1_pin", strconv.Itoa(pin)) }
func (v *Var) SetRSTPin(pin int)             { v.set("set_rst_pin", strconv.Itoa(pin)) }
func (v *Var) SetBusyPin(pin int)            { v.set("set_busy_pin", strconv.Itoa(pin)) }
func (v *Var) SetPowerSensor(s Expr)         { v.set("set_power_sensor", string(s)) }
func (v *Var) SetConsumptionSensor(s Expr)   { v.set("set_consumption_sensor", string(s)) }
func (v *Var) SetGenerationSensor(s Expr)    { v.set("set_generation_sensor", string(s)) }
func (v *Var) SetBatterySensor(s Expr)       { v.set("set_battery_sensor", string(s)) }
func (v *Var) SetRSSISensor(s Expr)          { v.set("set_rssi_sensor", string(s)) }
func (v *Var) SetSNRSensor(s Expr)           { v.set("set_snr_sensor", string(s)) }
func (v *Var) SetPacketCounterSensor(s Expr) { v.set("set_packet_counter_sensor", string(s)) }
func (v *Var) SetMissedPacketsSensor(s Expr) { v.set("set_missed_packets_sensor", string(s)) }
