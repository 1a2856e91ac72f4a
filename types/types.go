package types

// ---- Component state (retained on "component/state") ----

type ComponentState struct {
	Level  string   `json:"level"`  // e.g. "idle", "running", "stopped"
	Status string   `json:"status"` // freeform short code
	Failed []string `json:"failed,omitempty"`
	TS     int64    `json:"ts_ms"`
}

// ---- Sensor state (retained on "sensor/<id>/state") ----

type SensorState struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit,omitempty"`
	TS    int64   `json:"ts_ms"`
}
