package types

// Vec3 represents a position or vector in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a unit quaternion orientation.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose places a single renderable.
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// BatchFrame carries the instance matrices of one instanced batch. Matrices
// are column-major 4x4, 16 floats per instance.
type BatchFrame struct {
	Count    int       `json:"count"`
	Version  uint64    `json:"version"`
	Dirty    bool      `json:"dirty"`
	Matrices []float32 `json:"matrices,omitempty"`
}

// ControlState is the driver input and the actuation it produced this tick.
type ControlState struct {
	Accelerate  bool    `json:"accelerate"`
	Brake       bool    `json:"brake"`
	Left        bool    `json:"left"`
	Right       bool    `json:"right"`
	Steering    float64 `json:"steering"`
	EngineForce float64 `json:"engine_force"`
	BrakeForce  float64 `json:"brake_force"`
}

// Frame is everything a renderer needs to draw one tick.
type Frame struct {
	Tick        uint64                `json:"tick"`
	SimTime     float64               `json:"sim_time"`
	WallDelta   float64               `json:"wall_delta"`
	SubSteps    int                   `json:"sub_steps"`
	SpeedKmh    float64               `json:"speed_kmh"`
	Speedometer string                `json:"speedometer"`
	Controls    ControlState          `json:"controls"`
	Bodies      map[string]Pose       `json:"bodies"`
	Wheels      []Pose                `json:"wheels"`
	Batches     map[string]BatchFrame `json:"batches,omitempty"`
}

// ClientEnvelope is sent from client to server.
type ClientEnvelope struct {
	Type    string `json:"type"` // key|release_all|ping
	Code    string `json:"code,omitempty"`
	Pressed bool   `json:"pressed,omitempty"`
}

// ServerEnvelope is sent from server to client.
type ServerEnvelope struct {
	Type     string `json:"type"` // welcome|frame|pong|error
	Tick     uint64 `json:"tick,omitempty"`
	Frame    *Frame `json:"frame,omitempty"`
	ServerMS int64  `json:"server_ms,omitempty"`
	Message  string `json:"message,omitempty"`
}

// TelemetrySample is one per-tick vehicle measurement.
type TelemetrySample struct {
	Tick        uint64  `json:"tick"`
	AtUnixMS    int64   `json:"at_unix_ms"`
	SpeedKmh    float64 `json:"speed_kmh"`
	Steering    float64 `json:"steering"`
	EngineForce float64 `json:"engine_force"`
	BrakeForce  float64 `json:"brake_force"`
	Position    Vec3    `json:"position"`
	SubSteps    int     `json:"sub_steps"`
	TickMS      float64 `json:"tick_ms"`
}
