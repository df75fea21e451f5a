package input

import (
	"strings"
	"sync"
)

// Action is one of the four discrete driving intents.
type Action int

const (
	Accelerate Action = iota
	Brake
	SteerLeft
	SteerRight
)

func (a Action) String() string {
	switch a {
	case Accelerate:
		return "accelerate"
	case Brake:
		return "brake"
	case SteerLeft:
		return "left"
	case SteerRight:
		return "right"
	default:
		return "unknown"
	}
}

// Actions is an immutable view of the held actions, read once per tick.
type Actions struct {
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
	SteerLeft  bool `json:"left"`
	SteerRight bool `json:"right"`
}

// Any reports whether at least one action is held.
func (a Actions) Any() bool {
	return a.Accelerate || a.Brake || a.SteerLeft || a.SteerRight
}

var keyActions = map[string]Action{
	"keyw": Accelerate,
	"keys": Brake,
	"keya": SteerLeft,
	"keyd": SteerRight,
	"w":    Accelerate,
	"s":    Brake,
	"a":    SteerLeft,
	"d":    SteerRight,
}

// ActionForKey maps a keyboard code ("KeyW") or bare letter ("w") to its
// action. Codes are matched case-insensitively.
func ActionForKey(code string) (Action, bool) {
	a, ok := keyActions[strings.ToLower(strings.TrimSpace(code))]
	return a, ok
}

// ActionState holds the currently pressed actions. Key events may arrive on
// any goroutine; the tick reads it through Snapshot.
type ActionState struct {
	mu      sync.Mutex
	current Actions
}

// NewActionState returns a state with every action released.
func NewActionState() *ActionState {
	return &ActionState{}
}

// Set presses or releases one action.
func (s *ActionState) Set(a Action, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch a {
	case Accelerate:
		s.current.Accelerate = pressed
	case Brake:
		s.current.Brake = pressed
	case SteerLeft:
		s.current.SteerLeft = pressed
	case SteerRight:
		s.current.SteerRight = pressed
	}
}

// HandleKey applies a key press or release. Unmapped keys are ignored and
// reported as false.
func (s *ActionState) HandleKey(code string, pressed bool) bool {
	a, ok := ActionForKey(code)
	if !ok {
		return false
	}
	s.Set(a, pressed)
	return true
}

// Snapshot returns the actions held right now.
func (s *ActionState) Snapshot() Actions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset releases every action, e.g. when the controlling client disconnects.
func (s *ActionState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Actions{}
}
