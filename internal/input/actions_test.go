package input

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionForKey(t *testing.T) {
	tests := []struct {
		code string
		want Action
		ok   bool
	}{
		{"KeyW", Accelerate, true},
		{"KeyS", Brake, true},
		{"KeyA", SteerLeft, true},
		{"KeyD", SteerRight, true},
		{"keyw", Accelerate, true},
		{"D", SteerRight, true},
		{" a ", SteerLeft, true},
		{"ArrowUp", 0, false},
		{"Space", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ActionForKey(tt.code)
		assert.Equal(t, tt.ok, ok, "code %q", tt.code)
		if tt.ok {
			assert.Equal(t, tt.want, got, "code %q", tt.code)
		}
	}
}

func TestHeldKeysStayPressedUntilReleased(t *testing.T) {
	s := NewActionState()

	assert.True(t, s.HandleKey("KeyW", true))
	assert.True(t, s.HandleKey("KeyA", true))
	for _i := 0; _i < 3; _i++ {
		snap := s.Snapshot()
		assert.True(t, snap.Accelerate)
		assert.True(t, snap.SteerLeft)
		assert.False(t, snap.Brake)
	}

	assert.True(t, s.HandleKey("KeyW", false))
	snap := s.Snapshot()
	assert.False(t, snap.Accelerate)
	assert.True(t, snap.SteerLeft)
}

func TestUnmappedKeysAreIgnored(t *testing.T) {
	s := NewActionState()
	assert.False(t, s.HandleKey("Escape", true))
	assert.False(t, s.Snapshot().Any())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewActionState()
	s.Set(Brake, true)
	snap := s.Snapshot()
	s.Set(Brake, false)
	assert.True(t, snap.Brake, "a snapshot must not observe later key events")
}

func TestReset(t *testing.T) {
	s := NewActionState()
	s.Set(Accelerate, true)
	s.Set(SteerRight, true)
	s.Reset()
	assert.Equal(t, Actions{}, s.Snapshot())
}

func TestConcurrentKeyEvents(t *testing.T) {
	s := NewActionState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(pressed bool) {
			defer wg.Done()
			for _i := 0; _i < 100; _i++ {
				s.Set(SteerLeft, pressed)
				_ = s.Snapshot()
			}
		}(i%2 == 0)
	}
	wg.Wait()
	s.Set(SteerLeft, false)
	assert.False(t, s.Snapshot().SteerLeft)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "accelerate", Accelerate.String())
	assert.Equal(t, "right", SteerRight.String())
	assert.Equal(t, "unknown", Action(42).String())
}
