package types

import (
	"fmt"
	"time"
)

// TargetCadence is the pacing policy for a session: either unbounded
// (play as fast as possible) or a fixed interval between frames.
// Set at session configuration time; immutable for the session's lifetime.
type TargetCadence struct {
	interval time.Duration
}

// Unbounded returns the cadence that never throttles the frame loop
func Unbounded() TargetCadence {
	return TargetCadence{}
}

// Fixed returns a cadence with the given interval between frames
func Fixed(interval time.Duration) TargetCadence {
	return TargetCadence{interval: interval}
}

// CadenceFromFPS builds a cadence from a target frame rate.
// A target of 0 means unbounded; negative targets are invalid.
func CadenceFromFPS(fps float64) (TargetCadence, error) {
	if fps < 0 {
		return TargetCadence{}, fmt.Errorf("invalid target FPS %.2f (must be >= 0)", fps)
	}
	if fps == 0 {
		return Unbounded(), nil
	}
	return Fixed(time.Duration(float64(time.Second) / fps)), nil
}

// IsUnbounded reports whether the cadence has no target interval
func (c TargetCadence) IsUnbounded() bool {
	return c.interval == 0
}

// Interval returns the target interval between frames (zero when unbounded)
func (c TargetCadence) Interval() time.Duration {
	return c.interval
}

// TargetFPS returns the cadence as frames per second (zero when unbounded)
func (c TargetCadence) TargetFPS() float64 {
	if c.interval == 0 {
		return 0
	}
	return float64(time.Second) / float64(c.interval)
}

// String returns a human-readable string representation of the cadence
func (c TargetCadence) String() string {
	if c.IsUnbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("%.2f fps", c.TargetFPS())
}
