package types

import (
	"math"
	"testing"
	"time"
)

func TestCadenceFromFPS(t *testing.T) {
	tests := []struct {
		name      string
		fps       float64
		wantErr   bool
		unbounded bool
		interval  time.Duration
	}{
		{name: "30fps", fps: 30.0, interval: 33333333 * time.Nanosecond},
		{name: "60fps", fps: 60.0, interval: 16666666 * time.Nanosecond},
		{name: "zero means unbounded", fps: 0, unbounded: true},
		{name: "negative rejected", fps: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CadenceFromFPS(tt.fps)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CadenceFromFPS(%v) expected error, got nil", tt.fps)
				}
				return
			}
			if err != nil {
				t.Fatalf("CadenceFromFPS(%v) unexpected error: %v", tt.fps, err)
			}
			if c.IsUnbounded() != tt.unbounded {
				t.Errorf("IsUnbounded() = %v, want %v", c.IsUnbounded(), tt.unbounded)
			}
			if tt.unbounded {
				return
			}
			if diff := c.Interval() - tt.interval; diff < -time.Nanosecond || diff > time.Nanosecond {
				t.Errorf("Interval() = %v, want ~%v", c.Interval(), tt.interval)
			}
		})
	}
}

func TestCadenceRoundTrip(t *testing.T) {
	c, err := CadenceFromFPS(30.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.TargetFPS(); math.Abs(got-30.0) > 0.01 {
		t.Errorf("TargetFPS() = %v, want ~30.0", got)
	}
}

func TestCadenceString(t *testing.T) {
	if got := Unbounded().String(); got != "unbounded" {
		t.Errorf("Unbounded().String() = %q, want %q", got, "unbounded")
	}
	if got := Fixed(33333333 * time.Nanosecond).String(); got != "30.00 fps" {
		t.Errorf("Fixed(33.3ms).String() = %q, want %q", got, "30.00 fps")
	}
}

func TestOutcomeString(t *testing.T) {
	if got := OutcomeDelivered.String(); got != "delivered" {
		t.Errorf("OutcomeDelivered.String() = %q", got)
	}
	if got := OutcomeDropped.String(); got != "dropped" {
		t.Errorf("OutcomeDropped.String() = %q", got)
	}
}

func TestDropReasonString(t *testing.T) {
	tests := []struct {
		reason DropReason
		want   string
	}{
		{DropNone, ""},
		{DropDeadlineMissed, "deadline_missed"},
		{DropSinkRejected, "sink_rejected"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("DropReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestVideoMetadataResolution(t *testing.T) {
	m := VideoMetadata{Width: 1920, Height: 1080}
	if got := m.Resolution(); got != "1920x1080" {
		t.Errorf("Resolution() = %q, want %q", got, "1920x1080")
	}
}
