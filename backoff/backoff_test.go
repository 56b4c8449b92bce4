package backoff_test

import (
	"testing"
	"time"

	"github.com/queued-dev/queued/backoff"
)

func TestConstant_FixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for streak := 1; streak <= 10; streak++ {
		if got := c.Delay(streak); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", streak, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsWithStreak(t *testing.T) {
	l := backoff.NewLinear(time.Second, time.Minute)

	tests := []struct {
		streak int
		want   time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{5, 5 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.streak); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.streak, got, tt.want)
		}
	}
}

func TestLinear_CapsAtMax(t *testing.T) {
	l := backoff.NewLinear(time.Second, 5*time.Second)
	if got := l.Delay(100); got != 5*time.Second {
		t.Errorf("Delay(100) = %v, want %v (capped)", got, 5*time.Second)
	}
}

func TestExponential_DoublesEachStreak(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		streak int
		want   time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.streak); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.streak, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped)", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 10*time.Second)

	for streak := 1; streak <= 5; streak++ {
		for range 100 {
			got := e.Delay(streak)
			if got < 0 || got > 10*time.Second {
				t.Errorf("Delay(%d) = %v, want within [0, 10s]", streak, got)
			}
		}
	}
}

func TestExponentialWithJitter_Varies(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, time.Minute)

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[e.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got %d distinct values", len(seen))
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := backoff.DefaultStrategy()
	if s == nil {
		t.Fatal("DefaultStrategy() returned nil")
	}
	d := s.Delay(1)
	if d < 0 || d > time.Second {
		t.Errorf("Delay(1) = %v, want within [0, 1s]", d)
	}
}
