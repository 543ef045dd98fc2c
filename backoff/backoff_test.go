package backoff

import (
	"testing"
	"time"
)

func TestConstant(t *testing.T) {
	c := NewConstant(5 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want 5s", attempt, got)
		}
	}
}

func TestExponential(t *testing.T) {
	e := NewExponential(time.Second, time.Minute)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute}, // capped
		{20, time.Minute},
	}
	for _, tc := range cases {
		if got := e.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestExponential_NoCap(t *testing.T) {
	e := NewExponential(time.Second, 0)
	if got := e.Delay(10); got != 512*time.Second {
		t.Errorf("Delay(10) = %v, want 512s", got)
	}
}

func TestExponentialWithJitter_Bounds(t *testing.T) {
	j := NewExponentialWithJitter(time.Second, 30*time.Second)

	for attempt := 1; attempt <= 10; attempt++ {
		ceiling := NewExponential(time.Second, 30*time.Second).Delay(attempt)
		for range 50 {
			d := j.Delay(attempt)
			if d < 0 || d > ceiling {
				t.Fatalf("Delay(%d) = %v outside [0, %v]", attempt, d, ceiling)
			}
		}
	}
}

func TestExponentialWithJitter_Varies(t *testing.T) {
	j := NewExponentialWithJitter(time.Minute, time.Hour)
	seen := make(map[time.Duration]struct{})
	for range 20 {
		seen[j.Delay(5)] = struct{}{}
	}
	if len(seen) < 2 {
		t.Error("jitter produced identical delays across 20 draws")
	}
}
