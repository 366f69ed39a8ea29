package queue

import (
	"testing"
	"time"
)

func TestCountdownCapsAtMax(t *testing.T) {
	cases := []struct {
		round int
		want  time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{5, 300 * time.Second}, // capped
	}
	for _, tc := range cases {
		got := Countdown(10*time.Second, tc.round, 300*time.Second)
		if got != tc.want {
			t.Errorf("Countdown(round=%d) = %v, want %v", tc.round, got, tc.want)
		}
	}
}
