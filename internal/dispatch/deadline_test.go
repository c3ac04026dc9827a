package dispatch

import (
	"testing"
	"time"
)

func TestShouldAbort(t *testing.T) {
	base := time.Unix(1700000000, 0)
	deadline := base.Add(100 * time.Millisecond)

	cases := []struct {
		name string
		now  time.Time
		avg  time.Duration
		want bool
	}{
		{"plenty of margin", base, 20 * time.Millisecond, false},
		{"exactly at the margin", base, 100 * time.Millisecond, true},
		{"margin crosses deadline", base.Add(90 * time.Millisecond), 20 * time.Millisecond, true},
		{"deadline already passed", base.Add(200 * time.Millisecond), 0, true},
		{"zero estimate just before deadline", base.Add(99 * time.Millisecond), 0, false},
	}

	for _, tc := range cases {
		if got := ShouldAbort(tc.now, deadline, tc.avg); got != tc.want {
			t.Fatalf("%s: ShouldAbort = %v, want %v", tc.name, got, tc.want)
		}
	}
}
