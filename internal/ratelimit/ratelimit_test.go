package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIntervalFor(t *testing.T) {
	cases := []struct {
		remaining int
		want      time.Duration
	}{
		{-1, NormalInterval},
		{0, PauseInterval},
		{1, PauseInterval},
		{2, PauseInterval},
		{3, SlowInterval},
		{4, SlowInterval},
		{5, SlowInterval},
		{6, NormalInterval},
		{42, NormalInterval},
	}
	for _, tc := range cases {
		if got := IntervalFor(tc.remaining); got != tc.want {
			t.Errorf("IntervalFor(%d) = %v, want %v", tc.remaining, got, tc.want)
		}
	}
}

func TestIntervalMonotone(t *testing.T) {
	// The interval must never shrink as remaining decreases.
	prev := IntervalFor(100)
	for remaining := 99; remaining >= 0; remaining-- {
		current := IntervalFor(remaining)
		if current < prev {
			t.Fatalf("interval decreased from %v to %v at remaining=%d", prev, current, remaining)
		}
		prev = current
	}
}

func TestObserve(t *testing.T) {
	t.Run("Retunes Limiter", func(t *testing.T) {
		l := New()

		l.Observe(4)
		if l.Remaining() != 4 {
			t.Errorf("expected remaining 4, got %d", l.Remaining())
		}
		if l.Interval() != SlowInterval {
			t.Errorf("expected slow interval, got %v", l.Interval())
		}

		l.Observe(1)
		if l.Interval() != PauseInterval {
			t.Errorf("expected pause interval, got %v", l.Interval())
		}

		// Quota recovered: limiter speeds back up from the latest
		// observation alone.
		l.Observe(30)
		if l.Interval() != NormalInterval {
			t.Errorf("expected normal interval, got %v", l.Interval())
		}
	})

	t.Run("Ignores Negative", func(t *testing.T) {
		l := New()
		l.Observe(3)
		l.Observe(-1)
		if l.Remaining() != 3 {
			t.Errorf("negative observation should be dropped, remaining=%d", l.Remaining())
		}
	})

	t.Run("Adjusts Token Bucket", func(t *testing.T) {
		l := New()
		l.Observe(0)
		want := rate.Every(PauseInterval)
		if got := l.limiter.Limit(); got != want {
			t.Errorf("limiter limit = %v, want %v", got, want)
		}
	})
}

func TestNewStartsUnknown(t *testing.T) {
	l := New()
	if l.Remaining() != -1 {
		t.Errorf("fresh limiter should report unknown quota, got %d", l.Remaining())
	}
	if l.Interval() != NormalInterval {
		t.Errorf("fresh limiter should use the normal interval, got %v", l.Interval())
	}
}
