package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManualAfterAdvances(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	<-m.After(42 * time.Second)

	if got := m.Now(); !got.Equal(start.Add(42 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(42*time.Second))
	}
	if slept := m.Slept(); len(slept) != 1 || slept[0] != 42*time.Second {
		t.Fatalf("Slept() = %v", slept)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManual(time.Unix(0, 0))
	err := Sleep(ctx, m, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() = %v, want context.Canceled", err)
	}
	if !m.Now().Equal(time.Unix(0, 0)) {
		t.Error("cancelled sleep should not advance the clock")
	}
}

func TestSleepRealInterrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, Real{}, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Sleep() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep was not interrupted promptly")
	}
}

func TestSleepNonPositive(t *testing.T) {
	m := NewManual(time.Unix(100, 0))
	if err := Sleep(context.Background(), m, -time.Second); err != nil {
		t.Fatalf("Sleep() = %v", err)
	}
	if len(m.Slept()) != 0 {
		t.Error("non-positive sleep should not call After")
	}
}
