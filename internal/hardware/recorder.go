package hardware

import (
	"fmt"
	"sync"
)

// Call is one command seen by a Recorder.
type Call struct {
	LED   string // empty for servo calls
	On    bool
	Pulse int
	Hold  bool
}

func (c Call) String() string {
	if c.LED != "" {
		return fmt.Sprintf("led %s on=%v", c.LED, c.On)
	}
	return fmt.Sprintf("servo %d hold=%v", c.Pulse, c.Hold)
}

// Recorder is an in-memory Actuator. It records every call and the
// resulting output levels, and can be told to fail.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	leds    map[string]bool
	pulse   int
	hold    bool
	failLED map[string]error
	failSrv error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{leds: make(map[string]bool), failLED: make(map[string]error)}
}

// SetLED records the call.
func (r *Recorder) SetLED(name string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{LED: name, On: on})
	if err := r.failLED[name]; err != nil {
		return err
	}
	r.leds[name] = on
	return nil
}

// SetServo records the call.
func (r *Recorder) SetServo(pulseUS int, hold bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Pulse: pulseUS, Hold: hold})
	if r.failSrv != nil {
		return r.failSrv
	}
	r.pulse, r.hold = pulseUS, hold
	return nil
}

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// FailLED makes every command to name return err. A nil err clears it.
func (r *Recorder) FailLED(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failLED, name)
		return
	}
	r.failLED[name] = err
}

// FailServo makes every servo command return err. A nil err clears it.
func (r *Recorder) FailServo(err error) {
	r.mu.Lock()
	r.failSrv = err
	r.mu.Unlock()
}

// Calls returns all recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// ResetCalls forgets the recorded calls but keeps output levels.
func (r *Recorder) ResetCalls() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// LED reports whether name is on.
func (r *Recorder) LED(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leds[name]
}

// LitLEDs returns the names of all LEDs that are on.
func (r *Recorder) LitLEDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name, on := range r.leds {
		if on {
			out = append(out, name)
		}
	}
	return out
}

// Servo returns the current pulse width and hold flag.
func (r *Recorder) Servo() (pulseUS int, hold bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulse, r.hold
}
