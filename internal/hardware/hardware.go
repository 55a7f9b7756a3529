// Package hardware drives the indicator LEDs and the flag servo.
//
// An Actuator is the raw command sink (one LED on or off, one servo pulse).
// A Panel sits on top of it, owns the HardwareState and keeps its
// invariants: at most one stage LED lit, at most one direction LED lit.
package hardware

import (
	"errors"
	"math"
)

// ErrCommandFailed wraps any actuator failure.
var ErrCommandFailed = errors.New("hardware command failed")

// Actuator is an idempotent command sink. Turning off an LED that is
// already off is harmless. A pulse width of 0 de-energizes the servo; hold
// asks the driver to keep asserting the pulse.
type Actuator interface {
	SetLED(name string, on bool) error
	SetServo(pulseUS int, hold bool) error
}

// Driver is an Actuator that owns a connection or device.
type Driver interface {
	Actuator
	Close() error
}

// Direction LED names.
const (
	LEDNorth = "north"
	LEDEast  = "east"
	LEDSouth = "south"
	LEDWest  = "west"
)

// DirectionLEDs lists the direction LEDs in compass order.
var DirectionLEDs = []string{LEDNorth, LEDEast, LEDSouth, LEDWest}

// Direction is a 90 degree compass sector. The zero value means no
// direction is shown.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionNorth Direction = "N"
	DirectionEast  Direction = "E"
	DirectionSouth Direction = "S"
	DirectionWest  Direction = "W"
)

// DirectionFromAzimuth quantizes an azimuth into N [315,45), E [45,135),
// S [135,225) or W [225,315).
func DirectionFromAzimuth(azDeg float64) Direction {
	az := math.Mod(azDeg, 360)
	if az < 0 {
		az += 360
	}
	switch {
	case az >= 315 || az < 45:
		return DirectionNorth
	case az < 135:
		return DirectionEast
	case az < 225:
		return DirectionSouth
	default:
		return DirectionWest
	}
}

// LED returns the LED name for d, or "" for DirectionNone.
func (d Direction) LED() string {
	switch d {
	case DirectionNorth:
		return LEDNorth
	case DirectionEast:
		return LEDEast
	case DirectionSouth:
		return LEDSouth
	case DirectionWest:
		return LEDWest
	default:
		return ""
	}
}

// ServoPosition is the last commanded servo position.
type ServoPosition string

const (
	ServoReleased ServoPosition = "released"
	ServoUp       ServoPosition = "up"
	ServoDown     ServoPosition = "down"
)

// State is the HardwareState as last commanded.
type State struct {
	StageLED  string        `json:"stage_led,omitempty"`
	StageLit  bool          `json:"stage_lit"`
	Direction Direction     `json:"direction,omitempty"`
	Servo     ServoPosition `json:"servo"`
}
