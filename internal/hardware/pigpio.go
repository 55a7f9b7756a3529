package hardware

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"
)

// pigpiod socket commands.
const (
	cmdModes = 0
	cmdWrite = 4
	cmdServo = 8

	modeOutput = 1

	minServoPulse = 500
	maxServoPulse = 2500
)

// Pin is a GPIO line, numbered by Broadcom GPIO.
type Pin struct {
	Number    int  `yaml:"pin" json:"pin"`
	ActiveLow bool `yaml:"active_low" json:"active_low"`
}

// Pigpio drives GPIO through the pigpiod daemon's socket interface. Every
// command is a 16 byte little-endian request (cmd, p1, p2, p3) answered by
// a 16 byte response whose last word is the result; negative means error.
//
// The socket is dialed on first use and redialed when it fails, so the
// daemon may start late or restart underneath a running process. Pin modes
// are configured on every new connection.
type Pigpio struct {
	addr     string
	timeout  time.Duration
	leds     map[string]Pin
	servoPin int
	logger   *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewPigpio creates a Pigpio client for the daemon at addr without
// connecting.
func NewPigpio(addr string, leds map[string]Pin, servoPin int, timeout time.Duration, logger *slog.Logger) *Pigpio {
	return &Pigpio{
		addr:     addr,
		timeout:  timeout,
		leds:     leds,
		servoPin: servoPin,
		logger:   logger,
	}
}

// DialPigpio connects to pigpiod at addr and configures every LED pin as
// an output.
func DialPigpio(ctx context.Context, addr string, leds map[string]Pin, servoPin int, timeout time.Duration, logger *slog.Logger) (*Pigpio, error) {
	p := NewPigpio(addr, leds, servoPin, timeout, logger)
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Connect dials pigpiod if not already connected.
func (p *Pigpio) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: pigpiod client closed", ErrCommandFailed)
	}
	if p.conn != nil {
		return nil
	}
	return p.connectLocked(ctx)
}

func (p *Pigpio) connectLocked(ctx context.Context) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("%w: dial pigpiod %s: %w", ErrCommandFailed, p.addr, err)
	}
	p.conn = conn

	names := make([]string, 0, len(p.leds))
	for name := range p.leds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		pin := p.leds[name].Number
		res, err := p.roundTrip(cmdModes, uint32(pin), modeOutput)
		if err == nil && res < 0 {
			err = fmt.Errorf("%w: pigpiod set mode gpio %d: error %d", ErrCommandFailed, pin, res)
		}
		if err != nil {
			p.dropLocked()
			return fmt.Errorf("configure led %s: %w", name, err)
		}
	}

	p.logger.Info("connected to pigpiod", "addr", p.addr, "leds", len(p.leds), "servo_pin", p.servoPin)
	return nil
}

func (p *Pigpio) dropLocked() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// SetLED writes the LED's GPIO level.
func (p *Pigpio) SetLED(name string, on bool) error {
	pin, ok := p.leds[name]
	if !ok {
		return fmt.Errorf("unknown led %q", name)
	}
	var level uint32
	if on != pin.ActiveLow {
		level = 1
	}
	_, err := p.command(cmdWrite, uint32(pin.Number), level)
	return err
}

// SetServo sets the servo pulse width. pigpiod keeps the pulse asserted
// until it is set to 0, so hold needs no extra command.
func (p *Pigpio) SetServo(pulseUS int, hold bool) error {
	if pulseUS != 0 && (pulseUS < minServoPulse || pulseUS > maxServoPulse) {
		return fmt.Errorf("servo pulse %dus outside %d-%d", pulseUS, minServoPulse, maxServoPulse)
	}
	_, err := p.command(cmdServo, uint32(p.servoPin), uint32(pulseUS))
	return err
}

// Close closes the socket. pigpiod keeps the last levels.
func (p *Pigpio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// command sends one request. A socket failure on an established connection
// is retried once on a fresh one; every pigpiod command used here is
// idempotent.
func (p *Pigpio) command(cmd, p1, p2 uint32) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, fmt.Errorf("pigpiod cmd %d: %w", cmd, net.ErrClosed)
	}

	fresh := false
	if p.conn == nil {
		if err := p.connectLocked(context.Background()); err != nil {
			return 0, err
		}
		fresh = true
	}

	res, err := p.roundTrip(cmd, p1, p2)
	if err != nil && !fresh {
		p.logger.Warn("pigpiod connection lost, reconnecting", "addr", p.addr, "error", err)
		p.dropLocked()
		if cerr := p.connectLocked(context.Background()); cerr != nil {
			return 0, errors.Join(err, cerr)
		}
		res, err = p.roundTrip(cmd, p1, p2)
	}
	if err != nil {
		p.dropLocked()
		return 0, err
	}

	if res < 0 {
		return res, fmt.Errorf("pigpiod cmd %d gpio %d: error %d", cmd, p1, res)
	}
	return res, nil
}

// roundTrip writes one request on the current connection and reads the
// result word. Only socket errors are returned.
func (p *Pigpio) roundTrip(cmd, p1, p2 uint32) (int32, error) {
	var req [16]byte
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)

	if p.timeout > 0 {
		if err := p.conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
			return 0, err
		}
	}
	if _, err := p.conn.Write(req[:]); err != nil {
		return 0, fmt.Errorf("pigpiod write cmd %d: %w", cmd, err)
	}
	var resp [16]byte
	if _, err := io.ReadFull(p.conn, resp[:]); err != nil {
		return 0, fmt.Errorf("pigpiod read cmd %d: %w", cmd, err)
	}
	return int32(binary.LittleEndian.Uint32(resp[12:])), nil
}
