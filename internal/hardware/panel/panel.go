// Package panel drives the front-panel I²C port-expander: four buttons
// read back as a 16-bit latch and a set of status LEDs driven the same
// way, directly adapted from the teacher's pcf8575 low-level access
// (Write16/Read16, LSB-first, no internal registers) with panel-specific
// bit assignments and edge detection layered on top.
package panel

import (
	"fmt"
	"sync"

	"github.com/reef-pi/rpi/i2c"
)

// button bit positions on the port expander's input half (active low).
const (
	bitSelect = 0
	bitPlay   = 1
	bitPause  = 2
	bitReset  = 3
)

// LED bit positions on the port expander's output half.
const (
	bitLEDGreen        = 8
	bitLEDRed          = 9
	bitLEDDisconnected = 10
)

// ButtonType mirrors hardware.ButtonEvent's ordering.
type ButtonType int

const (
	ButtonNone ButtonType = iota
	ButtonSelect
	ButtonPlay
	ButtonPause
	ButtonReset
)

// DeviceState mirrors hardware.DeviceState's ordering.
type DeviceState int

const (
	StateReady DeviceState = iota
	StateError
	StatePause
	StateRunningPauseEnabled
	StateRunningPauseDisabled
	StateResetWarning
	StateUpdating
	StateBooting
	StateResetting
	StateSendingLogs
)

// Controller owns the panel's port-expander latch and edge-detects button
// presses against the previously observed level.
type Controller struct {
	mu       sync.Mutex
	addr     byte
	bus      i2c.Bus
	latch    uint16
	lastBits uint16
	lastEdge ButtonType
	program  int
	state    DeviceState
}

func New(bus i2c.Bus, addr byte) *Controller {
	return &Controller{bus: bus, addr: addr, latch: 0xFFFF}
}

// write16 writes the 16-bit latch value (LSB first), matching the port
// expander's register-less protocol.
func (c *Controller) write16(v uint16) error {
	b := []byte{byte(v & 0xFF), byte((v >> 8) & 0xFF)}
	return c.bus.WriteBytes(c.addr, b)
}

// read16 reads the current pin levels (LSB first).
func (c *Controller) read16() (uint16, error) {
	b, err := c.bus.ReadBytes(c.addr, 2)
	if err != nil {
		return 0, err
	}
	if len(b) < 2 {
		return 0, fmt.Errorf("panel addr=0x%02X: short read: got %d bytes", c.addr, len(b))
	}
	return uint16(b[0]) | (uint16(b[1]) << 8), nil
}

// Init releases every pin (all-high idle) and primes the edge-detect
// baseline.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latch = 0xFFFF
	if err := c.write16(c.latch); err != nil {
		return fmt.Errorf("panel: init: %w", err)
	}
	bits, err := c.read16()
	if err != nil {
		return fmt.Errorf("panel: init read: %w", err)
	}
	c.lastBits = bits
	return nil
}

// pollButton returns the first button (active-low) that read low on both
// this poll and the previous one, or ButtonNone. A held button is returned
// on every poll.
func (c *Controller) pollButton() (ButtonType, error) {
	bits, err := c.read16()
	if err != nil {
		return ButtonNone, fmt.Errorf("panel: read buttons: %w", err)
	}
	pressed := (^bits) & (^c.lastBits) & 0x000F
	c.lastBits = bits

	switch {
	case pressed&(1<<bitSelect) != 0:
		return ButtonSelect, nil
	case pressed&(1<<bitPlay) != 0:
		return ButtonPlay, nil
	case pressed&(1<<bitPause) != 0:
		return ButtonPause, nil
	case pressed&(1<<bitReset) != 0:
		return ButtonReset, nil
	default:
		return ButtonNone, nil
	}
}

// ButtonPress reports a newly-pressed button since the last call, if any.
func (c *Controller) ButtonPress() (ButtonType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.pollButton()
	if err != nil {
		return ButtonNone, err
	}
	if b == c.lastEdge {
		return ButtonNone, nil
	}
	c.lastEdge = b
	return b, nil
}

// ButtonPressForce reports the debounced level: a held button is reported
// on every call. Hold-duration timing (e.g. long-press reset) is layered
// above the façade in internal/panelui.
func (c *Controller) ButtonPressForce() (ButtonType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollButton()
}

func (c *Controller) ledsFor(state DeviceState) uint16 {
	switch state {
	case StateReady:
		return 1 << bitLEDGreen
	case StateError:
		return 1 << bitLEDRed
	case StatePause, StateResetWarning:
		return (1 << bitLEDGreen) | (1 << bitLEDRed)
	case StateRunningPauseEnabled, StateRunningPauseDisabled, StateUpdating, StateBooting, StateResetting, StateSendingLogs:
		return 1 << bitLEDGreen
	default:
		return 0
	}
}

// SetState drives the status LEDs for the given device state, preserving
// the button input bits (the output half of the latch is independent of
// the input half on this port expander's wiring).
func (c *Controller) SetState(state DeviceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.latch = (c.latch & 0x00FF) | c.ledsFor(state)
	return c.write16(c.latch)
}

func (c *Controller) SetProgram(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = n
	return nil
}

func (c *Controller) blink(bit uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latch ^= bit
	return c.write16(c.latch)
}

func (c *Controller) BlinkDisconnected() error    { return c.blink(1 << bitLEDDisconnected) }
func (c *Controller) BlinkLabelPrint() error      { return c.blink(1 << bitLEDGreen) }
func (c *Controller) BlinkForceAfterstill() error { return c.blink(1 << bitLEDGreen) }
func (c *Controller) BlinkReset() error           { return c.blink(1 << bitLEDRed) }
func (c *Controller) BlinkFlashGreen() error      { return c.blink(1 << bitLEDGreen) }
func (c *Controller) BlinkRedLight() error        { return c.blink(1 << bitLEDRed) }
