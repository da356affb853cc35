// Package valve drives the four proportional stepper valves. Valve 1 uses
// full-step sequencing; valves 2-4 use half-step (finer resolution,
// matching module_steppervalvecontrol.py's distinction), each move is
// idempotent within one step of the current position, and HomeAll runs a
// reverse-direction sequence long enough to bottom every valve out.
package valve

import (
	"fmt"
	"sync"
)

// StepperPins names the GPIO lines one valve's stepper driver uses. Pin
// numbers are deployment-specific; the zero value is never a valid wiring,
// so callers must supply real pins.
type StepperPins struct {
	Step, Dir, Enable int
}

// StepWriter abstracts the GPIO write a stepper motor needs, so this
// package stays bus/GPIO-library agnostic (tests use a fake).
type StepWriter interface {
	Step(pins StepperPins, steps int, forward bool) error
}

const (
	fullStepsFullRange = 200 // valve1: steps to travel 0..100%
	halfStepsFullRange = 400 // valves 2-4: finer resolution

	homeExtraSteps = 40 // overtravel to guarantee bottoming out
)

// Controller owns all four valves' positions and serializes every stepper
// move so concurrent SetValve calls cannot interleave (spec.md §5's
// single-writer-per-actuator rule).
type Controller struct {
	mu       sync.Mutex
	pins     [4]StepperPins
	position [4]float64 // opening percent, 1-indexed logically but stored 0..3
	writer   StepWriter
}

// New constructs a Controller for valves 1..4 using the given per-valve
// stepper pins. The writer defaults to a no-op until SetWriter is called
// (so façade construction doesn't require real GPIO access in tests).
func New(pins [4]StepperPins) *Controller {
	return &Controller{pins: pins, writer: noopWriter{}}
}

// SetWriter installs the real GPIO stepper driver; tests install a fake.
func (c *Controller) SetWriter(w StepWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// Init assumes the valves start at an unknown position and homes them.
func (c *Controller) Init() error {
	return c.HomeAll()
}

func rangeFor(id int) int {
	if id == 1 {
		return fullStepsFullRange
	}
	return halfStepsFullRange
}

// Set drives valve id (1..4) to openingPct (0..100). Idempotent within one
// step of the current position: if the requested position rounds to the
// same step as the current one, no hardware write happens.
func (c *Controller) Set(id int, openingPct float64) error {
	if id < 1 || id > 4 {
		return fmt.Errorf("valve: invalid id %d", id)
	}
	if openingPct < 0 {
		openingPct = 0
	}
	if openingPct > 100 {
		openingPct = 100
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := id - 1
	steps := rangeFor(id)

	curStep := int(c.position[idx] / 100 * float64(steps))
	newStep := int(openingPct / 100 * float64(steps))
	delta := newStep - curStep
	if delta == 0 {
		return nil
	}

	forward := delta > 0
	n := delta
	if n < 0 {
		n = -n
	}
	if err := c.writer.Step(c.pins[idx], n, forward); err != nil {
		return fmt.Errorf("valve %d: step: %w", id, err)
	}
	c.position[idx] = openingPct
	return nil
}

// Opening returns the last commanded opening percent for valve id.
func (c *Controller) Opening(id int) float64 {
	if id < 1 || id > 4 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[id-1]
}

// HomeAll runs a reverse-direction step sequence long enough to bottom
// every valve out, then records each valve's in-memory position as fully
// open (spec.md §4.C: home_all_valves sets position to fully-open).
func (c *Controller) HomeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < 4; i++ {
		id := i + 1
		steps := rangeFor(id) + homeExtraSteps
		if err := c.writer.Step(c.pins[i], steps, false); err != nil {
			return fmt.Errorf("valve %d: home: %w", id, err)
		}
		c.position[i] = 100
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Step(StepperPins, int, bool) error { return nil }
