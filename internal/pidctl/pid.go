// Package pidctl implements a bounded-output PID controller with
// anti-windup, an initial-delay window before its rolling power average is
// trusted, and a trailing window used to detect a power-uptake plateau
// (the signal DistillBulk uses to know the solvent is exhausted).
package pidctl

import (
	"sync"
	"time"
)

// Components is a snapshot of the three PID terms, exposed for debugging
// and status reporting.
type Components struct {
	P, I, D float64
}

type sample struct {
	at     time.Time
	output float64
}

// Controller is a bounded PID. Every method holds mu, so calls from more
// than one goroutine are serialised; the control loop is its only writer.
type Controller struct {
	kp, ki, kd float64

	sampleTime    time.Duration
	outLo, outHi  float64
	initialDelay  time.Duration
	windowSize    time.Duration
	windupLimit   float64

	setpoint float64

	mu sync.Mutex

	running    bool
	lastSample time.Time
	resetAt    time.Time
	lastInput  float64
	integral   float64
	lastOutput float64
	components Components

	window []sample
}

// New constructs a PID controller. outputLo/outputHi bound the duty-cycle
// percent output. windowSize governs the trailing window used by
// CurrentWindowPowerAverage; initialDelay must elapse (measured from the
// most recent Reset) before that average is published.
func New(kp, ki, kd float64, sampleTime time.Duration, outputLo, outputHi float64, initialDelay, windowSize time.Duration, windup float64) *Controller {
	c := &Controller{
		kp: kp, ki: ki, kd: kd,
		sampleTime:   sampleTime,
		outLo:        outputLo,
		outHi:        outputHi,
		initialDelay: initialDelay,
		windowSize:   windowSize,
		windupLimit:  windup,
	}
	return c
}

// SetTunings updates Kp/Ki/Kd without resetting the running state.
func (c *Controller) SetTunings(kp, ki, kd float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kp, c.ki, c.kd = kp, ki, kd
}

// SetOutputLimits updates the duty-cycle clamp range.
func (c *Controller) SetOutputLimits(lo, hi float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outLo, c.outHi = lo, hi
}

// SetWindow updates the trailing-average window length.
func (c *Controller) SetWindow(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windowSize = d
}

// SetSetpoint updates the target measurement value.
func (c *Controller) SetSetpoint(sp float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setpoint = sp
}

// Setpoint returns the current target.
func (c *Controller) Setpoint() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setpoint
}

// On (re)starts the controller, allowing Update to fire again.
func (c *Controller) On(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.resetAt = now
	c.lastSample = time.Time{}
}

// Off forces output to 0 and suppresses future fires until On is called
// again.
func (c *Controller) Off() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.integral = 0
	c.lastOutput = 0
	c.components = Components{}
	c.window = nil
}

// Running reports whether the controller currently fires on Update.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reset clears accumulated state (integral, window, last-sample time) and
// rearms the initial-delay gate from now.
func (c *Controller) Reset(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.integral = 0
	c.lastOutput = 0
	c.window = nil
	c.lastSample = time.Time{}
	c.resetAt = now
	c.components = Components{}
}

// Update samples the controller at most once per sampleTime. didFire is
// false (output unchanged) if called again before the sample interval has
// elapsed, or if the controller is off.
func (c *Controller) Update(now time.Time, measurement float64) (output float64, didFire bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return 0, false
	}
	if !c.lastSample.IsZero() && now.Sub(c.lastSample) < c.sampleTime {
		return c.lastOutput, false
	}

	dt := c.sampleTime.Seconds()
	if !c.lastSample.IsZero() {
		dt = now.Sub(c.lastSample).Seconds()
	}
	if dt <= 0 {
		dt = c.sampleTime.Seconds()
	}

	err := c.setpoint - measurement

	p := c.kp * err

	c.integral += c.ki * err * dt
	if c.integral > c.windupLimit {
		c.integral = c.windupLimit
	} else if c.integral < -c.windupLimit {
		c.integral = -c.windupLimit
	}

	d := 0.0
	if !c.lastSample.IsZero() {
		d = -c.kd * (measurement - c.lastInput) / dt
	}

	out := p + c.integral + d
	if out > c.outHi {
		out = c.outHi
	} else if out < c.outLo {
		out = c.outLo
	}

	c.components = Components{P: p, I: c.integral, D: d}
	c.lastInput = measurement
	c.lastSample = now
	c.lastOutput = out

	c.window = append(c.window, sample{at: now, output: out})
	cutoff := now.Add(-c.windowSize)
	i := 0
	for i < len(c.window) && c.window[i].at.Before(cutoff) {
		i++
	}
	c.window = c.window[i:]

	return out, true
}

// Components returns the most recent P/I/D term breakdown.
func (c *Controller) Components() Components {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.components
}

// CurrentWindowPowerAverage returns the arithmetic mean of outputs within
// the trailing window, or (0, false) if the initial delay since the last
// Reset/On hasn't elapsed yet or there are no samples in the window.
func (c *Controller) CurrentWindowPowerAverage(now time.Time) (avg float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return 0, false
	}
	if now.Sub(c.resetAt) < c.initialDelay {
		return 0, false
	}
	if len(c.window) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range c.window {
		sum += s.output
	}
	return sum / float64(len(c.window)), true
}
