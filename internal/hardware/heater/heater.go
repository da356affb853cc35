// Package heater drives the bottom heater's PWM duty cycle, following the
// teacher's single-purpose-driver-per-file convention
// (module_bottomheatercontrol.py's equivalent).
package heater

import (
	"fmt"
	"sync"
)

// PWMWriter abstracts the PWM channel write.
type PWMWriter interface {
	SetDutyCycle(channel int, pct float64) error
}

// Controller owns the bottom heater's PWM channel.
type Controller struct {
	mu      sync.Mutex
	channel int
	writer  PWMWriter
	last    float64
}

func New(channel int) *Controller {
	return &Controller{channel: channel, writer: noopWriter{}}
}

func (c *Controller) SetWriter(w PWMWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// SetPercent updates the duty cycle (0..100).
func (c *Controller) SetPercent(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("heater: duty cycle %.2f out of range", pct)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writer.SetDutyCycle(c.channel, pct); err != nil {
		return fmt.Errorf("heater: set duty cycle: %w", err)
	}
	c.last = pct
	return nil
}

// Percent returns the last commanded duty cycle.
func (c *Controller) Percent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

type noopWriter struct{}

func (noopWriter) SetDutyCycle(int, float64) error { return nil }
