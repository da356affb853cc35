// Package fan drives the cooling fan's PWM duty cycle and, where the board
// supports it, reads back the fan's tachometer/current sense over the
// shared ADC to detect a stalled or disconnected fan (spec.md §4.C's
// fan_adc_check, grounded on module_fancontrol.py).
package fan

import (
	"fmt"
	"sync"
)

// ADCCheckResultType mirrors hardware.FanADCCheck's ordering so the façade
// can cast directly between the two without a translation table.
type ADCCheckResultType int

const (
	ADCOff ADCCheckResultType = iota
	ADCOn
	ADCError
	ADCNotSupported
)

// PWMWriter abstracts the PWM channel write.
type PWMWriter interface {
	SetDutyCycle(channel int, pct float64) error
}

// ADCReader abstracts reading the fan's feedback channel in volts. A nil
// reader means this board has no fan feedback wired up.
type ADCReader interface {
	ReadChannelVolts(channel int) (float64, error)
}

// feedbackOnThresholdVolts is the minimum feedback voltage that counts as
// "fan spinning" once commanded on.
const feedbackOnThresholdVolts = 0.5

// Controller owns the fan's PWM channel and optional ADC feedback channel.
type Controller struct {
	mu       sync.Mutex
	pwmCh    int
	adcCh    int
	writer   PWMWriter
	reader   ADCReader
	lastPct  float64
}

// New constructs a fan controller. adcChannel < 0 means this deployment has
// no fan feedback wiring, so ADCCheck always reports ADCNotSupported.
func New(pwmChannel, adcChannel int) *Controller {
	return &Controller{pwmCh: pwmChannel, adcCh: adcChannel, writer: noopWriter{}}
}

func (c *Controller) SetWriter(w PWMWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

func (c *Controller) SetReader(r ADCReader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader = r
}

// Init has nothing to probe for the PWM side; it exists so the façade's
// Init sequence can treat every actuator uniformly.
func (c *Controller) Init() error { return nil }

// SetPercent updates the duty cycle (0..100).
func (c *Controller) SetPercent(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("fan: duty cycle %.2f out of range", pct)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writer.SetDutyCycle(c.pwmCh, pct); err != nil {
		return fmt.Errorf("fan: set duty cycle: %w", err)
	}
	c.lastPct = pct
	return nil
}

// ADCCheck reports whether the fan's feedback channel confirms it is
// actually spinning when commanded on.
func (c *Controller) ADCCheck() (ADCCheckResultType, error) {
	c.mu.Lock()
	reader := c.reader
	adcCh := c.adcCh
	lastPct := c.lastPct
	c.mu.Unlock()

	if reader == nil || adcCh < 0 {
		return ADCNotSupported, nil
	}

	volts, err := reader.ReadChannelVolts(adcCh)
	if err != nil {
		return ADCError, fmt.Errorf("fan: read feedback: %w", err)
	}

	if lastPct == 0 {
		return ADCOff, nil
	}
	if volts >= feedbackOnThresholdVolts {
		return ADCOn, nil
	}
	return ADCError, nil
}

// Percent returns the last commanded duty cycle.
func (c *Controller) Percent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPct
}

type noopWriter struct{}

func (noopWriter) SetDutyCycle(int, float64) error { return nil }
