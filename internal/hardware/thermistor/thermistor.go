// Package thermistor converts the bottom-heater and gas-path thermistor
// channels from ADC volts to Celsius. Two calibration tables exist, one
// per supported ADC variant (spec.md §4.C, §9), grounded on the teacher's
// ads1115tds driver's voltage-to-value linear mapping.
package thermistor

import (
	"fmt"

	"github.com/epicfatigue/merlinctl/internal/hardware/adc"
)

// ADCReader abstracts the shared ADC chip the thermistor channels ride on.
type ADCReader interface {
	Variant() adc.Variant
	ReadChannelVolts(channel int) (float64, error)
}

// calibration is a simple two-point linear volts-to-celsius mapping,
// distinct per ADC variant because each chip's full-scale range differs.
type calibration struct {
	voltsLo, voltsHi   float64
	celsiusLo, celsiusHi float64
}

func (c calibration) convert(volts float64) float64 {
	span := c.voltsHi - c.voltsLo
	if span == 0 {
		return c.celsiusLo
	}
	frac := (volts - c.voltsLo) / span
	return c.celsiusLo + frac*(c.celsiusHi-c.celsiusLo)
}

var calibrationByVariant = map[adc.Variant]calibration{
	adc.VariantADS1115: {voltsLo: 0.2, voltsHi: 3.6, celsiusLo: 0, celsiusHi: 200},
	adc.VariantPCF8591: {voltsLo: 0.15, voltsHi: 2.9, celsiusLo: 0, celsiusHi: 200},
}

// Sensor reads the bottom and gas thermistor channels off the shared ADC.
// The gas channel is fixed one channel above the bottom channel, mirroring
// the board's fixed wiring.
type Sensor struct {
	adc          ADCReader
	bottomChan   int
	calibration  calibration
}

func New(chip ADCReader, bottomChannel int) *Sensor {
	return &Sensor{adc: chip, bottomChan: bottomChannel}
}

func (s *Sensor) Init() error {
	cal, ok := calibrationByVariant[s.adc.Variant()]
	if !ok {
		return fmt.Errorf("thermistor: unsupported adc variant %s", s.adc.Variant())
	}
	s.calibration = cal
	return nil
}

func (s *Sensor) BottomC() (float64, error) {
	volts, err := s.adc.ReadChannelVolts(s.bottomChan)
	if err != nil {
		return 0, fmt.Errorf("thermistor: read bottom channel: %w", err)
	}
	return s.calibration.convert(volts), nil
}

func (s *Sensor) GasC() (float64, error) {
	volts, err := s.adc.ReadChannelVolts(s.bottomChan + 1)
	if err != nil {
		return 0, fmt.Errorf("thermistor: read gas channel: %w", err)
	}
	return s.calibration.convert(volts), nil
}
