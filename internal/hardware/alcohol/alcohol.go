// Package alcohol drives the optional solvent-vapour sensor: a powered-on
// warm-up period followed by threshold classification of its ADC channel
// (spec.md §4.C's alcohol_level()), grounded on the teacher's ads1115tds
// channel-read shape plus a power-gate idiom borrowed from pcf8575's
// output-latch pattern.
package alcohol

import (
	"sync"
	"time"
)

// LevelType mirrors hardware.AlcoholLevel's ordering so the façade can cast
// directly between the two.
type LevelType int

const (
	LevelOff LevelType = iota
	LevelNotReady
	LevelOk
	LevelWarning
	LevelDanger
)

// PowerWriter abstracts turning the sensor's heater/power rail on or off.
type PowerWriter interface {
	SetPower(on bool) error
}

// ADCReader abstracts reading the sensor's analog output channel.
type ADCReader interface {
	ReadChannelVolts(channel int) (float64, error)
}

const (
	warmupDuration = 15 * time.Second

	warningVolts = 1.5
	dangerVolts  = 2.5
)

// Sensor owns the alcohol sensor's power state and its ADC channel.
type Sensor struct {
	mu        sync.Mutex
	adc       ADCReader
	channel   int
	writer    PowerWriter
	poweredOn bool
	onSince   time.Time
}

func New(chip ADCReader, channel int) *Sensor {
	return &Sensor{adc: chip, channel: channel, writer: noopWriter{}}
}

func (s *Sensor) SetWriter(w PowerWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Init leaves the sensor powered off; callers must explicitly turn it on
// before a recipe needs it (spec.md: alcohol sensing is optional per-run).
func (s *Sensor) Init() error {
	return s.Off()
}

func (s *Sensor) On() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.SetPower(true); err != nil {
		return err
	}
	s.poweredOn = true
	s.onSince = time.Now()
	return nil
}

func (s *Sensor) Off() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.SetPower(false); err != nil {
		return err
	}
	s.poweredOn = false
	return nil
}

// Level classifies the sensor's current reading. It reports NotReady until
// the warm-up period has elapsed since On was last called.
func (s *Sensor) Level() (LevelType, error) {
	s.mu.Lock()
	poweredOn := s.poweredOn
	onSince := s.onSince
	s.mu.Unlock()

	if !poweredOn {
		return LevelOff, nil
	}
	if time.Since(onSince) < warmupDuration {
		return LevelNotReady, nil
	}

	volts, err := s.adc.ReadChannelVolts(s.channel)
	if err != nil {
		return LevelNotReady, err
	}
	switch {
	case volts >= dangerVolts:
		return LevelDanger, nil
	case volts >= warningVolts:
		return LevelWarning, nil
	default:
		return LevelOk, nil
	}
}

type noopWriter struct{}

func (noopWriter) SetPower(bool) error { return nil }
