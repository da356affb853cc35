// Package config loads and persists the controller's INI-shaped config
// file (spec.md §6): seven sections, every option defaulted, mutated only
// by the FSM or an explicit command, and written atomically (write-temp +
// rename) so a crash mid-write never corrupts the on-disk file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
)

// FlowBand mirrors domainmath.FlowBand but lives here free of an import
// cycle, since Config is the thing that parses FLOW_ADJ into it.
type FlowBand struct {
	Threshold float64
	Step      float64
	PeriodS   float64
}

// Config is the resolved, typed configuration bag. Field names follow the
// INI keys in spec.md §6 verbatim (modulo Go capitalization) so the
// mapping is obvious on sight.
type Config struct {
	path    string
	modTime time.Time

	// SYSTEM
	PressureSlopeSampleTimeMS int
	SoakTimeSeconds           int

	// FSM_EX
	MaximumVacuumPressure                  float64
	MaximumVacuumTime                      int
	TubeFillingVacuum                      float64
	MaxPressureLossEVC                     float64
	LeakSampleTime                         int
	LeakDelayTime                          int
	PressureEqTime                         int
	EVCVolume                              float64
	ValveLastKnownSetting                  float64
	ValveStartCloseValue                   float64
	ValveAdjustHysteresis                  float64
	ValveAdjustDelay                       int
	CalculatedEXCVolumeCalibrationData     []float64
	CalculatedAspiratedVolumeCalibrationData []float64
	TopUpTime                              int
	TopUpAfterfillValveSetting             float64
	AspirateVolume                         float64
	AspirateSpeed                          float64
	NumberOfFlushes                        int
	FlushTime                              int
	FlowrateFallLimit                      float64

	// FSM_EV
	MinTemp                               float64
	MaxTemp                               float64
	ErrorPressureDuringDistill            float64
	TimeDelayBeforePressureCheck          int
	DistillationTemperature               float64
	AfterHeatTime                         int
	AfterHeatTemp                         float64
	FinalAirCycles                        int
	FinalAirCyclesTimeOpen                int
	FinalAirCyclesTimeClosed              int
	TemperatureCriticalLevel              float64
	TemperatureCriticalLevelMaxIntervalS  int
	TemperatureCheckInterval              int
	TemperatureIncreaseThreshold          float64
	TemperatureCheckThreshold             float64
	ErrorPressureIncreaseThreshold        float64
	AmbientPressureUpperBound             float64
	AmbientPressureLowerBound             float64
	PeakPressureDetectionIntervalSeconds  int
	PeakPressureDuringDistill             float64
	PressurePeakHandleTimeSeconds         int
	PressurePeakMaxPressure               float64

	// DECARB
	DecarbTemperature   float64
	DecarbTimeMinutes   int

	// OIL_MIX
	OilMixTemperature float64
	OilMixTimeMinutes int

	// PID
	PIDPterm               float64
	PIDIterm               float64
	PIDDterm               float64
	PIDSampleTime           float64
	PIDWindup               float64
	PIDInitialWindowDelay   float64
	PIDCurrentWindow        float64
	PIDWattageDecreaseLimit float64

	// FLOW_ADJ
	FlowAdjust []FlowBand
}

// Default returns the option set with every default from spec.md §6
// applied.
func Default() *Config {
	return &Config{
		PressureSlopeSampleTimeMS: 2000,
		SoakTimeSeconds:           10,

		MaximumVacuumPressure:  300,
		MaximumVacuumTime:      120,
		TubeFillingVacuum:      300,
		MaxPressureLossEVC:     2.5,
		LeakSampleTime:         3,
		LeakDelayTime:          10,
		PressureEqTime:         4,
		EVCVolume:              290,
		ValveLastKnownSetting:  28,
		ValveStartCloseValue:   40,
		ValveAdjustHysteresis:  0.1,
		ValveAdjustDelay:       1,
		CalculatedEXCVolumeCalibrationData:       []float64{155, 170, 185},
		CalculatedAspiratedVolumeCalibrationData: []float64{175, 180, 185},
		TopUpTime:                  8,
		TopUpAfterfillValveSetting: 60,
		AspirateVolume:             150,
		AspirateSpeed:              2,
		NumberOfFlushes:            1,
		FlushTime:                  10,
		FlowrateFallLimit:          0.1,

		MinTemp:                              0,
		MaxTemp:                              160,
		ErrorPressureDuringDistill:           375,
		TimeDelayBeforePressureCheck:         90,
		DistillationTemperature:              125,
		AfterHeatTime:                        240,
		AfterHeatTemp:                        107,
		FinalAirCycles:                       16,
		FinalAirCyclesTimeOpen:               2,
		FinalAirCyclesTimeClosed:             88,
		TemperatureCriticalLevel:             150,
		TemperatureCriticalLevelMaxIntervalS: 30,
		TemperatureCheckInterval:             20,
		TemperatureIncreaseThreshold:         5,
		TemperatureCheckThreshold:            100,
		ErrorPressureIncreaseThreshold:       4,
		AmbientPressureUpperBound:            1100,
		AmbientPressureLowerBound:            750,
		PeakPressureDetectionIntervalSeconds: 20,
		PeakPressureDuringDistill:            300,
		PressurePeakHandleTimeSeconds:        600,
		PressurePeakMaxPressure:              600,

		DecarbTemperature: 125,
		DecarbTimeMinutes: 30,

		OilMixTemperature: 60,
		OilMixTimeMinutes: 10,

		PIDPterm:               1,
		PIDIterm:               0.25,
		PIDDterm:               0.05,
		PIDSampleTime:          1,
		PIDWindup:              200,
		PIDInitialWindowDelay:  300,
		PIDCurrentWindow:       100,
		PIDWattageDecreaseLimit: 35,

		FlowAdjust: defaultFlowBands(),
	}
}

// defaultFlowBands builds the default staircase "from 25% to 600% error"
// (spec.md §6), ten bands, step sizes shrinking as the error percentage
// grows so the valve converges rather than hunts.
func defaultFlowBands() []FlowBand {
	thresholds := []float64{25, 50, 75, 100, 150, 200, 300, 400, 500, 600}
	steps := []float64{10, 8, 6, 5, 4, 3, 2, 1.5, 1, 0.5}
	periods := []float64{1, 1, 1, 1, 2, 2, 2, 3, 3, 5}
	bands := make([]FlowBand, len(thresholds))
	for i := range thresholds {
		bands[i] = FlowBand{Threshold: thresholds[i], Step: steps[i], PeriodS: periods[i]}
	}
	return bands
}

// Load reads and parses the INI file at path, filling in any option the
// file omits from Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("config: seed default file: %w", err)
		}
		fi, err = os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config: stat seeded file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	cfg.modTime = fi.ModTime()

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.applyFile(f); err != nil {
		return nil, fmt.Errorf("config: apply %s: %w", path, err)
	}
	return cfg, nil
}

// SaveInPlace persists to the path most recently used by Load/Save. It is
// a no-op if the config was never associated with a file.
func (c *Config) SaveInPlace() error {
	if c.path == "" {
		return nil
	}
	return c.Save(c.path)
}

// Path returns the file this config was loaded from/saved to, or "" if
// it has never been associated with one.
func (c *Config) Path() string { return c.path }

// ResetToDefaults reconstructs the config unconditionally from Default()
// plus the on-disk file at Path (spec.md §4.G's Reset command: "config to
// defaults then re-reads file"), ignoring ModTimeChanged's mtime gate.
func (c *Config) ResetToDefaults() error {
	if c.path == "" {
		*c = *Default()
		return nil
	}
	fresh, err := Load(c.path)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}

// ModTimeChanged reports whether the file at cfg.path has a newer mtime
// than the one observed at the last Load/Save, per spec.md §4.F item 3.
func (c *Config) ModTimeChanged() (bool, error) {
	if c.path == "" {
		return false, nil
	}
	fi, err := os.Stat(c.path)
	if err != nil {
		return false, err
	}
	return fi.ModTime().After(c.modTime), nil
}

// Reload re-reads the file in place if its mtime has advanced, returning
// whether a reload happened.
func (c *Config) Reload() (bool, error) {
	changed, err := c.ModTimeChanged()
	if err != nil || !changed {
		return false, err
	}
	fresh, err := Load(c.path)
	if err != nil {
		return false, err
	}
	*c = *fresh
	return true, nil
}

// Save persists the config atomically: write to a temp file in the same
// directory, then rename over the target, so a crash mid-write can never
// leave a half-written config behind.
func (c *Config) Save(path string) error {
	f := ini.Empty()
	if err := c.populateFile(f); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	c.path = path
	if fi, err := os.Stat(path); err == nil {
		c.modTime = fi.ModTime()
	}
	return nil
}
