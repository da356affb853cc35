// Package hwtest provides an in-memory hardware.Facade double for tests
// across the fsm, command, and controlloop packages (spec.md's Facade is
// the one seam every one of those packages needs to drive without real
// I2C hardware attached).
package hwtest

import (
	"sync"

	"github.com/epicfatigue/merlinctl/internal/hardware"
)

// Facade is a fully in-memory hardware.Facade. Zero value is usable;
// readings default to zero and every setter just records the last value
// it was given. Tests that need a specific reading set the corresponding
// field directly (the type is safe for sequential test-goroutine use, a
// mutex guards the fields other goroutines might touch concurrently via
// the control loop under test).
type Facade struct {
	mu sync.Mutex

	ValveOpenings [5]float64 // index 1..4 used, 0 unused

	HeaterPct_ float64
	PumpPct_   float64
	FanPct_    float64

	PressureVal   float64
	BottomTempVal float64
	GasTempVal    float64

	Alcohol hardware.AlcoholLevel
	FanADC  hardware.FanADCCheck

	NextButton      hardware.ButtonEvent
	NextButtonForce hardware.ButtonEvent

	PanelState   hardware.DeviceState
	PanelProgram int

	Calls []string // records every method called, in order, for assertions
}

func New() *Facade { return &Facade{} }

func (f *Facade) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
}

func (f *Facade) Init() (hardware.InitStatus, error) { f.record("Init"); return hardware.InitOK, nil }

func (f *Facade) SetValve(id int, openingPct float64) error {
	f.record("SetValve")
	f.mu.Lock()
	defer f.mu.Unlock()
	if id >= 0 && id < len(f.ValveOpenings) {
		f.ValveOpenings[id] = openingPct
	}
	return nil
}

func (f *Facade) ValveOpening(id int) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id >= 0 && id < len(f.ValveOpenings) {
		return f.ValveOpenings[id]
	}
	return 0
}

func (f *Facade) HomeAllValves() error { f.record("HomeAllValves"); return nil }

func (f *Facade) SetValvesRelaxPosition() error {
	f.record("SetValvesRelaxPosition")
	_ = f.SetValve(1, 0)
	_ = f.SetValve(2, 100)
	_ = f.SetValve(3, 100)
	_ = f.SetValve(4, 100)
	return nil
}

func (f *Facade) DrainSystem() error {
	f.record("DrainSystem")
	for i := 1; i <= 4; i++ {
		_ = f.SetValve(i, 100)
	}
	return nil
}

func (f *Facade) SetHeaterPercent(pct float64) error {
	f.record("SetHeaterPercent")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HeaterPct_ = pct
	return nil
}

func (f *Facade) SetPumpPWM(pct float64) error {
	f.record("SetPumpPWM")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PumpPct_ = pct
	return nil
}

func (f *Facade) SetFanPWM(pct float64) error {
	f.record("SetFanPWM")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FanPct_ = pct
	return nil
}

func (f *Facade) FanADCCheck() (hardware.FanADCCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FanADC, nil
}

func (f *Facade) HeaterPercent() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HeaterPct_
}

func (f *Facade) PumpPercent() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PumpPct_
}

func (f *Facade) FanPercent() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FanPct_
}

func (f *Facade) Pressure() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PressureVal, nil
}

func (f *Facade) BottomTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.BottomTempVal, nil
}

func (f *Facade) GasTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GasTempVal, nil
}

func (f *Facade) AlcoholLevel() (hardware.AlcoholLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Alcohol, nil
}

func (f *Facade) AlcoholSensorOn() error  { f.record("AlcoholSensorOn"); return nil }
func (f *Facade) AlcoholSensorOff() error { f.record("AlcoholSensorOff"); return nil }

func (f *Facade) ButtonPress() (hardware.ButtonEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NextButton, nil
}

func (f *Facade) ButtonPressForce() (hardware.ButtonEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.NextButtonForce, nil
}

func (f *Facade) SetPanelState(state hardware.DeviceState) error {
	f.record("SetPanelState")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PanelState = state
	return nil
}

func (f *Facade) SetPanelProgram(n int) error {
	f.record("SetPanelProgram")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PanelProgram = n
	return nil
}

func (f *Facade) BlinkDisconnected() error     { f.record("BlinkDisconnected"); return nil }
func (f *Facade) BlinkLabelPrint() error       { f.record("BlinkLabelPrint"); return nil }
func (f *Facade) BlinkForceAfterstill() error  { f.record("BlinkForceAfterstill"); return nil }
func (f *Facade) BlinkReset() error            { f.record("BlinkReset"); return nil }
func (f *Facade) BlinkFlashGreen() error       { f.record("BlinkFlashGreen"); return nil }
func (f *Facade) BlinkRedLight() error         { f.record("BlinkRedLight"); return nil }

func (f *Facade) LightWarm() error   { f.record("LightWarm"); return nil }
func (f *Facade) LightRed() error    { f.record("LightRed"); return nil }
func (f *Facade) LightOff() error    { f.record("LightOff"); return nil }
func (f *Facade) ToggleWhite() error { f.record("ToggleWhite"); return nil }
func (f *Facade) ToggleRed() error   { f.record("ToggleRed"); return nil }

var _ hardware.Facade = (*Facade)(nil)
