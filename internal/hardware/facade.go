// Package hardware exposes the uniform, synchronous façade the FSM and
// control loop drive: valves, heater, pump, fan, temperature, pressure,
// alcohol, panel, and light (spec.md §4.C). Every sub-driver below it is a
// plain concrete type (none implements reef-pi's hal.Driver); this package
// wires them behind one interface and does the ADC/pressure-IC variant
// detection in NewSystem.
package hardware

import (
	"fmt"

	"github.com/reef-pi/rpi/i2c"

	"github.com/epicfatigue/merlinctl/internal/hardware/adc"
	"github.com/epicfatigue/merlinctl/internal/hardware/alcohol"
	"github.com/epicfatigue/merlinctl/internal/hardware/fan"
	"github.com/epicfatigue/merlinctl/internal/hardware/heater"
	"github.com/epicfatigue/merlinctl/internal/hardware/light"
	"github.com/epicfatigue/merlinctl/internal/hardware/panel"
	"github.com/epicfatigue/merlinctl/internal/hardware/pressure"
	"github.com/epicfatigue/merlinctl/internal/hardware/pump"
	"github.com/epicfatigue/merlinctl/internal/hardware/thermistor"
	"github.com/epicfatigue/merlinctl/internal/hardware/valve"
	"github.com/epicfatigue/merlinctl/internal/hwfault"
)

// InitStatus is the result of probing and detecting every onboard chip at
// startup (spec.md §4.C).
type InitStatus int

const (
	InitOK InitStatus = iota
	InitPressureSensorError
	InitUserPanelError
	InitElectricalError
	InitAlcoholSensorError
	InitFanError
	InitThermistorError
	InitAdcChipError
)

func (s InitStatus) String() string {
	switch s {
	case InitOK:
		return "ok"
	case InitPressureSensorError:
		return "pressure_sensor_error"
	case InitUserPanelError:
		return "user_panel_error"
	case InitElectricalError:
		return "electrical_error"
	case InitAlcoholSensorError:
		return "alcohol_sensor_error"
	case InitFanError:
		return "fan_error"
	case InitThermistorError:
		return "thermistor_error"
	case InitAdcChipError:
		return "adc_chip_error"
	default:
		return "unknown"
	}
}

// AlcoholLevel mirrors spec.md §4.C's alcohol_level() enum.
type AlcoholLevel int

const (
	AlcoholOff AlcoholLevel = iota
	AlcoholNotReady
	AlcoholOk
	AlcoholWarning
	AlcoholDanger
)

// FanADCCheck mirrors spec.md §4.C's fan_adc_check() enum.
type FanADCCheck int

const (
	FanADCOff FanADCCheck = iota
	FanADCOn
	FanADCError
	FanADCNotSupported
)

// ButtonEvent is the edge-detected button read spec.md §4.C describes.
type ButtonEvent int

const (
	ButtonNone ButtonEvent = iota
	ButtonSelect
	ButtonPlay
	ButtonPause
	ButtonReset
)

// DeviceState drives the panel's LED/display pattern (spec.md §4.D).
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

// Facade is the uniform synchronous interface the FSM and control loop
// drive. System's methods return the sub-drivers' own errors unwrapped;
// only NewSystem's detection failures are wrapped in *hwfault.Failure.
type Facade interface {
	Init() (InitStatus, error)

	SetValve(id int, openingPct float64) error
	ValveOpening(id int) float64
	HomeAllValves() error
	SetValvesRelaxPosition() error
	DrainSystem() error

	SetHeaterPercent(pct float64) error
	SetPumpPWM(pct float64) error
	SetFanPWM(pct float64) error
	FanADCCheck() (FanADCCheck, error)
	HeaterPercent() float64
	PumpPercent() float64
	FanPercent() float64

	Pressure() (float64, error)
	BottomTemperature() (float64, error)
	GasTemperature() (float64, error)

	AlcoholLevel() (AlcoholLevel, error)
	AlcoholSensorOn() error
	AlcoholSensorOff() error

	ButtonPress() (ButtonEvent, error)
	ButtonPressForce() (ButtonEvent, error)
	SetPanelState(state DeviceState) error
	SetPanelProgram(n int) error
	BlinkDisconnected() error
	BlinkLabelPrint() error
	BlinkForceAfterstill() error
	BlinkReset() error
	BlinkFlashGreen() error
	BlinkRedLight() error

	LightWarm() error
	LightRed() error
	LightOff() error
	ToggleWhite() error
	ToggleRed() error
}

// System is the concrete Facade built from the sub-drivers in this
// package's children, mirroring the two-ADC-variant / two-pressure-IC-
// variant detection spec.md §4.C requires.
type System struct {
	bus i2c.Bus

	Valves      *valve.Controller
	Heater      *heater.Controller
	Pump        *pump.Controller
	Fan         *fan.Controller
	Thermistor  *thermistor.Sensor
	pressureDev *pressure.Sensor
	Alcohol     *alcohol.Sensor
	Panel       *panel.Controller
	Light       *light.Controller

	ADC adc.Chip
}

// NewSystem wires up every sub-driver against the given I2C bus and pin
// set. It probes the bus to detect the ADC and pressure-IC variants; Init
// then initialises each chip.
func NewSystem(bus i2c.Bus, pins PinSet) (*System, error) {
	adcChip, err := adc.Detect(bus, pins.ADCAddresses)
	if err != nil {
		return nil, hwfault.New(hwfault.Electrical, "adc detect", err)
	}

	pressureSensor, err := pressure.Detect(bus, pins.PressureAddresses)
	if err != nil {
		return nil, hwfault.New(hwfault.PressureSensor, "pressure detect", err)
	}

	s := &System{
		bus:         bus,
		Valves:      valve.New(pins.ValveSteppers),
		Heater:      heater.New(pins.HeaterPWM),
		Pump:        pump.New(pins.PumpPWM),
		Fan:         fan.New(pins.FanPWM, pins.FanADC),
		Thermistor:  thermistor.New(adcChip, pins.ThermistorChannel),
		pressureDev: pressureSensor,
		Alcohol:     alcohol.New(adcChip, pins.AlcoholChannel),
		Panel:       panel.New(bus, pins.PanelAddress),
		Light:       light.New(pins.LightPWM),
		ADC:         adcChip,
	}
	return s, nil
}

// PinSet names every physical address/pin the façade needs at
// construction time. Concrete values come from deployment configuration,
// not from the recipe config file.
type PinSet struct {
	ValveSteppers     [4]valve.StepperPins
	HeaterPWM         int
	PumpPWM           int
	FanPWM            int
	FanADC            int
	LightPWM          int
	PanelAddress      byte
	ADCAddresses      []byte
	PressureAddresses []byte
	ThermistorChannel int
	AlcoholChannel    int
}

func (s *System) Init() (InitStatus, error) {
	if err := s.Panel.Init(); err != nil {
		return InitUserPanelError, err
	}
	if err := s.pressureDev.Init(); err != nil {
		return InitPressureSensorError, err
	}
	if err := s.Fan.Init(); err != nil {
		return InitFanError, err
	}
	if err := s.Thermistor.Init(); err != nil {
		return InitThermistorError, err
	}
	if err := s.Alcohol.Init(); err != nil {
		return InitAlcoholSensorError, err
	}
	if err := s.Valves.Init(); err != nil {
		return InitElectricalError, err
	}
	return InitOK, nil
}

func (s *System) SetValve(id int, openingPct float64) error {
	return s.Valves.Set(id, openingPct)
}

func (s *System) ValveOpening(id int) float64 { return s.Valves.Opening(id) }

func (s *System) HomeAllValves() error { return s.Valves.HomeAll() }

func (s *System) SetValvesRelaxPosition() error {
	if err := s.Valves.Set(1, 0); err != nil {
		return err
	}
	for _, id := range []int{2, 3, 4} {
		if err := s.Valves.Set(id, 100); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) DrainSystem() error {
	for _, id := range []int{1, 2, 3, 4} {
		if err := s.Valves.Set(id, 100); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) SetHeaterPercent(pct float64) error { return s.Heater.SetPercent(pct) }
func (s *System) SetPumpPWM(pct float64) error       { return s.Pump.SetPercent(pct) }
func (s *System) SetFanPWM(pct float64) error        { return s.Fan.SetPercent(pct) }

func (s *System) FanADCCheck() (FanADCCheck, error) {
	v, err := s.Fan.ADCCheck()
	return FanADCCheck(v), err
}

func (s *System) HeaterPercent() float64 { return s.Heater.Percent() }
func (s *System) PumpPercent() float64   { return s.Pump.Percent() }
func (s *System) FanPercent() float64    { return s.Fan.Percent() }

func (s *System) BottomTemperature() (float64, error) { return s.Thermistor.BottomC() }
func (s *System) GasTemperature() (float64, error)    { return s.Thermistor.GasC() }

func (s *System) AlcoholLevel() (AlcoholLevel, error) {
	v, err := s.Alcohol.Level()
	return AlcoholLevel(v), err
}
func (s *System) AlcoholSensorOn() error  { return s.Alcohol.On() }
func (s *System) AlcoholSensorOff() error { return s.Alcohol.Off() }

func (s *System) ButtonPress() (ButtonEvent, error) {
	v, err := s.Panel.ButtonPress()
	return ButtonEvent(v), err
}

func (s *System) ButtonPressForce() (ButtonEvent, error) {
	v, err := s.Panel.ButtonPressForce()
	return ButtonEvent(v), err
}

func (s *System) SetPanelState(state DeviceState) error { return s.Panel.SetState(panel.DeviceState(state)) }
func (s *System) SetPanelProgram(n int) error           { return s.Panel.SetProgram(n) }
func (s *System) BlinkDisconnected() error              { return s.Panel.BlinkDisconnected() }
func (s *System) BlinkLabelPrint() error                { return s.Panel.BlinkLabelPrint() }
func (s *System) BlinkForceAfterstill() error            { return s.Panel.BlinkForceAfterstill() }
func (s *System) BlinkReset() error                      { return s.Panel.BlinkReset() }
func (s *System) BlinkFlashGreen() error                 { return s.Panel.BlinkFlashGreen() }
func (s *System) BlinkRedLight() error                   { return s.Panel.BlinkRedLight() }

func (s *System) LightWarm() error   { return s.Light.Warm() }
func (s *System) LightRed() error    { return s.Light.Red() }
func (s *System) LightOff() error    { return s.Light.Off() }
func (s *System) ToggleWhite() error { return s.Light.ToggleWhite() }
func (s *System) ToggleRed() error   { return s.Light.ToggleRed() }

// Pressure reads the pressure sensor in mbar, retrying within the bounded
// budget the concrete sensor enforces.
func (s *System) Pressure() (float64, error) { return s.pressureDev.ReadMbar() }

// PressureSensor exposes the concrete pressure sensor for callers that
// need direct access to its retry-budget-aware read.
func (s *System) PressureSensor() *pressure.Sensor { return s.pressureDev }

var _ Facade = (*System)(nil)
var _ fmt.Stringer = InitOK(0)
