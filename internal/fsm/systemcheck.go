package fsm

import (
	"fmt"
	"time"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware"
)

// SystemCheckState runs the 14 numbered sub-checks (spec.md §4.E, sub-
// states 0..13) that validate the vacuum/leak/heater path before a
// recipe is allowed to proceed. It is a single FSM state internally
// sequenced by a sub-state counter rather than 14 separate top-level
// states, matching the source's own structure.
type SystemCheckState struct {
	base

	step          int
	stepEnteredAt time.Time

	fanStarted bool
	fanChecked bool
	fanCheckAt time.Time

	valvesOpened bool
	valveOpenAt  time.Time

	diagPhase int
	diagStart time.Time
	diagP0    float64
	ventRetries int

	startPressure    float64
	lastPressure     float64
	pressureRiseBase float64
	startTemp        float64
}

func (s *SystemCheckState) Name() string { return "SystemCheck" }

func (s *SystemCheckState) Enter(ctx *Context) {
	s.fanStarted, s.fanChecked, s.valvesOpened = false, false, false
	s.diagPhase = 0
	s.ventRetries = 0
	ctx.Data.FlushesPerformed = 0
	s.enterStep(ctx, 0)
	_ = ctx.HW.AlcoholSensorOn()
}

func (s *SystemCheckState) Exit(ctx *Context) {}

func (s *SystemCheckState) enterStep(ctx *Context, step int) {
	s.step = step
	s.stepEnteredAt = ctx.Now()
}

func (s *SystemCheckState) elapsed(ctx *Context) time.Duration {
	return ctx.Now().Sub(s.stepEnteredAt)
}

func (s *SystemCheckState) Execute(ctx *Context) Transition {
	switch s.step {
	case 0:
		return s.step0AlcoholAndPressureGate(ctx)
	case 1:
		for _, v := range []int{1, 2, 3, 4} {
			_ = ctx.HW.SetValve(v, 0)
		}
		_ = ctx.HW.SetPumpPWM(100)
		s.enterStep(ctx, 2)
		return stay()
	case 2:
		return s.step2PumpDown(ctx)
	case 3:
		if s.elapsed(ctx) < time.Duration(ctx.Cfg.LeakDelayTime)*time.Second {
			return stay()
		}
		p, err := ctx.HW.Pressure()
		if err != nil {
			return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
		}
		s.startPressure = p
		s.enterStep(ctx, 4)
		return stay()
	case 4:
		return s.step4LeakRate(ctx)
	case 5:
		return s.step5EqualiseValve3(ctx)
	case 6:
		return s.step6SecondLeakCheck(ctx)
	case 7:
		s.pressureRiseBase, _ = ctx.HW.Pressure()
		_ = ctx.HW.SetValve(4, 100)
		s.enterStep(ctx, 8)
		return stay()
	case 8:
		return s.step8EqualiseValve4(ctx)
	case 9:
		return s.step9PumpDownAgain(ctx)
	case 10:
		return s.step10EqualiseValve2(ctx)
	case 11:
		s.startTemp, _ = ctx.HW.BottomTemperature()
		_ = ctx.HW.SetHeaterPercent(100)
		s.enterStep(ctx, 12)
		return stay()
	case 12:
		return s.step12HeaterRiseCheck(ctx)
	case 13:
		return s.step13FinalAlcoholGate(ctx)
	default:
		return s.reg.toError(ctx, fsmdata.UnknownError, "system check: invalid sub-state")
	}
}

func (s *SystemCheckState) step0AlcoholAndPressureGate(ctx *Context) Transition {
	level, err := ctx.HW.AlcoholLevel()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.AlcoholGasLevelError, err.Error())
	}
	if level == hardware.AlcoholNotReady || level == hardware.AlcoholOff {
		return stay()
	}
	if level == hardware.AlcoholDanger {
		return s.reg.toError(ctx, fsmdata.AlcoholGasLevelError, "alcohol sensor reports danger at boot")
	}

	if !s.fanStarted {
		_ = ctx.HW.SetFanPWM(100)
		s.fanStarted = true
		s.fanCheckAt = ctx.Now()
		return stay()
	}
	if ctx.Now().Sub(s.fanCheckAt) < time.Second {
		return stay()
	}
	if !s.fanChecked {
		check, err := ctx.HW.FanADCCheck()
		if err != nil {
			return s.reg.toError(ctx, fsmdata.FanError, err.Error())
		}
		if check != hardware.FanADCOn && check != hardware.FanADCNotSupported {
			return s.reg.toError(ctx, fsmdata.FanError, "fan feedback did not confirm spin-up")
		}
		s.fanChecked = true
	}

	if !s.valvesOpened {
		for _, v := range []int{1, 2, 3, 4} {
			if err := ctx.HW.SetValve(v, 100); err != nil {
				return s.reg.toError(ctx, fsmdata.UnknownError, err.Error())
			}
		}
		s.valvesOpened = true
		s.valveOpenAt = ctx.Now()
		return stay()
	}
	if ctx.Now().Sub(s.valveOpenAt) < 2*time.Second {
		return stay()
	}

	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Cfg.AmbientPressureLowerBound || p > ctx.Cfg.AmbientPressureUpperBound {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, fmt.Sprintf("ambient pressure %.1f mbar out of bounds", p))
	}
	ctx.Data.AtmPressure = p
	s.enterStep(ctx, 1)
	return stay()
}

func (s *SystemCheckState) step2PumpDown(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Cfg.MaximumVacuumPressure {
		s.enterStep(ctx, 3)
		return stay()
	}
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.MaximumVacuumTime)*time.Second {
		return stay()
	}
	return s.pumpDiagnostic(ctx, p)
}

// pumpDiagnostic runs when the first pump-down times out: it distinguishes
// a gross leak from a small leak from a pump that merely needs venting
// (spec.md §4.E step 2).
func (s *SystemCheckState) pumpDiagnostic(ctx *Context, p float64) Transition {
	if p > 900 {
		return s.reg.toError(ctx, fsmdata.EVCLeak, fmt.Sprintf("gross leak: pressure %.1f mbar", p))
	}

	switch s.diagPhase {
	case 0:
		s.diagStart = ctx.Now()
		s.diagP0 = p
		s.diagPhase = 1
		return stay()
	case 1:
		if ctx.Now().Sub(s.diagStart) < 2*time.Second {
			return stay()
		}
		rise2 := p - s.diagP0
		if rise2 > 5 {
			return s.reg.toError(ctx, fsmdata.EVCLeak, fmt.Sprintf("leak rate %.2f mbar/2s", rise2))
		}
		s.diagPhase = 2
		return stay()
	case 2:
		if ctx.Now().Sub(s.diagStart) < 4*time.Second {
			return stay()
		}
		rise4 := p - s.diagP0
		if rise4 > 10 {
			return s.reg.toError(ctx, fsmdata.EVCLeak, fmt.Sprintf("leak rate %.2f mbar/4s", rise4))
		}
		s.ventRetries++
		if s.ventRetries > 3 {
			return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "pump diagnostic exhausted retries")
		}
		ctx.Data.StartExtractAfterVent = true
		s.diagPhase = 0
		return goTo(s.reg.VentPump)
	}
	return stay()
}

func (s *SystemCheckState) step4LeakRate(ctx *Context) Transition {
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.LeakSampleTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	rate := domainmath.PressureLeakBySampleTime(p, s.startPressure, float64(ctx.Cfg.LeakSampleTime))
	if rate > ctx.Cfg.MaxPressureLossEVC {
		return s.reg.toError(ctx, fsmdata.EVCLeak, fmt.Sprintf("small leak: %.3f mbar/s", rate))
	}
	ctx.Data.SystemLeak = rate
	if err := ctx.HW.SetValve(3, 100); err != nil {
		return s.reg.toError(ctx, fsmdata.UnknownError, err.Error())
	}
	s.lastPressure = p
	s.enterStep(ctx, 5)
	return stay()
}

func (s *SystemCheckState) step5EqualiseValve3(ctx *Context) Transition {
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.PressureEqTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p-s.lastPressure < 100 {
		return s.reg.toError(ctx, fsmdata.Valve3Blocked, "pressure did not rise after opening valve 3")
	}
	excVolume := domainmath.CalcRawVolume(p, ctx.Cfg.EVCVolume, s.lastPressure, ctx.Data.AtmPressure)
	if excVolume > 500 {
		return s.reg.toError(ctx, fsmdata.EXCLeak, fmt.Sprintf("exc volume %.1f mL exceeds bound", excVolume))
	}
	ctx.Data.EXCVolume = excVolume
	s.lastPressure = p
	s.enterStep(ctx, 6)
	return stay()
}

func (s *SystemCheckState) step6SecondLeakCheck(ctx *Context) Transition {
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.PressureEqTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	excVolume2 := domainmath.CalcRawVolume(p, ctx.Cfg.EVCVolume, s.lastPressure, ctx.Data.AtmPressure)
	if excVolume2 > 500 {
		return s.reg.toError(ctx, fsmdata.EXCLeak, fmt.Sprintf("second exc volume check %.1f mL exceeds bound", excVolume2))
	}
	ctx.Data.EXCVolumeLiquid = domainmath.ConvertAirToLiquid(ctx.Cfg.EXCVolumeCalibration(), ctx.Data.EXCVolume)
	ctx.Data.TotalVolume = ctx.Data.EXCVolumeLiquid
	s.enterStep(ctx, 7)
	return stay()
}

func (s *SystemCheckState) step8EqualiseValve4(ctx *Context) Transition {
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.PressureEqTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p-s.pressureRiseBase < 100 {
		return s.reg.toError(ctx, fsmdata.Valve4Blocked, "pressure did not rise after opening valve 4")
	}
	if err := ctx.HW.SetValve(4, 0); err != nil {
		return s.reg.toError(ctx, fsmdata.UnknownError, err.Error())
	}
	_ = ctx.HW.SetPumpPWM(100)
	s.enterStep(ctx, 9)
	return stay()
}

func (s *SystemCheckState) step9PumpDownAgain(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Cfg.MaximumVacuumPressure {
		_ = ctx.HW.SetValve(2, 100)
		s.enterStep(ctx, 10)
		return stay()
	}
	if s.elapsed(ctx) >= time.Duration(ctx.Cfg.MaximumVacuumTime)*time.Second {
		return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "second pump-down timed out")
	}
	return stay()
}

func (s *SystemCheckState) step10EqualiseValve2(ctx *Context) Transition {
	if s.elapsed(ctx) < time.Duration(ctx.Cfg.PressureEqTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Data.AtmPressure-100 {
		return s.reg.toError(ctx, fsmdata.Valve2Blocked, "pressure did not reach ambient after opening valve 2")
	}
	for _, v := range []int{1, 2, 3, 4} {
		_ = ctx.HW.SetValve(v, 0)
	}
	s.enterStep(ctx, 11)
	return stay()
}

func (s *SystemCheckState) step12HeaterRiseCheck(ctx *Context) Transition {
	temp, err := ctx.HW.BottomTemperature()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.HeaterError, err.Error())
	}
	if temp-s.startTemp > 5 {
		s.enterStep(ctx, 13)
		return stay()
	}
	if s.elapsed(ctx) >= 20*time.Second {
		return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature did not rise within 20s")
	}
	return stay()
}

func (s *SystemCheckState) step13FinalAlcoholGate(ctx *Context) Transition {
	level, err := ctx.HW.AlcoholLevel()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.AlcoholGasLevelError, err.Error())
	}
	if level == hardware.AlcoholWarning || level == hardware.AlcoholDanger {
		return s.reg.toError(ctx, fsmdata.AlcoholGasLevelError, "alcohol level elevated before extraction start")
	}
	return goTo(s.reg.PreFillTubes)
}
