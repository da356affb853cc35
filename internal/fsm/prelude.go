package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// PreFillTubesState pumps down to the tube-filling vacuum level with valve1
// open, priming the liquid path before the depressurize/measure sequence.
type PreFillTubesState struct {
	base
	enteredAt time.Time
}

func (s *PreFillTubesState) Name() string { return "PreFillTubes" }

func (s *PreFillTubesState) Enter(ctx *Context) {
	s.enteredAt = ctx.Now()
	_ = ctx.HW.SetValve(1, 100)
	_ = ctx.HW.SetPumpPWM(100)
}

func (s *PreFillTubesState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Cfg.TubeFillingVacuum {
		_ = ctx.HW.SetPumpPWM(0)
		return goTo(s.reg.FirstDepressurize)
	}
	return stay()
}

func (s *PreFillTubesState) Exit(ctx *Context) {}

// FirstDepressurizeState equalises the system back to ambient through
// valve2 before the first EXC volume measurement.
type FirstDepressurizeState struct {
	base
}

func (s *FirstDepressurizeState) Name() string { return "FirstDepressurize" }

func (s *FirstDepressurizeState) Enter(ctx *Context) {
	_ = ctx.HW.SetValve(2, 100)
}

func (s *FirstDepressurizeState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p >= ctx.Data.AtmPressure-50 {
		_ = ctx.HW.SetValve(2, 0)
		return goTo(s.reg.MeasureEXCVolume)
	}
	return stay()
}

func (s *FirstDepressurizeState) Exit(ctx *Context) {}

// MeasureEXCVolumeState takes the authoritative EXC air-volume reading used
// to derive the liquid-volume targets the rest of the recipe consumes.
type MeasureEXCVolumeState struct {
	base
	baselinePressure float64
	measured         bool
}

func (s *MeasureEXCVolumeState) Name() string { return "MeasureEXCVolume" }

func (s *MeasureEXCVolumeState) Enter(ctx *Context) {
	s.measured = false
	s.baselinePressure, _ = ctx.HW.Pressure()
	_ = ctx.HW.SetValve(3, 100)
}

func (s *MeasureEXCVolumeState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	excVolume := domainmath.CalcRawVolume(p, ctx.Cfg.EVCVolume, s.baselinePressure, ctx.Data.AtmPressure)
	ctx.Data.EXCVolume = excVolume
	ctx.Data.EXCVolumeLiquid = domainmath.ConvertAirToLiquid(ctx.Cfg.EXCVolumeCalibration(), excVolume)
	return goTo(s.reg.SecondDepressurize)
}

func (s *MeasureEXCVolumeState) Exit(ctx *Context) {}

// SecondDepressurizeState vents back to ambient through valve2 a second
// time before the confirmatory leak check.
type SecondDepressurizeState struct {
	base
}

func (s *SecondDepressurizeState) Name() string { return "SecondDepressurize" }

func (s *SecondDepressurizeState) Enter(ctx *Context) {
	_ = ctx.HW.SetValve(3, 0)
	_ = ctx.HW.SetValve(2, 100)
}

func (s *SecondDepressurizeState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p >= ctx.Data.AtmPressure-50 {
		_ = ctx.HW.SetValve(2, 0)
		return goTo(s.reg.SecondLeakCheck)
	}
	return stay()
}

func (s *SecondDepressurizeState) Exit(ctx *Context) {}

// SecondLeakCheckState confirms the system-leak rate measured in
// SystemCheck still holds before committing to the aspirate prelude.
type SecondLeakCheckState struct {
	base
	enteredAt time.Time
	start     float64
}

func (s *SecondLeakCheckState) Name() string { return "SecondLeakCheck" }

func (s *SecondLeakCheckState) Enter(ctx *Context) {
	s.enteredAt = ctx.Now()
	s.start, _ = ctx.HW.Pressure()
}

func (s *SecondLeakCheckState) Execute(ctx *Context) Transition {
	if ctx.Now().Sub(s.enteredAt) < time.Duration(ctx.Cfg.LeakSampleTime)*time.Second {
		return stay()
	}
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	rate := domainmath.PressureLeakBySampleTime(p, s.start, float64(ctx.Cfg.LeakSampleTime))
	if rate > ctx.Cfg.MaxPressureLossEVC {
		return s.reg.toError(ctx, fsmdata.EVCLeak, "leak confirmed before top-up")
	}
	ctx.Data.SystemLeak = rate
	return goTo(s.reg.TopUpEXC)
}

func (s *SecondLeakCheckState) Exit(ctx *Context) {}

// TopUpEXCState briefly opens valve1, then momentarily opens valve3 to its
// configured after-fill setting (spec.md §4.E "simple timed states").
type TopUpEXCState struct {
	base
	enteredAt    time.Time
	openedValve3 bool
	valve3At     time.Time
}

func (s *TopUpEXCState) Name() string { return "TopUpEXC" }

func (s *TopUpEXCState) Enter(ctx *Context) {
	s.enteredAt = ctx.Now()
	s.openedValve3 = false
	_ = ctx.HW.SetValve(1, 100)
}

func (s *TopUpEXCState) Execute(ctx *Context) Transition {
	if ctx.Now().Sub(s.enteredAt) < time.Duration(ctx.Cfg.TopUpTime)*time.Second {
		return stay()
	}
	if !s.openedValve3 {
		_ = ctx.HW.SetValve(1, 0)
		_ = ctx.HW.SetValve(3, ctx.Cfg.TopUpAfterfillValveSetting)
		s.openedValve3 = true
		s.valve3At = ctx.Now()
		return stay()
	}
	if ctx.Now().Sub(s.valve3At) < time.Second {
		return stay()
	}
	for _, v := range []int{1, 2, 3, 4} {
		_ = ctx.HW.SetValve(v, 0)
	}
	return goTo(s.reg.Soak)
}

func (s *TopUpEXCState) Exit(ctx *Context) {}

// SoakState holds for soak_time_seconds so solvent contacts the plant
// material before the final depressurize into aspirate.
type SoakState struct {
	base
	enteredAt time.Time
}

func (s *SoakState) Name() string { return "Soak" }

func (s *SoakState) Enter(ctx *Context) { s.enteredAt = ctx.Now() }

func (s *SoakState) Execute(ctx *Context) Transition {
	if ctx.Now().Sub(s.enteredAt) >= time.Duration(ctx.Cfg.SoakTimeSeconds)*time.Second {
		return goTo(s.reg.ThirdDepressurize)
	}
	return stay()
}

func (s *SoakState) Exit(ctx *Context) {}

// ThirdDepressurizeState is the final ambient-equalisation step before
// Aspirate takes over valve3 for flow-controlled transfer.
type ThirdDepressurizeState struct {
	base
}

func (s *ThirdDepressurizeState) Name() string { return "ThirdDepressurize" }

func (s *ThirdDepressurizeState) Enter(ctx *Context) {
	_ = ctx.HW.SetValve(2, 100)
}

func (s *ThirdDepressurizeState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p >= ctx.Data.AtmPressure-50 {
		_ = ctx.HW.SetValve(2, 0)
		ctx.Data.AspirateVolumeTarget = ctx.Cfg.AspirateVolume
		ctx.Data.AspirateSpeedTarget = ctx.Cfg.AspirateSpeed
		return goTo(s.reg.Aspirate)
	}
	return stay()
}

func (s *ThirdDepressurizeState) Exit(ctx *Context) {}
