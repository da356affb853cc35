package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// AfterDistillState holds the bottom at after_heat_temp for after_heat_time
// seconds once DistillBulk has declared the solvent exhausted.
type AfterDistillState struct {
	base
	enteredAt time.Time
}

func (s *AfterDistillState) Name() string { return "AfterDistill" }

func (s *AfterDistillState) Enter(ctx *Context) {
	now := ctx.Now()
	s.enteredAt = now
	ctx.PID.Reset(now)
	ctx.PID.SetSetpoint(ctx.Cfg.AfterHeatTemp)
	ctx.PID.On(now)
	_ = ctx.HW.SetFanPWM(100)
	_ = ctx.HW.SetPumpPWM(100)
}

func (s *AfterDistillState) Execute(ctx *Context) Transition {
	now := ctx.Now()
	temp, err := ctx.HW.BottomTemperature()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature read failed during after-heat")
	}
	if out, fired := ctx.PID.Update(now, temp); fired {
		_ = ctx.HW.SetHeaterPercent(out)
	}
	if now.Sub(s.enteredAt) >= time.Duration(ctx.Cfg.AfterHeatTime)*time.Second {
		return goTo(s.reg.FinalSolventRemoval)
	}
	return stay()
}

func (s *AfterDistillState) Exit(ctx *Context) {}

// FinalSolventRemovalState alternates valve4 open/closed a configured
// number of cycles to sweep residual solvent vapor, then shuts everything
// down and relaxes the valves before returning to Ready.
type FinalSolventRemovalState struct {
	base
	cycle      int
	open       bool
	phaseStart time.Time
}

func (s *FinalSolventRemovalState) Name() string { return "FinalSolventRemoval" }

func (s *FinalSolventRemovalState) Enter(ctx *Context) {
	s.cycle = 0
	s.open = true
	s.phaseStart = ctx.Now()
	_ = ctx.HW.SetValve(4, 100)
}

func (s *FinalSolventRemovalState) Execute(ctx *Context) Transition {
	now := ctx.Now()
	var window time.Duration
	if s.open {
		window = time.Duration(ctx.Cfg.FinalAirCyclesTimeOpen) * time.Second
	} else {
		window = time.Duration(ctx.Cfg.FinalAirCyclesTimeClosed) * time.Second
	}
	if now.Sub(s.phaseStart) < window {
		return stay()
	}

	if s.open {
		_ = ctx.HW.SetValve(4, 0)
		s.open = false
		s.phaseStart = now
		return stay()
	}

	s.cycle++
	if s.cycle >= ctx.Cfg.FinalAirCycles {
		ctx.PID.Off()
		_ = ctx.HW.SetHeaterPercent(0)
		_ = ctx.HW.SetPumpPWM(0)
		_ = ctx.HW.SetFanPWM(0)
		_ = ctx.HW.SetValvesRelaxPosition()
		return goTo(s.reg.Ready)
	}
	_ = ctx.HW.SetValve(4, 100)
	s.open = true
	s.phaseStart = now
	return stay()
}

func (s *FinalSolventRemovalState) Exit(ctx *Context) {}
