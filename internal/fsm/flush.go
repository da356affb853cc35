package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// FlushState rinses the EXC's residue path after an aspirate cycle: pump
// down to vacuum, then open valve2+valve3 for flush_time seconds (spec.md
// §4.E "simple timed states").
type FlushState struct {
	base

	pumpingDown  bool
	pumpStartAt  time.Time
	flushing     bool
	flushStartAt time.Time
}

func (s *FlushState) Name() string { return "Flush" }

func (s *FlushState) Enter(ctx *Context) {
	s.pumpingDown = true
	s.flushing = false
	s.pumpStartAt = ctx.Now()
	_ = ctx.HW.SetValve(2, 0)
	_ = ctx.HW.SetValve(3, 0)
	_ = ctx.HW.SetPumpPWM(100)
}

func (s *FlushState) Execute(ctx *Context) Transition {
	if s.pumpingDown {
		p, err := ctx.HW.Pressure()
		if err != nil {
			return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
		}
		if p < ctx.Cfg.MaximumVacuumPressure {
			s.pumpingDown = false
			s.flushing = true
			s.flushStartAt = ctx.Now()
			_ = ctx.HW.SetPumpPWM(0)
			_ = ctx.HW.SetValve(2, 100)
			_ = ctx.HW.SetValve(3, 100)
			return stay()
		}
		if ctx.Now().Sub(s.pumpStartAt) >= time.Duration(ctx.Cfg.MaximumVacuumTime)*time.Second {
			return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "flush pump-down timed out")
		}
		return stay()
	}

	if ctx.Now().Sub(s.flushStartAt) < time.Duration(ctx.Cfg.FlushTime)*time.Second {
		return stay()
	}
	_ = ctx.HW.SetValve(2, 0)
	_ = ctx.HW.SetValve(3, 0)
	ctx.Data.FlushesPerformed++
	return goTo(s.reg.ExtraFlushDepressurize)
}

func (s *FlushState) Exit(ctx *Context) {}

// ExtraFlushDepressurizeState equalises to ambient between flush cycles,
// then either loops back into another Flush or hands off to DistillBulk /
// Ready once number_of_flushes has been met.
type ExtraFlushDepressurizeState struct {
	base
}

func (s *ExtraFlushDepressurizeState) Name() string { return "ExtraFlushDepressurize" }

func (s *ExtraFlushDepressurizeState) Enter(ctx *Context) {
	_ = ctx.HW.SetValve(2, 100)
}

func (s *ExtraFlushDepressurizeState) Execute(ctx *Context) Transition {
	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}
	if p < ctx.Data.AtmPressure-50 {
		return stay()
	}
	_ = ctx.HW.SetValve(2, 0)

	if ctx.Data.FlushesPerformed < ctx.Cfg.NumberOfFlushes {
		return goTo(s.reg.Flush)
	}
	if ctx.Data.RunFullExtraction {
		return goTo(s.reg.DistillBulk)
	}
	return goTo(s.reg.Ready)
}

func (s *ExtraFlushDepressurizeState) Exit(ctx *Context) {}
