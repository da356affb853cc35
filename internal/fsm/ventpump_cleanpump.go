package fsm

import "time"

// VentPumpState cycles the pump three times through a 20 s depressurise
// phase (pump drawing down with valve2 closed) and a 5 s vent phase
// (valve2 open to ambient), used both as its own program and as
// SystemCheck's recovery path when a pump-down attempt stalls.
type VentPumpState struct {
	base

	cycle      int
	venting    bool
	phaseStart time.Time
}

func (s *VentPumpState) Name() string { return "VentPump" }

func (s *VentPumpState) Enter(ctx *Context) {
	s.cycle = 0
	s.venting = false
	s.phaseStart = ctx.Now()
	_ = ctx.HW.SetValve(2, 0)
	_ = ctx.HW.SetPumpPWM(100)
}

func (s *VentPumpState) Execute(ctx *Context) Transition {
	now := ctx.Now()

	if !s.venting {
		if now.Sub(s.phaseStart) < 20*time.Second {
			return stay()
		}
		_ = ctx.HW.SetPumpPWM(0)
		_ = ctx.HW.SetValve(2, 100)
		s.venting = true
		s.phaseStart = now
		return stay()
	}

	if now.Sub(s.phaseStart) < 5*time.Second {
		return stay()
	}
	_ = ctx.HW.SetValve(2, 0)
	s.cycle++
	if s.cycle >= 3 {
		_ = ctx.HW.SetPumpPWM(0)
		if ctx.Data.StartExtractAfterVent {
			ctx.Data.StartExtractAfterVent = false
			return goTo(s.reg.SystemCheck)
		}
		return goTo(s.reg.Ready)
	}
	s.venting = false
	s.phaseStart = now
	_ = ctx.HW.SetPumpPWM(100)
	return stay()
}

func (s *VentPumpState) Exit(ctx *Context) {
	_ = ctx.HW.SetPumpPWM(0)
	_ = ctx.HW.SetValve(2, 0)
}

// CleanPumpState runs a pausable wash cycle through the pump and the
// EVC/EXC valves, ending early on a force-afterstill long-press
// (spec.md §4.D's "Play in DistillBulk/CleanPump").
type CleanPumpState struct {
	base

	enteredAt   time.Time
	lastTick    time.Time
	pausedAccum time.Duration
	open        bool
	phaseStart  time.Time
}

func (s *CleanPumpState) Name() string { return "CleanPump" }

func (s *CleanPumpState) Enter(ctx *Context) {
	now := ctx.Now()
	s.enteredAt = now
	s.lastTick = now
	s.pausedAccum = 0
	s.open = true
	s.phaseStart = now
	_ = ctx.HW.SetPumpPWM(100)
	_ = ctx.HW.SetValve(2, 100)
	_ = ctx.HW.SetValve(3, 100)
}

func (s *CleanPumpState) Execute(ctx *Context) Transition {
	now := ctx.Now()

	if ctx.Data.PauseFlag {
		_ = ctx.HW.SetHeaterPercent(0)
		_ = ctx.HW.SetPumpPWM(0)
		s.pausedAccum += now.Sub(s.lastTick)
		s.lastTick = now
		return stay()
	}
	s.lastTick = now
	_ = ctx.HW.SetPumpPWM(100)

	if ctx.Data.ForceAfterstill {
		ctx.Data.ForceAfterstill = false
		return s.finish(ctx)
	}

	elapsed := now.Sub(s.enteredAt) - s.pausedAccum
	if elapsed >= time.Duration(ctx.Cfg.MaximumVacuumTime)*time.Second {
		return s.finish(ctx)
	}

	window := time.Duration(ctx.Cfg.FlushTime) * time.Second
	if now.Sub(s.phaseStart) < window {
		return stay()
	}
	s.phaseStart = now
	if s.open {
		_ = ctx.HW.SetValve(2, 0)
		_ = ctx.HW.SetValve(3, 0)
		s.open = false
	} else {
		_ = ctx.HW.SetValve(2, 100)
		_ = ctx.HW.SetValve(3, 100)
		s.open = true
	}
	return stay()
}

func (s *CleanPumpState) finish(ctx *Context) Transition {
	_ = ctx.HW.SetPumpPWM(0)
	_ = ctx.HW.SetValve(2, 0)
	_ = ctx.HW.SetValve(3, 0)
	return goTo(s.reg.Ready)
}

func (s *CleanPumpState) Exit(ctx *Context) {}
