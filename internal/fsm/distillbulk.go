package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// DistillBulkState runs the long hot distillation: PID-held bottom
// temperature, fan and pump at full, with pressure supervision, a
// heater-rise sanity check, a thermal-runaway guard, and a peak-pressure
// recovery cycle layered on top (spec.md §4.E "DistillBulk state").
type DistillBulkState struct {
	base

	enteredAt   time.Time
	lastTick    time.Time
	pausedAccum time.Duration

	ambientDone      bool
	heaterRiseChecked bool
	riseBaseline      float64
	thermalHighSince  time.Time

	peakHighSince   time.Time
	peakCycleCount  int
	inPeakHandling  bool
	peakPhase       int
	peakPhaseAt     time.Time
	outputCap       float64

	absHighTicks int
	absTestPhase int
	absTestStart time.Time
	absTestP1    float64
}

func (s *DistillBulkState) Name() string { return "DistillBulk" }

func (s *DistillBulkState) Enter(ctx *Context) {
	now := ctx.Now()
	s.enteredAt = now
	s.lastTick = now
	s.pausedAccum = 0
	s.ambientDone = false
	s.heaterRiseChecked = false
	s.thermalHighSince = time.Time{}
	s.peakHighSince = time.Time{}
	s.peakCycleCount = 0
	s.inPeakHandling = false
	s.peakPhase = 0
	s.outputCap = 100
	s.absHighTicks = 0
	s.absTestPhase = 0

	_ = ctx.HW.SetValve(1, 0)
	_ = ctx.HW.SetValve(2, 0)
	_ = ctx.HW.SetValve(3, 0)
	_ = ctx.HW.SetValve(4, 100)
	_ = ctx.HW.SetFanPWM(100)
	_ = ctx.HW.SetPumpPWM(100)

	s.riseBaseline, _ = ctx.HW.BottomTemperature()

	ctx.PID.Reset(now)
	ctx.PID.SetOutputLimits(0, s.outputCap)
	ctx.PID.SetSetpoint(ctx.Cfg.DistillationTemperature)
	ctx.PID.On(now)
}

func (s *DistillBulkState) Execute(ctx *Context) Transition {
	now := ctx.Now()

	if ctx.Data.PauseFlag {
		ctx.PID.SetSetpoint(0)
		_ = ctx.HW.SetHeaterPercent(0)
		_ = ctx.HW.SetPumpPWM(0)
		s.pausedAccum += now.Sub(s.lastTick)
		s.lastTick = now
		return stay()
	}
	_ = ctx.HW.SetPumpPWM(100)
	ctx.PID.SetSetpoint(ctx.Cfg.DistillationTemperature)

	if !s.ambientDone {
		if now.Sub(s.enteredAt) >= 3*time.Second {
			_ = ctx.HW.SetValve(4, 0)
			s.ambientDone = true
		}
		s.lastTick = now
		return stay()
	}

	elapsedEffective := now.Sub(s.enteredAt) - s.pausedAccum
	s.lastTick = now

	temp, err := ctx.HW.BottomTemperature()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature read failed during distill")
	}

	if !s.heaterRiseChecked {
		if s.riseBaseline > ctx.Cfg.TemperatureCheckThreshold {
			s.heaterRiseChecked = true
		} else if elapsedEffective >= time.Duration(ctx.Cfg.TemperatureCheckInterval)*time.Second {
			if temp-s.riseBaseline < ctx.Cfg.TemperatureIncreaseThreshold {
				return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature failed to rise during distill heater check")
			}
			s.heaterRiseChecked = true
		}
	}

	if temp >= ctx.Cfg.TemperatureCriticalLevel {
		if s.thermalHighSince.IsZero() {
			s.thermalHighSince = now
		}
		if now.Sub(s.thermalHighSince) >= time.Duration(ctx.Cfg.TemperatureCriticalLevelMaxIntervalS)*time.Second {
			return s.reg.toError(ctx, fsmdata.ThermalRunaway, "bottom temperature sustained above critical level")
		}
	} else {
		s.thermalHighSince = time.Time{}
	}

	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}

	if s.inPeakHandling {
		return s.runPeakHandling(ctx, now)
	}
	if s.absTestPhase != 0 {
		return s.runAbsoluteTest(ctx, now, p)
	}

	secs := elapsedEffective.Seconds()
	switch {
	case secs < 120:
		s.peakHighSince = time.Time{}
	case secs <= 600:
		if p > ctx.Cfg.PressurePeakMaxPressure {
			if s.peakHighSince.IsZero() {
				s.peakHighSince = now
			}
			if now.Sub(s.peakHighSince) > time.Duration(ctx.Cfg.PeakPressureDetectionIntervalSeconds)*time.Second {
				return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "pressure exceeded peak max during early distill window")
			}
		} else {
			s.peakHighSince = time.Time{}
		}
	default:
		if p > ctx.Cfg.PeakPressureDuringDistill {
			if s.peakHighSince.IsZero() {
				s.peakHighSince = now
			}
			if now.Sub(s.peakHighSince) > time.Duration(ctx.Cfg.PeakPressureDetectionIntervalSeconds)*time.Second {
				s.startPeakHandling(ctx, now)
				return stay()
			}
		} else {
			s.peakHighSince = time.Time{}
		}
	}

	if secs > 90 {
		if p > ctx.Cfg.ErrorPressureDuringDistill {
			s.absHighTicks++
			if s.absHighTicks > 20 {
				s.startAbsoluteTest(ctx, now)
				return stay()
			}
		} else {
			s.absHighTicks = 0
		}
	}

	ctx.PID.SetOutputLimits(0, s.outputCap)
	if out, fired := ctx.PID.Update(now, temp); fired {
		_ = ctx.HW.SetHeaterPercent(out)
	}

	progress, eta := domainmath.DistillProgress(elapsedEffective.Seconds(), s.powerFraction(ctx, now))
	ctx.Data.DistillProgress = progress
	ctx.Data.DistillETASeconds = eta

	if avg, ok := ctx.PID.CurrentWindowPowerAverage(now); ok && avg < ctx.Cfg.PIDWattageDecreaseLimit {
		return s.finish(ctx)
	}
	if ctx.Data.ForceAfterstill {
		ctx.Data.ForceAfterstill = false
		return s.finish(ctx)
	}

	return stay()
}

func (s *DistillBulkState) powerFraction(ctx *Context, now time.Time) float64 {
	avg, ok := ctx.PID.CurrentWindowPowerAverage(now)
	if !ok {
		return 0
	}
	return avg / 100
}

func (s *DistillBulkState) startPeakHandling(ctx *Context, now time.Time) {
	s.inPeakHandling = true
	s.peakPhase = 0
	s.peakPhaseAt = now
	ctx.PID.SetSetpoint(0)
	_ = ctx.HW.SetHeaterPercent(0)
	_ = ctx.HW.SetValve(4, 100)
}

func (s *DistillBulkState) runPeakHandling(ctx *Context, now time.Time) Transition {
	switch s.peakPhase {
	case 0:
		if now.Sub(s.peakPhaseAt) >= 5*time.Second {
			_ = ctx.HW.SetValve(4, 0)
			s.peakPhase = 1
			s.peakPhaseAt = now
		}
	case 1:
		if now.Sub(s.peakPhaseAt) >= time.Duration(ctx.Cfg.PressurePeakHandleTimeSeconds)*time.Second {
			_ = ctx.HW.SetValve(4, 100)
			s.peakPhase = 2
			s.peakPhaseAt = now
		}
	case 2:
		if now.Sub(s.peakPhaseAt) >= 5*time.Second {
			_ = ctx.HW.SetValve(4, 0)
			s.peakCycleCount++
			if s.peakCycleCount >= 3 {
				return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "peak pressure recovery exhausted its third cycle")
			}
			s.outputCap = 100 - 10*float64(s.peakCycleCount)
			ctx.PID.SetSetpoint(ctx.Cfg.DistillationTemperature)
			s.inPeakHandling = false
			s.peakHighSince = time.Time{}
		}
	}
	return stay()
}

func (s *DistillBulkState) startAbsoluteTest(ctx *Context, now time.Time) {
	s.absTestPhase = 1
	s.absTestStart = now
	_ = ctx.HW.SetHeaterPercent(0)
	_ = ctx.HW.SetPumpPWM(0)
}

func (s *DistillBulkState) runAbsoluteTest(ctx *Context, now time.Time, p float64) Transition {
	switch s.absTestPhase {
	case 1:
		if now.Sub(s.absTestStart) >= 3*time.Second {
			s.absTestP1 = p
			s.absTestPhase = 2
			s.absTestStart = now
		}
	case 2:
		if now.Sub(s.absTestStart) >= 3*time.Second {
			rise := (p - s.absTestP1) / 3.0
			s.absTestPhase = 0
			s.absHighTicks = 0
			_ = ctx.HW.SetPumpPWM(100)
			if rise > ctx.Cfg.ErrorPressureIncreaseThreshold {
				return s.reg.toError(ctx, fsmdata.EVCLeak, "pressure rise test confirmed a leak during distill")
			}
			return s.reg.toError(ctx, fsmdata.PumpNeedsCleanOrReplacement, "absolute pressure guard tripped with no leak confirmed")
		}
	}
	return stay()
}

func (s *DistillBulkState) finish(ctx *Context) Transition {
	ctx.PID.Off()
	_ = ctx.HW.SetHeaterPercent(0)
	_ = ctx.HW.SetPumpPWM(0)
	_ = ctx.HW.SetFanPWM(0)
	ctx.Data.DistillProgress = 1
	return goTo(s.reg.AfterDistill)
}

func (s *DistillBulkState) Exit(ctx *Context) {}
