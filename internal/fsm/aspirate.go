package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/domainmath"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// flowSample is one aspirated-volume observation used both for the
// instantaneous flowrate delta and the 60 s rolling average.
type flowSample struct {
	at     time.Time
	volume float64
}

// AspirateState transfers liquid from the EXC to the EVC through valve3,
// modulating the valve opening to track a target flow rate (spec.md §4.E,
// "Aspirate state (flow control)").
type AspirateState struct {
	base

	enteredAt   time.Time
	preludeDone bool
	preludeAt   time.Time

	pv          float64
	lastAdjust  time.Time
	prevVolume  float64
	prevAt      time.Time
	window      []flowSample

	valveOpening float64
	storedSetting bool

	// pinnedAccum is the cumulative time valve3 has spent at 100% open
	// across this Aspirate run (spec.md §4.E: "pinned at 100 for > 60s of
	// total run time"), not merely the current unbroken streak — a brief
	// dip off 100% does not erase earlier time spent pinned.
	pinnedAccum time.Duration
}

func (s *AspirateState) Name() string { return "Aspirate" }

func (s *AspirateState) Enter(ctx *Context) {
	s.enteredAt = ctx.Now()
	s.preludeDone = false
	s.storedSetting = false
	s.pinnedAccum = 0
	s.window = nil

	_ = ctx.HW.SetValve(1, 100)
	s.preludeAt = ctx.Now()

	s.pv = domainmath.PVConst(ctx.Data.AtmPressure, ctx.Cfg.EVCVolume)
	s.valveOpening = ctx.Cfg.ValveLastKnownSetting - 2
	if s.valveOpening < 0 {
		s.valveOpening = 0
	}
}

func (s *AspirateState) Execute(ctx *Context) Transition {
	if !s.preludeDone {
		if ctx.Now().Sub(s.preludeAt) < time.Second {
			return stay()
		}
		_ = ctx.HW.SetValve(3, s.valveOpening)
		s.preludeDone = true
		s.lastAdjust = ctx.Now()
		s.prevAt = ctx.Now()
		p, err := ctx.HW.Pressure()
		if err != nil {
			return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
		}
		s.prevVolume = domainmath.TotalVolumeAspirated(ctx.Data.TotalVolume, s.pv, p)
		return stay()
	}

	adjustPeriod := time.Duration(ctx.Cfg.ValveAdjustDelay) * time.Second
	if ctx.Now().Sub(s.lastAdjust) < adjustPeriod {
		return stay()
	}
	s.lastAdjust = ctx.Now()

	p, err := ctx.HW.Pressure()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.PressureSensorError, err.Error())
	}

	elapsedAspirate := ctx.Now().Sub(s.enteredAt).Seconds()
	leak := domainmath.Leakfactor(elapsedAspirate, 0, ctx.Data.SystemLeak, 0)
	volumeStop := domainmath.TotalVolumeAspirated(ctx.Data.TotalVolume, s.pv, p-leak)
	ctx.Data.AspirateVolumeActual = volumeStop

	now := ctx.Now()
	dt := now.Sub(s.prevAt).Seconds()
	if dt <= 0 {
		dt = adjustPeriod.Seconds()
	}
	flowrate := domainmath.Flowrate(volumeStop, s.prevVolume, dt, 0)
	ctx.Data.AspirateSpeedActual = flowrate
	s.prevVolume = volumeStop
	s.prevAt = now

	s.window = append(s.window, flowSample{at: now, volume: flowrate})
	cutoff := now.Add(-60 * time.Second)
	i := 0
	for i < len(s.window) && s.window[i].at.Before(cutoff) {
		i++
	}
	s.window = s.window[i:]
	var sum float64
	for _, w := range s.window {
		sum += w.volume
	}
	avgFlow := 0.0
	if len(s.window) > 0 {
		avgFlow = sum / float64(len(s.window))
	}

	target := ctx.Data.AspirateSpeedTarget
	errPct := 0.0
	if target != 0 {
		errPct = 100 * flowrate / target
	}
	step, _ := domainmath.StepAndPeriod(ctx.Cfg.FlowBands(), errPct)

	switch {
	case flowrate > target:
		s.valveOpening -= step
		if s.valveOpening < 0 {
			s.valveOpening = 0
		}
	case flowrate < target:
		s.valveOpening += step
		if s.valveOpening > 100 {
			s.valveOpening = 100
		}
	}
	_ = ctx.HW.SetValve(3, s.valveOpening)

	if s.valveOpening >= 100 {
		// This branch only runs once per adjustPeriod (the early return
		// above gates it), so that's exactly how much pinned time passed.
		s.pinnedAccum += adjustPeriod
	}
	if s.pinnedAccum > 60*time.Second {
		if avgFlow <= ctx.Cfg.FlowrateFallLimit {
			return s.reg.toError(ctx, fsmdata.Valve1OrValve3Blocked, "flow rate collapsed with valve pinned fully open")
		}
		if avgFlow <= target/2 {
			ctx.Data.Warning = "flow rate lower than expected"
		}
	}

	withinHysteresis := flowrate >= target-ctx.Cfg.ValveAdjustHysteresis && flowrate <= target+ctx.Cfg.ValveAdjustHysteresis
	if withinHysteresis && !s.storedSetting {
		ctx.Cfg.ValveLastKnownSetting = s.valveOpening
		_ = ctx.Cfg.SaveInPlace()
		s.storedSetting = true
	}

	if volumeStop > ctx.Data.AspirateVolumeTarget {
		_ = ctx.Cfg.SaveInPlace()
		if ctx.Cfg.NumberOfFlushes >= 1 {
			return goTo(s.reg.Flush)
		}
		if ctx.Data.RunFullExtraction {
			return goTo(s.reg.DistillBulk)
		}
		return goTo(s.reg.Ready)
	}

	return stay()
}

func (s *AspirateState) Exit(ctx *Context) {
	ctx.Data.Warning = ""
}
