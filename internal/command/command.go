// Package command implements the typed external-request layer (spec.md
// §4.G): each command validates against the machine's current state
// immediately before the loop executes it, at drain time. Submission
// through the apiserver checks only the request's shape; the machine's
// state is not consulted until the loop drains the command.
package command

import (
	"fmt"

	"github.com/epicfatigue/merlinctl/internal/fsm"
)

// Command is one external request: validate against the live machine,
// then apply its effect.
type Command interface {
	Validate(m *fsm.Machine, ctx *fsm.Context) error
	Execute(m *fsm.Machine, ctx *fsm.Context) error
}

// rejectedError is returned by Validate when a command doesn't apply to
// the machine's current state; the control loop logs it and drops the
// command.
type rejectedError struct{ reason string }

func (e *rejectedError) Error() string { return e.reason }

func reject(format string, args ...any) error {
	return &rejectedError{reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err came from a Validate rule rejecting the
// command (as opposed to an unexpected internal error).
func IsRejected(err error) bool {
	_, ok := err.(*rejectedError)
	return ok
}

func startable(ctx *fsm.Context) error {
	if ctx.Data.PauseFlag || ctx.Data.RunningFlag {
		return reject("cannot start: a program is already running or paused")
	}
	return nil
}

func isState(m *fsm.Machine, name string) bool {
	return m.Current() != nil && m.Current().Name() == name
}

// StartExtraction begins the full recipe graph from Ready. SoakTime, if
// non-nil, overrides the configured soak_time_seconds for this one run.
type StartExtraction struct {
	RunFull  bool
	SoakTime *uint32
}

func (c StartExtraction) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }

func (c StartExtraction) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	if c.SoakTime != nil {
		ctx.Cfg.SoakTimeSeconds = int(*c.SoakTime)
	}
	ctx.Data.RunFullExtraction = c.RunFull
	ctx.Data.StartFlag = true
	return nil
}

// StartDecarb begins the Decarb program from Ready.
type StartDecarb struct{}

func (c StartDecarb) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }
func (c StartDecarb) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.RunningFlag = true
	m.Goto(ctx, m.Registry.Decarb)
	return nil
}

// StartHeatOil begins the MixOil program from Ready (programs enum's
// "HeatOil").
type StartHeatOil struct{}

func (c StartHeatOil) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }
func (c StartHeatOil) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.RunningFlag = true
	m.Goto(ctx, m.Registry.MixOil)
	return nil
}

// StartDistill begins the distill-only path straight into DistillBulk.
type StartDistill struct{}

func (c StartDistill) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }
func (c StartDistill) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.RunningFlag = true
	m.Goto(ctx, m.Registry.DistillBulk)
	return nil
}

// StartVentPump begins the pump-venting maintenance cycle.
type StartVentPump struct{}

func (c StartVentPump) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }
func (c StartVentPump) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.RunningFlag = true
	m.Goto(ctx, m.Registry.VentPump)
	return nil
}

// StartCleanPump begins the pump-cleaning maintenance cycle.
type StartCleanPump struct{}

func (c StartCleanPump) Validate(m *fsm.Machine, ctx *fsm.Context) error { return startable(ctx) }
func (c StartCleanPump) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.RunningFlag = true
	m.Goto(ctx, m.Registry.CleanPump)
	return nil
}

// PauseProgram suspends DistillBulk (spec.md §4.G: "Pause: only in
// DistillBulk").
type PauseProgram struct{}

func (c PauseProgram) Validate(m *fsm.Machine, ctx *fsm.Context) error {
	if !isState(m, "DistillBulk") {
		return reject("pause is only valid during DistillBulk")
	}
	return nil
}
func (c PauseProgram) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.PauseFlag = true
	return nil
}

// ResumeProgram un-suspends DistillBulk.
type ResumeProgram struct{}

func (c ResumeProgram) Validate(m *fsm.Machine, ctx *fsm.Context) error {
	if !isState(m, "DistillBulk") {
		return reject("resume is only valid during DistillBulk")
	}
	return nil
}
func (c ResumeProgram) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.Data.PauseFlag = false
	return nil
}

// Reset is always accepted: it drives the machine back to a known-safe
// Ready state, regardless of what it interrupts.
type Reset struct{}

func (c Reset) Validate(m *fsm.Machine, ctx *fsm.Context) error { return nil }

func (c Reset) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	ctx.PID.Off()
	_ = ctx.HW.SetHeaterPercent(0)
	_ = ctx.HW.SetPumpPWM(0)
	_ = ctx.HW.SetFanPWM(0)
	_ = ctx.HW.SetValvesRelaxPosition()

	ctx.Data.Reset()

	if err := ctx.Cfg.ResetToDefaults(); err != nil {
		return fmt.Errorf("command: reset config: %w", err)
	}

	_ = ctx.HW.SetPanelProgram(1)
	_ = ctx.HW.LightOff()
	m.Goto(ctx, m.Registry.Ready)
	return nil
}

// CleanValve opens a single valve (1..4) fully for manual cleaning
// access; only permitted from Ready.
type CleanValve struct {
	Valve int
}

func (c CleanValve) Validate(m *fsm.Machine, ctx *fsm.Context) error {
	if c.Valve < 1 || c.Valve > 4 {
		return reject("invalid valve id %d", c.Valve)
	}
	if !isState(m, "Ready") {
		return reject("clean valve is only valid from Ready")
	}
	return nil
}
func (c CleanValve) Execute(m *fsm.Machine, ctx *fsm.Context) error {
	return ctx.HW.SetValve(c.Valve, 100)
}
