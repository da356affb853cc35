// Package panelui mediates between the raw panel driver (edge-detected
// single presses, level-read "force" polls for hold-duration counters)
// and the semantic events the rest of the controller cares about
// (spec.md §4.D). It owns no hardware state itself — every tick it reads
// the façade and writes LED/flag state back through it.
package panelui

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware"
)

// Long-press thresholds (spec.md §4.D's table is "ticks of 100 ms"; kept
// here as wall-clock durations rather than a raw call count, since Tick
// is actually driven once per control-loop tick — 10 ms, not 100 ms — and
// a tick-counted threshold would fire 10x too fast).
const (
	resetHoldDuration  = 30 * 100 * time.Millisecond
	selectHoldDuration = 30 * 100 * time.Millisecond
	playHoldDuration   = 50 * 100 * time.Millisecond
	pauseHoldDuration  = 10 * 100 * time.Millisecond
)

// Result is what a Tick call asks the caller to do; both fields are
// normally zero/false.
type Result struct {
	StartProgram int // >0: Play was pressed in Ready, bound to this program
	Reset        bool
}

// Mediator tracks the long-press hold state across ticks.
type Mediator struct {
	heldButton  hardware.ButtonEvent
	heldSince   time.Time
	actionFired bool

	resetWarningShown bool

	// Clock is overridable so tests can drive hold durations without
	// wall-clock sleeps, matching fsm.Context's Clock field.
	Clock func() time.Time
}

// New constructs an idle Mediator.
func New() *Mediator { return &Mediator{} }

func (m *Mediator) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Tick polls the panel once (edge read + forced level read), updates hold
// state, drives LEDs/flags on the façade and fsm data directly for the
// effects that don't need FSM-level coordination, and returns the handful
// of effects the caller (control loop / command layer) must still apply.
func (m *Mediator) Tick(hw hardware.Facade, data *fsmdata.Data, currentState string, onOwnWifi bool) Result {
	var res Result

	now := m.now()
	held, _ := hw.ButtonPressForce()
	sameHold := held != hardware.ButtonNone && held == m.heldButton
	if !sameHold {
		m.heldSince = now
		m.heldButton = held
		m.actionFired = false
	}
	heldElapsed := now.Sub(m.heldSince)

	switch held {
	case hardware.ButtonReset:
		if !m.resetWarningShown {
			m.resetWarningShown = true
			_ = hw.SetPanelState(hardware.StateResetWarning)
		}
		if !m.actionFired && heldElapsed >= resetHoldDuration {
			res.Reset = true
			m.resetWarningShown = false
			m.actionFired = true
		}
	case hardware.ButtonSelect:
		if currentState == "Ready" && !m.actionFired && heldElapsed >= selectHoldDuration {
			_ = hw.BlinkDisconnected()
			m.actionFired = true
		}
	case hardware.ButtonPlay:
		if (currentState == "DistillBulk" || currentState == "CleanPump") && !m.actionFired && heldElapsed >= playHoldDuration {
			data.ForceAfterstill = true
			m.actionFired = true
		}
	case hardware.ButtonPause:
		if onOwnWifi && !m.actionFired && heldElapsed >= pauseHoldDuration {
			_ = hw.BlinkLabelPrint()
			m.actionFired = true
		}
	default:
		if m.resetWarningShown {
			m.resetWarningShown = false
		}
	}

	edge, _ := hw.ButtonPress()
	switch edge {
	case hardware.ButtonSelect:
		if currentState == "Ready" {
			data.SelectedProgram++
			if data.SelectedProgram > 4 || data.SelectedProgram < 1 {
				data.SelectedProgram = 1
			}
		}
	case hardware.ButtonPlay:
		if currentState == "Ready" {
			res.StartProgram = data.SelectedProgram
		} else {
			_ = hw.ToggleWhite()
		}
	case hardware.ButtonPause:
		if currentState == "DistillBulk" || currentState == "CleanPump" {
			data.PauseFlag = true
		}
	}

	return res
}

// DisplayState maps the current FSM state name (plus pause/error flags)
// to the panel's DeviceState, per spec.md §4.D's mapping table.
func DisplayState(currentState string, data *fsmdata.Data) hardware.DeviceState {
	switch {
	case currentState == "Error":
		return hardware.StateError
	case data.PauseFlag && (currentState == "DistillBulk" || currentState == "CleanPump"):
		return hardware.StatePause
	case currentState == "DistillBulk" || currentState == "CleanPump":
		return hardware.StateRunningPauseEnabled
	case data.RunningFlag:
		return hardware.StateRunningPauseDisabled
	default:
		return hardware.StateReady
	}
}
