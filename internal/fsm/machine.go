package fsm

import "time"

// Machine drives the active State through its Enter/Execute/Exit lifecycle
// on behalf of the control loop, tracking how long the current state has
// been active for status reporting.
type Machine struct {
	Registry  *Registry
	current   State
	enteredAt time.Time
}

// NewMachine builds a Machine starting in Ready.
func NewMachine(reg *Registry) *Machine {
	m := &Machine{Registry: reg}
	m.current = reg.Ready
	return m
}

// Current returns the active state.
func (m *Machine) Current() State { return m.current }

// EnteredAt returns when the active state was entered.
func (m *Machine) EnteredAt() time.Time { return m.enteredAt }

// Goto exits the current state and enters next, even if next == current
// (some commands, e.g. Reset, force a re-entry).
func (m *Machine) Goto(ctx *Context, next State) {
	if m.current != nil {
		m.current.Exit(ctx)
	}
	m.current = next
	m.enteredAt = ctx.Now()
	next.Enter(ctx)
}

// Step runs one Execute tick on the active state and applies any
// transition it returns.
func (m *Machine) Step(ctx *Context) {
	if m.current == nil {
		m.Goto(ctx, m.Registry.Ready)
		return
	}
	t := m.current.Execute(ctx)
	if t.Next != nil && t.Next != m.current {
		m.Goto(ctx, t.Next)
	}
}
