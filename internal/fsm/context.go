// Package fsm implements the 21-state recipe machine (spec.md §4.E): the
// heart of the controller. Each state is a Go value satisfying the State
// interface rather than a class in a hierarchy (spec.md §9's "tagged
// variants" design note); a shared Context is borrowed at each step instead
// of being owned by any one state.
package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/config"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware"
	"github.com/epicfatigue/merlinctl/internal/pidctl"
)

// Context is the shared machine context every state borrows on Enter,
// Execute, and Exit.
type Context struct {
	HW   hardware.Facade
	Cfg  *config.Config
	Data *fsmdata.Data
	PID  *pidctl.Controller

	// Clock is overridable so tests can drive states without wall-clock
	// sleeps; nil means time.Now.
	Clock func() time.Time
}

// Now returns the context's clock, defaulting to time.Now.
func (c *Context) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// State is one node of the recipe machine. Enter runs once on transition
// in; Execute runs every tick while active; Exit runs once on transition
// out.
type State interface {
	Name() string
	Enter(ctx *Context)
	Execute(ctx *Context) Transition
	Exit(ctx *Context)
}

// Transition is returned from Execute. A nil Next means "stay in the
// current state for another tick".
type Transition struct {
	Next State
}

func stay() Transition        { return Transition{} }
func goTo(s State) Transition { return Transition{Next: s} }

// base gives every state struct a way back to its sibling states without
// each one needing its own constructor wiring.
type base struct {
	reg *Registry
}

func (b *base) setRegistry(r *Registry) { b.reg = r }

type registryAware interface {
	setRegistry(*Registry)
}
