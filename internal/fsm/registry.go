package fsm

import "github.com/epicfatigue/merlinctl/internal/fsmdata"

// Registry holds one instance of every state the machine can transition
// to, so an Execute method can return a concrete neighbour directly
// instead of looking one up by name.
type Registry struct {
	Ready                  *ReadyState
	SystemCheck            *SystemCheckState
	PreFillTubes           *PreFillTubesState
	FirstDepressurize      *FirstDepressurizeState
	MeasureEXCVolume       *MeasureEXCVolumeState
	SecondDepressurize     *SecondDepressurizeState
	SecondLeakCheck        *SecondLeakCheckState
	TopUpEXC               *TopUpEXCState
	Soak                   *SoakState
	ThirdDepressurize      *ThirdDepressurizeState
	Aspirate               *AspirateState
	Flush                  *FlushState
	ExtraFlushDepressurize *ExtraFlushDepressurizeState
	DistillBulk            *DistillBulkState
	AfterDistill           *AfterDistillState
	FinalSolventRemoval    *FinalSolventRemovalState
	Decarb                 *DecarbState
	MixOil                 *MixOilState
	VentPump               *VentPumpState
	CleanPump              *CleanPumpState
	Error                  *ErrorState
}

// NewRegistry constructs every state once and wires each one's back
// reference to its siblings.
func NewRegistry() *Registry {
	r := &Registry{
		Ready:                  &ReadyState{},
		SystemCheck:            &SystemCheckState{},
		PreFillTubes:           &PreFillTubesState{},
		FirstDepressurize:      &FirstDepressurizeState{},
		MeasureEXCVolume:       &MeasureEXCVolumeState{},
		SecondDepressurize:     &SecondDepressurizeState{},
		SecondLeakCheck:        &SecondLeakCheckState{},
		TopUpEXC:               &TopUpEXCState{},
		Soak:                   &SoakState{},
		ThirdDepressurize:      &ThirdDepressurizeState{},
		Aspirate:               &AspirateState{},
		Flush:                  &FlushState{},
		ExtraFlushDepressurize: &ExtraFlushDepressurizeState{},
		DistillBulk:            &DistillBulkState{},
		AfterDistill:           &AfterDistillState{},
		FinalSolventRemoval:    &FinalSolventRemovalState{},
		Decarb:                 &DecarbState{},
		MixOil:                 &MixOilState{},
		VentPump:               &VentPumpState{},
		CleanPump:              &CleanPumpState{},
		Error:                  &ErrorState{},
	}
	for _, s := range r.all() {
		s.setRegistry(r)
	}
	return r
}

func (r *Registry) all() []registryAware {
	return []registryAware{
		r.Ready, r.SystemCheck, r.PreFillTubes, r.FirstDepressurize,
		r.MeasureEXCVolume, r.SecondDepressurize, r.SecondLeakCheck,
		r.TopUpEXC, r.Soak, r.ThirdDepressurize, r.Aspirate, r.Flush,
		r.ExtraFlushDepressurize, r.DistillBulk, r.AfterDistill,
		r.FinalSolventRemoval, r.Decarb, r.MixOil, r.VentPump,
		r.CleanPump, r.Error,
	}
}

// toError builds the standard transition into the terminal Error state,
// recording the failure mode and a user-facing description (spec.md §7).
func (r *Registry) toError(ctx *Context, mode fsmdata.FailureMode, description string) Transition {
	ctx.Data.FailureMode = mode
	ctx.Data.FailureDescription = description
	return goTo(r.Error)
}
