package fsm

// ReadyState is the machine's idle state: heater under PID control toward
// the last target temperature (so an operator can pre-heat before a run),
// everything else off, waiting for a command to set StartFlag.
type ReadyState struct {
	base
}

func (s *ReadyState) Name() string { return "Ready" }

func (s *ReadyState) Enter(ctx *Context) {
	ctx.Data.RunningFlag = false
	ctx.Data.PauseFlag = false
}

func (s *ReadyState) Execute(ctx *Context) Transition {
	if ctx.PID.Running() {
		temp, err := ctx.HW.BottomTemperature()
		if err == nil {
			ctx.PID.SetSetpoint(ctx.Data.TargetTemp)
			if out, fired := ctx.PID.Update(ctx.Now(), temp); fired {
				_ = ctx.HW.SetHeaterPercent(out)
			}
		}
	}

	if ctx.Data.StartFlag {
		ctx.Data.StartFlag = false
		ctx.Data.RunningFlag = true
		ctx.Data.FlushesPerformed = 0
		return goTo(s.reg.SystemCheck)
	}
	return stay()
}

func (s *ReadyState) Exit(ctx *Context) {}
