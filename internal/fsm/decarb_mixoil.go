package fsm

import (
	"time"

	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// DecarbState thermally decarboxylates the plant material: hold
// decarb_temperature for decarb_time_minutes, then return to Ready
// (spec.md §4.E "Simple timed states").
type DecarbState struct {
	base
	enteredAt time.Time
}

func (s *DecarbState) Name() string { return "Decarb" }

func (s *DecarbState) Enter(ctx *Context) {
	now := ctx.Now()
	s.enteredAt = now
	ctx.PID.Reset(now)
	ctx.PID.SetSetpoint(ctx.Cfg.DecarbTemperature)
	ctx.PID.On(now)
	_ = ctx.HW.SetFanPWM(100)
}

func (s *DecarbState) Execute(ctx *Context) Transition {
	now := ctx.Now()
	temp, err := ctx.HW.BottomTemperature()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature read failed during decarb")
	}
	if out, fired := ctx.PID.Update(now, temp); fired {
		_ = ctx.HW.SetHeaterPercent(out)
	}
	if now.Sub(s.enteredAt) >= time.Duration(ctx.Cfg.DecarbTimeMinutes)*time.Minute {
		ctx.PID.Off()
		_ = ctx.HW.SetHeaterPercent(0)
		_ = ctx.HW.SetFanPWM(0)
		return goTo(s.reg.Ready)
	}
	return stay()
}

func (s *DecarbState) Exit(ctx *Context) {}

// MixOilState holds oil_mix_temperature for oil_mix_time_minutes while
// folding extract into a carrier oil.
type MixOilState struct {
	base
	enteredAt time.Time
}

func (s *MixOilState) Name() string { return "MixOil" }

func (s *MixOilState) Enter(ctx *Context) {
	now := ctx.Now()
	s.enteredAt = now
	ctx.PID.Reset(now)
	ctx.PID.SetSetpoint(ctx.Cfg.OilMixTemperature)
	ctx.PID.On(now)
}

func (s *MixOilState) Execute(ctx *Context) Transition {
	now := ctx.Now()
	temp, err := ctx.HW.BottomTemperature()
	if err != nil {
		return s.reg.toError(ctx, fsmdata.HeaterError, "bottom temperature read failed during oil mix")
	}
	if out, fired := ctx.PID.Update(now, temp); fired {
		_ = ctx.HW.SetHeaterPercent(out)
	}
	if now.Sub(s.enteredAt) >= time.Duration(ctx.Cfg.OilMixTimeMinutes)*time.Minute {
		ctx.PID.Off()
		_ = ctx.HW.SetHeaterPercent(0)
		return goTo(s.reg.Ready)
	}
	return stay()
}

func (s *MixOilState) Exit(ctx *Context) {}
