package fsm

import "github.com/epicfatigue/merlinctl/internal/fsmdata"

// ErrorState is terminal: only an explicit Reset command (handled by
// internal/command, which swaps the machine's current state directly)
// leaves it.
type ErrorState struct {
	base
}

func (s *ErrorState) Name() string { return "Error" }

func (s *ErrorState) Enter(ctx *Context) {
	ctx.PID.Off()
	_ = ctx.HW.SetHeaterPercent(0)
	_ = ctx.HW.SetPumpPWM(0)
	_ = ctx.HW.SetFanPWM(0)
	ctx.Data.RunningFlag = false
	_ = ctx.HW.SetPanelProgram(errorLEDCodeInt(ctx.Data.FailureMode))
}

func (s *ErrorState) Execute(ctx *Context) Transition {
	_ = ctx.HW.BlinkRedLight()
	return stay()
}

func (s *ErrorState) Exit(ctx *Context) {}

// ErrorLEDCode encodes a FailureMode into the four program LEDs as a 4-bit
// pattern (spec.md §4.D), implemented as a pure function so it is
// independently testable without a panel attached.
func ErrorLEDCode(mode fsmdata.FailureMode) [4]bool {
	code := errorLEDCodeInt(mode)
	return [4]bool{
		code&0x8 != 0,
		code&0x4 != 0,
		code&0x2 != 0,
		code&0x1 != 0,
	}
}

// Bit patterns are the original's set_error_indicator(LED1, LED2, LED3,
// LED4) calls verbatim (LED1 is the MSB), from
// module_HardwareControlSystem.py's show_error_code_in_display.
func errorLEDCodeInt(mode fsmdata.FailureMode) int {
	switch mode {
	case fsmdata.None:
		return 0b0000
	case fsmdata.EVCLeak:
		return 0b1000
	case fsmdata.EXCLeak:
		return 0b0100
	case fsmdata.AlcoholGasLevelError:
		return 0b0010
	case fsmdata.Valve3Blocked:
		return 0b0001
	case fsmdata.HeaterError:
		return 0b1100
	case fsmdata.PumpNeedsCleanOrReplacement:
		return 0b1010
	case fsmdata.Valve2Blocked:
		return 0b0110
	case fsmdata.Valve4Blocked:
		return 0b0011
	case fsmdata.Valve1OrValve3Blocked:
		return 0b1001
	case fsmdata.FanError:
		return 0b0101
	case fsmdata.PressureSensorError:
		return 0b0111
	case fsmdata.ThermalRunaway:
		// Not present in the original's failure taxonomy; given an unused
		// code rather than colliding with one of the grounded values above.
		return 0b1110
	default:
		return 0b1111
	}
}
