package fsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epicfatigue/merlinctl/internal/fsm"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

// Ground truth is module_HardwareControlSystem.py's
// show_error_code_in_display, set_error_indicator(LED1, LED2, LED3, LED4)
// with LED1 as the MSB. No other test checks these codes, so every mode
// gets an explicit case here.
func TestErrorLEDCodeMatchesOriginalPerMode(t *testing.T) {
	cases := []struct {
		mode fsmdata.FailureMode
		want [4]bool
	}{
		{fsmdata.None, [4]bool{false, false, false, false}},
		{fsmdata.EVCLeak, [4]bool{true, false, false, false}},
		{fsmdata.EXCLeak, [4]bool{false, true, false, false}},
		{fsmdata.AlcoholGasLevelError, [4]bool{false, false, true, false}},
		{fsmdata.Valve3Blocked, [4]bool{false, false, false, true}},
		{fsmdata.HeaterError, [4]bool{true, true, false, false}},
		{fsmdata.PumpNeedsCleanOrReplacement, [4]bool{true, false, true, false}},
		{fsmdata.Valve2Blocked, [4]bool{false, true, true, false}},
		{fsmdata.Valve4Blocked, [4]bool{false, false, true, true}},
		{fsmdata.Valve1OrValve3Blocked, [4]bool{true, false, false, true}},
		{fsmdata.FanError, [4]bool{false, true, false, true}},
		{fsmdata.PressureSensorError, [4]bool{false, true, true, true}},
		{fsmdata.UnknownError, [4]bool{true, true, true, true}},
	}

	for _, tc := range cases {
		got := fsm.ErrorLEDCode(tc.mode)
		assert.Equal(t, tc.want, got, "mode %s", tc.mode)
	}
}

func TestErrorLEDCodeValuesAreAllDistinctAcrossGroundedModes(t *testing.T) {
	grounded := []fsmdata.FailureMode{
		fsmdata.None,
		fsmdata.EVCLeak,
		fsmdata.EXCLeak,
		fsmdata.AlcoholGasLevelError,
		fsmdata.Valve3Blocked,
		fsmdata.HeaterError,
		fsmdata.PumpNeedsCleanOrReplacement,
		fsmdata.Valve2Blocked,
		fsmdata.Valve4Blocked,
		fsmdata.Valve1OrValve3Blocked,
		fsmdata.FanError,
		fsmdata.PressureSensorError,
		fsmdata.UnknownError,
	}

	seen := map[[4]bool]fsmdata.FailureMode{}
	for _, mode := range grounded {
		code := fsm.ErrorLEDCode(mode)
		if other, ok := seen[code]; ok {
			t.Fatalf("modes %s and %s collide on LED code %v", mode, other, code)
		}
		seen[code] = mode
	}
}
