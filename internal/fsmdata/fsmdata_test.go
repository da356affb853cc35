package fsmdata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epicfatigue/merlinctl/internal/fsmdata"
)

func TestResetRestoresPowerOnDefaultsWithProgramOneSelected(t *testing.T) {
	d := &fsmdata.Data{
		StartFlag:       true,
		RunningFlag:     true,
		PauseFlag:       true,
		SelectedProgram: 3,
		FailureMode:     fsmdata.ThermalRunaway,
		Warning:         "hot",
	}

	d.Reset()

	assert.Equal(t, fsmdata.Data{SelectedProgram: 1}, *d)
}

func TestFailureModeString(t *testing.T) {
	assert.Equal(t, "NONE", fsmdata.None.String())
	assert.Equal(t, "EVC_LEAK", fsmdata.EVCLeak.String())
	assert.Equal(t, "THERMAL_RUNAWAY", fsmdata.ThermalRunaway.String())
	assert.Equal(t, "UNKNOWN_ERROR", fsmdata.FailureMode(999).String(), "unrecognized values fall back to UNKNOWN_ERROR")
}
