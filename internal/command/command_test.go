package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/command"
	"github.com/epicfatigue/merlinctl/internal/config"
	"github.com/epicfatigue/merlinctl/internal/fsm"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware/hwtest"
	"github.com/epicfatigue/merlinctl/internal/pidctl"
)

func newHarness() (*fsm.Machine, *fsm.Context) {
	reg := fsm.NewRegistry()
	m := fsm.NewMachine(reg)
	cfg := config.Default()
	ctx := &fsm.Context{
		HW:   hwtest.New(),
		Cfg:  cfg,
		Data: &fsmdata.Data{SelectedProgram: 1},
		PID:  pidctl.New(1, 0, 0, time.Second, 0, 100, 0, 10*time.Second, 10),
	}
	return m, ctx
}

func TestStartExtractionRejectedWhileRunning(t *testing.T) {
	m, ctx := newHarness()
	ctx.Data.RunningFlag = true

	err := command.StartExtraction{RunFull: true}.Validate(m, ctx)
	require.Error(t, err)
	assert.True(t, command.IsRejected(err))
}

func TestStartExtractionSetsFlagsOnExecute(t *testing.T) {
	m, ctx := newHarness()
	cmd := command.StartExtraction{RunFull: true}

	require.NoError(t, cmd.Validate(m, ctx))
	require.NoError(t, cmd.Execute(m, ctx))

	assert.True(t, ctx.Data.StartFlag)
	assert.True(t, ctx.Data.RunFullExtraction)
}

func TestStartExtractionHonorsSoakTimeOverride(t *testing.T) {
	m, ctx := newHarness()
	soak := uint32(42)
	cmd := command.StartExtraction{SoakTime: &soak}

	require.NoError(t, cmd.Execute(m, ctx))
	assert.Equal(t, 42, ctx.Cfg.SoakTimeSeconds)
}

func TestPauseOnlyValidDuringDistillBulk(t *testing.T) {
	m, ctx := newHarness()

	err := command.PauseProgram{}.Validate(m, ctx)
	require.Error(t, err)
	assert.True(t, command.IsRejected(err))

	m.Goto(ctx, m.Registry.DistillBulk)
	assert.NoError(t, command.PauseProgram{}.Validate(m, ctx))
}

func TestResumeSetsPauseFlagFalse(t *testing.T) {
	m, ctx := newHarness()
	m.Goto(ctx, m.Registry.DistillBulk)
	ctx.Data.PauseFlag = true

	require.NoError(t, command.ResumeProgram{}.Execute(m, ctx))
	assert.False(t, ctx.Data.PauseFlag)
}

func TestResetAlwaysAcceptedAndReturnsToReady(t *testing.T) {
	m, ctx := newHarness()
	m.Goto(ctx, m.Registry.DistillBulk)
	ctx.Data.RunningFlag = true
	ctx.Data.PauseFlag = true
	ctx.Data.SelectedProgram = 3
	ctx.PID.On(time.Now())

	require.NoError(t, command.Reset{}.Validate(m, ctx))
	require.NoError(t, command.Reset{}.Execute(m, ctx))

	assert.Equal(t, "Ready", m.Current().Name())
	assert.False(t, ctx.Data.RunningFlag)
	assert.False(t, ctx.Data.PauseFlag)
	assert.False(t, ctx.PID.Running())
	assert.Equal(t, 1, ctx.Data.SelectedProgram, "Reset returns the panel to program 1, per invariant I3")
}

func TestCleanValveOnlyFromReadyAndValidatesValveID(t *testing.T) {
	m, ctx := newHarness()

	err := command.CleanValve{Valve: 0}.Validate(m, ctx)
	require.Error(t, err)

	assert.NoError(t, command.CleanValve{Valve: 2}.Validate(m, ctx))

	m.Goto(ctx, m.Registry.DistillBulk)
	err = command.CleanValve{Valve: 2}.Validate(m, ctx)
	require.Error(t, err)
	assert.True(t, command.IsRejected(err))
}
