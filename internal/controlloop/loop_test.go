package controlloop

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
	"github.com/epicfatigue/merlinctl/internal/panelui"
	"github.com/epicfatigue/merlinctl/internal/pidctl"
)

func newTestLoop(t *testing.T) (*Loop, *hwtest.Facade) {
	t.Helper()
	reg := fsm.NewRegistry()
	m := fsm.NewMachine(reg)
	hw := hwtest.New()
	now := time.Now()
	ctx := &fsm.Context{
		HW:    hw,
		Cfg:   config.Default(),
		Data:  &fsmdata.Data{SelectedProgram: 1},
		PID:   pidctl.New(1, 0, 0, time.Second, 0, 100, 0, 10*time.Second, 10),
		Clock: func() time.Time { return now },
	}
	return &Loop{
		Machine: m,
		Ctx:     ctx,
		Queue:   &command.Queue{},
		Panel:   panelui.New(),
	}, hw
}

func TestTickCallsHeartbeatEveryTick(t *testing.T) {
	l, _ := newTestLoop(t)
	calls := 0

	l.tick(func() { calls++ })
	assert.Equal(t, 1, calls)
}

func TestTickPublishesAnInitialSnapshot(t *testing.T) {
	l, _ := newTestLoop(t)
	require.Nil(t, l.Snapshot())

	l.tick(func() {})
	snap := l.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "Ready", snap.State)
	assert.Equal(t, "idle", snap.MachineState)
}

func TestTickDrainsAndExecutesQueuedCommand(t *testing.T) {
	l, _ := newTestLoop(t)
	l.Queue.Submit(command.StartExtraction{RunFull: true})

	l.tick(func() {})

	assert.Equal(t, "SystemCheck", l.Machine.Current().Name(), "StartExtraction.Execute set the start flag and Ready acted on it this tick")
}

func TestTickRecoversFromAPanicInStateExecute(t *testing.T) {
	l, hw := newTestLoop(t)
	l.Machine.Goto(l.Ctx, &panickingState{})

	require.NotPanics(t, func() { l.tick(func() {}) })
	assert.Equal(t, "Error", l.Machine.Current().Name())
	assert.Equal(t, fsmdata.UnknownError, l.Ctx.Data.FailureMode)
	assert.Contains(t, hw.Calls, "BlinkRedLight")
}

type panickingState struct{}

func (panickingState) Name() string { return "Panicking" }
func (panickingState) Enter(ctx *fsm.Context) {}
func (panickingState) Exit(ctx *fsm.Context)  {}
func (panickingState) Execute(ctx *fsm.Context) fsm.Transition {
	panic("simulated driver fault")
}
