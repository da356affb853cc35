package valve_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/valve"
)

type stepCall struct {
	pins    valve.StepperPins
	steps   int
	forward bool
}

type fakeWriter struct {
	calls []stepCall
	err   error
}

func (w *fakeWriter) Step(pins valve.StepperPins, steps int, forward bool) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, stepCall{pins, steps, forward})
	return nil
}

func testPins() [4]valve.StepperPins {
	return [4]valve.StepperPins{
		{Step: 1, Dir: 2, Enable: 3},
		{Step: 4, Dir: 5, Enable: 6},
		{Step: 7, Dir: 8, Enable: 9},
		{Step: 10, Dir: 11, Enable: 12},
	}
}

func TestSetDrivesTheCorrectValveForward(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.Set(1, 50))
	require.Len(t, w.calls, 1)
	assert.Equal(t, 100, w.calls[0].steps, "valve 1 is full-step: 50% of 200 steps")
	assert.True(t, w.calls[0].forward)
	assert.Equal(t, 50.0, c.Opening(1))
}

func TestSetUsesHalfStepRangeForValves2Through4(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.Set(3, 25))
	require.Len(t, w.calls, 1)
	assert.Equal(t, 100, w.calls[0].steps, "valve 3 is half-step: 25% of 400 steps")
}

func TestSetIsIdempotentWithinOneStep(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.Set(1, 50))
	require.NoError(t, c.Set(1, 50.001)) // rounds to the same step
	assert.Len(t, w.calls, 1, "no hardware write for a sub-step move")
}

func TestSetReverseDirectionWhenClosing(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.Set(2, 80))
	require.NoError(t, c.Set(2, 20))
	require.Len(t, w.calls, 2)
	assert.False(t, w.calls[1].forward)
}

func TestSetClampsOutOfRangePercent(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.Set(1, -20))
	assert.Equal(t, 0.0, c.Opening(1))

	require.NoError(t, c.Set(1, 500))
	assert.Equal(t, 100.0, c.Opening(1))
}

func TestSetRejectsInvalidValveID(t *testing.T) {
	c := valve.New(testPins())
	assert.Error(t, c.Set(0, 50))
	assert.Error(t, c.Set(5, 50))
}

func TestHomeAllSetsEveryValveToFullyOpen(t *testing.T) {
	w := &fakeWriter{}
	c := valve.New(testPins())
	c.SetWriter(w)

	require.NoError(t, c.HomeAll())
	require.Len(t, w.calls, 4)
	for id := 1; id <= 4; id++ {
		assert.Equal(t, 100.0, c.Opening(id))
	}
	assert.False(t, w.calls[0].forward, "homing always runs in reverse")
}

func TestSetPropagatesWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("gpio fault")}
	c := valve.New(testPins())
	c.SetWriter(w)

	assert.Error(t, c.Set(1, 50))
}
