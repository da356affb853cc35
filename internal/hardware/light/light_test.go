package light_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/light"
)

type fakeWriter struct {
	lastChannel int
	lastMode    light.Mode
}

func (w *fakeWriter) SetMode(channel int, mode light.Mode) error {
	w.lastChannel = channel
	w.lastMode = mode
	return nil
}

func TestWarmRedOffDriveTheirRespectiveModes(t *testing.T) {
	w := &fakeWriter{}
	c := light.New(4)
	c.SetWriter(w)

	require.NoError(t, c.Warm())
	assert.Equal(t, light.ModeWarm, w.lastMode)

	require.NoError(t, c.Red())
	assert.Equal(t, light.ModeRed, w.lastMode)

	require.NoError(t, c.Off())
	assert.Equal(t, light.ModeOff, w.lastMode)

	assert.Equal(t, 4, w.lastChannel)
}

func TestToggleWhiteFlipsOnThenOff(t *testing.T) {
	w := &fakeWriter{}
	c := light.New(4)
	c.SetWriter(w)

	require.NoError(t, c.ToggleWhite())
	assert.Equal(t, light.ModeWhite, w.lastMode)

	require.NoError(t, c.ToggleWhite())
	assert.Equal(t, light.ModeOff, w.lastMode)
}

func TestToggleRedFlipsOnThenOff(t *testing.T) {
	w := &fakeWriter{}
	c := light.New(4)
	c.SetWriter(w)

	require.NoError(t, c.ToggleRed())
	assert.Equal(t, light.ModeRed, w.lastMode)

	require.NoError(t, c.ToggleRed())
	assert.Equal(t, light.ModeOff, w.lastMode)
}
