package panel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/panel"
)

type fakeBus struct {
	writes [][]byte
	reads  []byte
}

func (b *fakeBus) WriteBytes(addr byte, data []byte) error {
	b.writes = append(b.writes, append([]byte(nil), data...))
	return nil
}

func (b *fakeBus) ReadBytes(addr byte, n int) ([]byte, error) {
	return b.reads, nil
}

func allHigh() []byte { return []byte{0xFF, 0xFF} }

func TestInitPrimesEdgeBaselineFromCurrentLevels(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	ev, err := c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonNone, ev, "nothing changed since Init's baseline read")
}

func TestButtonPressRequiresTwoConsecutiveLowPollsToConfirm(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	bus.reads = []byte{0xFE, 0xFF} // bit 0 (select) now low

	ev, err := c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonNone, ev, "first poll at the new level only primes the baseline")

	ev, err = c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonSelect, ev, "second consecutive poll at the same low level confirms the press")
}

func TestButtonPressStopsOnceReleased(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	bus.reads = []byte{0xFD, 0xFF} // bit 1 (play) low
	_, err := c.ButtonPress()
	require.NoError(t, err)
	ev, err := c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonPlay, ev)

	bus.reads = allHigh()
	ev, err = c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonNone, ev)
}

func TestButtonPressDetectsReset(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	bus.reads = []byte{0xF7, 0xFF} // bit 3 (reset) low
	_, err := c.ButtonPress()
	require.NoError(t, err)
	ev, err := c.ButtonPress()
	require.NoError(t, err)
	assert.Equal(t, panel.ButtonReset, ev)
}

func TestSetStateDrivesTheExpectedLEDBitsWithoutClobberingInputBits(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	require.NoError(t, c.SetState(panel.StateError))
	require.NotEmpty(t, bus.writes)
	last := bus.writes[len(bus.writes)-1]
	got := uint16(last[0]) | uint16(last[1])<<8
	assert.Equal(t, uint16(1<<9), got&0xFF00, "StateError lights only the red LED bit")
	assert.Equal(t, uint16(0x00FF), got&0x00FF, "input half of the latch is preserved")
}

func TestBlinkRedLightTogglesTheRedBit(t *testing.T) {
	bus := &fakeBus{reads: allHigh()}
	c := panel.New(bus, 0x20)
	require.NoError(t, c.Init())

	require.NoError(t, c.BlinkRedLight())
	first := bus.writes[len(bus.writes)-1]
	require.NoError(t, c.BlinkRedLight())
	second := bus.writes[len(bus.writes)-1]
	assert.NotEqual(t, first, second, "two blinks toggle the bit back and forth")
}
