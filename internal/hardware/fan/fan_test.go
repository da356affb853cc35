package fan_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/fan"
)

type fakeWriter struct {
	lastChannel int
	lastPct     float64
	err         error
}

func (w *fakeWriter) SetDutyCycle(channel int, pct float64) error {
	if w.err != nil {
		return w.err
	}
	w.lastChannel = channel
	w.lastPct = pct
	return nil
}

type fakeReader struct {
	volts float64
	err   error
}

func (r *fakeReader) ReadChannelVolts(channel int) (float64, error) { return r.volts, r.err }

func TestSetPercentRejectsOutOfRange(t *testing.T) {
	c := fan.New(1, 0)
	assert.Error(t, c.SetPercent(-1))
	assert.Error(t, c.SetPercent(101))
}

func TestSetPercentRecordsLastCommandedValue(t *testing.T) {
	w := &fakeWriter{}
	c := fan.New(1, 0)
	c.SetWriter(w)

	require.NoError(t, c.SetPercent(42))
	assert.Equal(t, 1, w.lastChannel)
	assert.Equal(t, 42.0, w.lastPct)
	assert.Equal(t, 42.0, c.Percent())
}

func TestADCCheckReportsNotSupportedWithoutFeedbackWiring(t *testing.T) {
	c := fan.New(1, -1)
	res, err := c.ADCCheck()
	require.NoError(t, err)
	assert.Equal(t, fan.ADCNotSupported, res)
}

func TestADCCheckReportsOffWhenNeverCommandedOn(t *testing.T) {
	c := fan.New(1, 2)
	c.SetReader(&fakeReader{volts: 0})
	res, err := c.ADCCheck()
	require.NoError(t, err)
	assert.Equal(t, fan.ADCOff, res)
}

func TestADCCheckReportsOnWhenFeedbackConfirmsSpinning(t *testing.T) {
	w := &fakeWriter{}
	c := fan.New(1, 2)
	c.SetWriter(w)
	c.SetReader(&fakeReader{volts: 1.2})
	require.NoError(t, c.SetPercent(80))

	res, err := c.ADCCheck()
	require.NoError(t, err)
	assert.Equal(t, fan.ADCOn, res)
}

func TestADCCheckReportsErrorWhenCommandedOnButNoFeedback(t *testing.T) {
	w := &fakeWriter{}
	c := fan.New(1, 2)
	c.SetWriter(w)
	c.SetReader(&fakeReader{volts: 0})
	require.NoError(t, c.SetPercent(80))

	res, err := c.ADCCheck()
	require.NoError(t, err)
	assert.Equal(t, fan.ADCError, res)
}

func TestADCCheckPropagatesReadError(t *testing.T) {
	c := fan.New(1, 2)
	c.SetReader(&fakeReader{err: errors.New("i2c nack")})
	res, err := c.ADCCheck()
	assert.Error(t, err)
	assert.Equal(t, fan.ADCError, res)
}
