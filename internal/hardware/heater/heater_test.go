package heater_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/heater"
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

func TestSetPercentRejectsOutOfRange(t *testing.T) {
	c := heater.New(3)
	assert.Error(t, c.SetPercent(-0.1))
	assert.Error(t, c.SetPercent(100.1))
}

func TestSetPercentWritesAndRecordsLastValue(t *testing.T) {
	w := &fakeWriter{}
	c := heater.New(3)
	c.SetWriter(w)

	require.NoError(t, c.SetPercent(65))
	assert.Equal(t, 3, w.lastChannel)
	assert.Equal(t, 65.0, w.lastPct)
	assert.Equal(t, 65.0, c.Percent())
}

func TestSetPercentPropagatesWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("pwm fault")}
	c := heater.New(3)
	c.SetWriter(w)

	assert.Error(t, c.SetPercent(10))
}
