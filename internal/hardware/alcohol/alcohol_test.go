package alcohol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeADC struct {
	volts float64
	err   error
}

func (f *fakeADC) ReadChannelVolts(channel int) (float64, error) { return f.volts, f.err }

type fakeWriter struct {
	on  bool
	err error
}

func (f *fakeWriter) SetPower(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.on = on
	return nil
}

func TestLevelIsOffBeforePoweredOn(t *testing.T) {
	s := New(&fakeADC{}, 2)
	lvl, err := s.Level()
	require.NoError(t, err)
	assert.Equal(t, LevelOff, lvl)
}

func TestLevelIsNotReadyDuringWarmup(t *testing.T) {
	w := &fakeWriter{}
	s := New(&fakeADC{volts: 0.1}, 2)
	s.SetWriter(w)
	require.NoError(t, s.On())

	lvl, err := s.Level()
	require.NoError(t, err)
	assert.Equal(t, LevelNotReady, lvl)
	assert.True(t, w.on)
}

func TestLevelClassifiesThresholdsOnceWarmedUp(t *testing.T) {
	cases := []struct {
		volts float64
		want  LevelType
	}{
		{volts: 0.1, want: LevelOk},
		{volts: warningVolts, want: LevelWarning},
		{volts: dangerVolts, want: LevelDanger},
	}
	for _, tc := range cases {
		adc := &fakeADC{volts: tc.volts}
		s := New(adc, 2)
		s.SetWriter(&fakeWriter{})
		require.NoError(t, s.On())
		s.onSince = time.Now().Add(-warmupDuration - time.Second) // fast-forward past warmup

		lvl, err := s.Level()
		require.NoError(t, err)
		assert.Equal(t, tc.want, lvl)
	}
}

func TestOffStopsReadingAndReportsLevelOff(t *testing.T) {
	w := &fakeWriter{}
	s := New(&fakeADC{volts: dangerVolts}, 2)
	s.SetWriter(w)
	require.NoError(t, s.On())
	require.NoError(t, s.Off())

	assert.False(t, w.on)
	lvl, err := s.Level()
	require.NoError(t, err)
	assert.Equal(t, LevelOff, lvl)
}

func TestReadErrorDuringWarmedUpPhasePropagates(t *testing.T) {
	adc := &fakeADC{err: errors.New("i2c nack")}
	s := New(adc, 2)
	s.SetWriter(&fakeWriter{})
	require.NoError(t, s.On())
	s.onSince = time.Now().Add(-warmupDuration - time.Second)

	_, err := s.Level()
	assert.Error(t, err)
}
