package thermistor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/adc"
	"github.com/epicfatigue/merlinctl/internal/hardware/thermistor"
)

type fakeADC struct {
	variant adc.Variant
	volts   map[int]float64
	err     error
}

func (f *fakeADC) Variant() adc.Variant { return f.variant }
func (f *fakeADC) ReadChannelVolts(channel int) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.volts[channel], nil
}

func TestBottomAndGasChannelsConvertToCelsius(t *testing.T) {
	chip := &fakeADC{variant: adc.VariantADS1115, volts: map[int]float64{1: 0.2, 2: 3.6}}
	s := thermistor.New(chip, 1)
	require.NoError(t, s.Init())

	bottom, err := s.BottomC()
	require.NoError(t, err)
	assert.InDelta(t, 0, bottom, 1e-9)

	gas, err := s.GasC()
	require.NoError(t, err)
	assert.InDelta(t, 200, gas, 1e-9)
}

func TestGasChannelIsAlwaysOneAboveBottom(t *testing.T) {
	chip := &fakeADC{variant: adc.VariantPCF8591, volts: map[int]float64{3: 1.525}}
	s := thermistor.New(chip, 2)
	require.NoError(t, s.Init())

	gas, err := s.GasC()
	require.NoError(t, err)
	assert.InDelta(t, 100, gas, 1)
}

func TestInitRejectsUnsupportedVariant(t *testing.T) {
	chip := &fakeADC{variant: adc.Variant(99)}
	s := thermistor.New(chip, 1)
	assert.Error(t, s.Init())
}

func TestReadErrorPropagates(t *testing.T) {
	chip := &fakeADC{variant: adc.VariantADS1115, err: errors.New("i2c nack")}
	s := thermistor.New(chip, 1)
	require.NoError(t, s.Init())

	_, err := s.BottomC()
	assert.Error(t, err)
}
