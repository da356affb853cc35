package adc_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/adc"
)

// fakeBus is a minimal i2c.Bus double keyed by the last register byte
// written, which is how every adc protocol in this package addresses its
// registers (first byte of any write is always the register/control byte).
type fakeBus struct {
	lastReg byte
	data    map[byte][]byte
	failReg map[byte]bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{data: map[byte][]byte{}, failReg: map[byte]bool{}}
}

func (b *fakeBus) WriteBytes(addr byte, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	reg := data[0]
	if b.failReg[reg] {
		return errors.New("nack")
	}
	b.lastReg = reg
	return nil
}

func (b *fakeBus) ReadBytes(addr byte, n int) ([]byte, error) {
	return b.data[b.lastReg], nil
}

func TestDetectPrefersADS1115WhenItAnswers(t *testing.T) {
	bus := newFakeBus()
	bus.data[0x01] = []byte{0x80, 0x00} // config reg: conversion-ready bit already set
	bus.data[0x00] = []byte{0x40, 0x00} // conversion reg: 16384 counts

	chip, err := adc.Detect(bus, []byte{0x48})
	require.NoError(t, err)
	assert.Equal(t, adc.VariantADS1115, chip.Variant())

	volts, err := chip.ReadChannelVolts(1)
	require.NoError(t, err)
	assert.InDelta(t, 2.048, volts, 1e-6)
}

func TestDetectFallsBackToPCF8591WhenADS1115ConfigWriteFails(t *testing.T) {
	bus := newFakeBus()
	bus.failReg[0x01] = true // ADS1115's config register write never acks
	bus.data[0x42] = []byte{128}

	chip, err := adc.Detect(bus, []byte{0x48})
	require.NoError(t, err)
	assert.Equal(t, adc.VariantPCF8591, chip.Variant())

	volts, err := chip.ReadChannelVolts(2)
	require.NoError(t, err)
	assert.InDelta(t, 128.0/255.0*3.3, volts, 1e-6)
}

func TestDetectFailsWhenNeitherProtocolAnswers(t *testing.T) {
	bus := newFakeBus()
	bus.failReg[0x01] = true
	bus.failReg[0x40] = true

	_, err := adc.Detect(bus, []byte{0x48, 0x49})
	assert.Error(t, err)
}

func TestReadChannelVoltsRejectsOutOfRangeChannel(t *testing.T) {
	bus := newFakeBus()
	bus.data[0x01] = []byte{0x80, 0x00}

	chip, err := adc.Detect(bus, []byte{0x48})
	require.NoError(t, err)

	_, err = chip.ReadChannelVolts(4)
	assert.Error(t, err)
	_, err = chip.ReadChannelVolts(-1)
	assert.Error(t, err)
}
