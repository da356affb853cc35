package pressure_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/hardware/pressure"
)

// fakeBus is a minimal in-memory i2c.Bus double: WriteBytes records the
// last register written per address, ReadBytes replays a scripted response
// for that address.
type fakeBus struct {
	lastWrite map[byte][]byte
	reads     map[byte][]byte
	writeErr  map[byte]error
	readErr   map[byte]error
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		lastWrite: map[byte][]byte{},
		reads:     map[byte][]byte{},
		writeErr:  map[byte]error{},
		readErr:   map[byte]error{},
	}
}

func (b *fakeBus) WriteBytes(addr byte, data []byte) error {
	if err := b.writeErr[addr]; err != nil {
		return err
	}
	b.lastWrite[addr] = data
	return nil
}

func (b *fakeBus) ReadBytes(addr byte, n int) ([]byte, error) {
	if err := b.readErr[addr]; err != nil {
		return nil, err
	}
	return b.reads[addr], nil
}

func TestDetectPicksTheRespondingVariant(t *testing.T) {
	bus := newFakeBus()
	bus.reads[0x77] = []byte{0x58} // bmp280 chip id

	s, err := pressure.Detect(bus, []byte{0x76, 0x77})
	require.NoError(t, err)
	assert.Equal(t, pressure.VariantBMP280, s.Variant())
}

func TestDetectSkipsNonRespondingAddresses(t *testing.T) {
	bus := newFakeBus()
	bus.writeErr[0x76] = errors.New("no ack")
	bus.reads[0x77] = []byte{0x50} // bmp384 chip id

	s, err := pressure.Detect(bus, []byte{0x76, 0x77})
	require.NoError(t, err)
	assert.Equal(t, pressure.VariantBMP384, s.Variant())
}

func TestDetectFailsWhenNothingResponds(t *testing.T) {
	bus := newFakeBus()
	_, err := pressure.Detect(bus, []byte{0x76, 0x77})
	assert.Error(t, err)
}

func TestReadMbarConvertsCountsLinearly(t *testing.T) {
	bus := newFakeBus()
	bus.reads[0x76] = []byte{0x58}
	s, err := pressure.Detect(bus, []byte{0x76})
	require.NoError(t, err)

	// Raw counts of 0 map to the 300 mbar floor of the chip's range.
	bus.reads[0x76] = []byte{0x00, 0x00, 0x00}
	mbar, err := s.ReadMbar()
	require.NoError(t, err)
	assert.InDelta(t, 300, mbar, 1e-6)

	// Full-scale 20-bit counts map to the 1100 mbar ceiling.
	bus.reads[0x76] = []byte{0xFF, 0xFF, 0xF0}
	mbar, err = s.ReadMbar()
	require.NoError(t, err)
	assert.InDelta(t, 1100, mbar, 1)
}

func TestReadMbarRetriesThenSurfacesError(t *testing.T) {
	bus := newFakeBus()
	bus.reads[0x76] = []byte{0x58}
	s, err := pressure.Detect(bus, []byte{0x76})
	require.NoError(t, err)

	bus.readErr[0x76] = errors.New("bus timeout")
	_, err = s.ReadMbar()
	assert.Error(t, err)
}
