// Package adc abstracts the two supported I²C analog-to-digital variants
// the thermistor and alcohol-sensor channels ride on (spec.md §4.C, §9:
// "the thermistor and alcohol-level mappings carry two calibration
// tables"). Variant A follows the teacher's ads1115tds driver (16-bit,
// PGA-gain, conversion-poll protocol); variant B is a simpler 8-bit
// successive-approximation part with no gain stage, grounded on the same
// register-less-write idiom the teacher's pcf8575 package uses.
package adc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/reef-pi/rpi/i2c"
)

// Variant identifies which ADC chip was detected on the bus.
type Variant int

const (
	VariantADS1115 Variant = iota
	VariantPCF8591
)

func (v Variant) String() string {
	switch v {
	case VariantADS1115:
		return "ads1115"
	case VariantPCF8591:
		return "pcf8591"
	default:
		return "unknown"
	}
}

// Chip reads raw ADC counts and converts them to volts using the variant's
// own full-scale range, so higher layers (thermistor, alcohol) only deal
// in volts.
type Chip interface {
	Variant() Variant
	ReadChannelVolts(channel int) (float64, error)
}

// Detect probes each candidate address in turn, trying the ADS1115
// protocol first (it answers a config-register read coherently) and
// falling back to the PCF8591 protocol. The first address that responds
// to either protocol wins.
func Detect(bus i2c.Bus, addrs []byte) (Chip, error) {
	for _, addr := range addrs {
		if c, err := probeADS1115(bus, addr); err == nil {
			return c, nil
		}
		if c, err := probePCF8591(bus, addr); err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("adc: no supported chip responded on addresses %v", addrs)
}

// --- ADS1115 (16-bit, PGA gain) ---

const (
	ads1115RegConversion = 0x00
	ads1115RegConfig     = 0x01

	ads1115OsSingle   uint16 = 0x8000
	ads1115ModeSingle uint16 = 0x0100
	ads1115DataRate   uint16 = 0x00E0 // 860 SPS
	ads1115GainOne    uint16 = 0x0200 // +/- 4.096V full scale
	ads1115CompDisable uint16 = 0x0003

	ads1115FullScaleVolts = 4.096
	ads1115ConvTimeout    = 50 * time.Millisecond
	ads1115ConvPollWait   = 200 * time.Microsecond
)

var ads1115MuxSingle = [4]uint16{0x4000, 0x5000, 0x6000, 0x7000}

type ads1115 struct {
	bus  i2c.Bus
	addr byte
}

func probeADS1115(bus i2c.Bus, addr byte) (Chip, error) {
	c := &ads1115{bus: bus, addr: addr}
	if _, err := c.readRegister(ads1115RegConfig); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ads1115) Variant() Variant { return VariantADS1115 }

func (c *ads1115) ReadChannelVolts(channel int) (float64, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("ads1115: invalid channel %d", channel)
	}
	cfg := ads1115OsSingle | ads1115ModeSingle | ads1115DataRate | ads1115GainOne |
		ads1115CompDisable | ads1115MuxSingle[channel]

	if err := c.writeRegister(ads1115RegConfig, cfg); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(ads1115ConvTimeout)
	for time.Now().Before(deadline) {
		v, err := c.readRegister(ads1115RegConfig)
		if err != nil {
			return 0, err
		}
		if v&ads1115OsSingle != 0 {
			break
		}
		time.Sleep(ads1115ConvPollWait)
	}

	raw, err := c.readRegister(ads1115RegConversion)
	if err != nil {
		return 0, err
	}
	counts := int16(raw)
	return (float64(counts) / 32768.0) * ads1115FullScaleVolts, nil
}

func (c *ads1115) writeRegister(reg byte, v uint16) error {
	buf := make([]byte, 3)
	buf[0] = reg
	binary.BigEndian.PutUint16(buf[1:], v)
	return c.bus.WriteBytes(c.addr, buf)
}

func (c *ads1115) readRegister(reg byte) (uint16, error) {
	if err := c.bus.WriteBytes(c.addr, []byte{reg}); err != nil {
		return 0, err
	}
	b, err := c.bus.ReadBytes(c.addr, 2)
	if err != nil {
		return 0, err
	}
	if len(b) < 2 {
		return 0, fmt.Errorf("ads1115: short read")
	}
	return binary.BigEndian.Uint16(b), nil
}

// --- PCF8591 (8-bit, single range) ---

const pcf8591FullScaleVolts = 3.3

type pcf8591 struct {
	bus  i2c.Bus
	addr byte
}

func probePCF8591(bus i2c.Bus, addr byte) (Chip, error) {
	c := &pcf8591{bus: bus, addr: addr}
	// A control-byte write followed by a throwaway read is the cheapest
	// liveness probe this chip supports (it has no WHO_AM_I register).
	if err := bus.WriteBytes(addr, []byte{0x40}); err != nil {
		return nil, err
	}
	if _, err := bus.ReadBytes(addr, 1); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *pcf8591) Variant() Variant { return VariantPCF8591 }

func (c *pcf8591) ReadChannelVolts(channel int) (float64, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("pcf8591: invalid channel %d", channel)
	}
	control := byte(0x40) | byte(channel)
	if err := c.bus.WriteBytes(c.addr, []byte{control}); err != nil {
		return 0, err
	}
	// First byte back is the previous conversion; read twice to get the
	// freshly selected channel's value.
	if _, err := c.bus.ReadBytes(c.addr, 1); err != nil {
		return 0, err
	}
	b, err := c.bus.ReadBytes(c.addr, 1)
	if err != nil {
		return 0, err
	}
	if len(b) < 1 {
		return 0, fmt.Errorf("pcf8591: short read")
	}
	return (float64(b[0]) / 255.0) * pcf8591FullScaleVolts, nil
}
