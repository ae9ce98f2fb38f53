package main

import (
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// MPR121 registers used by TouchPanel.
// Datasheet: https://cdn-shop.adafruit.com/datasheets/MPR121.pdf
const (
	MPR121Address = 0x5A
	MPR121Pads    = 12

	regTouchStatus = 0x00
	regMHDR        = 0x2B
	regNHDR        = 0x2C
	regNCLR        = 0x2D
	regFDLR        = 0x2E
	regMHDF        = 0x2F
	regNHDF        = 0x30
	regNCLF        = 0x31
	regFDLF        = 0x32
	regNHDT        = 0x33
	regNCLT        = 0x34
	regFDLT        = 0x35
	regTouchTh0    = 0x41
	regReleaseTh0  = 0x42
	regDebounce    = 0x5B
	regConfig1     = 0x5C
	regConfig2     = 0x5D
	regECR         = 0x5E
	regAutoConfig0 = 0x7B
	regUpLimit     = 0x7D
	regLowLimit    = 0x7E
	regTargetLimit = 0x7F
	regSoftReset   = 0x80
)

// I2CBus is an I2C bus the program opened and must release.
type I2CBus interface {
	drivers.I2C
	Close() error
}

// TouchPanel reads touch state from an MPR121 capacitive controller.
type TouchPanel struct {
	bus    drivers.I2C
	addr   uint16
	status uint16 // last good touch status
	w      [2]byte
	r      [2]byte
}

func NewTouchPanel(bus drivers.I2C, addr uint16) *TouchPanel {
	if addr == 0 {
		addr = MPR121Address
	}
	return &TouchPanel{bus: bus, addr: addr}
}

// Configure resets the controller, applies thresholds to every electrode and
// starts it with automatic baseline configuration for a 3.3V supply.
func (t *TouchPanel) Configure(touch, release uint8) error {
	if err := t.write(regSoftReset, 0x63); err != nil {
		return fmt.Errorf("mpr121: reset: %w", err)
	}
	time.Sleep(time.Millisecond)

	seq := []struct{ reg, val uint8 }{
		{regECR, 0x00}, // stop mode, required for configuration writes
		{regMHDR, 0x01}, {regNHDR, 0x01}, {regNCLR, 0x0E}, {regFDLR, 0x00},
		{regMHDF, 0x01}, {regNHDF, 0x05}, {regNCLF, 0x01}, {regFDLF, 0x00},
		{regNHDT, 0x00}, {regNCLT, 0x00}, {regFDLT, 0x00},
		{regDebounce, 0x00},
		{regConfig1, 0x10}, // 16uA charge current
		{regConfig2, 0x20}, // 0.5us encoding, 1ms period
		{regAutoConfig0, 0x0B},
		{regUpLimit, 200},     // ((Vdd - 0.7)/Vdd) * 256
		{regTargetLimit, 180}, // UPLIMIT * 0.9
		{regLowLimit, 130},    // UPLIMIT * 0.65
	}
	for _, s := range seq {
		if err := t.write(s.reg, s.val); err != nil {
			return fmt.Errorf("mpr121: write %#02x: %w", s.reg, err)
		}
	}
	for i := uint8(0); i < MPR121Pads; i++ {
		if err := t.write(regTouchTh0+2*i, touch); err != nil {
			return fmt.Errorf("mpr121: touch threshold %d: %w", i, err)
		}
		if err := t.write(regReleaseTh0+2*i, release); err != nil {
			return fmt.Errorf("mpr121: release threshold %d: %w", i, err)
		}
	}
	// run mode, all 12 electrodes, proximity off
	if err := t.write(regECR, 0x80+MPR121Pads); err != nil {
		return fmt.Errorf("mpr121: start: %w", err)
	}
	logger.Info("mpr121: configured", "addr", t.addr, "touch", touch, "release", release)
	return nil
}

// Status reads the touch bitmap. On a bus error the last good bitmap is
// returned alongside the error.
func (t *TouchPanel) Status() (uint16, error) {
	t.w[0] = regTouchStatus
	if err := t.bus.Tx(t.addr, t.w[:1], t.r[:]); err != nil {
		return t.status, err
	}
	t.status = (uint16(t.r[1])<<8 | uint16(t.r[0])) & (1<<MPR121Pads - 1)
	return t.status, nil
}

// Pad returns the touch sensor for one electrode.
func (t *TouchPanel) Pad(electrode uint8) Pad {
	return &touchPad{panel: t, electrode: electrode}
}

func (t *TouchPanel) write(reg, val uint8) error {
	t.w[0], t.w[1] = reg, val
	return t.bus.Tx(t.addr, t.w[:], nil)
}

type touchPad struct {
	panel     *TouchPanel
	electrode uint8
}

// IsTouched polls the panel. Bus errors keep the previous reading so a
// glitch does not release a held note.
func (p *touchPad) IsTouched() bool {
	status, err := p.panel.Status()
	if err != nil {
		logger.Debug("mpr121: status read failed", "electrode", p.electrode, "err", err)
	}
	return status&(1<<p.electrode) != 0
}
