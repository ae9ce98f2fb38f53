package main

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// A periph bus drives the MPR121 through the tinygo driver interface.
var _ drivers.I2C = i2c.BusCloser(nil)

// openI2C opens a host I2C bus by name: "/dev/i2c-1", its alias "I2C1",
// the bus number "1", or "" for the first bus found.
func openI2C(name string) (I2CBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("i2c: host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %q: %w", name, err)
	}
	logger.Info("opened i2c bus", "name", bus.String())
	return bus, nil
}
