package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SerialConfig names a serial device and its baud rate.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// TouchConfig describes the MPR121 panel carrying the local pads.
type TouchConfig struct {
	Bus              string `yaml:"bus"`
	Address          uint16 `yaml:"address"`
	TouchThreshold   uint8  `yaml:"touch_threshold"`
	ReleaseThreshold uint8  `yaml:"release_threshold"`
	// Pins maps local channels 0-10 to electrodes.
	Pins []uint8 `yaml:"pins"`
}

// MIDIConfig selects the output port by name pattern.
type MIDIConfig struct {
	Preferred []string `yaml:"preferred"`
	Excluded  []string `yaml:"excluded"`
}

type Config struct {
	Scale    string `yaml:"scale"`
	Tonic    uint8  `yaml:"tonic"`
	Key      string `yaml:"key"`
	Octave   int    `yaml:"octave"`
	Velocity uint8  `yaml:"velocity"`
	Channel  uint8  `yaml:"channel"`

	LoopInterval time.Duration `yaml:"loop_interval"`

	Touch     TouchConfig  `yaml:"touch"`
	Remote    SerialConfig `yaml:"remote"`
	Telemetry SerialConfig `yaml:"telemetry"`
	MIDI      MIDIConfig   `yaml:"midi"`
}

var (
	errBadVelocity = errors.New("velocity must be 1-127")
	errBadChannel  = errors.New("channel must be 1-16")
	errBadOctave   = errors.New("octave must be -4..4")
)

// DefaultConfig is the instrument as built: C minor from middle C played in
// G one octave down, eleven pads on electrodes 0-10.
func DefaultConfig() Config {
	return Config{
		Scale:    "minor",
		Tonic:    60,
		Key:      "G",
		Octave:   -1,
		Velocity: DefaultVelocity,
		Channel:  DefaultChannel,
		Touch: TouchConfig{
			Bus:              "/dev/i2c-1",
			Address:          MPR121Address,
			TouchThreshold:   12,
			ReleaseThreshold: 6,
			Pins:             []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
		Remote:    SerialConfig{Device: "/dev/ttyUSB0", Baud: 115200},
		Telemetry: SerialConfig{Device: "/dev/ttyUSB1", Baud: 9600},
		MIDI: MIDIConfig{
			Excluded: []string{"Midi Through", "Through Port", "Dummy"},
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and that every emitted pitch is a valid note.
func (c Config) Validate() error {
	steps, err := ScaleByName(c.Scale)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, s := range steps {
		if s == 0 {
			return fmt.Errorf("config: scale %q has a zero step", c.Scale)
		}
	}
	if _, err := KeyOffset(c.Key); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Octave < -4 || c.Octave > 4 {
		return fmt.Errorf("config: %w", errBadOctave)
	}
	if c.Velocity < 1 || c.Velocity > 127 {
		return fmt.Errorf("config: %w", errBadVelocity)
	}
	if c.Channel < 1 || c.Channel > 16 {
		return fmt.Errorf("config: %w", errBadChannel)
	}
	if len(c.Touch.Pins) != NumLocal {
		return fmt.Errorf("config: touch.pins needs %d electrodes, got %d", NumLocal, len(c.Touch.Pins))
	}
	for _, p := range c.Touch.Pins {
		if p >= MPR121Pads {
			return fmt.Errorf("config: electrode %d out of range 0-%d", p, MPR121Pads-1)
		}
	}

	// Walk the table in int so an overflow shows up here, not as a wrapped note.
	top := int(c.Tonic)
	for i := 1; i < NumChannels; i++ {
		top += int(steps[(i-1)%len(steps)])
	}
	if top > 255 {
		return fmt.Errorf("config: scale from tonic %d overflows", c.Tonic)
	}
	lo, hi := int(c.Tonic)+c.Transposition(), top+c.Transposition()
	if lo < 0 || hi > 127 {
		return fmt.Errorf("config: pitches %d..%d fall outside 0..127", lo, hi)
	}
	return nil
}

// Table builds the scale table. The config must be valid.
func (c Config) Table() ScaleTable {
	steps, _ := ScaleByName(c.Scale)
	return BuildScale(c.Tonic, steps)
}

// Transposition is the key and octave offset. The config must be valid.
func (c Config) Transposition() int {
	key, _ := KeyOffset(c.Key)
	return Transposition(key, c.Octave)
}
