package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler. Every record
// carries the run id so restarts can be told apart.
func initLogger(debug bool, runID string) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h).With("run", runID)
	slog.SetDefault(logger)
}

// -------------------- Main --------------------

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are built in)")
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	remoteDev := flag.String("remote", "", "serial device of the secondary controller (overrides config)")
	telemetryDev := flag.String("telemetry", "", "serial device of the telemetry stream (overrides config)")
	i2cDev := flag.String("i2c", "", "I2C bus carrying the MPR121, e.g. /dev/i2c-1 or I2C1 (overrides config)")
	midiOut := flag.String("midi-out", "", "preferred MIDI output name pattern (overrides config)")
	scriptPath := flag.String("script", "", "replay a bench script instead of using hardware")
	listPorts := flag.Bool("list-ports", false, "list serial ports and MIDI outputs, then exit")
	flag.Parse()

	initLogger(*debug, uuid.NewString())

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *remoteDev != "" {
		cfg.Remote.Device = *remoteDev
	}
	if *telemetryDev != "" {
		cfg.Telemetry.Device = *telemetryDev
	}
	if *i2cDev != "" {
		cfg.Touch.Bus = *i2cDev
	}
	if *midiOut != "" {
		cfg.MIDI.Preferred = append([]string{*midiOut}, cfg.MIDI.Preferred...)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if *listPorts {
		if err := printPorts(cfg); err != nil {
			logger.Error("port listing failed", "err", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("emmmak starting",
		"scale", cfg.Scale,
		"tonic", pitchName(int(cfg.Tonic)),
		"key", cfg.Key,
		"octave", cfg.Octave,
		"transposition", cfg.Transposition(),
		"velocity", cfg.Velocity,
		"channel", cfg.Channel,
		"debug", *debug,
	)

	if *scriptPath != "" {
		if err := runScript(cfg, *scriptPath); err != nil {
			logger.Error("script failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runHardware(ctx, cfg); err != nil {
		logger.Error("controller failed", "err", err)
		os.Exit(1)
	}
}

// runHardware wires the controller to the MPR121, both serial links and the
// MIDI output, and runs until ctx is cancelled.
func runHardware(ctx context.Context, cfg Config) error {
	bus, err := openI2C(cfg.Touch.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	panel := NewTouchPanel(bus, cfg.Touch.Address)
	if err := panel.Configure(cfg.Touch.TouchThreshold, cfg.Touch.ReleaseThreshold); err != nil {
		return err
	}
	var pads [NumLocal]Pad
	for i, electrode := range cfg.Touch.Pins {
		pads[i] = panel.Pad(electrode)
	}

	remotePort, err := OpenSerial(cfg.Remote.Device, cfg.Remote.Baud)
	if err != nil {
		return err
	}
	defer remotePort.Close()

	telemetry, err := OpenSerial(cfg.Telemetry.Device, cfg.Telemetry.Baud)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	watcher, err := NewMIDIWatcher(cfg.MIDI.Preferred, cfg.MIDI.Excluded)
	if err != nil {
		return fmt.Errorf("midi watcher init failed: %w", err)
	}
	defer watcher.Close()

	watcher.Tick()
	stopWatch := startWatch(ctx, time.Second, watcher.Tick)
	defer stopWatch()

	out := NewMIDITransport(watcher.Send, watcher.Inbound())
	keys := NewKeyboard(cfg.Table(), cfg.Transposition(), out)
	keys.Velocity = cfg.Velocity
	keys.Channel = cfg.Channel

	c := NewController(pads, NewRemoteSerial(remotePort), telemetry, out, keys)
	c.Interval = cfg.LoopInterval
	return c.Run(ctx)
}

// runScript plays a bench script, logging every MIDI message it produces.
func runScript(cfg Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	defer f.Close()

	script, err := ParseScript(f)
	if err != nil {
		return err
	}
	logger.Info("script loaded", "path", path, "commands", script.Len())

	out := NewMIDITransport(func(msg midi.Message) error {
		logger.Info("midi out", "msg", msg.String())
		return nil
	}, nil)
	keys := NewKeyboard(cfg.Table(), cfg.Transposition(), out)
	keys.Velocity = cfg.Velocity
	keys.Channel = cfg.Channel

	bench := NewBench()
	c := NewController(bench.Pads(), bench.Remote, bench.Telemetry, out, keys)
	script.Play(bench, c)
	c.Stop()
	return nil
}

func printPorts(cfg Config) error {
	ports, err := SerialPorts()
	if err != nil {
		return err
	}
	fmt.Println("serial ports:")
	for _, p := range ports {
		fmt.Println("  " + p)
	}

	watcher, err := NewMIDIWatcher(cfg.MIDI.Preferred, cfg.MIDI.Excluded)
	if err != nil {
		return fmt.Errorf("midi watcher init failed: %w", err)
	}
	defer watcher.Close()
	fmt.Println("midi outputs:")
	for _, name := range watcher.Outputs() {
		fmt.Println("  " + name)
	}
	return nil
}
