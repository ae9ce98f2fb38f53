package main

import (
	"context"
	"time"
)

// RemoteTrigger asks the secondary controller for its status byte.
const RemoteTrigger = 0xA5

// Pad is one local touch sensor.
type Pad interface {
	IsTouched() bool
}

// RemoteLink is the polled serial link to the secondary controller.
type RemoteLink interface {
	Request() error
	Status() (byte, bool)
}

// Transport is the outbound event interface plus a non-blocking inbound read
// that must be drained every cycle.
type Transport interface {
	EventSink
	ReadEvent() bool
}

// Controller runs the polling loop. All of its state is owned by the
// goroutine calling Cycle or Run.
type Controller struct {
	// Interval pauses between cycles; zero runs flat out.
	Interval time.Duration

	pads      [NumLocal]Pad
	remote    RemoteLink
	telemetry ByteSource
	out       Transport

	keys   *Keyboard
	bend   BendSession
	parser TelemetryParser
	frame  func(Attitude)
}

func NewController(pads [NumLocal]Pad, remote RemoteLink, telemetry ByteSource, out Transport, keys *Keyboard) *Controller {
	c := &Controller{
		pads:      pads,
		remote:    remote,
		telemetry: telemetry,
		out:       out,
		keys:      keys,
	}
	c.frame = func(a Attitude) { c.bend.Apply(a, c.out) }
	return c
}

// Bend exposes the bend session, e.g. to install a roll hook.
func (c *Controller) Bend() *BendSession { return &c.bend }

// Cycle runs one pass of the loop.
func (c *Controller) Cycle() {
	if err := c.remote.Request(); err != nil {
		logger.Debug("remote: request failed", "err", err)
	}

	// Telemetry is serviced before every pad so bends stay responsive.
	for i, pad := range c.pads {
		c.parser.Drain(c.telemetry, c.frame)
		c.keys.Set(i, pad.IsTouched())
	}

	if status, ok := c.remote.Status(); ok {
		c.keys.ApplyRemote(status, &c.bend)
	}

	for c.out.ReadEvent() {
	}
}

// Run cycles until ctx is cancelled, then silences every note and centres
// the bend.
func (c *Controller) Run(ctx context.Context) error {
	logger.Info("controller: running", "interval", c.Interval)
	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return nil
		default:
		}

		c.Cycle()

		if c.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Interval):
			}
		}
	}
}

// Stop releases every sounding note and the bend.
func (c *Controller) Stop() {
	logger.Info("controller: releasing all notes")
	c.keys.ReleaseAll()
	c.bend.Release(c.out)
}
