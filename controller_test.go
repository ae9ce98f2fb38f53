package main

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

type rig struct {
	bench *Bench
	rec   *recorder
	keys  *Keyboard
	ctl   *Controller
}

func newRig() *rig {
	r := &rig{bench: NewBench(), rec: &recorder{}}
	cfg := DefaultConfig()
	r.keys = NewKeyboard(cfg.Table(), cfg.Transposition(), r.rec)
	r.ctl = NewController(r.bench.Pads(), r.bench.Remote, r.bench.Telemetry, r.rec, r.keys)
	return r
}

func (r *rig) cycles(n int) {
	for i := 0; i < n; i++ {
		r.ctl.Cycle()
	}
}

func TestCycleRequestsRemoteEveryTime(t *testing.T) {
	c := qt.New(t)
	r := newRig()
	r.cycles(4)
	c.Assert(r.bench.Remote.Requests, qt.Equals, 4)
	c.Assert(r.rec.events, qt.HasLen, 0)
}

func TestCycleLocalTouch(t *testing.T) {
	c := qt.New(t)
	r := newRig()
	p := r.keys.Pitch(7)

	r.bench.Touch(7, true)
	r.cycles(3)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOn(p)})

	r.bench.Touch(7, false)
	r.cycles(2)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOff(p)})
}

func TestCycleRemoteNotesPersistWithoutData(t *testing.T) {
	c := qt.New(t)
	r := newRig()
	p := r.keys.Pitch(NumLocal)

	r.bench.Remote.Push(0x01)
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOn(p)})

	r.cycles(10)
	c.Assert(r.rec.events, qt.HasLen, 0)
	c.Assert(r.keys.On(NumLocal), qt.IsTrue)

	r.bench.Remote.Push(0x00)
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOff(p)})
}

func TestCycleConsumesOneStatusBytePerCycle(t *testing.T) {
	c := qt.New(t)
	r := newRig()
	p := r.keys.Pitch(NumLocal + 1)

	r.bench.Remote.Push(0x02, 0x00)
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOn(p)})
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{noteOff(p)})
}

func TestCycleBendGatedByRemote(t *testing.T) {
	c := qt.New(t)
	r := newRig()

	// Telemetry is drained before the status byte is applied, so this frame
	// still sees bend disabled.
	r.bench.Remote.Push(BendEnableBit)
	r.bench.Telemetry.Write(frameBytes(50, 0, 0))
	r.cycles(1)
	c.Assert(r.rec.take(), qt.HasLen, 0)
	c.Assert(r.ctl.Bend().Enabled, qt.IsTrue)

	r.bench.Telemetry.Write(frameBytes(50, 0, 0))
	r.cycles(1)
	r.bench.Telemetry.Write(frameBytes(50, 0, 0))
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{bend(25600), bend(25600)})

	r.bench.Remote.Push(0x00)
	r.cycles(1)
	for i := 0; i < 3; i++ {
		r.bench.Telemetry.Write(frameBytes(50, 0, 0))
		r.cycles(1)
	}
	c.Assert(r.rec.take(), qt.DeepEquals, []event{bend(0)})
}

func TestCycleDrainsInbound(t *testing.T) {
	c := qt.New(t)
	r := newRig()
	r.rec.inbound = 3
	r.cycles(1)
	c.Assert(r.rec.inbound, qt.Equals, 0)
	c.Assert(r.rec.reads, qt.Equals, 4)
}

func TestRunStopsAndReleases(t *testing.T) {
	c := qt.New(t)
	r := newRig()

	r.bench.Touch(0, true)
	r.bench.Remote.Push(BendEnableBit | 0x08)
	r.cycles(1)
	r.bench.Telemetry.Write(frameBytes(20, 0, 0))
	r.cycles(1)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{
		noteOn(r.keys.Pitch(0)),
		noteOn(r.keys.Pitch(NumLocal + 3)),
		bend(20 << BendShift),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(r.ctl.Run(ctx), qt.IsNil)
	c.Assert(r.rec.take(), qt.DeepEquals, []event{
		noteOff(r.keys.Pitch(0)),
		noteOff(r.keys.Pitch(NumLocal + 3)),
		bend(0),
	})
}
