package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"gitlab.com/gomidi/midi/v2"
)

func captureTransport(inbound chan midi.Message) (*MIDITransport, *[]midi.Message) {
	var sent []midi.Message
	t := NewMIDITransport(func(msg midi.Message) error {
		sent = append(sent, msg)
		return nil
	}, inbound)
	return t, &sent
}

func TestMIDITransportNotes(t *testing.T) {
	c := qt.New(t)
	tr, sent := captureTransport(nil)
	tr.NoteOn(55, 99, 1)
	tr.NoteOff(55, 99, 16)
	c.Assert(*sent, qt.HasLen, 2)

	var ch, key, vel uint8
	c.Assert((*sent)[0].GetNoteOn(&ch, &key, &vel), qt.IsTrue)
	c.Assert([]uint8{ch, key, vel}, qt.DeepEquals, []uint8{0, 55, 99})

	c.Assert((*sent)[1].GetNoteOff(&ch, &key, &vel), qt.IsTrue)
	c.Assert([]uint8{ch, key, vel}, qt.DeepEquals, []uint8{15, 55, 99})
}

func TestMIDITransportPitchBend(t *testing.T) {
	c := qt.New(t)
	tr, sent := captureTransport(nil)
	tr.PitchBend(25600, 1)
	tr.PitchBend(4096, 1)
	tr.PitchBend(0, 1)

	var ch uint8
	var rel int16
	var abs uint16
	var got []int16
	for _, msg := range *sent {
		c.Assert(msg.GetPitchBend(&ch, &rel, &abs), qt.IsTrue)
		c.Assert(ch, qt.Equals, uint8(0))
		got = append(got, rel)
	}
	c.Assert(got, qt.DeepEquals, []int16{8191, 4096, 0})
}

func TestMIDITransportReadEventDrains(t *testing.T) {
	c := qt.New(t)
	in := make(chan midi.Message, 4)
	in <- midi.NoteOn(0, 60, 100)
	in <- midi.NoteOff(0, 60)
	tr, _ := captureTransport(in)

	n := 0
	for tr.ReadEvent() {
		n++
	}
	c.Assert(n, qt.Equals, 2)
	c.Assert(tr.ReadEvent(), qt.IsFalse)
}

func TestMIDITransportSendErrorsAreSwallowed(t *testing.T) {
	c := qt.New(t)
	calls := 0
	tr := NewMIDITransport(func(midi.Message) error {
		calls++
		if calls == 1 {
			return errMIDINotConnected
		}
		return errors.New("port gone")
	}, nil)
	tr.NoteOn(60, 99, 1)
	tr.PitchBend(0, 1)
	c.Assert(calls, qt.Equals, 2)
}

func TestClampBend(t *testing.T) {
	c := qt.New(t)
	c.Assert(clampBend(0), qt.Equals, int16(0))
	c.Assert(clampBend(8191), qt.Equals, int16(8191))
	c.Assert(clampBend(127<<BendShift), qt.Equals, int16(8191))
	c.Assert(clampBend(-9000), qt.Equals, int16(-8192))
}

func TestPickPreferred(t *testing.T) {
	c := qt.New(t)
	names := []string{"Midi Through:0", "FLUID Synth (1234):0", "USB MIDI Interface"}

	got, ok := pickPreferred(names, []string{"usb midi", "fluid"})
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, "USB MIDI Interface")

	_, ok = pickPreferred(names, nil)
	c.Assert(ok, qt.IsFalse)

	kept := excludePorts(names, []string{"midi through"})
	c.Assert(kept, qt.DeepEquals, []string{"FLUID Synth (1234):0", "USB MIDI Interface"})

	got, ok = pickPreferred(excludePorts(names, []string{"through", "usb"}), nil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, "FLUID Synth (1234):0")
}

func TestStartWatchStopWaitsForTick(t *testing.T) {
	c := qt.New(t)
	var ticks atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	stop := startWatch(context.Background(), time.Millisecond, func() {
		ticks.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})
	<-entered

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		c.Fatal("stop returned while a tick was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		c.Fatal("stop did not return after the tick finished")
	}
	n := ticks.Load()
	time.Sleep(5 * time.Millisecond)
	c.Assert(ticks.Load(), qt.Equals, n)
}

func TestStartWatchEndsWithContext(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	stop := startWatch(ctx, time.Millisecond, func() { ticks.Add(1) })
	cancel()
	stop()
	n := ticks.Load()
	time.Sleep(5 * time.Millisecond)
	c.Assert(ticks.Load(), qt.Equals, n)
}
