package main

const (
	SOF0 = '$'
	SOF1 = 'T'
	SOF2 = 'A'

	PayloadLen = 6

	// BendShift scales a signed pitch sample up to pitch-bend range.
	BendShift   = 9
	BendChannel = 1
)

type parseState int

const (
	stateIdle parseState = iota
	stateSawDollar
	stateSawT
	stateCollecting
	stateFrameReady
)

// Attitude is one decoded telemetry frame.
type Attitude struct {
	Pitch int8
	Roll  int8
	Yaw   int8
}

// ByteSource is a non-blocking byte stream. PollByte returns false when
// nothing is buffered.
type ByteSource interface {
	PollByte() (byte, bool)
}

// TelemetryParser extracts attitude frames from the flight controller stream:
//
//	['$']['T']['A'][b0][pitch][b2][roll][b4][yaw]
//
// Padding bytes b0, b2, b4 are consumed and ignored.
type TelemetryParser struct {
	state   parseState
	idx     int
	payload [PayloadLen]byte
}

// Feed advances the parser by one byte and reports a frame when the last
// payload byte arrives. Out-of-sync input drops back to idle; a '$' always
// restarts the preamble.
func (p *TelemetryParser) Feed(c byte) (Attitude, bool) {
	switch p.state {
	case stateIdle:
		if c == SOF0 {
			p.state = stateSawDollar
		}
	case stateSawDollar:
		switch c {
		case SOF1:
			p.state = stateSawT
		case SOF0:
		default:
			p.state = stateIdle
		}
	case stateSawT:
		switch c {
		case SOF2:
			p.state = stateCollecting
			p.idx = 0
		case SOF0:
			p.state = stateSawDollar
		default:
			p.state = stateIdle
		}
	case stateCollecting:
		p.payload[p.idx] = c
		p.idx++
		if p.idx == PayloadLen {
			p.state = stateFrameReady
		}
	}

	if p.state != stateFrameReady {
		return Attitude{}, false
	}
	a := Attitude{
		Pitch: int8(p.payload[1]),
		Roll:  int8(p.payload[3]),
		Yaw:   int8(p.payload[5]),
	}
	p.idx = 0
	p.state = stateIdle
	return a, true
}

// Drain feeds every byte src has buffered, calling fn per completed frame.
func (p *TelemetryParser) Drain(src ByteSource, fn func(Attitude)) {
	for {
		c, ok := src.PollByte()
		if !ok {
			return
		}
		if a, ok := p.Feed(c); ok {
			fn(a)
		}
	}
}

// BendSession gates pitch bend on the remote enable bit.
type BendSession struct {
	Enabled bool

	// RollHook receives the roll change between frames. Nil discards it.
	RollHook func(delta int)

	lastPitch int8
	lastRoll  int8
}

// Apply emits the bend for one frame. While enabled every frame sends a bend;
// once disabled a single centring bend follows a non-zero pitch.
func (b *BendSession) Apply(a Attitude, out EventSink) {
	if b.Enabled {
		if a.Pitch > 0 {
			out.PitchBend(int(a.Pitch)<<BendShift, BendChannel)
		} else {
			out.PitchBend(0, BendChannel)
		}
		b.lastPitch = a.Pitch
	} else {
		b.Release(out)
	}

	if a.Roll != b.lastRoll {
		if b.RollHook != nil {
			b.RollHook(int(a.Roll) - int(b.lastRoll))
		}
		b.lastRoll = a.Roll
	}
}

// Release centres the bend if the last one sent was off-centre.
func (b *BendSession) Release(out EventSink) {
	if b.lastPitch == 0 {
		return
	}
	out.PitchBend(0, BendChannel)
	b.lastPitch = 0
}
