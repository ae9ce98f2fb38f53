package main

type event struct {
	Kind     string
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	Value    int
}

func noteOn(pitch uint8) event { return event{Kind: "on", Pitch: pitch, Velocity: DefaultVelocity, Channel: DefaultChannel} }
func noteOff(pitch uint8) event { return event{Kind: "off", Pitch: pitch, Velocity: DefaultVelocity, Channel: DefaultChannel} }
func bend(value int) event { return event{Kind: "bend", Value: value, Channel: BendChannel} }

// recorder is a Transport that keeps every event it is handed.
type recorder struct {
	events  []event
	inbound int
	reads   int
}

func (r *recorder) NoteOn(pitch, velocity, channel uint8) {
	r.events = append(r.events, event{Kind: "on", Pitch: pitch, Velocity: velocity, Channel: channel})
}

func (r *recorder) NoteOff(pitch, velocity, channel uint8) {
	r.events = append(r.events, event{Kind: "off", Pitch: pitch, Velocity: velocity, Channel: channel})
}

func (r *recorder) PitchBend(value int, channel uint8) {
	r.events = append(r.events, event{Kind: "bend", Value: value, Channel: channel})
}

func (r *recorder) ReadEvent() bool {
	r.reads++
	if r.inbound == 0 {
		return false
	}
	r.inbound--
	return true
}

func (r *recorder) take() []event {
	ev := r.events
	r.events = nil
	return ev
}
