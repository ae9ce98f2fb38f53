package main

const (
	DefaultVelocity = 99
	DefaultChannel  = 1

	// BendEnableBit in the remote status byte; bits 0-5 are remote pads.
	BendEnableBit = 1 << 6
)

// EventSink receives outbound musical events. Channels are 1-based.
type EventSink interface {
	NoteOn(pitch, velocity, channel uint8)
	NoteOff(pitch, velocity, channel uint8)
	PitchBend(value int, channel uint8)
}

// Keyboard tracks which channels are sounding and turns touch transitions
// into note events.
type Keyboard struct {
	Velocity uint8
	Channel  uint8

	table     ScaleTable
	transpose int
	on        [NumChannels]bool
	out       EventSink
}

func NewKeyboard(table ScaleTable, transpose int, out EventSink) *Keyboard {
	return &Keyboard{
		Velocity:  DefaultVelocity,
		Channel:   DefaultChannel,
		table:     table,
		transpose: transpose,
		out:       out,
	}
}

// Pitch is the note number emitted for channel ch.
func (k *Keyboard) Pitch(ch int) uint8 {
	return uint8(int(k.table[ch]) + k.transpose)
}

// On reports whether channel ch is currently sounding.
func (k *Keyboard) On(ch int) bool {
	return k.on[ch]
}

// Set records the sampled state of channel ch, emitting a note on each edge.
func (k *Keyboard) Set(ch int, touched bool) {
	switch {
	case touched && !k.on[ch]:
		k.out.NoteOn(k.Pitch(ch), k.Velocity, k.Channel)
		k.on[ch] = true
	case !touched && k.on[ch]:
		k.out.NoteOff(k.Pitch(ch), k.Velocity, k.Channel)
		k.on[ch] = false
	}
}

// ApplyRemote decodes one status byte from the secondary controller. It is
// only called when a byte arrived, so remote notes hold across silent cycles.
func (k *Keyboard) ApplyRemote(status byte, bend *BendSession) {
	bend.Enabled = status&BendEnableBit != 0
	for i := 0; i < NumRemote; i++ {
		k.Set(NumLocal+i, status&(1<<i) != 0)
	}
}

// ReleaseAll sends a note-off for every sounding channel.
func (k *Keyboard) ReleaseAll() {
	for ch := range k.on {
		k.Set(ch, false)
	}
}
