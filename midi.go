package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const (
	midiRescanInterval = 1000 * time.Millisecond
	midiInboundBuffer  = 256

	pitchBendMin = -8192
	pitchBendMax = 8191
)

var errMIDINotConnected = errors.New("midi: no output connected")

// -------------------- Transport --------------------

// MIDITransport turns controller events into MIDI messages handed to send.
// Channels arrive 1-based and leave 0-based.
type MIDITransport struct {
	send    func(midi.Message) error
	inbound <-chan midi.Message
}

func NewMIDITransport(send func(midi.Message) error, inbound <-chan midi.Message) *MIDITransport {
	return &MIDITransport{send: send, inbound: inbound}
}

func (t *MIDITransport) NoteOn(pitch, velocity, channel uint8) {
	logger.Debug("midi: note on", "pitch", pitchName(int(pitch)), "midi_pitch", pitch, "velocity", velocity, "channel", channel)
	t.emit(midi.NoteOn(channel-1, pitch, velocity))
}

func (t *MIDITransport) NoteOff(pitch, velocity, channel uint8) {
	logger.Debug("midi: note off", "pitch", pitchName(int(pitch)), "midi_pitch", pitch, "channel", channel)
	t.emit(midi.NoteOffVelocity(channel-1, pitch, velocity))
}

func (t *MIDITransport) PitchBend(value int, channel uint8) {
	logger.Debug("midi: pitch bend", "value", value, "channel", channel)
	t.emit(midi.Pitchbend(channel-1, clampBend(value)))
}

// ReadEvent discards one inbound message, reporting whether there was one.
func (t *MIDITransport) ReadEvent() bool {
	select {
	case msg := <-t.inbound:
		logger.Debug("midi: inbound message dropped", "msg", msg.String())
		return true
	default:
		return false
	}
}

func (t *MIDITransport) emit(msg midi.Message) {
	if err := t.send(msg); err != nil && !errors.Is(err, errMIDINotConnected) {
		logger.Warn("midi: send failed", "msg", msg.String(), "err", err)
	}
}

func clampBend(v int) int16 {
	if v > pitchBendMax {
		return pitchBendMax
	}
	if v < pitchBendMin {
		return pitchBendMin
	}
	return int16(v)
}

// -------------------- MIDIWatcher --------------------

// MIDIWatcher keeps a connection to the preferred MIDI output and handles
// hot-plug and hot-unplug. When an input port of the same name exists it is
// opened too and its messages are queued on Inbound.
type MIDIWatcher struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	out          drivers.Out
	sendFn       func(midi.Message) error
	in           drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	excluded  []string
	inbound   chan midi.Message
}

// NewMIDIWatcher initialises the rtmidi driver. Call Close when done.
func NewMIDIWatcher(preferred, excluded []string) (*MIDIWatcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &MIDIWatcher{
		drv:       drv,
		preferred: preferred,
		excluded:  excluded,
		inbound:   make(chan midi.Message, midiInboundBuffer),
	}, nil
}

// Close shuts down the active connection and the rtmidi driver.
func (m *MIDIWatcher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
	m.drv.Close()
}

// Inbound carries messages received from the connected device.
func (m *MIDIWatcher) Inbound() <-chan midi.Message {
	return m.inbound
}

// Send writes msg to the connected output.
func (m *MIDIWatcher) Send(msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errMIDINotConnected
	}
	return m.sendFn(msg)
}

// startWatch calls tick every interval from its own goroutine until ctx is
// done or the returned stop is called. stop waits for the goroutine to exit.
func startWatch(ctx context.Context, every time.Duration, tick func()) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// Tick should be called on a regular interval from its own goroutine. It
// scans for outputs, connects to a preferred one and notices when it goes.
func (m *MIDIWatcher) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastRescanAt.IsZero() && now.Sub(m.lastRescanAt) < midiRescanInterval {
		return
	}
	m.lastRescanAt = now

	outputs := m.listOutputs()

	if m.connected {
		for _, n := range outputs {
			if n == m.selectedName {
				return
			}
		}
		logger.Warn("midi: device disappeared", "device", m.selectedName)
		m.closeConn()
		m.lastRescanAt = time.Time{} // rescan immediately next tick
		return
	}

	if len(outputs) == 0 {
		return
	}
	cand, ok := pickPreferred(outputs, m.preferred)
	if !ok {
		logger.Debug("midi: no preferred output", "available", strings.Join(outputs, ", "))
		return
	}
	if err := m.openByName(cand); err != nil {
		logger.Error("midi: connect failed", "device", cand, "err", err)
	}
}

// Outputs lists output port names after exclusions.
func (m *MIDIWatcher) Outputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listOutputs()
}

// -------------------- internal --------------------

func (m *MIDIWatcher) listOutputs() []string {
	outs, err := m.drv.Outs()
	if err != nil {
		logger.Error("midi: list outputs failed", "err", err)
		return nil
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	names = excludePorts(names, m.excluded)
	logger.Debug("midi: outputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func (m *MIDIWatcher) closeConn() {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.in != nil {
		_ = m.in.Close()
		m.in = nil
	}
	if m.out != nil {
		_ = m.out.Close()
		m.out = nil
	}
	m.sendFn = nil
	m.connected = false
	m.selectedName = ""
}

func (m *MIDIWatcher) openByName(name string) error {
	out, err := m.drv.Outs()
	if err != nil {
		return err
	}
	var found drivers.Out
	for _, o := range out {
		if o.String() == name {
			found = o
			break
		}
	}
	if found == nil {
		return fmt.Errorf("output %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	send, err := midi.SendTo(found)
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("sender %q: %w", name, err)
	}

	m.out = found
	m.sendFn = send
	m.connected = true
	m.selectedName = name
	logger.Info("midi: connected", "device", name)

	if err := m.listenTo(name); err != nil {
		logger.Debug("midi: no inbound port", "device", name, "err", err)
	}
	return nil
}

// listenTo opens the input port matching name and queues its messages.
func (m *MIDIWatcher) listenTo(name string) error {
	ins, err := m.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		select {
		case m.inbound <- msg:
		default:
		}
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// Must not call closeConn from within the listener goroutine.
		go func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.connected && m.selectedName == name {
				m.closeConn()
				m.lastRescanAt = time.Time{}
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}
	m.in = found
	m.stopFn = stop
	return nil
}

// -------------------- utility --------------------

func excludePorts(names, excluded []string) []string {
	var kept []string
	for _, name := range names {
		skip := false
		for _, pat := range excluded {
			if containsCI(name, pat) {
				skip = true
				break
			}
		}
		if skip {
			logger.Debug("midi: port excluded", "device", name)
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

// pickPreferred returns the first name matching a preferred pattern, or the
// only name when there is exactly one.
func pickPreferred(names, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range names {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(names) == 1 {
		return names[0], true
	}
	return "", false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
