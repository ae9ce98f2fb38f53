package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// -------------------- Bench --------------------

// Bench stands in for the instrument hardware: pads, remote link and
// telemetry stream are all driven by hand or by a Script.
type Bench struct {
	pads      [NumLocal]*BenchPad
	Remote    *BenchRemote
	Telemetry *BenchStream
}

func NewBench() *Bench {
	b := &Bench{Remote: &BenchRemote{}, Telemetry: &BenchStream{}}
	for i := range b.pads {
		b.pads[i] = &BenchPad{}
	}
	return b
}

// Pads returns the local pads in controller order.
func (b *Bench) Pads() [NumLocal]Pad {
	var out [NumLocal]Pad
	for i, p := range b.pads {
		out[i] = p
	}
	return out
}

// Touch sets the state of local pad ch.
func (b *Bench) Touch(ch int, touched bool) {
	b.pads[ch].Touched = touched
}

type BenchPad struct {
	Touched bool
}

func (p *BenchPad) IsTouched() bool { return p.Touched }

// BenchRemote queues status bytes and hands out one per Status call.
type BenchRemote struct {
	Requests int
	pending  []byte
}

func (r *BenchRemote) Push(status ...byte) { r.pending = append(r.pending, status...) }

func (r *BenchRemote) Request() error {
	r.Requests++
	return nil
}

func (r *BenchRemote) Status() (byte, bool) {
	if len(r.pending) == 0 {
		return 0, false
	}
	b := r.pending[0]
	r.pending = r.pending[1:]
	return b, true
}

// BenchStream is a queued byte source.
type BenchStream struct {
	pending []byte
}

func (s *BenchStream) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	return len(p), nil
}

func (s *BenchStream) PollByte() (byte, bool) {
	if len(s.pending) == 0 {
		return 0, false
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, true
}

// -------------------- Script --------------------

type stepKind int

const (
	stepTouch stepKind = iota
	stepRemote
	stepTelemetry
	stepCycle
)

type scriptStep struct {
	line    int
	kind    stepKind
	channel int
	touched bool
	data    []byte
	count   int
}

// Script is a parsed bench script. One command per line:
//
//	touch <channel 0-10> on|off
//	remote <status byte>
//	telemetry <byte or text>...
//	cycle [count]
//
// Lines are split shell-style; '#' starts a comment. Telemetry tokens that
// parse as integers (-128..255, any base prefix) are single bytes, anything
// else is sent as text.
type Script struct {
	steps []scriptStep
}

func ParseScript(r io.Reader) (*Script, error) {
	s := &Script{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		toks, err := shlex.Split(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		if len(toks) == 0 {
			continue
		}
		step, err := parseStep(toks)
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		step.line = line
		s.steps = append(s.steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return s, nil
}

func parseStep(toks []string) (scriptStep, error) {
	args := toks[1:]
	switch strings.ToLower(toks[0]) {
	case "touch":
		if len(args) != 2 {
			return scriptStep{}, fmt.Errorf("touch wants <channel> on|off")
		}
		ch, err := strconv.Atoi(args[0])
		if err != nil || ch < 0 || ch >= NumLocal {
			return scriptStep{}, fmt.Errorf("touch channel %q not in 0-%d", args[0], NumLocal-1)
		}
		var touched bool
		switch strings.ToLower(args[1]) {
		case "on", "1", "true":
			touched = true
		case "off", "0", "false":
		default:
			return scriptStep{}, fmt.Errorf("touch state %q is not on/off", args[1])
		}
		return scriptStep{kind: stepTouch, channel: ch, touched: touched}, nil

	case "remote":
		if len(args) != 1 {
			return scriptStep{}, fmt.Errorf("remote wants one status byte")
		}
		v, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return scriptStep{}, fmt.Errorf("remote status %q: %w", args[0], err)
		}
		return scriptStep{kind: stepRemote, data: []byte{byte(v)}}, nil

	case "telemetry":
		if len(args) == 0 {
			return scriptStep{}, fmt.Errorf("telemetry wants at least one byte")
		}
		var data []byte
		for _, a := range args {
			if v, err := strconv.ParseInt(a, 0, 16); err == nil {
				if v < -128 || v > 255 {
					return scriptStep{}, fmt.Errorf("telemetry byte %d out of range", v)
				}
				data = append(data, byte(v))
				continue
			}
			data = append(data, a...)
		}
		return scriptStep{kind: stepTelemetry, data: data}, nil

	case "cycle":
		n := 1
		if len(args) > 1 {
			return scriptStep{}, fmt.Errorf("cycle takes at most one count")
		}
		if len(args) == 1 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
				return scriptStep{}, fmt.Errorf("cycle count %q must be positive", args[0])
			}
		}
		return scriptStep{kind: stepCycle, count: n}, nil
	}
	return scriptStep{}, fmt.Errorf("unknown command %q", toks[0])
}

// Play applies every step to the bench, cycling c where asked.
func (s *Script) Play(b *Bench, c *Controller) {
	for _, st := range s.steps {
		switch st.kind {
		case stepTouch:
			b.Touch(st.channel, st.touched)
		case stepRemote:
			b.Remote.Push(st.data...)
		case stepTelemetry:
			_, _ = b.Telemetry.Write(st.data)
		case stepCycle:
			logger.Debug("script: cycle", "line", st.line, "count", st.count)
			for i := 0; i < st.count; i++ {
				c.Cycle()
			}
		}
	}
}

// Len is the number of commands in the script.
func (s *Script) Len() int { return len(s.steps) }
