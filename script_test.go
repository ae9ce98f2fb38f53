package main

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

const benchScript = `
# press a pad, enable bend from the back key, tilt, release
touch 0 on
remote 0x40
cycle
telemetry '$TA' 0 10 0 -20 0 5
cycle 2
touch 0 off
remote 0b0000_0001
cycle
`

func TestParseScript(t *testing.T) {
	c := qt.New(t)
	s, err := ParseScript(strings.NewReader(benchScript))
	c.Assert(err, qt.IsNil)
	c.Assert(s.Len(), qt.Equals, 8)
	c.Assert(s.steps[3].data, qt.DeepEquals, []byte{'$', 'T', 'A', 0, 10, 0, 0xEC, 0, 5})
	c.Assert(s.steps[4].count, qt.Equals, 2)
	c.Assert(s.steps[4].line, qt.Equals, 7)
}

func TestScriptPlay(t *testing.T) {
	c := qt.New(t)
	s, err := ParseScript(strings.NewReader(benchScript))
	c.Assert(err, qt.IsNil)

	r := newRig()
	s.Play(r.bench, r.ctl)
	c.Assert(r.rec.events, qt.DeepEquals, []event{
		noteOn(r.keys.Pitch(0)),
		bend(10 << BendShift),
		noteOff(r.keys.Pitch(0)),
		noteOn(r.keys.Pitch(NumLocal)),
	})
	c.Assert(r.bench.Remote.Requests, qt.Equals, 4)
	c.Assert(r.ctl.Bend().Enabled, qt.IsFalse)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		script string
		err    string
	}{
		{"strum 3", `script line 1: unknown command "strum"`},
		{"\ntouch 11 on", `script line 2: touch channel "11" not in 0-10`},
		{"touch 1 maybe", `script line 1: touch state "maybe" is not on/off`},
		{"touch 1", `script line 1: touch wants <channel> on\|off`},
		{"remote 0x100", `script line 1: remote status "0x100": .*`},
		{"telemetry", `script line 1: telemetry wants at least one byte`},
		{"telemetry 300", `script line 1: telemetry byte 300 out of range`},
		{"cycle 0", `script line 1: cycle count "0" must be positive`},
		{"cycle 1 2", `script line 1: cycle takes at most one count`},
		{"telemetry 'open", `script line 1: .*`},
	}
	for _, test := range tests {
		t.Run(test.script, func(t *testing.T) {
			c := qt.New(t)
			_, err := ParseScript(strings.NewReader(test.script))
			c.Assert(err, qt.ErrorMatches, test.err)
		})
	}
}
