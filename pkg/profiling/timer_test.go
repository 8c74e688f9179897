package profiling

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledProfilerIsSilent(t *testing.T) {
	p := &Profiler{}
	p.Start("session.open").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	assert.Empty(t, buf.String())
}

func TestSpansNestInCallOrder(t *testing.T) {
	p := &Profiler{}
	p.Enable()

	open := p.Start("session.open")
	p.Start("session.load").Stop()
	open.Stop()
	p.Start("broadcast").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "- session.open"))
	assert.True(t, strings.HasPrefix(lines[2], "  - session.load"))
	assert.True(t, strings.HasPrefix(lines[3], "- broadcast"))
}

func TestStoppingOuterSpanClosesInner(t *testing.T) {
	p := &Profiler{}
	p.Enable()

	outer := p.Start("watch")
	p.Start("never stopped")
	outer.Stop()
	p.Start("after").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	assert.Contains(t, buf.String(), "\n- after")
}
