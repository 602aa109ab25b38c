package indicator

import (
	"strings"
	"testing"
)

type pipeBuffer struct {
	strings.Builder
	closed bool
}

func (p *pipeBuffer) Close() error {
	p.closed = true
	return nil
}

func TestNeopixelIdleFollowsConnection(t *testing.T) {
	var buf pipeBuffer
	n := newNeopixel(&buf)

	n.Idle()
	if buf.String() != neoConnectionLost {
		t.Errorf("Idle before connect wrote %q", buf.String())
	}

	buf.Reset()
	n.Connected()
	n.Idle()
	if buf.String() != neoNormalIdle+neoNormalIdle {
		t.Errorf("Idle after connect wrote %q", buf.String())
	}

	buf.Reset()
	n.Processing()
	n.Success()
	n.Failure()
	if want := neoProcessing + neoSuccess + neoFailure; buf.String() != want {
		t.Errorf("Got %q, want %q", buf.String(), want)
	}

	if err := n.Release(); err != nil || !buf.closed {
		t.Errorf("Release: %v closed=%v", err, buf.closed)
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) Idle()           { r.calls = append(r.calls, "idle") }
func (r *recorder) Processing()     { r.calls = append(r.calls, "processing") }
func (r *recorder) Success()        { r.calls = append(r.calls, "success") }
func (r *recorder) Failure()        { r.calls = append(r.calls, "failure") }
func (r *recorder) ConnectionLost() { r.calls = append(r.calls, "lost") }
func (r *recorder) Connected()      { r.calls = append(r.calls, "connected") }
func (r *recorder) Shutdown()       { r.calls = append(r.calls, "shutdown") }
func (r *recorder) Release() error  { return nil }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := NewMulti(a, b)

	m.Processing()
	m.Success()
	m.Shutdown()

	for _, r := range []*recorder{a, b} {
		if got := strings.Join(r.calls, ","); got != "processing,success,shutdown" {
			t.Errorf("Calls %q", got)
		}
	}
}

func TestNewWithoutPinsIsNoop(t *testing.T) {
	ind, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := ind.(*Noop); !ok {
		t.Errorf("Expected *Noop, got %T", ind)
	}
}
