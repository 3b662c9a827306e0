package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
	"github.com/uzairdeveloper223/DriveDroid/pkg/session"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

type fakeDevice struct{}

func (fakeDevice) EmitKey(code int, pressed bool) error { return nil }
func (fakeDevice) EmitAxis(code int, value int32) error { return nil }
func (fakeDevice) Close() error { return nil }

type fakeTargets struct{}

func (fakeTargets) List() ([]device.Target, error) {
	return []device.Target{
		{ID: "0x01", Name: "Speed Dreams"},
		{ID: "0x02", Name: "Terminal"},
	}, nil
}
func (fakeTargets) Focus(id string) error { return nil }

func newTestSession() *session.Session {
	registry := device.NewRegistry(fakeDevice{}, fakeDevice{}, fakeTargets{})
	engine := steering.NewEngine(fakeDevice{}, 10*time.Millisecond)
	return session.New(registry, engine)
}

func runConsole(t *testing.T, sess *session.Session, input string) (string, bool) {
	t.Helper()
	var out bytes.Buffer
	shutdown := false
	c := New(sess, strings.NewReader(input), &out, func() { shutdown = true })

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("console did not finish")
	}
	return out.String(), shutdown
}

func TestQuitCommand(t *testing.T) {
	_, shutdown := runConsole(t, newTestSession(), "q\n")
	if !shutdown {
		t.Error("quit command should invoke the shutdown callback")
	}
}

func TestStatusCommand(t *testing.T) {
	out, _ := runConsole(t, newTestSession(), "s\nq\n")

	if !strings.Contains(out, "Connected: false") {
		t.Errorf("status output missing connection state: %q", out)
	}
	if !strings.Contains(out, "focused window") {
		t.Errorf("status output should name the default target: %q", out)
	}
}

func TestSelectTarget(t *testing.T) {
	sess := newTestSession()

	out, _ := runConsole(t, sess, "w\n1\nq\n")

	if !strings.Contains(out, "Speed Dreams") {
		t.Errorf("window list missing candidates: %q", out)
	}
	if sess.Target() != "0x02" {
		t.Errorf("Target() = %q, want 0x02", sess.Target())
	}
}

func TestSelectOutOfRangeDisablesTargeting(t *testing.T) {
	sess := newTestSession()
	if err := sess.Retarget("0x01"); err != nil {
		t.Fatalf("setup retarget: %v", err)
	}

	runConsole(t, sess, "w\n2\nq\n")

	if sess.Target() != "" {
		t.Errorf("Target() = %q, want targeting disabled", sess.Target())
	}
}

func TestInvalidSelectionKeepsTarget(t *testing.T) {
	sess := newTestSession()
	if err := sess.Retarget("0x01"); err != nil {
		t.Fatalf("setup retarget: %v", err)
	}

	out, _ := runConsole(t, sess, "w\nbanana\nq\n")

	if !strings.Contains(out, "no change") {
		t.Errorf("expected 'no change' notice, got %q", out)
	}
	if sess.Target() != "0x01" {
		t.Errorf("Target() = %q, want previous 0x01", sess.Target())
	}
}

func TestInputEOFEndsLoop(t *testing.T) {
	_, shutdown := runConsole(t, newTestSession(), "s\n")
	if shutdown {
		t.Error("EOF should end the loop without invoking shutdown")
	}
}
