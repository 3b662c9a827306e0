package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

// fakeDevice records key and axis emissions
type fakeDevice struct {
	mu   sync.Mutex
	down map[int]bool
	axis []int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{down: make(map[int]bool)}
}

func (f *fakeDevice) EmitKey(code int, pressed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pressed {
		f.down[code] = true
	} else {
		delete(f.down, code)
	}
	return nil
}

func (f *fakeDevice) EmitAxis(code int, value int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.axis = append(f.axis, value)
	return nil
}

func (f *fakeDevice) Close() error { return nil }

func (f *fakeDevice) heldKeys() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []int
	for k := range f.down {
		keys = append(keys, k)
	}
	return keys
}

func (f *fakeDevice) lastAxis() (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.axis) == 0 {
		return 0, false
	}
	return f.axis[len(f.axis)-1], true
}

func (f *fakeDevice) axisWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.axis)
}

type fakeTargets struct {
	targets []device.Target
}

func (f *fakeTargets) List() ([]device.Target, error) { return f.targets, nil }
func (f *fakeTargets) Focus(id string) error { return nil }

func newTestSession() (*Session, *fakeDevice, *fakeDevice) {
	kb := newFakeDevice()
	pad := newFakeDevice()
	registry := device.NewRegistry(kb, pad, &fakeTargets{targets: []device.Target{
		{ID: "0x01", Name: "Speed Dreams"},
	}})
	engine := steering.NewEngine(kb, 10*time.Millisecond)
	return New(registry, engine), kb, pad
}

func mustParse(t *testing.T, raw string) *protocol.Command {
	t.Helper()
	cmd, err := protocol.ParseCommand([]byte(raw))
	if err != nil {
		t.Fatalf("ParseCommand(%q) error = %v", raw, err)
	}
	return cmd
}

func TestFirstConnectAdoptsKeyboardAD(t *testing.T) {
	s, _, _ := newTestSession()

	s.HandleConnect("c1")

	if s.Mode() != protocol.ModeKeyboardAD {
		t.Errorf("Mode() = %q, want KEYBOARD_AD", s.Mode())
	}
	if !s.Status().Connected {
		t.Error("Status().Connected = false after connect")
	}
}

func TestButtonPressAndRelease(t *testing.T) {
	s, kb, _ := newTestSession()

	s.HandleCommand(mustParse(t, `{"action":"ACCELERATE_W","state":"DOWN"}`))
	if held := kb.heldKeys(); len(held) != 1 || held[0] != device.KeyW {
		t.Errorf("held keys = %v, want [KeyW]", held)
	}

	// A second DOWN is idempotent.
	s.HandleCommand(mustParse(t, `{"action":"ACCELERATE_W","state":"DOWN"}`))
	if s.Status().HeldKeys != 1 {
		t.Errorf("HeldKeys = %d, want 1", s.Status().HeldKeys)
	}

	s.HandleCommand(mustParse(t, `{"action":"ACCELERATE_W","state":"UP"}`))
	if len(kb.heldKeys()) != 0 {
		t.Errorf("held keys = %v after UP, want none", kb.heldKeys())
	}
}

func TestUnknownActionDropped(t *testing.T) {
	s, kb, _ := newTestSession()

	s.HandleCommand(mustParse(t, `{"action":"EJECTOR_SEAT","state":"DOWN"}`))

	if len(kb.heldKeys()) != 0 {
		t.Errorf("unknown action emitted keys: %v", kb.heldKeys())
	}
}

func TestAxisWriteAndThreshold(t *testing.T) {
	s, _, pad := newTestSession()
	s.SwitchMode(protocol.ModeGamepad)

	s.HandleCommand(mustParse(t, `{"action":"STEER","value":0.5}`))
	axis, ok := pad.lastAxis()
	if !ok {
		t.Fatal("no axis write for 0.5")
	}
	value := 0.5
	if want := int32(value * device.AxisMax); axis != want {
		t.Errorf("axis = %d, want %d", axis, want)
	}

	// A wiggle inside the change threshold is skipped.
	writes := pad.axisWrites()
	s.HandleCommand(mustParse(t, `{"action":"STEER","value":0.501}`))
	if pad.axisWrites() != writes {
		t.Error("sub-threshold axis change was written")
	}

	// A real movement goes through.
	s.HandleCommand(mustParse(t, `{"action":"STEER","value":-0.5}`))
	axis, _ = pad.lastAxis()
	if axis >= 0 {
		t.Errorf("axis = %d, want negative after steering left", axis)
	}
}

func TestModeRoundTripLeavesNoHeldKey(t *testing.T) {
	s, kb, _ := newTestSession()
	s.SwitchMode(protocol.ModeKeyboardAD)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.engine.Run(ctx)

	s.HandleCommand(mustParse(t, `{"action":"STEER_PWM","value":1.0}`))
	time.Sleep(50 * time.Millisecond)
	if len(kb.heldKeys()) != 1 {
		t.Fatalf("held keys = %v, want one steering key at full lock", kb.heldKeys())
	}

	s.HandleCommand(mustParse(t, `{"action":"STEER_MODE","mode":"KEYBOARD_ARROWS"}`))
	s.HandleCommand(mustParse(t, `{"action":"STEER_MODE","mode":"KEYBOARD_AD"}`))
	s.HandleCommand(mustParse(t, `{"action":"STEER_PWM","value":0.0}`))
	time.Sleep(50 * time.Millisecond)

	if held := kb.heldKeys(); len(held) != 0 {
		t.Errorf("held keys = %v after mode round trip, want none", held)
	}
}

func TestDisconnectCentersAndReleases(t *testing.T) {
	s, kb, pad := newTestSession()
	s.HandleConnect("c1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.engine.Run(ctx)

	s.HandleCommand(mustParse(t, `{"action":"STEER_PWM","value":1.0}`))
	s.HandleCommand(mustParse(t, `{"action":"HANDBRAKE","state":"DOWN"}`))
	time.Sleep(50 * time.Millisecond)

	s.HandleDisconnect("c1")

	if held := kb.heldKeys(); len(held) != 0 {
		t.Errorf("held keys = %v after disconnect, want none", held)
	}
	axis, ok := pad.lastAxis()
	if !ok || axis != 0 {
		t.Errorf("axis = %d after disconnect, want 0", axis)
	}
	if s.Status().Connected {
		t.Error("Status().Connected = true after disconnect")
	}
}

func TestRetargetReleasesHeldInput(t *testing.T) {
	s, kb, _ := newTestSession()

	s.HandleCommand(mustParse(t, `{"action":"BRAKE_S","state":"DOWN"}`))
	if len(kb.heldKeys()) != 1 {
		t.Fatal("setup: brake key not held")
	}

	if err := s.Retarget("0x01"); err != nil {
		t.Fatalf("Retarget() error = %v", err)
	}

	if held := kb.heldKeys(); len(held) != 0 {
		t.Errorf("held keys = %v after retarget, want none", held)
	}
	if s.Target() != "0x01" {
		t.Errorf("Target() = %q, want 0x01", s.Target())
	}
}

func TestShutdownCleansUpOnce(t *testing.T) {
	s, kb, pad := newTestSession()

	s.HandleCommand(mustParse(t, `{"action":"ACCELERATE_W","state":"DOWN"}`))
	s.Shutdown()

	if len(kb.heldKeys()) != 0 {
		t.Error("keys still held after Shutdown")
	}
	axis, ok := pad.lastAxis()
	if !ok || axis != 0 {
		t.Errorf("axis = %d after Shutdown, want 0", axis)
	}

	// Second shutdown must not emit again.
	writes := pad.axisWrites()
	s.Shutdown()
	if pad.axisWrites() != writes {
		t.Error("Shutdown cleanup ran twice")
	}
}

func TestStatusCallback(t *testing.T) {
	s, _, _ := newTestSession()

	var got []Status
	s.OnStatus(func(st Status) { got = append(got, st) })

	s.SwitchMode(protocol.ModeGamepad)

	if len(got) == 0 {
		t.Fatal("status callback never invoked")
	}
	if got[len(got)-1].Mode != string(protocol.ModeGamepad) {
		t.Errorf("status mode = %q, want GAMEPAD", got[len(got)-1].Mode)
	}
}
