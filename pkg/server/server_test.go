package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
	"github.com/uzairdeveloper223/DriveDroid/pkg/session"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

// fakeDevice records key emissions
type fakeDevice struct {
	mu   sync.Mutex
	down map[int]bool
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

func (f *fakeDevice) EmitAxis(code int, value int32) error { return nil }
func (f *fakeDevice) Close() error { return nil }

func (f *fakeDevice) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.down)
}

type fakeTargets struct{}

func (fakeTargets) List() ([]device.Target, error) {
	return []device.Target{{ID: "0x01", Name: "Speed Dreams"}}, nil
}
func (fakeTargets) Focus(id string) error { return nil }

func newTestServer() (*Server, *session.Session, *fakeDevice) {
	kb := newFakeDevice()
	registry := device.NewRegistry(kb, newFakeDevice(), fakeTargets{})
	engine := steering.NewEngine(kb, 10*time.Millisecond)
	sess := session.New(registry, engine)
	return New(sess), sess, kb
}

func TestNewServer(t *testing.T) {
	s, _, _ := newTestServer()

	if s.ControllerCount() != 0 {
		t.Error("ControllerCount should be 0 initially")
	}

	stats := s.GetStats()
	if stats.MessagesReceived != 0 || stats.MessagesDropped != 0 {
		t.Error("stats should be zero initially")
	}
}

func TestControlChannelFlow(t *testing.T) {
	s, sess, kb := newTestServer()

	go s.Listen("18090")
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/control", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	if s.ControllerCount() != 1 {
		t.Errorf("ControllerCount = %d, want 1", s.ControllerCount())
	}
	if sess.Mode() != protocol.ModeKeyboardAD {
		t.Errorf("Mode = %q, want KEYBOARD_AD adopted on connect", sess.Mode())
	}

	// Button press lands on the virtual keyboard.
	ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"ACCELERATE_W","state":"DOWN"}`))
	time.Sleep(50 * time.Millisecond)
	if kb.heldCount() != 1 {
		t.Errorf("held keys = %d after DOWN, want 1", kb.heldCount())
	}

	// Malformed message is dropped, channel keeps running.
	ws.WriteMessage(websocket.TextMessage, []byte(`{broken`))
	time.Sleep(50 * time.Millisecond)
	if s.GetStats().MessagesDropped < 1 {
		t.Error("malformed message was not counted as dropped")
	}

	ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"BRAKE_S","state":"DOWN"}`))
	time.Sleep(50 * time.Millisecond)
	if kb.heldCount() != 2 {
		t.Errorf("held keys = %d, want 2 (channel should survive bad input)", kb.heldCount())
	}

	// Disconnect releases everything within a tick.
	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if s.ControllerCount() != 0 {
		t.Errorf("ControllerCount = %d after close, want 0", s.ControllerCount())
	}
	if kb.heldCount() != 0 {
		t.Errorf("held keys = %d after disconnect, want 0", kb.heldCount())
	}
	if sess.Status().Connected {
		t.Error("session still connected after channel close")
	}
}

func TestStatusBroadcast(t *testing.T) {
	s, sess, _ := newTestServer()

	go s.Listen("18091")
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	sess.SwitchMode(protocol.ModeGamepad)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("status read error: %v", err)
	}

	var st session.Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("status unmarshal error: %v", err)
	}
	if st.Mode != string(protocol.ModeGamepad) {
		t.Errorf("broadcast mode = %q, want GAMEPAD", st.Mode)
	}
}

func TestAPIStatus(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/api/status", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "session") {
		t.Error("Response should contain 'session' field")
	}
}

func TestAPITargets(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest("GET", "/api/targets", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Speed Dreams") {
		t.Error("Response should list the candidate windows")
	}
}
