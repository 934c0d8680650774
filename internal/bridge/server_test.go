package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/event"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/xr"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, want string, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read %s: %v", want, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Type != want {
		t.Fatalf("message type = %q, want %q (%s)", env.Type, want, data)
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			t.Fatalf("decode %s: %v", want, err)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func frame(dtMS float64, head mgl64.Vec3) FrameMessage {
	return FrameMessage{
		Type: TypeFrame,
		DtMS: dtMS,
		Rig:  Pose{Rotation: [4]float64{0, 0, 0, 1}},
		Head: Pose{Position: head, Rotation: [4]float64{0, 0, 0, 1}},
	}
}

func TestHello(t *testing.T) {
	_, ts := newTestServer(t, config.Default())
	conn := dial(t, ts)

	var hello HelloMessage
	readMessage(t, conn, TypeHello, &hello)
	if _, err := uuid.Parse(hello.Session); err != nil {
		t.Errorf("session %q is not a uuid: %v", hello.Session, err)
	}
	if hello.TurnMode != "snap" {
		t.Errorf("turn mode = %q, want snap", hello.TurnMode)
	}
}

func TestFrameProducesMovementDelta(t *testing.T) {
	cfg := config.Default()
	cfg.Turn.Mode = "none"
	_, ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	readMessage(t, conn, TypeHello, nil)

	send(t, conn, AxisMessage{Type: TypeAxis, Hand: HandMove, Axes: []float64{0, 0, 0, -1}})
	send(t, conn, frame(16, mgl64.Vec3{0, 1.6, 0}))

	var delta DeltaMessage
	readMessage(t, conn, TypeDelta, &delta)
	got := mgl64.Vec3(delta.Position)
	if got.Sub(mgl64.Vec3{0, 0, -0.032}).Len() > 1e-9 {
		t.Errorf("delta position = %v, want (0,0,-0.032)", got)
	}
	if delta.Yaw != 0 {
		t.Errorf("delta yaw = %v, want 0", delta.Yaw)
	}
}

func TestSnapFrame(t *testing.T) {
	bus := event.NewBus()
	got := make(chan event.SnapTurnEvent, 1)
	bus.Subscribe(event.EventSnapTurn, func(raw any) {
		got <- raw.(event.SnapTurnEvent)
	})

	_, ts := newTestServer(t, config.Default(), WithBus(bus))
	conn := dial(t, ts)
	var hello HelloMessage
	readMessage(t, conn, TypeHello, &hello)

	head := mgl64.Vec3{0.2, 1.6, -0.1}
	send(t, conn, AxisMessage{Type: TypeAxis, Hand: HandTurn, Axes: []float64{0, 0, 1, 0}})
	send(t, conn, frame(16, head))

	var delta DeltaMessage
	readMessage(t, conn, TypeDelta, &delta)
	if math.Abs(delta.Yaw-mgl64.DegToRad(-45)) > 1e-9 {
		t.Errorf("yaw = %v, want -45deg", delta.Yaw)
	}
	after := mgl64.Vec3(delta.Position).Add(rig.YawQuat(delta.Yaw).Rotate(head))
	if after.Sub(head).Len() > 1e-9 {
		t.Errorf("head moved from %v to %v", head, after)
	}

	var snap SnapMessage
	readMessage(t, conn, TypeSnap, &snap)
	if snap.Direction != "right" {
		t.Errorf("direction = %q, want right", snap.Direction)
	}
	if snap.IndicatorMS != 200 || snap.Haptic.DurationMS != 50 || snap.Haptic.Intensity != 0.5 {
		t.Errorf("feedback = %+v", snap)
	}

	select {
	case evt := <-got:
		if evt.Source != hello.Session {
			t.Errorf("event source = %q, want %q", evt.Source, hello.Session)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snap event on the bus")
	}
}

func TestMalformedMessagesKeepSessionOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Turn.Mode = "none"
	_, ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	readMessage(t, conn, TypeHello, nil)

	bad := []string{
		`not json`,
		`{"type":"bogus"}`,
		`{"type":"axis","hand":"left","axes":[0,1]}`,
	}
	for _, msg := range bad {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var e ErrorMessage
		readMessage(t, conn, TypeError, &e)
		if e.Message == "" {
			t.Errorf("empty error message for %s", msg)
		}
	}

	send(t, conn, AxisMessage{Type: TypeAxis, Hand: HandMove, Axes: []float64{0, 0, 1, 0}})
	send(t, conn, frame(16, mgl64.Vec3{}))
	readMessage(t, conn, TypeDelta, nil)
}

func TestSessionRemovedOnClose(t *testing.T) {
	s, ts := newTestServer(t, config.Default())
	conn := dial(t, ts)
	readMessage(t, conn, TypeHello, nil)

	if n := s.SessionCount(); n != 1 {
		t.Fatalf("SessionCount = %d, want 1", n)
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Bridge.Port = 0
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartWaitsForOpenSessions(t *testing.T) {
	cfg := config.Default()
	cfg.Bridge.Port = 0
	bus := event.NewBus()
	s, err := NewServer(cfg, WithBus(bus))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	url := "ws://" + s.Addr().String() + "/xr"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()
	readMessage(t, conn, TypeHello, nil)
	send(t, conn, AxisMessage{Type: TypeAxis, Hand: HandMove, Axes: []float64{0, 0, 0, -1}})
	send(t, conn, frame(16, mgl64.Vec3{}))
	readMessage(t, conn, TypeDelta, nil)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	// Every session has finished by the time Start returns, so waiting on
	// the bus cannot overlap with a publish.
	if n := s.SessionCount(); n != 0 {
		t.Fatalf("SessionCount after Start returned = %d, want 0", n)
	}
	bus.Wait()
}

func TestPoseTransform(t *testing.T) {
	tr, err := Pose{Position: [3]float64{1, 2, 3}}.Transform()
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if tr.Rotation != mgl64.QuatIdent() {
		t.Errorf("zero rotation = %v, want identity", tr.Rotation)
	}

	tr, err = Pose{Rotation: [4]float64{0, 0, 0, 2}}.Transform()
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if math.Abs(tr.Rotation.Dot(mgl64.QuatIdent())-1) > 1e-12 {
		t.Errorf("rotation not normalized: %v", tr.Rotation)
	}

	_, err = Pose{Position: [3]float64{math.NaN(), 0, 0}}.Transform()
	if !errors.Is(err, ErrBadPose) {
		t.Errorf("NaN position: err = %v, want ErrBadPose", err)
	}
}

func TestFrameDt(t *testing.T) {
	cases := []struct {
		dtMS float64
		want time.Duration
	}{
		{16, 16 * time.Millisecond},
		{0, 0},
		{-5, 0},
		{math.Inf(1), 0},
	}
	for _, c := range cases {
		if got := (FrameMessage{DtMS: c.dtMS}).dt(); got != c.want {
			t.Errorf("dt(%v) = %v, want %v", c.dtMS, got, c.want)
		}
	}
}
