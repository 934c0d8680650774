package scene

import (
	"math"
	"testing"
	"time"

	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
)

func newScene(t *testing.T, mode string) *Scene {
	t.Helper()
	cfg := config.Default()
	cfg.Turn.Mode = mode
	r := rig.New(mgl64.Vec3{}, 0, rig.Transform{Position: mgl64.Vec3{0.3, 1.6, -0.2}})
	ctrl, err := controller.New(cfg, r)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	return New(ctrl, r)
}

func TestKeysAxes(t *testing.T) {
	tests := []struct {
		name     string
		keys     Keys
		wantMove []float64
		wantTurn []float64
	}{
		{"idle", Keys{}, []float64{0, 0}, []float64{0, 0}},
		{"forward", Keys{Forward: true}, []float64{0, -1}, []float64{0, 0}},
		{"back right", Keys{Back: true, Right: true}, []float64{1, 1}, []float64{0, 0}},
		{"opposing keys cancel", Keys{Left: true, Right: true}, []float64{0, 0}, []float64{0, 0}},
		{"turn left", Keys{TurnLeft: true}, []float64{0, 0}, []float64{-1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			move, trn := tt.keys.Axes()
			if !equal(move, tt.wantMove) || !equal(trn, tt.wantTurn) {
				t.Errorf("Axes() = %v, %v; want %v, %v", move, trn, tt.wantMove, tt.wantTurn)
			}
		})
	}
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLook(t *testing.T) {
	if got := (Keys{LookLeft: true}).Look(); got != 1 {
		t.Errorf("look left = %v, want 1", got)
	}
	if got := (Keys{LookRight: true}).Look(); got != -1 {
		t.Errorf("look right = %v, want -1", got)
	}
}

func TestStepMovesRig(t *testing.T) {
	s := newScene(t, "none")
	move, trn := Keys{Forward: true}.Axes()

	s.Step(500*time.Millisecond, move, trn, 0)

	pos := s.Rig().RigTransform().Position
	if pos.Sub(mgl64.Vec3{0, 0, -1}).Len() > 1e-9 {
		t.Fatalf("rig position = %v, want (0,0,-1)", pos)
	}
}

func TestStepSnapSetsIndicator(t *testing.T) {
	s := newScene(t, "snap")
	before := s.Rig().HeadWorld().Position
	move, trn := Keys{TurnLeft: true}.Axes()

	d := s.Step(16*time.Millisecond, move, trn, 0)
	if d.Snap == nil {
		t.Fatal("expected a snap")
	}
	if after := s.Rig().HeadWorld().Position; after.Sub(before).Len() > 1e-9 {
		t.Errorf("head moved from %v to %v", before, after)
	}

	ind := s.Indicator()
	if ind.Direction != turn.Left {
		t.Errorf("indicator direction = %v, want left", ind.Direction)
	}
	if got := ind.Remaining(d.Snap.At); got != 1 {
		t.Errorf("Remaining at snap = %v, want 1", got)
	}
	if got := ind.Remaining(d.Snap.At.Add(100 * time.Millisecond)); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Remaining halfway = %v, want 0.5", got)
	}
	if got := ind.Remaining(ind.Until); got != 0 {
		t.Errorf("Remaining at expiry = %v, want 0", got)
	}
}

func TestStepLookRotatesHead(t *testing.T) {
	s := newScene(t, "none")

	s.Step(time.Second, nil, nil, 1)

	yaw := rig.Yaw(s.Rig().HeadTransform().Rotation)
	if math.Abs(yaw-LookSpeed) > 1e-9 {
		t.Errorf("head yaw = %v, want %v", yaw, LookSpeed)
	}
}

func TestViewProject(t *testing.T) {
	v := View{CenterX: 400, CenterY: 300, Scale: 60, Origin: mgl64.Vec3{1, 0, 1}}

	x, y := v.Project(mgl64.Vec3{2, 5, 0})
	if x != 460 || y != 240 {
		t.Errorf("Project = (%v, %v), want (460, 240)", x, y)
	}
}

func TestHeading(t *testing.T) {
	dx, dy := Heading(mgl64.QuatIdent())
	if dx != 0 || dy != -1 {
		t.Errorf("identity heading = (%v, %v), want (0, -1)", dx, dy)
	}

	// A quarter turn left faces -X, the left of the screen.
	dx, dy = Heading(rig.YawQuat(math.Pi / 2))
	if math.Abs(float64(dx)+1) > 1e-6 || math.Abs(float64(dy)) > 1e-6 {
		t.Errorf("left heading = (%v, %v), want (-1, 0)", dx, dy)
	}
}
