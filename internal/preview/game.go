// Package preview is a desktop window for trying the controller with a
// gamepad or keyboard, seen from above.
package preview

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"time"

	"github.com/Versifine/locomotion/internal/preview/scene"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const (
	ScreenWidth  = 800
	ScreenHeight = 600

	pixelsPerMetre = 60.0
	gridStep       = 1.0
)

var (
	colorBackground = color.RGBA{24, 26, 32, 255}
	colorGrid       = color.RGBA{48, 52, 62, 255}
	colorRig        = color.RGBA{120, 200, 120, 255}
	colorHead       = color.RGBA{240, 220, 120, 255}
	colorSnapLeft   = color.RGBA{230, 70, 70, 255}
	colorSnapRight  = color.RGBA{70, 120, 230, 255}
)

type Game struct {
	scene  *scene.Scene
	log    *slog.Logger
	pad    ebiten.GamepadID
	hasPad bool
	padIDs []ebiten.GamepadID
}

func NewGame(s *scene.Scene, log *slog.Logger) *Game {
	if log == nil {
		log = slog.Default()
	}
	return &Game{scene: s, log: log}
}

func (g *Game) Update() error {
	g.pollGamepad()

	keys := readKeys()
	move, turnAxes := keys.Axes()
	if g.hasPad {
		move, turnAxes = g.gamepadAxes()
	}

	tps := ebiten.TPS()
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	dt := time.Second / time.Duration(tps)
	d := g.scene.Step(dt, move, turnAxes, keys.Look())
	if d.Snap != nil {
		g.vibrate(d.Snap.Haptic)
	}
	return nil
}

func (g *Game) pollGamepad() {
	g.padIDs = ebiten.AppendGamepadIDs(g.padIDs[:0])
	if len(g.padIDs) == 0 {
		if g.hasPad {
			g.log.Info("Gamepad disconnected, using keyboard")
		}
		g.hasPad = false
		return
	}
	if !g.hasPad || g.pad != g.padIDs[0] {
		g.log.Info("Gamepad connected", "id", int(g.padIDs[0]), "name", ebiten.GamepadName(g.padIDs[0]))
	}
	g.pad = g.padIDs[0]
	g.hasPad = true
}

// gamepadAxes reads the left stick for movement and the right stick for
// turning. Pads without a standard mapping report raw axes in the usual
// left-then-right order.
func (g *Game) gamepadAxes() (move, turnAxes []float64) {
	if ebiten.IsStandardGamepadLayoutAvailable(g.pad) {
		move = []float64{
			ebiten.StandardGamepadAxisValue(g.pad, ebiten.StandardGamepadAxisLeftStickHorizontal),
			ebiten.StandardGamepadAxisValue(g.pad, ebiten.StandardGamepadAxisLeftStickVertical),
		}
		turnAxes = []float64{
			ebiten.StandardGamepadAxisValue(g.pad, ebiten.StandardGamepadAxisRightStickHorizontal),
			ebiten.StandardGamepadAxisValue(g.pad, ebiten.StandardGamepadAxisRightStickVertical),
		}
		return move, turnAxes
	}

	raw := make([]float64, ebiten.GamepadAxisCount(g.pad))
	for i := range raw {
		raw[i] = ebiten.GamepadAxisValue(g.pad, ebiten.GamepadAxisType(i))
	}
	if len(raw) >= 4 {
		return raw[0:2], raw[2:4]
	}
	return raw, nil
}

func (g *Game) vibrate(h turn.Haptic) {
	if !g.hasPad || h.Intensity <= 0 || h.Duration <= 0 {
		return
	}
	ebiten.VibrateGamepad(g.pad, &ebiten.VibrateGamepadOptions{
		Duration:        h.Duration,
		StrongMagnitude: h.Intensity,
		WeakMagnitude:   h.Intensity,
	})
}

func readKeys() scene.Keys {
	return scene.Keys{
		Forward:   ebiten.IsKeyPressed(ebiten.KeyW),
		Back:      ebiten.IsKeyPressed(ebiten.KeyS),
		Left:      ebiten.IsKeyPressed(ebiten.KeyA),
		Right:     ebiten.IsKeyPressed(ebiten.KeyD),
		TurnLeft:  ebiten.IsKeyPressed(ebiten.KeyJ) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		TurnRight: ebiten.IsKeyPressed(ebiten.KeyL) || ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		LookLeft:  ebiten.IsKeyPressed(ebiten.KeyQ),
		LookRight: ebiten.IsKeyPressed(ebiten.KeyE),
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	r := g.scene.Rig()
	rigT := r.RigTransform()
	head := r.HeadWorld()
	view := scene.View{
		CenterX: ScreenWidth / 2,
		CenterY: ScreenHeight / 2,
		Scale:   pixelsPerMetre,
		Origin:  rigT.Position,
	}

	drawGrid(screen, view)

	// Rig origin and heading.
	rx, ry := view.Project(rigT.Position)
	dx, dy := scene.Heading(rigT.Rotation)
	vector.StrokeCircle(screen, rx, ry, 0.5*pixelsPerMetre, 2, colorRig, true)
	vector.StrokeLine(screen, rx, ry, rx+dx*0.5*pixelsPerMetre, ry+dy*0.5*pixelsPerMetre, 2, colorRig, true)

	// Head position and gaze.
	hx, hy := view.Project(head.Position)
	gx, gy := scene.Heading(head.Rotation)
	vector.DrawFilledCircle(screen, hx, hy, 6, colorHead, true)
	vector.StrokeLine(screen, hx, hy, hx+gx*24, hy+gy*24, 2, colorHead, true)

	ind := g.scene.Indicator()
	if left := ind.Remaining(time.Now()); left > 0 {
		clr := colorSnapRight
		if ind.Direction == turn.Left {
			clr = colorSnapLeft
		}
		vector.StrokeCircle(screen, hx, hy, 22, 4, fade(clr, left), true)
	}

	ebitenutil.DebugPrint(screen, g.status(rigT.Position, rigT.Rotation, head.Position))
}

func (g *Game) status(pos mgl64.Vec3, rot mgl64.Quat, head mgl64.Vec3) string {
	input := "keyboard (WASD move, J/L turn, Q/E look)"
	if g.hasPad {
		input = fmt.Sprintf("gamepad %d", int(g.pad))
	}
	return fmt.Sprintf("turn: %s  input: %s\nrig  x=%.2f z=%.2f yaw=%.1f\nhead x=%.2f y=%.2f z=%.2f\nTPS %.0f",
		g.scene.TurnMode(), input,
		pos.X(), pos.Z(), mgl64.RadToDeg(rig.Yaw(rot)),
		head.X(), head.Y(), head.Z(),
		ebiten.ActualTPS(),
	)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

func drawGrid(screen *ebiten.Image, view scene.View) {
	halfW := ScreenWidth / 2 / view.Scale
	halfH := ScreenHeight / 2 / view.Scale
	ox, oz := view.Origin.X(), view.Origin.Z()

	for x := math.Floor((ox-halfW)/gridStep) * gridStep; x <= ox+halfW; x += gridStep {
		sx, _ := view.Project(mgl64.Vec3{x, 0, oz})
		vector.StrokeLine(screen, sx, 0, sx, ScreenHeight, 1, colorGrid, false)
	}
	for z := math.Floor((oz-halfH)/gridStep) * gridStep; z <= oz+halfH; z += gridStep {
		_, sy := view.Project(mgl64.Vec3{ox, 0, z})
		vector.StrokeLine(screen, 0, sy, ScreenWidth, sy, 1, colorGrid, false)
	}
}

// fade scales a colour's alpha by f, keeping it premultiplied.
func fade(c color.RGBA, f float64) color.RGBA {
	scale := func(v uint8) uint8 { return uint8(math.Round(float64(v) * f)) }
	return color.RGBA{scale(c.R), scale(c.G), scale(c.B), scale(c.A)}
}
