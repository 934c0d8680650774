package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/event"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/term"
)

const (
	defaultTickInterval = 16 * time.Millisecond
	defaultStickPulse   = 180 * time.Millisecond
	headYawStep         = 5.0
	headPitchStep       = 5.0
)

// Driver is the part of the controller the console needs.
type Driver interface {
	OnMoveInput(axes []float64)
	OnTurnInput(axes []float64)
	Tick(dt time.Duration) controller.Delta
	LastSnap() (turn.SnapEvent, bool)
}

// stick is a virtual thumbstick whose components fall back to zero after a
// short pulse, like a key that was tapped rather than held.
type stick struct {
	x, y           float64
	xUntil, yUntil time.Time
}

func (s *stick) pulseX(v float64, now time.Time, d time.Duration) {
	s.x = v
	s.xUntil = now.Add(d)
}

func (s *stick) pulseY(v float64, now time.Time, d time.Duration) {
	s.y = v
	s.yUntil = now.Add(d)
}

func (s *stick) decay(now time.Time) {
	if !s.xUntil.IsZero() && !now.Before(s.xUntil) {
		s.x = 0
		s.xUntil = time.Time{}
	}
	if !s.yUntil.IsZero() && !now.Before(s.yUntil) {
		s.y = 0
		s.yUntil = time.Time{}
	}
}

// axes lays the stick out the way a Touch controller reports it.
func (s *stick) axes() []float64 {
	return []float64{0, 0, s.x, s.y}
}

type Console struct {
	driver       Driver
	rig          *rig.Rig
	out          io.Writer
	tickInterval time.Duration
	stickPulse   time.Duration
	now          func() time.Time

	mu             sync.Mutex
	move           stick
	turn           stick
	headYaw        float64 // degrees
	headPitch      float64 // degrees
	indicator      string
	indicatorUntil time.Time
	commandMode    bool
	commandBuf     []rune
	statusWidth    int
	lastTick       time.Time
}

func NewConsole(driver Driver, r *rig.Rig) *Console {
	return &Console{
		driver:       driver,
		rig:          r,
		out:          os.Stdout,
		tickInterval: defaultTickInterval,
		stickPulse:   defaultStickPulse,
		now:          time.Now,
	}
}

// Subscribe shows snap feedback from bus in the status line.
func (c *Console) Subscribe(bus *event.Bus) func() {
	return bus.Subscribe(event.EventSnapTurn, func(raw any) {
		evt, ok := raw.(event.SnapTurnEvent)
		if !ok {
			return
		}
		c.mu.Lock()
		c.indicator = indicatorLabel(evt.Direction)
		c.indicatorUntil = evt.At.Add(evt.IndicatorDuration)
		c.mu.Unlock()
	})
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.driver == nil {
		return fmt.Errorf("console driver is nil")
	}
	if c.rig == nil {
		return fmt.Errorf("console rig is nil")
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Fprint(c.out, "\r\n")
	}()

	fmt.Fprint(c.out, "[debug] console started (W/A/S/D move, J/L turn, Q/E/arrows look, X clear, : command)\r\n")
	c.renderStatusLine()

	ctx, cancel := context.WithCancel(ctx)
	var ticking sync.WaitGroup
	ticking.Add(1)
	go func() {
		defer ticking.Done()
		c.tickLoop(ctx)
	}()
	// The tick loop publishes through the driver; let it finish first.
	defer ticking.Wait()
	defer cancel()

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		if b == 3 { // Ctrl-C in raw mode
			return nil
		}
		c.handleKey(reader, b)
	}
}

func (c *Console) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.step()
			c.renderStatusLine()
		}
	}
}

// step feeds the virtual sticks and the simulated head into the driver and
// applies the resulting delta to the rig.
func (c *Console) step() controller.Delta {
	now := c.now()

	c.mu.Lock()
	c.move.decay(now)
	c.turn.decay(now)
	moveAxes := c.move.axes()
	turnAxes := c.turn.axes()
	dt := c.tickInterval
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick)
	}
	c.lastTick = now
	head := c.headLocked()
	c.mu.Unlock()

	c.rig.SetHead(head)
	c.driver.OnMoveInput(moveAxes)
	c.driver.OnTurnInput(turnAxes)
	d := c.driver.Tick(dt)
	c.rig.Apply(d.Position, d.Yaw)
	return d
}

func (c *Console) headLocked() rig.Transform {
	head := c.rig.HeadTransform()
	head.Rotation = rig.Euler{
		Yaw:   mgl64.DegToRad(c.headYaw),
		Pitch: mgl64.DegToRad(c.headPitch),
	}.Quat()
	return head
}

func (c *Console) handleKey(reader *bufio.Reader, b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	now := c.now()
	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 'w', 'W':
		c.pulse(func() { c.move.pulseY(-1, now, c.stickPulse) })
	case 's', 'S':
		c.pulse(func() { c.move.pulseY(1, now, c.stickPulse) })
	case 'a', 'A':
		c.pulse(func() { c.move.pulseX(-1, now, c.stickPulse) })
	case 'd', 'D':
		c.pulse(func() { c.move.pulseX(1, now, c.stickPulse) })
	case 'j', 'J':
		c.pulse(func() { c.turn.pulseX(-1, now, c.stickPulse) })
	case 'l', 'L':
		c.pulse(func() { c.turn.pulseX(1, now, c.stickPulse) })
	case 'q', 'Q':
		c.adjustHead(headYawStep, 0)
	case 'e', 'E':
		c.adjustHead(-headYawStep, 0)
	case 'x', 'X':
		c.clearInput()
	case 27: // ESC + arrow sequence
		next, err := reader.ReadByte()
		if err != nil || next != '[' {
			return
		}
		arrow, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch arrow {
		case 'D': // left
			c.adjustHead(headYawStep, 0)
		case 'C': // right
			c.adjustHead(-headYawStep, 0)
		case 'A': // up
			c.adjustHead(0, headPitchStep)
		case 'B': // down
			c.adjustHead(0, -headPitchStep)
		}
	}
	c.renderStatusLine()
}

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	fmt.Fprint(c.out, "\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		fmt.Fprint(c.out, "\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
		return
	case 27: // ESC cancel command mode
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		fmt.Fprint(c.out, "\r\n[debug] command cancelled\r\n")
		c.renderStatusLine()
		return
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s \r:%s", buf, buf)
		return
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		rt := c.rig.RigTransform()
		hw := c.rig.HeadWorld()
		fmt.Fprintf(c.out, "[debug] rig pos=(%.3f,%.3f,%.3f) yaw=%.1f head=(%.3f,%.3f,%.3f)\r\n",
			rt.Position.X(), rt.Position.Y(), rt.Position.Z(),
			mgl64.RadToDeg(rig.Yaw(rt.Rotation)),
			hw.Position.X(), hw.Position.Y(), hw.Position.Z(),
		)
	case "snap":
		evt, ok := c.driver.LastSnap()
		if !ok {
			fmt.Fprint(c.out, "[debug] no snap turn yet\r\n")
			return
		}
		fmt.Fprintf(c.out, "[debug] last snap %s yaw=%.1f at %s\r\n",
			evt.Direction, mgl64.RadToDeg(evt.Yaw), evt.At.Format(time.TimeOnly))
	case "tp", "head":
		if len(parts) != 4 {
			fmt.Fprintf(c.out, "[debug] usage: :%s <x> <y> <z>\r\n", parts[0])
			return
		}
		v, ok := parseVec3(parts[1:])
		if !ok {
			fmt.Fprintf(c.out, "[debug] invalid %s args\r\n", parts[0])
			return
		}
		if parts[0] == "tp" {
			c.rig.Teleport(v)
			fmt.Fprintf(c.out, "[debug] rig moved to (%.3f, %.3f, %.3f)\r\n", v.X(), v.Y(), v.Z())
			return
		}
		head := c.rig.HeadTransform()
		head.Position = v
		c.rig.SetHead(head)
		fmt.Fprintf(c.out, "[debug] head offset set to (%.3f, %.3f, %.3f)\r\n", v.X(), v.Y(), v.Z())
	default:
		fmt.Fprintf(c.out, "[debug] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, "[debug] keys:\r\n")
	fmt.Fprint(c.out, "  W/S/A/D: pulse movement stick (~180ms)\r\n")
	fmt.Fprint(c.out, "  J/L: pulse turn stick left/right\r\n")
	fmt.Fprint(c.out, "  Q/E or Arrow Left/Right: head yaw +/-5\r\n")
	fmt.Fprint(c.out, "  Arrow Up/Down: head pitch +/-5\r\n")
	fmt.Fprint(c.out, "  X: clear all input\r\n")
	fmt.Fprint(c.out, "  : enter command mode\r\n")
	fmt.Fprint(c.out, "[debug] commands:\r\n")
	fmt.Fprint(c.out, "  :tp <x> <y> <z>\r\n")
	fmt.Fprint(c.out, "  :head <x> <y> <z>\r\n")
	fmt.Fprint(c.out, "  :state\r\n")
	fmt.Fprint(c.out, "  :snap\r\n")
	fmt.Fprint(c.out, "  :help\r\n")
}

func (c *Console) renderStatusLine() {
	now := c.now()
	c.mu.Lock()
	if c.commandMode {
		c.mu.Unlock()
		return
	}
	move, trn := c.move, c.turn
	headYaw, headPitch := c.headYaw, c.headPitch
	indicator := ""
	if now.Before(c.indicatorUntil) {
		indicator = c.indicator
	}
	width := c.statusWidth
	c.mu.Unlock()

	rt := c.rig.RigTransform()
	hw := c.rig.HeadWorld()
	lastSnap := "-"
	if evt, ok := c.driver.LastSnap(); ok {
		lastSnap = evt.Direction.String()
	}

	line := fmt.Sprintf(
		"[MOVE:%+.0f,%+.0f TURN:%+.0f %-3s| RIG X:%.2f Z:%.2f YAW:%.1f | HEAD X:%.2f Y:%.2f Z:%.2f YAW:%.0f PIT:%.0f | SNAP:%s]",
		move.x, move.y, trn.x, indicator,
		rt.Position.X(), rt.Position.Z(), mgl64.RadToDeg(rig.Yaw(rt.Rotation)),
		hw.Position.X(), hw.Position.Y(), hw.Position.Z(),
		headYaw, headPitch, lastSnap,
	)

	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	fmt.Fprintf(c.out, "\r%s%s", line, padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

func (c *Console) pulse(update func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update()
}

func (c *Console) adjustHead(yaw, pitch float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headYaw = normalizeYaw(c.headYaw + yaw)
	c.headPitch = clampPitch(c.headPitch + pitch)
}

func (c *Console) clearInput() {
	c.mu.Lock()
	c.move = stick{}
	c.turn = stick{}
	c.mu.Unlock()
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func indicatorLabel(d turn.Direction) string {
	if d == turn.Left {
		return "<<"
	}
	return ">>"
}

func parseVec3(parts []string) (mgl64.Vec3, bool) {
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return mgl64.Vec3{}, false
		}
		v[i] = f
	}
	return v, true
}

func normalizeYaw(yaw float64) float64 {
	for yaw <= -180 {
		yaw += 360
	}
	for yaw > 180 {
		yaw -= 360
	}
	return yaw
}

func clampPitch(pitch float64) float64 {
	return mgl64.Clamp(pitch, -90, 90)
}
