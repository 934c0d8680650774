package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Versifine/locomotion/internal/axis"
	"github.com/Versifine/locomotion/internal/locomotion"
	"github.com/Versifine/locomotion/internal/turn"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Movement MovementConfig `yaml:"movement"`
	Turn     TurnConfig     `yaml:"turn"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Axes     AxesConfig     `yaml:"axes"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type MovementConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Fly      bool    `yaml:"fly"`
	Speed    float64 `yaml:"speed"`
	Deadzone float64 `yaml:"deadzone"`
}

type TurnConfig struct {
	Mode          string  `yaml:"mode"`
	SnapDegrees   float64 `yaml:"snap_degrees"`
	SnapThreshold float64 `yaml:"snap_threshold"`
	Deadzone      float64 `yaml:"deadzone"`
	CooldownMS    int     `yaml:"cooldown_ms"`
	SmoothSpeed   float64 `yaml:"smooth_speed"` // rad/s
}

type FeedbackConfig struct {
	IndicatorMS     int     `yaml:"indicator_ms"`
	HapticIntensity float64 `yaml:"haptic_intensity"`
	HapticMS        int     `yaml:"haptic_ms"`
}

type AxesConfig struct {
	Move axis.Layout `yaml:"move"`
	Turn axis.Layout `yaml:"turn"`
}

type BridgeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Movement: MovementConfig{
			Enabled:  true,
			Speed:    2,
			Deadzone: 0.15,
		},
		Turn: TurnConfig{
			Mode:          "snap",
			SnapDegrees:   45,
			SnapThreshold: turn.DefaultSnapThreshold,
			Deadzone:      0.2,
			CooldownMS:    300,
			SmoothSpeed:   2,
		},
		Feedback: FeedbackConfig{
			IndicatorMS:     int(turn.DefaultIndicatorDuration / time.Millisecond),
			HapticIntensity: turn.DefaultHapticIntensity,
			HapticMS:        int(turn.DefaultHapticDuration / time.Millisecond),
		},
		Axes: AxesConfig{
			Move: axis.DefaultLayout(),
			Turn: axis.DefaultLayout(),
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: 8765,
			Path: "/xr",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file over Default and validates the result. Keys left
// out of the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once. The returned error matches
// ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	if err := axis.ValidateDeadzone(c.Movement.Deadzone); err != nil {
		errs = append(errs, fmt.Errorf("movement: %w", err))
	}
	if !finite(c.Movement.Speed) || c.Movement.Speed < 0 {
		errs = append(errs, fmt.Errorf("movement: speed %v must be a finite non-negative number", c.Movement.Speed))
	}
	if err := axis.ValidateDeadzone(c.Turn.Deadzone); err != nil {
		errs = append(errs, fmt.Errorf("turn: %w", err))
	}
	if _, err := c.TurnEngineConfig(); err != nil {
		errs = append(errs, fmt.Errorf("turn: %w", err))
	}
	if c.Feedback.IndicatorMS < 0 || c.Feedback.HapticMS < 0 {
		errs = append(errs, errors.New("feedback: durations must not be negative"))
	}
	if err := c.Axes.Move.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("axes.move: %w", err))
	}
	if err := c.Axes.Turn.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("axes.turn: %w", err))
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		errs = append(errs, fmt.Errorf("bridge: port %d out of range", c.Bridge.Port))
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		errs = append(errs, fmt.Errorf("bridge: path %q must start with /", c.Bridge.Path))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Config) LocomotionConfig() locomotion.Config {
	return locomotion.Config{
		Enabled: c.Movement.Enabled,
		Fly:     c.Movement.Fly,
		Speed:   c.Movement.Speed,
	}
}

// TurnEngineConfig converts the turn and feedback sections, failing on an
// unknown mode or out-of-range values.
func (c *Config) TurnEngineConfig() (turn.Config, error) {
	mode, err := turn.ParseMode(c.Turn.Mode)
	if err != nil {
		return turn.Config{}, err
	}
	tc := turn.Config{
		Mode:              mode,
		SnapDegrees:       c.Turn.SnapDegrees,
		SnapThreshold:     c.Turn.SnapThreshold,
		Cooldown:          time.Duration(c.Turn.CooldownMS) * time.Millisecond,
		SmoothSpeed:       c.Turn.SmoothSpeed,
		IndicatorDuration: time.Duration(c.Feedback.IndicatorMS) * time.Millisecond,
		Haptic: turn.Haptic{
			Intensity: c.Feedback.HapticIntensity,
			Duration:  time.Duration(c.Feedback.HapticMS) * time.Millisecond,
		},
	}
	if err := tc.Validate(); err != nil {
		return turn.Config{}, err
	}
	return tc, nil
}

func (c *Config) BridgeAddr() string {
	return net.JoinHostPort(c.Bridge.Host, strconv.Itoa(c.Bridge.Port))
}
