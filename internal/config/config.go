// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Swap policies for overlapping texture loads.
const (
	// SwapLatest applies a texture only if it belongs to the most recent request.
	SwapLatest = "latest"
	// SwapLastCompleted applies whichever load finishes last.
	SwapLastCompleted = "last_completed"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Scene    SceneConfig    `yaml:"scene"`
	Camera   CameraConfig   `yaml:"camera"`
	Controls ControlsConfig `yaml:"controls"`
	Lights   LightsConfig   `yaml:"lights"`
	Assets   AssetsConfig   `yaml:"assets"`
	Control  ControlConfig  `yaml:"control"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	Fullscreen     bool   `yaml:"fullscreen"`
	VSync          bool   `yaml:"vsync"`
	FPSLimit       int    `yaml:"fps_limit"`
	MSAASamples    int    `yaml:"msaa_samples"`     // 0 disables antialiasing
	MaxTextureSize int    `yaml:"max_texture_size"` // larger images are downscaled
	ScreenshotDir  string `yaml:"screenshot_dir"`
}

// SceneConfig describes what is loaded and which mesh is swappable.
type SceneConfig struct {
	Model          string   `yaml:"model"`
	TargetMesh     string   `yaml:"target_mesh"`
	DefaultTexture string   `yaml:"default_texture"`
	SwapPolicy     string   `yaml:"swap_policy"`
	Background     string   `yaml:"background"`
	Gallery        []string `yaml:"gallery"` // bound to keys 1..9
}

// CameraConfig holds perspective camera settings.
type CameraConfig struct {
	FOV      float32    `yaml:"fov"` // vertical, degrees
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Position [3]float32 `yaml:"position"`
}

// ControlsConfig holds orbit control settings.
type ControlsConfig struct {
	EnableDamping bool    `yaml:"enable_damping"`
	DampingFactor float32 `yaml:"damping_factor"`
	MinDistance   float32 `yaml:"min_distance"`
	MaxDistance   float32 `yaml:"max_distance"`
	MaxPolarAngle float32 `yaml:"max_polar_angle"` // radians
	RotateSpeed   float32 `yaml:"rotate_speed"`
	ZoomSpeed     float32 `yaml:"zoom_speed"`
	PanSpeed      float32 `yaml:"pan_speed"`
}

// LightsConfig holds the ambient and directional light.
type LightsConfig struct {
	AmbientColor         string     `yaml:"ambient_color"`
	AmbientIntensity     float32    `yaml:"ambient_intensity"`
	DirectionalColor     string     `yaml:"directional_color"`
	DirectionalIntensity float32    `yaml:"directional_intensity"`
	DirectionalPosition  [3]float32 `yaml:"directional_position"`
}

// AssetsConfig holds asset lookup settings.
type AssetsConfig struct {
	Roots []string `yaml:"roots"` // later roots take priority
	Watch bool     `yaml:"watch"`
	Cache bool     `yaml:"cache"`
}

// ControlConfig holds the remote control server settings.
type ControlConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:          1280,
			Height:         720,
			Fullscreen:     false,
			VSync:          true,
			FPSLimit:       0,
			MSAASamples:    4,
			MaxTextureSize: 4096,
			ScreenshotDir:  "screenshots",
		},
		Scene: SceneConfig{
			Model:          "mirror.glb",
			TargetMesh:     "plate",
			DefaultTexture: "dazai-san.jpeg",
			SwapPolicy:     SwapLastCompleted,
			Background:     "#ffffff",
		},
		Camera: CameraConfig{
			FOV:      75,
			Near:     0.1,
			Far:      1000,
			Position: [3]float32{0, 1, 5},
		},
		Controls: ControlsConfig{
			EnableDamping: true,
			DampingFactor: 0.05,
			MinDistance:   1,
			MaxDistance:   10,
			MaxPolarAngle: math.Pi / 2,
			RotateSpeed:   1,
			ZoomSpeed:     1,
			PanSpeed:      1,
		},
		Lights: LightsConfig{
			AmbientColor:         "#ffffff",
			AmbientIntensity:     2,
			DirectionalColor:     "#ffffff",
			DirectionalIntensity: 3,
			DirectionalPosition:  [3]float32{5, 10, 5},
		},
		Assets: AssetsConfig{
			Roots: []string{"."},
			Watch: false,
			Cache: true,
		},
		Control: ControlConfig{
			Listen: "127.0.0.1:8089",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics: invalid size %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	switch c.Scene.SwapPolicy {
	case SwapLatest, SwapLastCompleted:
	default:
		return fmt.Errorf("scene: unknown swap_policy %q", c.Scene.SwapPolicy)
	}
	if c.Scene.Model == "" {
		return fmt.Errorf("scene: model is required")
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera: invalid clip range %g..%g", c.Camera.Near, c.Camera.Far)
	}
	if c.Controls.MinDistance > c.Controls.MaxDistance {
		return fmt.Errorf("controls: min_distance %g exceeds max_distance %g",
			c.Controls.MinDistance, c.Controls.MaxDistance)
	}
	for _, s := range []string{c.Scene.Background, c.Lights.AmbientColor, c.Lights.DirectionalColor} {
		if _, err := ParseColor(s); err != nil {
			return err
		}
	}
	return nil
}

// ParseColor parses "#rrggbb" or "0xrrggbb" into linear 0..1 RGB.
func ParseColor(s string) ([3]float32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "#"), "0x")
	if len(hex) != 6 {
		return [3]float32{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return [3]float32{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return [3]float32{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}
