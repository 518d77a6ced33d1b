package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	AssetDir        string        `envconfig:"ASSET_DIR" default:"./data/assets"`
	AIBaseURL       string        `envconfig:"AI_BASE_URL" default:"http://localhost:8000"`
	AITimeout       time.Duration `envconfig:"AI_TIMEOUT" default:"5m"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	AllowedOrigins  string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	CanvasWidth     int           `envconfig:"CANVAS_WIDTH" default:"800"`
	CanvasHeight    int           `envconfig:"CANVAS_HEIGHT" default:"384"`
	DefaultPrompt   string        `envconfig:"DEFAULT_PROMPT" default:"same layout, modern furniture with photorealistic textures, consistent lighting, volumetric shadows, 4k detail, realistic"`
	MaskFeather     float64       `envconfig:"MASK_FEATHER" default:"8"`
	MaxCanvasPixels int           `envconfig:"MAX_CANVAS_PIXELS" default:"16777216"`
	AllowRemote     bool          `envconfig:"ALLOW_REMOTE_IMAGES" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
