package livemap

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type Config struct {
	World       string `hcl:"world"`
	TilePath    string `hcl:"tile_path,optional"`
	ColorsPath  string `hcl:"colors_path,optional"`
	MarkersPath string `hcl:"markers_path,optional"`
	WarpsPath   string `hcl:"warps_path,optional"`
	Listen      string `hcl:"listen,optional"`

	RenderWait       string `hcl:"render_wait,optional"`
	IdleInterval     string `hcl:"idle_interval,optional"`
	Retention        string `hcl:"retention,optional"`
	WatchInterval    string `hcl:"watch_interval,optional"`
	MaxRenderRetries int    `hcl:"max_render_retries,optional"`
	Shading          *bool  `hcl:"shading,optional"`
	WorldHeight      int    `hcl:"world_height,optional"`
	CachedChunks     int64  `hcl:"cached_chunks,optional"`
	DebugPlayer      string `hcl:"debug_player,optional"`

	Anchor *Anchor         `hcl:"anchor,block"`
	Log    *LogConfigBlock `hcl:"log,block"`
}

type LogConfigBlock struct {
	Level      string `hcl:"level,optional"`
	File       string `hcl:"file,optional"`
	MaxSizeMB  int    `hcl:"max_size_mb,optional"`
	MaxBackups int    `hcl:"max_backups,optional"`
	JSON       bool   `hcl:"json,optional"`
}

var envFunction = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env": envFunction,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}
	return finishConfig(&cfg)
}

// ParseConfig decodes config source; filename only selects the syntax and
// labels diagnostics.
func ParseConfig(filename string, src []byte) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.Decode(filename, src, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}
	return finishConfig(&cfg)
}

func finishConfig(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TilePath == "" {
		c.TilePath = "tiles/"
	}
	if c.ColorsPath == "" {
		c.ColorsPath = "colors.txt"
	}
	if c.MarkersPath == "" {
		c.MarkersPath = "markers.csv"
	}
	if c.WarpsPath == "" {
		c.WarpsPath = "warps.txt"
	}
	if c.Listen == "" {
		c.Listen = ":8123"
	}
	if c.WatchInterval == "" {
		c.WatchInterval = "5s"
	}
	if c.WorldHeight <= 0 {
		c.WorldHeight = 384
	}
	if c.Shading == nil {
		shading := true
		c.Shading = &shading
	}
	if c.Anchor == nil {
		anchor := DefaultAnchor
		c.Anchor = &anchor
	}
	if c.Log == nil {
		c.Log = &LogConfigBlock{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.World == "" {
		return fmt.Errorf("world path is required")
	}
	for name, raw := range map[string]string{
		"render_wait":    c.RenderWait,
		"idle_interval":  c.IdleInterval,
		"retention":      c.Retention,
		"watch_interval": c.WatchInterval,
	} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// ManagerOpts converts the config into render manager options. Unset
// durations fall through to the manager defaults.
func (c *Config) ManagerOpts(notifier Notifier) ManagerOpts {
	renderWait, _ := parseDuration(c.RenderWait)
	idle, _ := parseDuration(c.IdleInterval)
	retention, _ := parseDuration(c.Retention)

	return ManagerOpts{
		Anchor:           *c.Anchor,
		RenderWait:       renderWait,
		IdleInterval:     idle,
		Retention:        retention,
		MaxRenderRetries: c.MaxRenderRetries,
		DebugPlayer:      c.DebugPlayer,
		Notifier:         notifier,
	}
}

func (c *Config) WatchDuration() time.Duration {
	d, _ := parseDuration(c.WatchInterval)
	return d
}
