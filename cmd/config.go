package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mouse-blink/traceview/internal/adapter"
	"github.com/mouse-blink/traceview/internal/domain"
	m "github.com/mouse-blink/traceview/internal/model"
)

// Config mirrors the .traceview.yaml file. Zero values mean "not set";
// only set fields override the built-in defaults.
type Config struct {
	Style       string `yaml:"style"`
	Locals      bool   `yaml:"locals"`
	Args        bool   `yaml:"args"`
	KeepHidden  bool   `yaml:"keep_hidden"`
	NoChain     bool   `yaml:"no_chain"`
	FullLocals  bool   `yaml:"full_locals"`
	Plain       bool   `yaml:"plain"`
	RelPaths    bool   `yaml:"rel_paths"`
	ChainPolicy string `yaml:"chain_policy"`
	ReprBudget  int    `yaml:"repr_budget"`
}

// LoadConfig reads the config file at path. A missing file is not an
// error; a malformed one is.
func LoadConfig(fs adapter.SourceFSAdapter, path m.Path) (Config, error) {
	var cfg Config

	data, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Style != "" {
		if _, err := m.ParseStyle(cfg.Style); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// apply overlays the config file's set fields onto opts.
func (c Config) apply(opts domain.RenderOptions) domain.RenderOptions {
	if c.Style != "" {
		if style, err := m.ParseStyle(c.Style); err == nil {
			opts.Style = style
		}
	}

	if c.Locals {
		opts.ShowLocals = true
	}

	if c.Args {
		opts.ShowArgs = true
	}

	if c.KeepHidden {
		opts.FilterHidden = false
	}

	if c.NoChain {
		opts.ShowChain = false
	}

	if c.FullLocals {
		opts.TruncateLocals = false
	}

	if c.RelPaths {
		opts.AbsPaths = false
	}

	if c.ChainPolicy == string(domain.PreferContext) {
		opts.ChainPolicy = domain.PreferContext
	}

	if c.ReprBudget > 0 {
		opts.ReprBudget = c.ReprBudget
	}

	return opts
}
