package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/eventlog"
)

type MainConfig struct {
	Color    bool   `cli:"name=color desc='print traces with color'"`
	Gops     bool   `cli:"name=gops desc='start a gops agent'"`
	Config   string `cli:"name=config desc='configuration file (yaml)'"`
	LogLevel string `cli:"name=log desc='log level: debug, info, warn, error'"`
	Debug    string `cli:"name=debug desc='comma separated debug toggles: txn, events, modified'"`
	Metrics  bool   `cli:"name=metrics desc='print metrics after running'"`

	File *Config

	Main *cli.Command
}

type TraceConfig struct {
	*MainConfig
	Expect string `cli:"name=expect desc='trace file to compare the output with'"`
	Prefix string `cli:"name=prefix desc='member key prefix of collections'"`

	Trace *cli.Command
}

type DiffConfig struct {
	*MainConfig

	Diff *cli.Command
}

// setup loads the configuration file and applies the settings shared by
// all subcommands.  Flags override the file.
func (cfg *MainConfig) setup() error {
	fc := DefaultConfig()
	if cfg.Config != "" {
		var err error
		fc, err = LoadConfig(cfg.Config)
		if err != nil {
			return err
		}
	}
	if cfg.LogLevel != "" {
		fc.LogLevel = cfg.LogLevel
	}
	if cfg.Debug != "" {
		fc.Debug = append(fc.Debug, strings.Split(cfg.Debug, ",")...)
	}
	for _, name := range fc.Debug {
		if err := debug.Set(strings.TrimSpace(name), true); err != nil {
			return fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
	}
	cfg.File = fc
	return nil
}

func (cfg *MainConfig) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.File != nil && cfg.File.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.File.LogLevel)); err != nil {
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func (cfg *MainConfig) setPrefix() string {
	if cfg.File == nil {
		return ""
	}
	return cfg.File.SetPrefix
}

// colors returns nil unless color was requested, or left unspecified
// while w is a terminal.
func (cfg *MainConfig) colors(w io.Writer) *eventlog.Colors {
	if cfg.Color {
		return eventlog.NewColors()
	}
	colorSet := false
	if cfg.Main != nil {
		for _, opt := range cfg.Main.Opts {
			if opt.Name != "color" {
				continue
			}
			colorSet = opt.Value != nil
			break
		}
	}
	if colorSet || (cfg.File != nil && cfg.File.Color != nil && !*cfg.File.Color) {
		return nil
	}
	if cfg.File != nil && cfg.File.Color != nil && *cfg.File.Color {
		return eventlog.NewColors()
	}
	f, ok := w.(*os.File)
	if !ok {
		return nil
	}
	if isatty.IsTerminal(f.Fd()) {
		return eventlog.NewColors()
	}
	return nil
}
