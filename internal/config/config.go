package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/loykin/deskpipe/internal/logger"
	"github.com/loykin/deskpipe/internal/service"
)

// Config is the top-level TOML structure.
//
//	env = ["LANG=C"]
//	display = ":1"
//	geometry = "1280x800"
//	vnc_port = 5900
//	listen_port = 6080
//	web_root = "/usr/share/novnc"
//
//	[log]
//	dir = "log"
//
//	[state]
//	dsn = "sqlite://log/deskpipe.db"
//
//	[history]
//	dsn = "clickhouse://localhost:9000?table=deskpipe_events"
//
//	[server]
//	listen = "127.0.0.1:6081"
//
//	[metrics]
//	listen = "127.0.0.1:6082"
//
//	[[services]]
//	name = "xvfb"
//	command = "Xvfb"
//	args = [":1", "-screen", "0", "1280x800x24"]
//	required = true
//	startup_delay = "1s"
//	  [services.probe]
//	  type = "file"
//	  target = "/tmp/.X11-unix/X1"
type Config struct {
	Env        []string       `toml:"env" mapstructure:"env"`
	Display    string         `toml:"display" mapstructure:"display"`
	Geometry   string         `toml:"geometry" mapstructure:"geometry"`
	VNCPort    int            `toml:"vnc_port" mapstructure:"vnc_port"`
	ListenPort int            `toml:"listen_port" mapstructure:"listen_port"`
	WebRoot    string         `toml:"web_root" mapstructure:"web_root"`
	Log        logger.Config  `toml:"log" mapstructure:"log"`
	State      StateConfig    `toml:"state" mapstructure:"state"`
	History    HistoryConfig  `toml:"history" mapstructure:"history"`
	Server     ListenConfig   `toml:"server" mapstructure:"server"`
	Metrics    ListenConfig   `toml:"metrics" mapstructure:"metrics"`
	Services   []service.Spec `toml:"services" mapstructure:"services"`
}

type StateConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type ListenConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Default returns the zero-config setup: built-in pipeline, log/ directory,
// sqlite state next to the session log.
func Default() *Config {
	return &Config{
		Log:   logger.Config{Dir: "log"},
		State: StateConfig{DSN: "sqlite://log/deskpipe.db"},
	}
}

// Load parses a TOML config file. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c := Default()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for i := range c.Services {
		if err := c.Services[i].Validate(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return c, nil
}

// Defaults converts the pipeline knobs to service.Defaults.
func (c *Config) Defaults() service.Defaults {
	return service.Defaults{
		Display:    c.Display,
		Geometry:   c.Geometry,
		VNCPort:    c.VNCPort,
		ListenPort: c.ListenPort,
		WebRoot:    c.WebRoot,
	}
}

// Specs returns the configured service list, or the built-in remote
// desktop pipeline when the config declares none.
func (c *Config) Specs() []service.Spec {
	if len(c.Services) > 0 {
		return c.Services
	}
	return service.DefaultPipeline(c.Defaults())
}

// EffectiveWebRoot resolves the web root actually handed to the bridge.
func (c *Config) EffectiveWebRoot() string {
	if c.WebRoot != "" {
		return c.WebRoot
	}
	return "/usr/share/novnc"
}

// EffectiveDisplay resolves the DISPLAY value exported to children.
func (c *Config) EffectiveDisplay() string {
	if c.Display != "" {
		return c.Display
	}
	return ":1"
}
