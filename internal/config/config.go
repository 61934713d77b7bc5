package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/schema"
)

const (
	DefaultListen = "127.0.0.1:9670"
	DefaultName   = "optwire"
)

// Config is the optctl runtime configuration.
type Config struct {
	Name      string
	Listen    string
	Limits    options.Limits
	PcapPorts []uint16
	Options   []schema.Definition
}

// config.toml key mapping to Config.
type fileConfig struct {
	Name           string              `toml:"name"`
	Listen         string              `toml:"listen"`
	MaxRecords     int                 `toml:"max_records"`
	MaxRegionBytes int                 `toml:"max_region_bytes"`
	PcapPorts      []int               `toml:"pcap_ports"`
	Options        []schema.Definition `toml:"option"`
}

func Default() Config {
	return Config{
		Name:      DefaultName,
		Listen:    DefaultListen,
		Limits:    options.DefaultLimits(),
		PcapPorts: []uint16{67, 68},
	}
}

// Load overlays the keys present in path onto Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("max_records") {
		cfg.Limits.MaxRecords = raw.MaxRecords
	}
	if meta.IsDefined("max_region_bytes") {
		cfg.Limits.MaxRegionBytes = raw.MaxRegionBytes
	}
	if meta.IsDefined("pcap_ports") {
		ports := make([]uint16, 0, len(raw.PcapPorts))
		for _, p := range raw.PcapPorts {
			if p <= 0 || p > 65535 {
				return Config{}, fmt.Errorf("load config (%s): pcap port %d out of range", path, p)
			}
			ports = append(ports, uint16(p))
		}
		cfg.PcapPorts = ports
	}
	cfg.Options = raw.Options

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config missing name")
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("config missing listen")
	}
	if cfg.Limits.MaxRecords < 0 || cfg.Limits.MaxRegionBytes < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if len(cfg.PcapPorts) == 0 {
		return fmt.Errorf("pcap_ports must not be empty")
	}
	for i, def := range cfg.Options {
		if _, err := def.Entry(); err != nil {
			return fmt.Errorf("option[%d] invalid: %w", i, err)
		}
	}
	return nil
}

// Registry builds the sealed option registry for cfg.
func (c Config) Registry() (*options.Registry, error) {
	return schema.NewRegistry(c.Options)
}
