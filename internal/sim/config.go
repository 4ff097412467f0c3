package sim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode selects where file events come from.
const (
	// ModeSynthetic fabricates file changes against the seeded baseline.
	ModeSynthetic = "synthetic"
	// ModeLive watches a real directory tree with fsnotify.
	ModeLive = "live"
)

// SeedFile is one fixture entry in the initial file baseline.
type SeedFile struct {
	Path string `mapstructure:"path" yaml:"path"`
	Size int64  `mapstructure:"size" yaml:"size"`
	Hash string `mapstructure:"hash" yaml:"hash"`
}

// Scenario is the simulator's behavior description, loadable from a YAML
// file. Unset keys fall back to the defaults in setScenarioDefaults.
type Scenario struct {
	Mode      string `mapstructure:"mode" yaml:"mode"`
	WatchRoot string `mapstructure:"watch_root" yaml:"watch_root"`

	// Event pacing for synthetic generation.
	PacketInterval     time.Duration `mapstructure:"packet_interval" yaml:"packet_interval"`
	FileChangeInterval time.Duration `mapstructure:"file_change_interval" yaml:"file_change_interval"`

	// AlertProbability is the chance (0..1) that a generated packet also
	// trips a detection rule.
	AlertProbability float64 `mapstructure:"alert_probability" yaml:"alert_probability"`

	// Talkers bounds the synthetic host pool so flows repeat plausibly.
	Talkers int `mapstructure:"talkers" yaml:"talkers"`

	// SeedFiles is the initial file baseline for synthetic mode.
	SeedFiles []SeedFile `mapstructure:"seed_files" yaml:"seed_files"`

	// RecentEvents caps the per-class recent buffer included in snapshots.
	RecentEvents int `mapstructure:"recent_events" yaml:"recent_events"`
}

// LoadScenario loads the scenario with cascade: explicit file >
// ./scenario.yaml > defaults. Environment variables prefixed SIM_
// override file values.
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()
	setScenarioDefaults(v)

	v.SetConfigName("scenario")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Scenario{}, fmt.Errorf("read scenario: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Scenario{}, fmt.Errorf("read scenario: %w", err)
			}
		}
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func setScenarioDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeSynthetic)
	v.SetDefault("packet_interval", "25ms")
	v.SetDefault("file_change_interval", "3s")
	v.SetDefault("alert_probability", 0.02)
	v.SetDefault("talkers", 12)
	v.SetDefault("recent_events", 200)
	v.SetDefault("seed_files", []map[string]interface{}{
		{"path": "/etc/passwd", "size": 2890, "hash": "6f46a1f7c0d6cb2e90a4"},
		{"path": "/etc/shadow", "size": 1412, "hash": "3c91e2a07d5fb5c2ab11"},
		{"path": "/etc/hosts", "size": 221, "hash": "b0254edfa6b6a1f3990d"},
		{"path": "/etc/ssh/sshd_config", "size": 3340, "hash": "91f2ce0a4480cf1de2aa"},
		{"path": "/var/log/auth.log", "size": 88412, "hash": "77ac01b41d5e2f90d311"},
	})
}

func (s *Scenario) validate() error {
	switch s.Mode {
	case ModeSynthetic, ModeLive:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if s.Mode == ModeLive && s.WatchRoot == "" {
		return fmt.Errorf("live mode requires watch_root")
	}
	if s.AlertProbability < 0 || s.AlertProbability > 1 {
		return fmt.Errorf("alert_probability must be within [0,1]")
	}
	return nil
}
