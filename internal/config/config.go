// Package config loads client settings from defaults, the environment and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap/zapcore"

	"github.com/danferreira/gannounce/internal/peer"
)

const EnvPrefix = "GANNOUNCE_"

type Config struct {
	ListenPort    int           `mapstructure:"listen_port"`
	PeerIDPrefix  string        `mapstructure:"peer_id_prefix"`
	PeerIDSeed    string        `mapstructure:"peer_id_seed"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Compact       bool          `mapstructure:"compact"`
	NoPeerID      bool          `mapstructure:"no_peer_id"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	LogLevel      string        `mapstructure:"log_level"`
}

func Default() Config {
	return Config{
		ListenPort:    6881,
		PeerIDPrefix:  peer.DefaultPrefix,
		Timeout:       15 * time.Second,
		Compact:       true,
		RetryInterval: 10 * time.Second,
		LogLevel:      "info",
	}
}

// Load decodes raw over the defaults. Unknown keys are rejected.
func Load(raw map[string]any) (Config, error) {
	cfg := Default()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}

	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// FromEnv collects GANNOUNCE_* variables from environ, keyed by their
// lowercase suffix.
func FromEnv(environ []string) map[string]any {
	raw := make(map[string]any)

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		raw[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))] = value
	}

	return raw
}

// Merge combines sources; later ones win.
func Merge(sources ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, src := range sources {
		maps.Copy(out, src)
	}

	return out
}

func (c Config) Validate() error {
	var errs []error

	if c.ListenPort < 1 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port %d out of range", c.ListenPort))
	}

	if len(c.PeerIDPrefix) >= 20 {
		errs = append(errs, fmt.Errorf("peer_id_prefix %q must be shorter than 20 bytes", c.PeerIDPrefix))
	}

	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}

	if c.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("retry_interval must be positive"))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// PeerID returns the session peer id: derived from PeerIDSeed when set,
// random otherwise.
func (c Config) PeerID() (peer.PeerID, error) {
	if c.PeerIDSeed != "" {
		return peer.PeerIDFromSeed(c.PeerIDPrefix, []byte(c.PeerIDSeed))
	}

	return peer.NewPeerID(c.PeerIDPrefix)
}
