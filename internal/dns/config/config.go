// Package config loads and validates the client's runtime
// configuration: nameserver endpoint, worker count, timeout, and log
// verbosity (spec §3). CLI flag parsing is the true "out of scope"
// collaborator (spec §1); this package is the ambient defaulting and
// validation layer underneath it, carried in the same koanf/v2 +
// validator/v10 shape the teacher uses for its own AppConfig.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ClientConfig holds the resolver client's configuration values,
// layered from defaults, environment variables, and (by the caller,
// after Load returns) CLI flag overrides.
type ClientConfig struct {
	// Nameserver is the recursive nameserver's IP address.
	Nameserver string `koanf:"nameserver" validate:"required,ip"`

	// Port is the nameserver's UDP port.
	Port int `koanf:"port" validate:"required,gte=1,lt=65536"`

	// Workers is the number of encode-worker goroutines; 0 means
	// "runtime.NumCPU()" (spec §6.7).
	Workers int `koanf:"workers" validate:"gte=0"`

	// TimeoutMS is the per-query timeout in milliseconds.
	TimeoutMS int `koanf:"timeout_ms" validate:"required,gte=1"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
}

// Timeout returns TimeoutMS as a time.Duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// NameserverAddr returns "Nameserver:Port" suitable for netip.ParseAddrPort.
func (c ClientConfig) NameserverAddr() string {
	return net.JoinHostPort(c.Nameserver, strconv.Itoa(c.Port))
}

// DEFAULT_CLIENT_CONFIG is the baseline configuration layered under
// environment overrides.
var DEFAULT_CLIENT_CONFIG = ClientConfig{
	Nameserver: "1.1.1.1",
	Port:       53,
	Workers:    1,
	TimeoutMS:  500,
	LogLevel:   "info",
}

// envLoader loads environment variables prefixed "ADNS_", lowercasing
// and stripping the prefix to match the struct tags above.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "ADNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "ADNS_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_CLIENT_CONFIG via the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_CLIENT_CONFIG, "koanf"), nil)
}

// Load builds a ClientConfig from defaults layered with ADNS_*
// environment overrides, then validates it. CLI flags, if any, are
// applied by the caller on the returned struct before use.
func Load() (*ClientConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg ClientConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}
