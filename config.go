package oauthkit

import (
	"time"

	"github.com/dpup/oauthkit/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "oauthkit.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
type ConfigKeyInfo = config.KeyInfo

// Config is a global koanf instance holding engine and provider settings.
//
// Sources, later overriding earlier:
//  1. Registered defaults
//  2. Auto-discovered oauthkit.yaml
//  3. Environment variables with the OAUTHKIT__ prefix
//  4. Sources added via LoadConfigFile or LoadConfigDefaults
//
// OAUTHKIT__PROVIDERS__GITHUB__CLIENT_ID maps to providers.github.clientId.
var Config = koanf.New(".")

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPendingTTL     = 20 * time.Minute
)

func init() {
	registerCoreConfigKeys()
	config.ApplyDefaults(Config)

	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	if err := Config.Load(env.Provider(config.EnvPrefix, ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

func registerCoreConfigKeys() {
	config.Register(
		ConfigKeyInfo{Key: "request.timeout", Description: "Default timeout for outbound provider requests", Type: "duration", Default: "30s"},
		ConfigKeyInfo{Key: "request.workers", Description: "Workers serving asynchronous requests", Type: "int", Default: 16},
		ConfigKeyInfo{Key: "request.userAgent", Description: "User-Agent sent with provider requests", Type: "string", Default: "oauthkit"},
		ConfigKeyInfo{Key: "pending.ttl", Description: "Lifetime of an in-flight authorization", Type: "duration", Default: "20m"},
		ConfigKeyInfo{Key: "pending.sweepInterval", Description: "How often expired authorizations are evicted", Type: "duration", Default: "1m"},
		ConfigKeyInfo{Key: "providers", Description: "Provider definitions keyed by name", Type: "map", Namespace: true},
	)
	config.RegisterDeprecated("pending.expiry", "pending.ttl")
}

// RegisterConfigKeys registers additional known configuration keys.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	config.Register(infos...)
}

// LoadConfigFile loads a YAML file into the global Config.
func LoadConfigFile(path string) error {
	return Config.Load(file.Provider(path), yaml.Parser())
}

// LoadConfigDefaults loads values which files and env vars may override.
func LoadConfigDefaults(defaults map[string]interface{}) error {
	// koanf merges in load order so defaults are re-applied beneath current values.
	current := Config.All()
	fresh := koanf.New(".")
	if err := fresh.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return err
	}
	if err := fresh.Load(confmap.Provider(current, "."), nil); err != nil {
		return err
	}
	Config = fresh
	return nil
}

// ValidateConfig returns human readable warnings for unknown or deprecated
// keys, or an empty string if the configuration is clean.
func ValidateConfig(k *koanf.Koanf) string {
	return config.FormatWarnings(config.Validate(k))
}

// ConfigDuration reads a duration, falling back to def when unset or invalid.
func ConfigDuration(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if !k.Exists(key) {
		return def
	}
	if d := k.Duration(key); d > 0 {
		return d
	}
	return def
}

// RequestTimeout is the configured default timeout for provider requests.
func RequestTimeout() time.Duration {
	return ConfigDuration(Config, "request.timeout", defaultRequestTimeout)
}

// PendingTTL is the configured lifetime of an in-flight authorization.
func PendingTTL() time.Duration {
	return ConfigDuration(Config, "pending.ttl", defaultPendingTTL)
}
