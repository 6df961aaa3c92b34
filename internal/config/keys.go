// Package config holds the registry of known configuration keys used to
// validate loaded configuration and to seed defaults.
package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/knadh/koanf/v2"
)

// KeyInfo describes a known configuration key.
type KeyInfo struct {
	Key         string      // Full key path, e.g. "request.timeout"
	Description string      // Human-readable description
	Type        string      // "string", "int", "bool", "duration", "[]string", "map"
	Default     interface{} // Optional default value
	Namespace   bool        // Any key below this one is accepted, e.g. "providers"
	Deprecated  bool
	ReplacedBy  string
}

var (
	registry   = make(map[string]KeyInfo)
	registryMu sync.RWMutex
)

// Register adds known keys to the registry.
func Register(infos ...KeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, info := range infos {
		registry[info.Key] = info
	}
}

// RegisterDeprecated registers a key which has been renamed.
func RegisterDeprecated(oldKey, newKey string) {
	Register(KeyInfo{Key: oldKey, Deprecated: true, ReplacedBy: newKey})
}

// Lookup returns metadata for a registered key.
func Lookup(key string) (KeyInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[key]
	return info, ok
}

// Keys returns all registered keys sorted alphabetically.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyDefaults sets registered defaults on k for keys which are not already
// present.
func ApplyDefaults(k *koanf.Koanf) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for key, info := range registry {
		if info.Default != nil && !k.Exists(key) {
			_ = k.Set(key, info.Default)
		}
	}
}

// Suggest returns up to max registered keys which look like key, most similar
// first. Keys sharing the same parent get a one point bonus.
func Suggest(key string, max int) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type scored struct {
		key   string
		score int
	}
	var candidates []scored
	parent := parentOf(key)
	for candidate, info := range registry {
		if info.Deprecated {
			continue
		}
		d := levenshtein.ComputeDistance(key, candidate)
		if parent != "" && parent == parentOf(candidate) && d > 0 {
			d--
		}
		if d <= 3 && candidate != key {
			candidates = append(candidates, scored{candidate, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].score < candidates[j].score
	})

	out := make([]string, 0, max)
	for i := 0; i < len(candidates) && i < max; i++ {
		out = append(out, candidates[i].key)
	}
	return out
}

// underNamespace reports whether a parent of key is registered as a namespace.
func underNamespace(key string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i > 0; i-- {
		if info, ok := registry[strings.Join(parts[:i], ".")]; ok && info.Namespace {
			return true
		}
	}
	return false
}

func parentOf(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i]
	}
	return ""
}
