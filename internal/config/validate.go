package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Warning flags an unknown or deprecated key found in loaded configuration.
type Warning struct {
	Key         string
	Deprecated  bool
	Suggestions []string
}

func (w Warning) String() string {
	if w.Deprecated {
		return fmt.Sprintf("'%s' is deprecated, use '%s'", w.Key, strings.Join(w.Suggestions, "', '"))
	}
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	switch len(w.Suggestions) {
	case 0:
	case 1:
		msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
	default:
		msg += ". Did you mean one of these?"
		for _, s := range w.Suggestions {
			msg += "\n    - " + s
		}
	}
	return msg
}

// Validate checks every loaded key against the registry.
func Validate(k *koanf.Koanf) []Warning {
	var warnings []Warning
	for _, key := range k.Keys() {
		if info, ok := Lookup(key); ok {
			if info.Deprecated {
				warnings = append(warnings, Warning{Key: key, Deprecated: true, Suggestions: []string{info.ReplacedBy}})
			}
			continue
		}
		if underNamespace(key) {
			continue
		}
		warnings = append(warnings, Warning{Key: key, Suggestions: Suggest(key, 3)})
	}
	return warnings
}

// FormatWarnings renders warnings as an indented list.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration warnings:\n")
	for _, w := range warnings {
		for i, line := range strings.Split(w.String(), "\n") {
			if i == 0 {
				sb.WriteString("  - " + line + "\n")
			} else {
				sb.WriteString("  " + line + "\n")
			}
		}
	}
	return sb.String()
}
