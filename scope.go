package oauthkit

import (
	"strings"

	"golang.org/x/text/cases"
)

// SplitScope splits a scope string on sep, dropping empty entries.
func SplitScope(scope, sep string) []string {
	if sep == "" {
		sep = " "
	}
	var out []string
	for _, s := range strings.Split(scope, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MergeScopes joins scope strings with sep, dropping case-insensitive
// duplicates and keeping the first spelling and position of each.
//
//	MergeScopes(",", "a,b", "b,c") == "a,b,c"
func MergeScopes(sep string, scopes ...string) string {
	if sep == "" {
		sep = " "
	}
	fold := cases.Fold()
	seen := map[string]bool{}
	var out []string
	for _, scope := range scopes {
		for _, s := range SplitScope(scope, sep) {
			key := fold.String(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
