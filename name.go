package oauthkit

import "strings"

// ClientName identifies a registered client. Group lets differently
// configured instances of one provider coexist, e.g. "popup" and "redirect".
type ClientName struct {
	Group    string
	Provider string
}

// Name returns the ClientName for provider in the default group.
func Name(provider string) ClientName {
	return ClientName{Provider: provider}
}

// ParseClientName parses "group/provider" or "provider".
func ParseClientName(s string) ClientName {
	if group, provider, ok := strings.Cut(s, "/"); ok {
		return ClientName{Group: group, Provider: provider}
	}
	return ClientName{Provider: s}
}

func (n ClientName) String() string {
	if n.Group == "" {
		return n.Provider
	}
	return n.Group + "/" + n.Provider
}
