// Command oauthkit drives provider flows from the terminal: signing OAuth
// 1.0a requests, printing authorization URLs, exchanging codes, refreshing
// tokens and fetching profiles for providers defined in oauthkit.yaml.
package main

import (
	"os"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
)

// Exit codes.
const (
	exitError       = 1
	exitAuthFailure = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, oauthkit.ErrAuthorization), errors.Is(err, oauthkit.ErrAccessToken):
		return exitAuthFailure
	default:
		return exitError
	}
}
