// Package oauthkit performs OAuth 1.0a and OAuth 2.0 authorization flows
// against heterogeneous providers and normalizes their tokens and user
// profiles.
//
// A provider is described by a ProviderConfig and served by one of two
// protocol engines, see the oauth1 and oauth2 packages. Clients are kept in a
// Registry; a Manager starts attempts, correlates callbacks through a
// PendingStore and exchanges them for tokens:
//
//	attempt, err := manager.Authorize(ctx, oauthkit.Name("github"), nil)
//	// redirect the user to attempt.URL
//	result, err := manager.VerifyURL(ctx, callbackURL)
package oauthkit

import (
	"context"
	"net/url"

	"github.com/dpup/oauthkit/request"
)

// FlowState is a step of the authorization state machine.
type FlowState int

const (
	Unauthorized FlowState = iota
	RequestTokenObtained
	AuthorizationURLIssued
	AccessTokenObtained
)

func (s FlowState) String() string {
	switch s {
	case RequestTokenObtained:
		return "request_token_obtained"
	case AuthorizationURLIssued:
		return "authorization_url_issued"
	case AccessTokenObtained:
		return "access_token_obtained"
	default:
		return "unauthorized"
	}
}

// Client is a configured provider. Clients are safe for concurrent use and
// never hold per-attempt state; that lives on a Flow.
type Client interface {
	Name() ClientName
	Protocol() Protocol

	// Config returns a copy of the provider configuration.
	Config() ProviderConfig

	// NewFlow starts an authorization attempt with per-attempt overrides.
	NewFlow(opts ...FlowOption) Flow

	// WithToken returns a copy of the client bound to tok, used when methods
	// are called with a nil token.
	WithToken(tok Token) Client

	// Authorizer returns a request authorizer for tok.
	Authorizer(tok Token) (request.Authorizer, error)

	// Execute sends an API request authorized with tok.
	Execute(ctx context.Context, req *request.Request, tok Token) (*request.Response, error)

	// ExecuteAsync is Execute on the executor's worker pool.
	ExecuteAsync(ctx context.Context, req *request.Request, tok Token) *request.Future[*request.Response]

	// UserProfile fetches and normalizes the profile of the token owner.
	// Provider reported errors are returned on UserInfo.Error.
	UserProfile(ctx context.Context, tok Token) (*UserInfo, error)
}

// Flow is a single authorization attempt.
type Flow interface {
	Client() Client
	State() FlowState

	// AuthorizationURL returns the URL to send the user to. OAuth 1.0a flows
	// fetch a request token first.
	AuthorizationURL(ctx context.Context) (string, error)

	// Key correlates the provider callback with this attempt: the state
	// parameter or the temporary oauth_token. Empty until AuthorizationURL
	// has succeeded.
	Key() string

	// Complete exchanges callback parameters for a token.
	Complete(ctx context.Context, params url.Values) (Token, error)

	// Token returns the token obtained by Complete, or nil.
	Token() Token
}

// Refresher is implemented by clients able to refresh tokens.
type Refresher interface {
	RefreshToken(ctx context.Context, tok Token) (Token, error)
}

// Revoker is implemented by clients able to revoke tokens.
type Revoker interface {
	RevokeToken(ctx context.Context, tok Token) error
}
