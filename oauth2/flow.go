package oauth2

import (
	"context"
	"crypto/subtle"
	"net/url"
	"sync"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
)

// Flow is one OAuth 2.0 authorization attempt. The redirect based grants
// issue an authorization URL keyed by a random state; the password and
// client_credentials grants complete directly.
type Flow struct {
	client *Client
	cfg    oauthkit.ProviderConfig
	opts   oauthkit.FlowOptions

	mu    sync.Mutex
	state oauthkit.FlowState
	key   string
	token *oauthkit.OAuth2AccessToken
}

var _ oauthkit.Flow = (*Flow)(nil)

func (f *Flow) Client() oauthkit.Client { return f.client }

// Config returns the configuration in effect for this attempt.
func (f *Flow) Config() oauthkit.ProviderConfig { return f.cfg.Clone() }

func (f *Flow) State() oauthkit.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Key() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

// AuthorizationURL generates a fresh state and returns the provider's
// authorization URL. Calling it again replaces the state.
func (f *Flow) AuthorizationURL(_ context.Context) (string, error) {
	switch f.cfg.EffectiveGrantType() {
	case oauthkit.AuthorizationCode:
	default:
		return "", errors.WrapPrefix(oauthkit.ErrNotSupported,
			f.client.prefix()+"no authorization url for grant type "+string(f.cfg.EffectiveGrantType()), 0)
	}
	state := oauthkit.NewState()
	u, err := AuthorizationURL(f.cfg, state)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.key = state
	f.state = oauthkit.AuthorizationURLIssued
	return u, nil
}

// Complete exchanges the callback parameters for a token. For the implicit
// grant the token is read from params directly. For the password and
// client_credentials grants params are ignored and the token endpoint is
// called with the attempt's credentials.
func (f *Flow) Complete(ctx context.Context, params url.Values) (oauthkit.Token, error) {
	tok, err := f.complete(ctx, params)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Exchange is Complete returning the concrete token type.
func (f *Flow) Exchange(ctx context.Context, params url.Values) (*oauthkit.OAuth2AccessToken, error) {
	return f.complete(ctx, params)
}

func (f *Flow) complete(ctx context.Context, params url.Values) (*oauthkit.OAuth2AccessToken, error) {
	grant := f.cfg.EffectiveGrantType()

	var (
		tok *oauthkit.OAuth2AccessToken
		err error
	)
	switch grant {
	case oauthkit.PasswordGrant, oauthkit.ClientCredentials:
		tok, err = f.client.exchange(ctx, f.cfg, f.opts, "")
	default:
		if err := f.checkCallback(params); err != nil {
			return nil, err
		}
		if f.cfg.EffectiveResponseType() == oauthkit.ResponseTypeToken {
			tok, err = oauthkit.ParseOAuth2Callback(params, f.cfg.ScopeSeparator, f.client.now())
		} else {
			tok, err = f.client.exchange(ctx, f.cfg, f.opts, params.Get("code"))
		}
	}
	if err != nil {
		return nil, err
	}

	if tok.IsSuccessful() {
		f.mu.Lock()
		f.token = tok
		f.state = oauthkit.AccessTokenObtained
		f.mu.Unlock()
	}
	return tok, nil
}

// checkCallback rejects provider errors and callbacks whose state does not
// belong to this attempt.
func (f *Flow) checkCallback(params url.Values) error {
	if err := oauthkit.CallbackError(params); err != nil {
		return err
	}
	key := f.Key()
	if key == "" {
		return errors.WrapPrefix(oauthkit.ErrAuthorization, f.client.prefix()+"no authorization url was issued", 0)
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(params.Get("state"))) != 1 {
		return errors.WrapPrefix(oauthkit.ErrAuthorization, f.client.prefix()+"state mismatch", 0)
	}
	return nil
}

func (f *Flow) Token() oauthkit.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return nil
	}
	return f.token
}
