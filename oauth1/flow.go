package oauth1

import (
	"context"
	"crypto/subtle"
	"net/url"
	"sync"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
)

// Flow is one OAuth 1.0a authorization attempt. It moves from Unauthorized
// through RequestTokenObtained and AuthorizationURLIssued to
// AccessTokenObtained; the temporary oauth_token is the callback key.
type Flow struct {
	client *Client
	cfg    oauthkit.ProviderConfig

	mu           sync.Mutex
	state        oauthkit.FlowState
	requestToken *oauthkit.OAuth1AccessToken
	token        *oauthkit.OAuth1AccessToken
}

var _ oauthkit.Flow = (*Flow)(nil)

func (f *Flow) Client() oauthkit.Client { return f.client }

func (f *Flow) State() oauthkit.FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Key() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestToken == nil {
		return ""
	}
	return f.requestToken.Value()
}

// RequestToken returns the temporary token, fetching it on first use.
func (f *Flow) RequestToken(ctx context.Context) (*oauthkit.OAuth1AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestTokenLocked(ctx)
}

func (f *Flow) requestTokenLocked(ctx context.Context) (*oauthkit.OAuth1AccessToken, error) {
	if f.requestToken != nil {
		return f.requestToken, nil
	}
	tok, err := f.client.RequestToken(ctx, f.cfg)
	if err != nil {
		return nil, err
	}
	if !tok.IsSuccessful() {
		return nil, errors.WrapPrefix(oauthkit.ErrAuthorization,
			f.client.prefix()+"request token rejected: "+tok.ErrorInfo().String(), 0)
	}
	f.requestToken = tok
	f.state = oauthkit.RequestTokenObtained
	return tok, nil
}

// AuthorizationURL fetches a request token if the flow has none and returns
// the authorize page URL for it.
func (f *Flow) AuthorizationURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, err := f.requestTokenLocked(ctx)
	if err != nil {
		return "", err
	}
	u, err := AuthorizationURL(f.cfg, tok.Value())
	if err != nil {
		return "", err
	}
	f.state = oauthkit.AuthorizationURLIssued
	return u, nil
}

// Complete exchanges oauth_verifier for an access token. The callback's
// oauth_token, when present, must be this attempt's request token.
func (f *Flow) Complete(ctx context.Context, params url.Values) (oauthkit.Token, error) {
	tok, err := f.Exchange(ctx, params)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Exchange is Complete returning the concrete token type.
func (f *Flow) Exchange(ctx context.Context, params url.Values) (*oauthkit.OAuth1AccessToken, error) {
	if err := oauthkit.CallbackError(params); err != nil {
		return nil, err
	}

	f.mu.Lock()
	reqTok := f.requestToken
	f.mu.Unlock()
	if reqTok == nil {
		return nil, errors.WrapPrefix(oauthkit.ErrAuthorization, f.client.prefix()+"no request token was obtained", 0)
	}
	if got := params.Get("oauth_token"); got != "" &&
		subtle.ConstantTimeCompare([]byte(got), []byte(reqTok.Value())) != 1 {
		return nil, errors.WrapPrefix(oauthkit.ErrAuthorization, f.client.prefix()+"oauth_token mismatch", 0)
	}

	tok, err := f.client.Exchange(ctx, reqTok, params.Get("oauth_verifier"))
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

func (f *Flow) Token() oauthkit.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return nil
	}
	return f.token
}
