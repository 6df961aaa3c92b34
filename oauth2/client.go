// Package oauth2 is the OAuth 2.0 protocol engine: authorization URLs, the
// authorization_code, password, client_credentials and refresh_token grants,
// the implicit grant, RFC 7009 revocation and authorized API requests.
package oauth2

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/events"
	"github.com/dpup/oauthkit/logging"
	"github.com/dpup/oauthkit/request"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Option configures a Client.
type Option func(*Client)

// WithExecutor sets the executor used for all provider calls.
func WithExecutor(e *request.Executor) Option {
	return func(c *Client) {
		c.exec = e
	}
}

// WithClock overrides the time source used to stamp tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is an OAuth 2.0 provider. It is immutable and safe for concurrent
// use; WithAccessToken returns a copy bound to a token.
type Client struct {
	cfg   oauthkit.ProviderConfig
	exec  *request.Executor
	now   func() time.Time
	token *oauthkit.OAuth2AccessToken

	// Shared between copies so concurrent refreshes of one token coalesce.
	refreshes *singleflight.Group
}

var (
	_ oauthkit.Client    = (*Client)(nil)
	_ oauthkit.Refresher = (*Client)(nil)
	_ oauthkit.Revoker   = (*Client)(nil)
)

// New validates cfg and returns a client.
func New(cfg oauthkit.ProviderConfig, opts ...Option) (*Client, error) {
	if cfg.Protocol == "" {
		cfg.Protocol = oauthkit.OAuth2
	}
	if cfg.Protocol != oauthkit.OAuth2 {
		return nil, errors.WrapPrefix(oauthkit.ErrInvalidConfig, cfg.Name.String()+": not an oauth2 provider", 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg.Clone(),
		now:       time.Now,
		refreshes: &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = request.NewExecutor()
	}
	return c, nil
}

func (c *Client) Name() oauthkit.ClientName { return c.cfg.Name }

func (c *Client) Protocol() oauthkit.Protocol { return oauthkit.OAuth2 }

func (c *Client) Config() oauthkit.ProviderConfig { return c.cfg.Clone() }

// CurrentToken returns the bound token, or nil.
func (c *Client) CurrentToken() *oauthkit.OAuth2AccessToken { return c.token }

// WithAccessToken returns a copy of c bound to tok.
func (c *Client) WithAccessToken(tok *oauthkit.OAuth2AccessToken) *Client {
	clone := *c
	clone.token = tok
	return &clone
}

// WithToken implements oauthkit.Client. Tokens of another protocol are
// ignored.
func (c *Client) WithToken(tok oauthkit.Token) oauthkit.Client {
	t, _ := tok.(*oauthkit.OAuth2AccessToken)
	return c.WithAccessToken(t)
}

// NewFlow starts an authorization attempt.
func (c *Client) NewFlow(opts ...oauthkit.FlowOption) oauthkit.Flow {
	return c.Flow(opts...)
}

// Flow is NewFlow returning the concrete type.
func (c *Client) Flow(opts ...oauthkit.FlowOption) *Flow {
	cfg, o := oauthkit.ApplyFlowOptions(c.cfg, opts...)
	return &Flow{client: c, cfg: cfg, opts: o}
}

// AuthorizationURL builds the authorization URL for state. It is
// deterministic: the same configuration and state give the same URL.
func AuthorizationURL(cfg oauthkit.ProviderConfig, state string) (string, error) {
	u, err := url.Parse(cfg.AuthorizeURL)
	if err != nil {
		return "", errors.WrapPrefix(oauthkit.ErrInvalidConfig, "authorizeUrl: "+err.Error(), 0)
	}
	var p request.Params
	p.Add("client_id", cfg.ClientID)
	p.Add("response_type", cfg.EffectiveResponseType())
	if state != "" {
		p.Add("state", state)
	}
	if scope := cfg.MergedScope(); scope != "" {
		p.Add("scope", scope)
	}
	if cfg.ReturnURL != "" {
		p.Add("redirect_uri", cfg.ReturnURL)
	}
	p.Merge(cfg.Parameters)

	if u.RawQuery != "" {
		u.RawQuery += "&" + p.Encode()
	} else {
		u.RawQuery = p.Encode()
	}
	return u.String(), nil
}

// Exchange obtains a token with the configured grant. For the
// authorization_code grant code is required; for the password grant supply
// oauthkit.WithCredentials. A provider error is reported on the token.
func (c *Client) Exchange(ctx context.Context, code string, opts ...oauthkit.FlowOption) (*oauthkit.OAuth2AccessToken, error) {
	cfg, o := oauthkit.ApplyFlowOptions(c.cfg, opts...)
	return c.exchange(ctx, cfg, o, code)
}

// ExchangeAsync is Exchange on the executor's worker pool.
func (c *Client) ExchangeAsync(ctx context.Context, code string, opts ...oauthkit.FlowOption) *request.Future[*oauthkit.OAuth2AccessToken] {
	return request.Async(ctx, c.exec.Pool(), func(ctx context.Context) (*oauthkit.OAuth2AccessToken, error) {
		return c.Exchange(ctx, code, opts...)
	})
}

func (c *Client) exchange(ctx context.Context, cfg oauthkit.ProviderConfig, o oauthkit.FlowOptions, code string) (*oauthkit.OAuth2AccessToken, error) {
	grant := cfg.EffectiveGrantType()
	var form request.Params
	form.Add("grant_type", string(grant))

	basic := false
	switch grant {
	case oauthkit.AuthorizationCode:
		if code == "" {
			return nil, errors.WrapPrefix(oauthkit.ErrAuthorization, c.prefix()+"missing authorization code", 0)
		}
		form.Add("code", code)
		if cfg.ReturnURL != "" {
			form.Add("redirect_uri", cfg.ReturnURL)
		}
	case oauthkit.PasswordGrant:
		if o.Username == "" || o.Password == "" {
			return nil, errors.WrapPrefix(oauthkit.ErrMissingCredentials, c.prefix()+"password grant needs username and password", 0)
		}
		form.Add("username", o.Username)
		form.Add("password", o.Password)
		if scope := cfg.MergedScope(); scope != "" {
			form.Add("scope", scope)
		}
	case oauthkit.ClientCredentials:
		basic = true
		if scope := cfg.MergedScope(); scope != "" {
			form.Add("scope", scope)
		}
	default:
		return nil, errors.WrapPrefix(oauthkit.ErrNotSupported, c.prefix()+"grant type "+string(grant), 0)
	}

	tok, err := c.postToken(ctx, cfg, form, basic)
	if err != nil {
		return nil, err
	}
	logging.Debugw(ctx, "oauth2: token exchange", "client", cfg.Name.String(), "grant", string(grant), "successful", tok.IsSuccessful())
	return tok, nil
}

// postToken calls the token endpoint. Client credentials travel in the body
// unless basic is set, in which case only the Authorization header carries
// them.
func (c *Client) postToken(ctx context.Context, cfg oauthkit.ProviderConfig, form request.Params, basic bool) (*oauthkit.OAuth2AccessToken, error) {
	req := request.New(http.MethodPost, cfg.TokenURL)
	req.Form = form
	if basic {
		req.Authorizer = request.Basic{Username: cfg.ClientID, Password: cfg.ClientSecret}
	} else {
		req.Form.Add("client_id", cfg.ClientID)
		req.Form.Add("client_secret", cfg.ClientSecret)
	}

	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return nil, errors.WrapPrefix(err, c.prefix()+"token endpoint", 0)
	}
	if err := oauthkit.CheckResponse(resp); err != nil {
		return nil, errors.WrapPrefix(err, c.prefix()+"token endpoint", 0)
	}
	return oauthkit.ParseOAuth2Token(resp.StatusCode, resp.Value, cfg.ScopeSeparator, c.now())
}

// RefreshToken implements oauthkit.Refresher.
func (c *Client) RefreshToken(ctx context.Context, tok oauthkit.Token) (oauthkit.Token, error) {
	var t *oauthkit.OAuth2AccessToken
	switch v := tok.(type) {
	case nil:
	case *oauthkit.OAuth2AccessToken:
		t = v
	default:
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"not an oauth2 token", 0)
	}
	next, err := c.Refresh(ctx, t)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Refresh exchanges tok's refresh token for a new token; nil uses the bound
// token. tok is not modified. When the provider does not rotate refresh
// tokens the old one is carried over. Concurrent refreshes of the same token
// share one request.
func (c *Client) Refresh(ctx context.Context, tok *oauthkit.OAuth2AccessToken) (*oauthkit.OAuth2AccessToken, error) {
	if !c.cfg.SupportsRefresh {
		return nil, errors.WrapPrefix(oauthkit.ErrNotSupported, c.prefix()+"refresh", 0)
	}
	if tok == nil {
		tok = c.token
	}
	if tok == nil {
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"no token to refresh", 0)
	}
	refresh := tok.RefreshToken()
	if refresh == "" {
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"token has no refresh token", 0)
	}

	// The shared call outlives any single caller; each caller can still
	// stop waiting on its own context. The executor timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan(refresh, func() (interface{}, error) {
		var form request.Params
		form.Add("grant_type", string(oauthkit.RefreshTokenGrant))
		form.Add("refresh_token", refresh)
		next, err := c.postToken(shared, c.cfg, form, false)
		if err != nil {
			return nil, err
		}
		next = next.WithFallbackRefreshToken(refresh)
		if next.IsSuccessful() {
			logging.Debugw(shared, "oauth2: token refreshed", "client", c.cfg.Name.String())
			events.Publish(shared, events.TokenRefreshed, &events.Event{
				Group:    c.cfg.Name.Group,
				Provider: c.cfg.Name.Provider,
				Data:     next,
			})
		}
		return next, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauthkit.OAuth2AccessToken), nil
	case <-ctx.Done():
		return nil, errors.WrapPrefix(ctx.Err(), c.prefix()+"refresh", 0)
	}
}

// RefreshAsync is Refresh on the executor's worker pool.
func (c *Client) RefreshAsync(ctx context.Context, tok *oauthkit.OAuth2AccessToken) *request.Future[*oauthkit.OAuth2AccessToken] {
	return request.Async(ctx, c.exec.Pool(), func(ctx context.Context) (*oauthkit.OAuth2AccessToken, error) {
		return c.Refresh(ctx, tok)
	})
}

// RevokeToken implements oauthkit.Revoker.
func (c *Client) RevokeToken(ctx context.Context, tok oauthkit.Token) error {
	if !c.cfg.SupportsRevoke {
		return errors.WrapPrefix(oauthkit.ErrNotSupported, c.prefix()+"revoke", 0)
	}
	t, err := c.resolve(tok)
	if err != nil {
		return err
	}
	return c.Revoke(ctx, t)
}

// Revoke invalidates tok at the provider per RFC 7009; nil uses the bound
// token.
func (c *Client) Revoke(ctx context.Context, tok *oauthkit.OAuth2AccessToken) error {
	if !c.cfg.SupportsRevoke {
		return errors.WrapPrefix(oauthkit.ErrNotSupported, c.prefix()+"revoke", 0)
	}
	if tok == nil {
		tok = c.token
	}
	if tok == nil || tok.Value() == "" {
		return errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"no token to revoke", 0)
	}

	req := request.New(http.MethodPost, c.cfg.RevokeURL)
	req.Form.Add("token", tok.Value())
	req.Form.Add("token_type_hint", "access_token")
	req.Form.Add("client_id", c.cfg.ClientID)
	req.Form.Add("client_secret", c.cfg.ClientSecret)

	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return errors.WrapPrefix(err, c.prefix()+"revoke", 0)
	}
	// RFC 7009 ignores the body of a successful response.
	if !resp.OK() {
		if err := oauthkit.CheckResponse(resp); err != nil {
			return errors.WrapPrefix(err, c.prefix()+"revoke", 0)
		}
	}
	if info := oauthkit.ResponseErrorInfo(resp.StatusCode, resp.Value); !info.IsZero() {
		return errors.WrapPrefix(&oauthkit.APIError{StatusCode: resp.StatusCode, Info: info}, c.prefix()+"revoke", 0)
	}

	events.Publish(ctx, events.TokenRevoked, &events.Event{
		Group:    c.cfg.Name.Group,
		Provider: c.cfg.Name.Provider,
	})
	return nil
}

// Authorizer returns a bearer authorizer for tok, placed as configured.
func (c *Client) Authorizer(tok oauthkit.Token) (request.Authorizer, error) {
	t, err := c.resolve(tok)
	if err != nil {
		return nil, err
	}
	return request.Bearer{
		Token:     t.Value(),
		Type:      t.TokenType(),
		Placement: c.cfg.TokenPlacement,
		Param:     c.cfg.TokenParam,
	}, nil
}

// Execute sends req authorized with tok, or the bound token when tok is nil.
func (c *Client) Execute(ctx context.Context, req *request.Request, tok oauthkit.Token) (*request.Response, error) {
	auth, err := c.Authorizer(tok)
	if err != nil {
		return nil, err
	}
	r := req.Clone()
	r.Authorizer = request.Chain(req.Authorizer, auth)
	return c.exec.Do(ctx, r)
}

// ExecuteAsync is Execute on the executor's worker pool.
func (c *Client) ExecuteAsync(ctx context.Context, req *request.Request, tok oauthkit.Token) *request.Future[*request.Response] {
	return request.Async(ctx, c.exec.Pool(), func(ctx context.Context) (*request.Response, error) {
		return c.Execute(ctx, req, tok)
	})
}

// UserProfile fetches the profile of tok's owner, or of the bound token's
// owner when tok is nil.
func (c *Client) UserProfile(ctx context.Context, tok oauthkit.Token) (*oauthkit.UserInfo, error) {
	auth, err := c.Authorizer(tok)
	if err != nil {
		return nil, err
	}
	return oauthkit.FetchUserInfo(ctx, c.exec, c.cfg, auth)
}

// UserProfileAsync is UserProfile on the executor's worker pool.
func (c *Client) UserProfileAsync(ctx context.Context, tok oauthkit.Token) *request.Future[*oauthkit.UserInfo] {
	return request.Async(ctx, c.exec.Pool(), func(ctx context.Context) (*oauthkit.UserInfo, error) {
		return c.UserProfile(ctx, tok)
	})
}

// HTTPClient returns an *http.Client that authorizes every request with tok,
// or the bound token when tok is nil, and refreshes it through
// golang.org/x/oauth2 when it expires.
func (c *Client) HTTPClient(ctx context.Context, tok *oauthkit.OAuth2AccessToken) (*http.Client, error) {
	t, err := c.resolve(tok)
	if err != nil {
		return nil, err
	}
	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthorizeURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.cfg.ReturnURL,
		Scopes:      oauthkit.SplitScope(c.cfg.MergedScope(), c.cfg.Separator()),
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.exec.HTTPClient())
	return conf.Client(ctx, t.Token()), nil
}

func (c *Client) resolve(tok oauthkit.Token) (*oauthkit.OAuth2AccessToken, error) {
	var t *oauthkit.OAuth2AccessToken
	switch v := tok.(type) {
	case nil:
		t = c.token
	case *oauthkit.OAuth2AccessToken:
		t = v
		if t == nil {
			t = c.token
		}
	default:
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"not an oauth2 token", 0)
	}
	if t == nil {
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"no access token available", 0)
	}
	if !t.IsSuccessful() {
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"token is not valid: "+t.ErrorInfo().String(), 0)
	}
	return t, nil
}

func (c *Client) prefix() string {
	return "oauth2: " + c.cfg.Name.String() + ": "
}
