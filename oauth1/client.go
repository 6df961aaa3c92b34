// Package oauth1 is the OAuth 1.0a protocol engine: request tokens, the
// authorization redirect, verifier exchange and signed API requests.
package oauth1

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/logging"
	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/signature"
)

// Option configures a Client.
type Option func(*Client)

// WithExecutor sets the executor used for all provider calls.
func WithExecutor(e *request.Executor) Option {
	return func(c *Client) {
		c.exec = e
	}
}

// WithClock overrides the time source used for timestamps and tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithNonce overrides oauth_nonce generation.
func WithNonce(nonce func() string) Option {
	return func(c *Client) {
		c.nonce = nonce
	}
}

// Client is an OAuth 1.0a provider. It is safe for concurrent use;
// WithAccessToken returns a copy bound to a token.
type Client struct {
	cfg   oauthkit.ProviderConfig
	exec  *request.Executor
	now   func() time.Time
	nonce func() string
	token *oauthkit.OAuth1AccessToken
}

var _ oauthkit.Client = (*Client)(nil)

// New validates cfg and returns a client.
func New(cfg oauthkit.ProviderConfig, opts ...Option) (*Client, error) {
	if cfg.Protocol == "" {
		cfg.Protocol = oauthkit.OAuth1
	}
	if cfg.Protocol != oauthkit.OAuth1 {
		return nil, errors.WrapPrefix(oauthkit.ErrInvalidConfig, cfg.Name.String()+": not an oauth1 provider", 0)
	}
	method, err := signature.ParseMethod(string(cfg.SignatureMethod))
	if err != nil {
		return nil, errors.WrapPrefix(oauthkit.ErrInvalidConfig, cfg.Name.String()+": "+err.Error(), 0)
	}
	cfg.SignatureMethod = method
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg.Clone(), now: time.Now, nonce: NewNonce}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = request.NewExecutor()
	}
	return c, nil
}

func (c *Client) Name() oauthkit.ClientName { return c.cfg.Name }

func (c *Client) Protocol() oauthkit.Protocol { return oauthkit.OAuth1 }

func (c *Client) Config() oauthkit.ProviderConfig { return c.cfg.Clone() }

// CurrentToken returns the bound token, or nil.
func (c *Client) CurrentToken() *oauthkit.OAuth1AccessToken { return c.token }

// WithAccessToken returns a copy of c bound to tok.
func (c *Client) WithAccessToken(tok *oauthkit.OAuth1AccessToken) *Client {
	clone := *c
	clone.token = tok
	return &clone
}

// WithToken implements oauthkit.Client. Tokens of another protocol are
// ignored.
func (c *Client) WithToken(tok oauthkit.Token) oauthkit.Client {
	t, _ := tok.(*oauthkit.OAuth1AccessToken)
	return c.WithAccessToken(t)
}

// NewFlow starts an authorization attempt.
func (c *Client) NewFlow(opts ...oauthkit.FlowOption) oauthkit.Flow {
	return c.Flow(opts...)
}

// Flow is NewFlow returning the concrete type.
func (c *Client) Flow(opts ...oauthkit.FlowOption) *Flow {
	cfg, _ := oauthkit.ApplyFlowOptions(c.cfg, opts...)
	return &Flow{client: c, cfg: cfg}
}

// Signer returns the signer for a token secret, empty before a token has
// been obtained.
func (c *Client) Signer(tokenSecret string) signature.Signer {
	return signature.Signer{
		Method:         c.cfg.SignatureMethod,
		ConsumerSecret: c.cfg.ClientSecret,
		TokenSecret:    tokenSecret,
		PrivateKey:     c.cfg.PrivateKey,
	}
}

func (c *Client) authorizer(token, secret string, extra ...signature.Param) Authorizer {
	return Authorizer{
		ConsumerKey: c.cfg.ClientID,
		Signer:      c.Signer(secret),
		Token:       token,
		Extra:       extra,
		Placement:   c.cfg.TokenPlacement,
		Nonce:       c.nonce,
		Now:         c.now,
	}
}

// RequestToken obtains a temporary token, announcing cfg.ReturnURL as
// oauth_callback ("oob" when unset). A provider error is reported on the
// token.
func (c *Client) RequestToken(ctx context.Context, cfg oauthkit.ProviderConfig) (*oauthkit.OAuth1AccessToken, error) {
	callback := cfg.ReturnURL
	if callback == "" {
		callback = "oob"
	}
	req := request.New(http.MethodPost, cfg.RequestTokenURL)
	req.Authorizer = c.authorizer("", "", signature.Param{Key: "oauth_callback", Value: callback})

	tok, err := c.postToken(ctx, req, "request token")
	if err != nil {
		return nil, err
	}
	logging.Debugw(ctx, "oauth1: request token", "client", cfg.Name.String(), "successful", tok.IsSuccessful())
	return tok, nil
}

// AuthorizationURL appends oauth_token and the extra parameters of cfg to the
// authorize endpoint.
func AuthorizationURL(cfg oauthkit.ProviderConfig, requestToken string) (string, error) {
	u, err := url.Parse(cfg.AuthorizeURL)
	if err != nil {
		return "", errors.WrapPrefix(oauthkit.ErrInvalidConfig, "authorizeUrl: "+err.Error(), 0)
	}
	var p request.Params
	p.Add("oauth_token", requestToken)
	p.Merge(cfg.Parameters)
	if u.RawQuery != "" {
		u.RawQuery += "&" + p.Encode()
	} else {
		u.RawQuery = p.Encode()
	}
	return u.String(), nil
}

// Exchange trades an authorized request token and its verifier for an access
// token. A provider error is reported on the token.
func (c *Client) Exchange(ctx context.Context, requestToken *oauthkit.OAuth1AccessToken, verifier string) (*oauthkit.OAuth1AccessToken, error) {
	if requestToken == nil || requestToken.Value() == "" {
		return nil, errors.WrapPrefix(oauthkit.ErrAuthorization, c.prefix()+"no request token", 0)
	}
	if verifier == "" {
		return nil, errors.WrapPrefix(oauthkit.ErrAuthorization, c.prefix()+"missing oauth_verifier", 0)
	}
	req := request.New(http.MethodPost, c.cfg.AccessTokenURL)
	req.Authorizer = c.authorizer(requestToken.Value(), requestToken.Secret(),
		signature.Param{Key: "oauth_verifier", Value: verifier})

	tok, err := c.postToken(ctx, req, "access token")
	if err != nil {
		return nil, err
	}
	logging.Debugw(ctx, "oauth1: access token", "client", c.cfg.Name.String(), "successful", tok.IsSuccessful())
	return tok, nil
}

// ExchangeAsync is Exchange on the executor's worker pool.
func (c *Client) ExchangeAsync(ctx context.Context, requestToken *oauthkit.OAuth1AccessToken, verifier string) *request.Future[*oauthkit.OAuth1AccessToken] {
	return request.Async(ctx, c.exec.Pool(), func(ctx context.Context) (*oauthkit.OAuth1AccessToken, error) {
		return c.Exchange(ctx, requestToken, verifier)
	})
}

func (c *Client) postToken(ctx context.Context, req *request.Request, what string) (*oauthkit.OAuth1AccessToken, error) {
	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return nil, errors.WrapPrefix(err, c.prefix()+what, 0)
	}
	if err := oauthkit.CheckResponse(resp); err != nil {
		return nil, errors.WrapPrefix(err, c.prefix()+what, 0)
	}
	tok, err := oauthkit.ParseOAuth1Token(resp.StatusCode, resp.Value, c.now())
	if err != nil {
		return nil, errors.WrapPrefix(err, c.prefix()+what, 0)
	}
	return tok, nil
}

// Authorizer returns a signing authorizer for tok.
func (c *Client) Authorizer(tok oauthkit.Token) (request.Authorizer, error) {
	t, err := c.resolve(tok)
	if err != nil {
		return nil, err
	}
	return c.authorizer(t.Value(), t.Secret()), nil
}

// Execute sends req signed with tok, or the bound token when tok is nil.
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

// UserProfile fetches the profile of tok's owner.
func (c *Client) UserProfile(ctx context.Context, tok oauthkit.Token) (*oauthkit.UserInfo, error) {
	auth, err := c.Authorizer(tok)
	if err != nil {
		return nil, err
	}
	return oauthkit.FetchUserInfo(ctx, c.exec, c.cfg, auth)
}

func (c *Client) resolve(tok oauthkit.Token) (*oauthkit.OAuth1AccessToken, error) {
	var t *oauthkit.OAuth1AccessToken
	switch v := tok.(type) {
	case nil:
		t = c.token
	case *oauthkit.OAuth1AccessToken:
		t = v
		if t == nil {
			t = c.token
		}
	default:
		return nil, errors.WrapPrefix(oauthkit.ErrAccessToken, c.prefix()+"not an oauth1 token", 0)
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
	return "oauth1: " + c.cfg.Name.String() + ": "
}
