package oauthkit

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/signature"
)

// Protocol is the OAuth version a provider speaks.
type Protocol string

const (
	OAuth1 Protocol = "oauth1"
	OAuth2 Protocol = "oauth2"
)

// GrantType is an OAuth 2.0 grant.
type GrantType string

const (
	AuthorizationCode GrantType = "authorization_code"
	PasswordGrant     GrantType = "password"
	ClientCredentials GrantType = "client_credentials"
	RefreshTokenGrant GrantType = "refresh_token"
)

// Response types for the OAuth 2.0 authorization endpoint.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// ProviderConfig describes a provider. A provider is data interpreted by one
// of the two protocol engines, not a type of its own.
type ProviderConfig struct {
	Name     ClientName
	Protocol Protocol

	ClientID     string
	ClientSecret string

	// OAuth 2.0 endpoints. AuthorizeURL is also the OAuth 1.0a authorize page.
	AuthorizeURL string
	TokenURL     string
	RevokeURL    string

	// OAuth 1.0a endpoints.
	RequestTokenURL string
	AccessTokenURL  string

	UserInfoURL    string
	UserInfoMethod string

	// Scope is requested in addition to DefaultScope.
	Scope          string
	DefaultScope   string
	ScopeSeparator string

	ReturnURL string

	// Extra authorization URL parameters.
	Parameters request.Params

	ResponseType string    // OAuth 2.0, "code" when empty
	GrantType    GrantType // OAuth 2.0, authorization_code when empty

	SignatureMethod signature.Method // OAuth 1.0a, HMAC-SHA1 when empty
	PrivateKey      *rsa.PrivateKey  // RSA-SHA1 only

	SupportsRefresh bool
	SupportsRevoke  bool

	// Where access tokens travel on API requests.
	TokenPlacement request.Placement
	TokenParam     string

	FieldMap FieldMap
}

// Clone returns a copy that shares nothing mutable with c.
func (c ProviderConfig) Clone() ProviderConfig {
	c.Parameters = c.Parameters.Clone()
	c.FieldMap = append(FieldMap(nil), c.FieldMap...)
	return c
}

// Validate checks that c has what its protocol needs.
func (c ProviderConfig) Validate() error {
	var missing []string
	check := func(v, name string) {
		if v == "" {
			missing = append(missing, name)
		}
	}
	check(c.Name.Provider, "name")
	check(c.ClientID, "clientId")
	check(c.ClientSecret, "clientSecret")

	switch c.Protocol {
	case OAuth1:
		check(c.RequestTokenURL, "requestTokenUrl")
		check(c.AuthorizeURL, "authorizeUrl")
		check(c.AccessTokenURL, "accessTokenUrl")
		if c.SignatureMethod == signature.RSASHA1 && c.PrivateKey == nil {
			missing = append(missing, "privateKeyFile")
		}
	case OAuth2:
		switch c.grantType() {
		case AuthorizationCode:
			check(c.AuthorizeURL, "authorizeUrl")
			if c.responseType() == ResponseTypeCode {
				check(c.TokenURL, "tokenUrl")
			}
		case PasswordGrant, ClientCredentials:
			check(c.TokenURL, "tokenUrl")
		default:
			return errors.WrapPrefix(ErrInvalidConfig, c.Name.String()+": unsupported grant type "+string(c.GrantType), 0)
		}
		if c.SupportsRevoke {
			check(c.RevokeURL, "revokeUrl")
		}
	default:
		return errors.WrapPrefix(ErrInvalidConfig, c.Name.String()+": unknown protocol "+string(c.Protocol), 0)
	}

	if len(missing) > 0 {
		return errors.WrapPrefix(ErrInvalidConfig, c.Name.String()+": missing "+strings.Join(missing, ", "), 0)
	}
	return nil
}

func (c ProviderConfig) grantType() GrantType {
	if c.GrantType == "" {
		return AuthorizationCode
	}
	return c.GrantType
}

func (c ProviderConfig) responseType() string {
	if c.ResponseType == "" {
		return ResponseTypeCode
	}
	return c.ResponseType
}

// EffectiveGrantType is GrantType with its default applied.
func (c ProviderConfig) EffectiveGrantType() GrantType {
	return c.grantType()
}

// EffectiveResponseType is ResponseType with its default applied.
func (c ProviderConfig) EffectiveResponseType() string {
	return c.responseType()
}

// Separator returns the scope separator, a space when unset.
func (c ProviderConfig) Separator() string {
	return separatorOrSpace(c.ScopeSeparator)
}

// MergedScope joins DefaultScope and Scope without duplicates.
func (c ProviderConfig) MergedScope() string {
	return MergeScopes(c.Separator(), c.DefaultScope, c.Scope)
}

// UserInfoHTTPMethod returns the profile request method, GET when unset.
func (c ProviderConfig) UserInfoHTTPMethod() string {
	if c.UserInfoMethod == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.UserInfoMethod)
}

// FlowOptions override configuration for a single authorization attempt.
type FlowOptions struct {
	ReturnURL  string
	Scope      string
	Parameters request.Params
	Username   string
	Password   string
}

// FlowOption configures a single authorization attempt.
type FlowOption func(*FlowOptions)

// WithReturnURL overrides the callback URL for one attempt.
func WithReturnURL(u string) FlowOption {
	return func(o *FlowOptions) {
		o.ReturnURL = u
	}
}

// WithScope requests scope in addition to the configured scopes.
func WithScope(scope string) FlowOption {
	return func(o *FlowOptions) {
		o.Scope = scope
	}
}

// WithParameter adds an extra authorization URL parameter, replacing a
// configured one of the same name.
func WithParameter(key, value string) FlowOption {
	return func(o *FlowOptions) {
		o.Parameters.Set(key, value)
	}
}

// WithCredentials supplies resource owner credentials for the password grant.
func WithCredentials(username, password string) FlowOption {
	return func(o *FlowOptions) {
		o.Username, o.Password = username, password
	}
}

// ApplyFlowOptions returns a copy of c with opts applied, leaving c untouched
// so registered clients can serve concurrent attempts.
func ApplyFlowOptions(c ProviderConfig, opts ...FlowOption) (ProviderConfig, FlowOptions) {
	var o FlowOptions
	for _, opt := range opts {
		opt(&o)
	}
	clone := c.Clone()
	if o.ReturnURL != "" {
		clone.ReturnURL = o.ReturnURL
	}
	if o.Scope != "" {
		clone.Scope = MergeScopes(clone.Separator(), clone.Scope, o.Scope)
	}
	clone.Parameters.Merge(o.Parameters)
	return clone, o
}
