package oauthkit

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/logging"
	"github.com/dpup/oauthkit/univalue"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Token is a token obtained from a provider. A token whose provider reported
// an error has IsSuccessful false, an empty Value and a populated ErrorInfo.
type Token interface {
	Value() string
	Raw() univalue.Value
	IsSuccessful() bool
	ErrorInfo() ErrorInfo
}

// AccessToken holds the token string and the full response it came from, so
// provider specific fields stay reachable. Tokens are never modified after
// being parsed; refreshing produces a new one.
type AccessToken struct {
	value      string
	raw        univalue.Value
	errInfo    ErrorInfo
	obtainedAt time.Time
}

// Value returns the token string.
func (t *AccessToken) Value() string {
	return t.value
}

// Raw returns the response the token was parsed from.
func (t *AccessToken) Raw() univalue.Value {
	return t.raw
}

// Get returns a field of the originating response.
func (t *AccessToken) Get(key string) univalue.Value {
	return t.raw.Get(key)
}

// IsSuccessful reports whether the token can be used.
func (t *AccessToken) IsSuccessful() bool {
	return t != nil && t.value != "" && t.errInfo.IsZero()
}

// ErrorInfo returns the provider error, if any.
func (t *AccessToken) ErrorInfo() ErrorInfo {
	return t.errInfo
}

// ObtainedAt is when the token response was received.
func (t *AccessToken) ObtainedAt() time.Time {
	return t.obtainedAt
}

func (t *AccessToken) String() string {
	if !t.IsSuccessful() {
		return fmt.Sprintf("AccessToken{error: %s}", t.errInfo)
	}
	return fmt.Sprintf("AccessToken{value: %s}", logging.Redact(t.value))
}

func errorToken(info ErrorInfo, now time.Time) AccessToken {
	return AccessToken{raw: info.Raw, errInfo: info, obtainedAt: now}
}

// OAuth2AccessToken adds the normalized fields of an RFC 6749 token response.
type OAuth2AccessToken struct {
	AccessToken
	expiresIn      int64
	expiresAt      time.Time
	refreshToken   string
	scope          string
	scopeSeparator string
	tokenType      string
	idToken        string
}

// ParseOAuth2Token builds a token from a token endpoint response. A provider
// error is captured on the token rather than returned; a successful response
// with no access_token is an ErrAuthorization.
func ParseOAuth2Token(status int, v univalue.Value, scopeSeparator string, now time.Time) (*OAuth2AccessToken, error) {
	if info := ResponseErrorInfo(status, v); !info.IsZero() {
		return &OAuth2AccessToken{AccessToken: errorToken(info, now), scopeSeparator: scopeSeparator}, nil
	}

	value := v.First("access_token", "accessToken").String()
	if value == "" {
		return nil, errors.WrapPrefix(ErrAuthorization, "token response has no access_token", 0)
	}

	t := &OAuth2AccessToken{
		AccessToken:    AccessToken{value: value, raw: v, obtainedAt: now},
		expiresIn:      v.First("expires_in", "expires").Int64(),
		refreshToken:   v.First("refresh_token", "refreshToken").String(),
		scopeSeparator: scopeSeparator,
		tokenType:      v.Get("token_type").String(),
		idToken:        v.Get("id_token").String(),
	}
	if t.expiresIn < 0 {
		t.expiresIn = 0
	}
	if t.expiresIn > 0 {
		t.expiresAt = now.Add(time.Duration(t.expiresIn) * time.Second)
	}
	scope := v.First("scope", "scopes")
	if scope.Kind() == univalue.Array {
		parts := make([]string, 0, scope.Len())
		for _, s := range scope.Items() {
			parts = append(parts, s.String())
		}
		t.scope = strings.Join(parts, separatorOrSpace(scopeSeparator))
	} else {
		t.scope = scope.String()
	}
	return t, nil
}

// ParseOAuth2Callback builds a token from implicit grant callback parameters.
func ParseOAuth2Callback(params url.Values, scopeSeparator string, now time.Time) (*OAuth2AccessToken, error) {
	return ParseOAuth2Token(http.StatusOK, univalue.FromValues(params), scopeSeparator, now)
}

// NewOAuth2AccessToken rebuilds a token from stored fields. A zero expiry
// means the token does not expire.
func NewOAuth2AccessToken(value, tokenType, refreshToken string, expiry time.Time) *OAuth2AccessToken {
	now := time.Now()
	t := &OAuth2AccessToken{
		AccessToken:  AccessToken{value: value, raw: univalue.NewObject(), obtainedAt: now},
		expiresAt:    expiry,
		refreshToken: refreshToken,
		tokenType:    tokenType,
	}
	if !expiry.IsZero() {
		t.expiresIn = max(0, int64(expiry.Sub(now).Round(time.Second)/time.Second))
	}
	return t
}

// FromOAuth2 converts a golang.org/x/oauth2 token.
func FromOAuth2(tok *oauth2.Token) *OAuth2AccessToken {
	return NewOAuth2AccessToken(tok.AccessToken, tok.TokenType, tok.RefreshToken, tok.Expiry)
}

// ExpiresIn is the lifetime in seconds reported by the provider, 0 when
// unknown or non-expiring.
func (t *OAuth2AccessToken) ExpiresIn() int64 {
	return t.expiresIn
}

// ExpiresAt is the absolute expiry, zero when unknown.
func (t *OAuth2AccessToken) ExpiresAt() time.Time {
	return t.expiresAt
}

// IsExpired reports whether the token expires within margin.
func (t *OAuth2AccessToken) IsExpired(margin time.Duration) bool {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !time.Now().Add(margin).Before(exp)
}

// RefreshToken returns the refresh token, if issued.
func (t *OAuth2AccessToken) RefreshToken() string {
	return t.refreshToken
}

// Scope returns the granted scope as sent by the provider.
func (t *OAuth2AccessToken) Scope() string {
	return t.scope
}

// Scopes splits Scope on the provider separator.
func (t *OAuth2AccessToken) Scopes() []string {
	return SplitScope(t.scope, separatorOrSpace(t.scopeSeparator))
}

// TokenType returns the token type, "Bearer" when the provider sent none.
func (t *OAuth2AccessToken) TokenType() string {
	if t.tokenType == "" || strings.EqualFold(t.tokenType, "bearer") {
		return "Bearer"
	}
	return t.tokenType
}

// IDToken returns the OpenID Connect id_token, if present.
func (t *OAuth2AccessToken) IDToken() string {
	return t.idToken
}

// IDTokenClaims decodes the id_token claims without verifying the signature.
// The token arrived directly from the token endpoint over TLS, which OpenID
// Connect Core section 3.1.3.7 accepts in place of signature validation.
func (t *OAuth2AccessToken) IDTokenClaims() (jwt.MapClaims, error) {
	if t.idToken == "" {
		return nil, errors.WrapPrefix(ErrAccessToken, "no id_token", 0)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.idToken, claims); err != nil {
		return nil, errors.WrapPrefix(ErrParse, "id_token: "+err.Error(), 0)
	}
	return claims, nil
}

// Authorize sets the Authorization header on r.
func (t *OAuth2AccessToken) Authorize(r *http.Request) {
	r.Header.Set("Authorization", t.TokenType()+" "+t.value)
}

// Token converts to a golang.org/x/oauth2 token, for use with libraries
// built on it.
func (t *OAuth2AccessToken) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.value,
		TokenType:    t.TokenType(),
		RefreshToken: t.refreshToken,
		Expiry:       t.ExpiresAt(),
		ExpiresIn:    t.ExpiresIn(),
	}
	if t.raw.Kind() == univalue.Object {
		return tok.WithExtra(t.raw.Interface())
	}
	return tok
}

// WithFallbackRefreshToken returns t, or a copy of t holding refreshToken
// when t has none. Providers that do not rotate refresh tokens omit it from
// refresh responses.
func (t *OAuth2AccessToken) WithFallbackRefreshToken(refreshToken string) *OAuth2AccessToken {
	if t.refreshToken != "" || !t.IsSuccessful() {
		return t
	}
	c := *t
	c.refreshToken = refreshToken
	return &c
}

func (t *OAuth2AccessToken) String() string {
	if !t.IsSuccessful() {
		return fmt.Sprintf("OAuth2AccessToken{error: %s}", t.errInfo)
	}
	refresh := "none"
	if t.refreshToken != "" {
		refresh = logging.Redact(t.refreshToken)
	}
	return fmt.Sprintf("OAuth2AccessToken{value: %s, type: %s, expires_in: %d, refresh: %s, scope: %q}",
		logging.Redact(t.value), t.TokenType(), t.ExpiresIn(), refresh, t.scope)
}

// OAuth1AccessToken adds the token secret of an OAuth 1.0a token.
type OAuth1AccessToken struct {
	AccessToken
	secret string
}

// ParseOAuth1Token builds a token from a request-token or access-token
// response. A provider error is captured on the token; a successful response
// without oauth_token is an ErrAuthorization.
func ParseOAuth1Token(status int, v univalue.Value, now time.Time) (*OAuth1AccessToken, error) {
	if info := ResponseErrorInfo(status, v); !info.IsZero() {
		return &OAuth1AccessToken{AccessToken: errorToken(info, now)}, nil
	}
	value := v.Get("oauth_token").String()
	if value == "" {
		return nil, errors.WrapPrefix(ErrAuthorization, "response has no oauth_token", 0)
	}
	return &OAuth1AccessToken{
		AccessToken: AccessToken{value: value, raw: v, obtainedAt: now},
		secret:      v.Get("oauth_token_secret").String(),
	}, nil
}

// NewOAuth1AccessToken rebuilds a token from stored fields.
func NewOAuth1AccessToken(value, secret string) *OAuth1AccessToken {
	return &OAuth1AccessToken{
		AccessToken: AccessToken{value: value, raw: univalue.NewObject(), obtainedAt: time.Now()},
		secret:      secret,
	}
}

// Secret returns oauth_token_secret.
func (t *OAuth1AccessToken) Secret() string {
	return t.secret
}

// CallbackConfirmed reports oauth_callback_confirmed on a request token.
func (t *OAuth1AccessToken) CallbackConfirmed() bool {
	return t.raw.Get("oauth_callback_confirmed").Bool()
}

func (t *OAuth1AccessToken) String() string {
	if !t.IsSuccessful() {
		return fmt.Sprintf("OAuth1AccessToken{error: %s}", t.errInfo)
	}
	return fmt.Sprintf("OAuth1AccessToken{value: %s, secret: %s}", logging.Redact(t.value), logging.Redact(t.secret))
}

func separatorOrSpace(sep string) string {
	if sep == "" {
		return " "
	}
	return sep
}
