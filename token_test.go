package oauthkit

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dpup/oauthkit/univalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func parse(t *testing.T, body string) univalue.Value {
	t.Helper()
	v, err := univalue.Parse(univalue.Auto, []byte(body))
	require.NoError(t, err)
	return v
}

func TestParseOAuth2Token(t *testing.T) {
	v := parse(t, `{"access_token":"AT","token_type":"bearer","expires_in":"3600","refresh_token":"RT","scope":["a","b"],"x_custom":7}`)
	tok, err := ParseOAuth2Token(http.StatusOK, v, ",", now)
	require.NoError(t, err)

	assert.True(t, tok.IsSuccessful())
	assert.Equal(t, "AT", tok.Value())
	assert.Equal(t, "Bearer", tok.TokenType())
	assert.Equal(t, int64(3600), tok.ExpiresIn())
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt())
	assert.Equal(t, "RT", tok.RefreshToken())
	assert.Equal(t, "a,b", tok.Scope())
	assert.Equal(t, []string{"a", "b"}, tok.Scopes())
	assert.Equal(t, int64(7), tok.Get("x_custom").Int64())
	assert.Equal(t, now, tok.ObtainedAt())
	assert.Contains(t, tok.String(), "value: **,")
}

func TestParseOAuth2Token_Variants(t *testing.T) {
	tok, err := ParseOAuth2Token(http.StatusOK, parse(t, "access_token=AT&expires=60"), "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(60), tok.ExpiresIn())

	tok, err = ParseOAuth2Token(http.StatusOK, parse(t, `{"access_token":"AT","expires_in":-5}`), "", now)
	require.NoError(t, err)
	assert.Zero(t, tok.ExpiresIn())
	assert.True(t, tok.ExpiresAt().IsZero())
	assert.False(t, tok.IsExpired(time.Hour))
}

func TestParseOAuth2Token_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"rfc6749", 400, `{"error":"invalid_grant","error_description":"bad code"}`, "invalid_grant", "bad code"},
		{"error with 200", 200, `{"error":"invalid_request"}`, "invalid_request", ""},
		{"error object", 400, `{"error":{"code":190,"message":"expired"}}`, "190", "expired"},
		{"errors array", 401, `{"errors":[{"code":"unauthorized","message":"nope"}]}`, "unauthorized", "nope"},
		{"meta", 400, `{"meta":{"code":400,"error_type":"OAuthException","error_message":"bad"}}`, "OAuthException", "bad"},
		{"error_code", 200, `{"error_code":5,"error_msg":"auth failed"}`, "5", "auth failed"},
		{"form", 400, `error=access_denied&error_description=no`, "access_denied", "no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseOAuth2Token(tt.status, parse(t, tt.body), "", now)
			require.NoError(t, err)
			assert.False(t, tok.IsSuccessful())
			assert.Empty(t, tok.Value())
			assert.Equal(t, tt.wantCode, tok.ErrorInfo().Code)
			assert.Equal(t, tt.wantMsg, tok.ErrorInfo().Message)
			assert.True(t, tok.Raw().HasValue())
		})
	}
}

func TestParseOAuth2Token_MissingAccessToken(t *testing.T) {
	_, err := ParseOAuth2Token(http.StatusOK, parse(t, `{"token_type":"bearer"}`), "", now)
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestParseOAuth2Callback(t *testing.T) {
	tok, err := ParseOAuth2Callback(url.Values{"access_token": {"AT"}, "state": {"s"}}, "", now)
	require.NoError(t, err)
	assert.Equal(t, "AT", tok.Value())

	tok, err = ParseOAuth2Callback(url.Values{"error": {"access_denied"}}, "", now)
	require.NoError(t, err)
	assert.False(t, tok.IsSuccessful())
}

func TestOAuth2AccessToken_Expiry(t *testing.T) {
	tok := NewOAuth2AccessToken("AT", "", "", time.Now().Add(30*time.Second))
	assert.False(t, tok.IsExpired(0))
	assert.True(t, tok.IsExpired(time.Minute))
	assert.InDelta(t, 30, tok.ExpiresIn(), 1)

	assert.False(t, NewOAuth2AccessToken("AT", "", "", time.Time{}).IsExpired(time.Hour))
}

func TestOAuth2AccessToken_FallbackRefreshToken(t *testing.T) {
	tok := NewOAuth2AccessToken("AT", "", "", time.Time{})
	carried := tok.WithFallbackRefreshToken("RT")
	assert.Equal(t, "RT", carried.RefreshToken())
	assert.Empty(t, tok.RefreshToken(), "original untouched")

	rotated := NewOAuth2AccessToken("AT", "", "NEW", time.Time{})
	assert.Same(t, rotated, rotated.WithFallbackRefreshToken("RT"))
}

func TestOAuth2AccessToken_Interop(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := FromOAuth2(&oauth2.Token{AccessToken: "AT", TokenType: "mac", RefreshToken: "RT", Expiry: exp})
	assert.Equal(t, "mac", tok.TokenType())
	assert.Equal(t, exp, tok.ExpiresAt())

	back := tok.Token()
	assert.Equal(t, "AT", back.AccessToken)
	assert.Equal(t, "RT", back.RefreshToken)
	assert.Equal(t, exp, back.Expiry)

	req, err := http.NewRequest(http.MethodGet, "https://api.test", nil)
	require.NoError(t, err)
	tok.Authorize(req)
	assert.Equal(t, "mac AT", req.Header.Get("Authorization"))
}

func TestOAuth2AccessToken_IDTokenClaims(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	idToken := enc([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc([]byte(`{"sub":"42","email":"ann@example.com"}`)) + "." + enc([]byte("sig"))

	tok, err := ParseOAuth2Token(http.StatusOK, parse(t, `{"access_token":"AT","id_token":"`+idToken+`"}`), "", now)
	require.NoError(t, err)
	claims, err := tok.IDTokenClaims()
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])

	_, err = NewOAuth2AccessToken("AT", "", "", time.Time{}).IDTokenClaims()
	assert.ErrorIs(t, err, ErrAccessToken)
}

func TestParseOAuth1Token(t *testing.T) {
	tok, err := ParseOAuth1Token(http.StatusOK, parse(t, "oauth_token=T&oauth_token_secret=S&oauth_callback_confirmed=true"), now)
	require.NoError(t, err)
	assert.Equal(t, "T", tok.Value())
	assert.Equal(t, "S", tok.Secret())
	assert.True(t, tok.CallbackConfirmed())
	assert.Contains(t, tok.String(), "secret: *}")

	tok, err = ParseOAuth1Token(http.StatusUnauthorized, parse(t, "oauth_problem=timestamp_refused"), now)
	require.NoError(t, err)
	assert.False(t, tok.IsSuccessful())
	assert.Equal(t, "timestamp_refused", tok.ErrorInfo().Code)

	_, err = ParseOAuth1Token(http.StatusOK, parse(t, "oauth_token_secret=S"), now)
	assert.ErrorIs(t, err, ErrAuthorization)
}
