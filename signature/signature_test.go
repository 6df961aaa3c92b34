package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/dpup/oauthkit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Published example from the Twitter API documentation.
var (
	exampleURL    = "https://api.twitter.com/1.1/statuses/update.json"
	exampleParams = []Param{
		{"status", "Hello Ladies + Gentlemen, a signed OAuth request!"},
		{"include_entities", "true"},
		{"oauth_consumer_key", "xvz1evFS4wEEPTGEFPHBog"},
		{"oauth_nonce", "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg"},
		{"oauth_signature_method", "HMAC-SHA1"},
		{"oauth_timestamp", "1318622958"},
		{"oauth_token", "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb"},
		{"oauth_version", "1.0"},
	}
	exampleSigner = Signer{
		Method:         HMACSHA1,
		ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		TokenSecret:    "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
	}
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a b+c", "a%20b%2Bc"},
		{"abcXYZ019-._~", "abcXYZ019-._~"},
		{"!*'();:@&=$,/?#[]", "%21%2A%27%28%29%3B%3A%40%26%3D%24%2C%2F%3F%23%5B%5D"},
		{"é", "%C3%A9"},
		{"%", "%25"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.in))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		wantParams []Param
	}{
		{"HTTP://Example.COM:80/r%20v/X?id=123", "http://example.com/r%20v/X", []Param{{"id", "123"}}},
		{"https://www.example.net:8080/?q=1#frag", "https://www.example.net:8080/", []Param{{"q", "1"}}},
		{"https://example.com:443", "https://example.com/", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, params, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantParams, params)
		})
	}

	_, _, err := NormalizeURL("/relative")
	assert.True(t, errors.Is(err, ErrSignature))
}

func TestNormalizeParams_SortsByKeyThenValue(t *testing.T) {
	got := NormalizeParams([]Param{
		{"b", "2"},
		{"a", "z"},
		{"a", "a b"},
		{"oauth_signature", "ignored"},
		{"c", ""},
	})
	assert.Equal(t, "a=a%20b&a=z&b=2&c=", got)
}

func TestBaseString(t *testing.T) {
	base, err := BaseString("post", exampleURL, exampleParams)
	require.NoError(t, err)
	assert.Equal(t, "POST&https%3A%2F%2Fapi.twitter.com%2F1.1%2Fstatuses%2Fupdate.json&"+
		"include_entities%3Dtrue%26oauth_consumer_key%3Dxvz1evFS4wEEPTGEFPHBog%26"+
		"oauth_nonce%3DkYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg%26"+
		"oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1318622958%26"+
		"oauth_token%3D370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb%26"+
		"oauth_version%3D1.0%26"+
		"status%3DHello%2520Ladies%2520%252B%2520Gentlemen%252C%2520a%2520signed%2520OAuth%2520request%2521", base)
}

func TestBaseString_MergesQuery(t *testing.T) {
	withQuery, err := BaseString("GET", "https://example.com/api?b=2&a=1", nil)
	require.NoError(t, err)
	withParams, err := BaseString("GET", "https://example.com/api", []Param{{"a", "1"}, {"b", "2"}})
	require.NoError(t, err)
	assert.Equal(t, withParams, withQuery)
}

func TestSigningKey(t *testing.T) {
	assert.Equal(t, "cs%20x&", SigningKey("cs x", ""))
	assert.Equal(t, "cs&ts", SigningKey("cs", "ts"))
}

func TestSign_HMACSHA1(t *testing.T) {
	sig, err := exampleSigner.Sign("POST", exampleURL, exampleParams)
	require.NoError(t, err)
	assert.Equal(t, "hCtSmYh+iHYCEqBWrE7C7hYmtUk=", sig)
}

func TestSign_Deterministic(t *testing.T) {
	for _, m := range []Method{HMACSHA1, HMACSHA256, Plaintext} {
		t.Run(string(m), func(t *testing.T) {
			s := exampleSigner
			s.Method = m
			a, err := s.Sign("POST", exampleURL, exampleParams)
			require.NoError(t, err)
			b, err := s.Sign("POST", exampleURL, exampleParams)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestSign_OrderIndependent(t *testing.T) {
	reversed := make([]Param, len(exampleParams))
	for i, p := range exampleParams {
		reversed[len(exampleParams)-1-i] = p
	}
	a, err := exampleSigner.Sign("POST", exampleURL, exampleParams)
	require.NoError(t, err)
	b, err := exampleSigner.Sign("POST", exampleURL, reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSign_Plaintext(t *testing.T) {
	s := Signer{Method: Plaintext, ConsumerSecret: "c s"}
	sig, err := s.Sign("GET", "https://example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "c%20s&", sig)

	sig, err = s.WithTokenSecret("t").Sign("GET", "https://example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "c%20s&t", sig)
}

func TestSign_RSASHA1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	s := Signer{Method: RSASHA1, PrivateKey: key}

	a, err := s.Sign("GET", exampleURL, exampleParams)
	require.NoError(t, err)
	b, err := s.Sign("GET", exampleURL, exampleParams)
	require.NoError(t, err)
	assert.Equal(t, a, b, "PKCS#1 v1.5 signatures are deterministic")

	assert.True(t, s.Verify("GET", exampleURL, exampleParams, a))
	assert.False(t, s.Verify("POST", exampleURL, exampleParams, a))

	_, err = Signer{Method: RSASHA1}.Sign("GET", exampleURL, nil)
	assert.True(t, errors.Is(err, ErrSignature))
}

func TestVerify_HMAC(t *testing.T) {
	assert.True(t, exampleSigner.Verify("POST", exampleURL, exampleParams, "hCtSmYh+iHYCEqBWrE7C7hYmtUk="))
	assert.False(t, exampleSigner.Verify("POST", exampleURL, exampleParams, "nope"))
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", HMACSHA1, false},
		{"hmac-sha1", HMACSHA1, false},
		{"HMAC-SHA256", HMACSHA256, false},
		{"rsa-sha1", RSASHA1, false},
		{"PLAINTEXT", Plaintext, false},
		{"MD5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrSignature))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRSAPrivateKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParseRSAPrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	parsed, err = ParseRSAPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	_, err = ParseRSAPrivateKey([]byte("not pem"))
	assert.True(t, errors.Is(err, ErrSignature))
}
