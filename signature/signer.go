package signature

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // required by OAuth 1.0a
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"hash"
	"strings"

	"github.com/dpup/oauthkit/errors"
)

// Method is an oauth_signature_method value.
type Method string

const (
	HMACSHA1   Method = "HMAC-SHA1"
	HMACSHA256 Method = "HMAC-SHA256"
	RSASHA1    Method = "RSA-SHA1"
	Plaintext  Method = "PLAINTEXT"
)

// ParseMethod maps a configured name to a Method. The empty string means
// HMAC-SHA1.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case "", HMACSHA1:
		return HMACSHA1, nil
	case HMACSHA256:
		return HMACSHA256, nil
	case RSASHA1:
		return RSASHA1, nil
	case Plaintext:
		return Plaintext, nil
	default:
		return "", errors.WrapPrefix(ErrSignature, "unsupported signature method "+s, 0)
	}
}

// Signer holds the secrets used to sign requests for one consumer and,
// optionally, one token.
type Signer struct {
	Method         Method
	ConsumerSecret string
	TokenSecret    string
	PrivateKey     *rsa.PrivateKey // RSA-SHA1 only
}

// WithTokenSecret returns a copy of s bound to another token secret.
func (s Signer) WithTokenSecret(secret string) Signer {
	s.TokenSecret = secret
	return s
}

// Sign returns the oauth_signature value for a request.
func (s Signer) Sign(method, rawURL string, params []Param) (string, error) {
	if s.Method == Plaintext {
		return SigningKey(s.ConsumerSecret, s.TokenSecret), nil
	}
	base, err := BaseString(method, rawURL, params)
	if err != nil {
		return "", err
	}
	return s.SignBaseString(base)
}

// SignBaseString signs an already computed base string.
func (s Signer) SignBaseString(base string) (string, error) {
	switch s.Method {
	case "", HMACSHA1:
		return s.hmac(sha1.New, base), nil
	case HMACSHA256:
		return s.hmac(sha256.New, base), nil
	case RSASHA1:
		if s.PrivateKey == nil {
			return "", errors.WrapPrefix(ErrSignature, "RSA-SHA1 requires a private key", 0)
		}
		sum := sha1.Sum([]byte(base)) //nolint:gosec
		sig, err := rsa.SignPKCS1v15(rand.Reader, s.PrivateKey, crypto.SHA1, sum[:])
		if err != nil {
			return "", errors.WrapPrefix(ErrSignature, err.Error(), 0)
		}
		return base64.StdEncoding.EncodeToString(sig), nil
	case Plaintext:
		return SigningKey(s.ConsumerSecret, s.TokenSecret), nil
	default:
		return "", errors.WrapPrefix(ErrSignature, "unsupported signature method "+string(s.Method), 0)
	}
}

func (s Signer) hmac(h func() hash.Hash, base string) string {
	mac := hmac.New(h, []byte(SigningKey(s.ConsumerSecret, s.TokenSecret)))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is valid for the request. RSA signatures
// are checked against the public half of PrivateKey.
func (s Signer) Verify(method, rawURL string, params []Param, signature string) bool {
	if s.Method == RSASHA1 {
		if s.PrivateKey == nil {
			return false
		}
		base, err := BaseString(method, rawURL, params)
		if err != nil {
			return false
		}
		sig, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return false
		}
		sum := sha1.Sum([]byte(base)) //nolint:gosec
		return rsa.VerifyPKCS1v15(&s.PrivateKey.PublicKey, crypto.SHA1, sum[:], sig) == nil
	}
	want, err := s.Sign(method, rawURL, params)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// ParseRSAPrivateKey decodes a PEM encoded PKCS#1 or PKCS#8 RSA key.
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.WrapPrefix(ErrSignature, "no PEM block found", 0)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.WrapPrefix(ErrSignature, "invalid private key: "+err.Error(), 0)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.WrapPrefix(ErrSignature, "private key is not RSA", 0)
	}
	return key, nil
}
