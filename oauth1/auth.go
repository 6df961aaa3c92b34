package oauth1

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/signature"
	"github.com/google/uuid"
)

// Authorizer signs requests per OAuth 1.0a. The signature is recomputed on
// every request, covering the oauth_* protocol parameters, the query and an
// urlencoded form body.
type Authorizer struct {
	ConsumerKey string
	Signer      signature.Signer

	// Token is the request or access token, empty when fetching a request
	// token.
	Token string

	// Extra protocol parameters such as oauth_callback or oauth_verifier.
	Extra []signature.Param

	// Where the protocol parameters travel, the Authorization header when
	// unset.
	Placement request.Placement

	Realm string
	Nonce func() string
	Now   func() time.Time
}

func (a Authorizer) Authorize(_ context.Context, r *request.Request) error {
	_, oauth, err := a.Sign(r)
	if err != nil {
		return err
	}

	switch a.Placement {
	case request.InQuery:
		r.Query = append(r.Query, oauth...)
	case request.InBody:
		if r.FormEncoded() {
			r.Form = append(r.Form, oauth...)
		} else {
			r.Query = append(r.Query, oauth...)
		}
	default:
		r.Header.Set("Authorization", Header(a.Realm, oauth))
	}
	return nil
}

// Sign returns the base string for r and the protocol parameters, with
// oauth_signature last. PLAINTEXT signs no base string so it is empty.
func (a Authorizer) Sign(r *request.Request) (string, []signature.Param, error) {
	oauth := a.protocolParams()
	var base, sig string
	var err error
	if a.Signer.Method == signature.Plaintext {
		sig = signature.SigningKey(a.Signer.ConsumerSecret, a.Signer.TokenSecret)
	} else {
		all := append(append([]signature.Param(nil), oauth...), r.SignableParams()...)
		if base, err = signature.BaseString(r.HTTPMethod(), r.URL, all); err != nil {
			return "", nil, err
		}
		if sig, err = a.Signer.SignBaseString(base); err != nil {
			return "", nil, err
		}
	}
	return base, append(oauth, signature.Param{Key: "oauth_signature", Value: sig}), nil
}

func (a Authorizer) protocolParams() []signature.Param {
	method := a.Signer.Method
	if method == "" {
		method = signature.HMACSHA1
	}
	nonce := a.Nonce
	if nonce == nil {
		nonce = NewNonce
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}

	params := []signature.Param{
		{Key: "oauth_consumer_key", Value: a.ConsumerKey},
		{Key: "oauth_nonce", Value: nonce()},
		{Key: "oauth_signature_method", Value: string(method)},
		{Key: "oauth_timestamp", Value: strconv.FormatInt(now().Unix(), 10)},
		{Key: "oauth_version", Value: "1.0"},
	}
	if a.Token != "" {
		params = append(params, signature.Param{Key: "oauth_token", Value: a.Token})
	}
	return append(params, a.Extra...)
}

// Header renders protocol parameters as an Authorization header value,
// sorted by name.
func Header(realm string, params []signature.Param) string {
	sorted := append([]signature.Param(nil), params...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	parts := make([]string, 0, len(sorted)+1)
	if realm != "" {
		parts = append(parts, `realm="`+signature.Encode(realm)+`"`)
	}
	for _, p := range sorted {
		parts = append(parts, signature.Encode(p.Key)+`="`+signature.Encode(p.Value)+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// NewNonce returns a random oauth_nonce.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
