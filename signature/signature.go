// Package signature computes OAuth 1.0a signature base strings and
// signatures (RFC 5849 section 3.4). Everything here is pure: identical inputs
// always produce identical output, and parameter order on input does not
// matter.
package signature

import (
	"net/url"
	"sort"
	"strings"

	"github.com/dpup/oauthkit/errors"
	"google.golang.org/grpc/codes"
)

// ErrSignature is returned when a signature cannot be computed.
var ErrSignature = errors.NewC("signature error", codes.InvalidArgument)

// Param is a single request parameter. Keys may repeat.
type Param struct {
	Key   string
	Value string
}

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes s per RFC 3986: every byte other than ALPHA, DIGIT,
// '-', '.', '_' and '~' is escaped, so a space becomes %20 and '+' becomes %2B.
func Encode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&15])
	}
	return sb.String()
}

func unreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// NormalizeURL returns the base string URI for rawURL: lower-cased scheme and
// host, default ports removed, query and fragment dropped. Query parameters
// are returned separately since they take part in the signature.
func NormalizeURL(rawURL string) (string, []Param, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, errors.WrapPrefix(ErrSignature, "invalid url: "+err.Error(), 0)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, errors.WrapPrefix(ErrSignature, "url must be absolute", 0)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, errors.WrapPrefix(ErrSignature, "invalid query: "+err.Error(), 0)
	}
	var params []Param
	for k, vs := range query {
		for _, v := range vs {
			params = append(params, Param{Key: k, Value: v})
		}
	}
	return scheme + "://" + host + path, params, nil
}

// NormalizeParams encodes, sorts and joins params. oauth_signature is never
// part of the signed set.
func NormalizeParams(params []Param) string {
	encoded := make([]Param, 0, len(params))
	for _, p := range params {
		if p.Key == "oauth_signature" {
			continue
		}
		encoded = append(encoded, Param{Key: Encode(p.Key), Value: Encode(p.Value)})
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].Key == encoded[j].Key {
			return encoded[i].Value < encoded[j].Value
		}
		return encoded[i].Key < encoded[j].Key
	})
	pairs := make([]string, len(encoded))
	for i, p := range encoded {
		pairs[i] = p.Key + "=" + p.Value
	}
	return strings.Join(pairs, "&")
}

// BaseString builds the signature base string
// METHOD&encode(base-url)&encode(normalized-params). Query parameters on
// rawURL are merged into params.
func BaseString(method, rawURL string, params []Param) (string, error) {
	base, query, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	all := make([]Param, 0, len(params)+len(query))
	all = append(all, params...)
	all = append(all, query...)
	return strings.ToUpper(method) + "&" + Encode(base) + "&" + Encode(NormalizeParams(all)), nil
}

// SigningKey joins the encoded secrets with '&'. An empty token secret still
// yields the trailing '&'.
func SigningKey(consumerSecret, tokenSecret string) string {
	return Encode(consumerSecret) + "&" + Encode(tokenSecret)
}
