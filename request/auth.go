package request

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
)

// Authorizer adds credentials to a request. It receives a private copy and
// may change headers, query or form.
type Authorizer interface {
	Authorize(ctx context.Context, r *Request) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, r *Request) error

func (f AuthorizerFunc) Authorize(ctx context.Context, r *Request) error {
	return f(ctx, r)
}

// None leaves the request untouched.
var None Authorizer = AuthorizerFunc(func(context.Context, *Request) error { return nil })

// Placement says where a bearer credential travels.
type Placement int

const (
	InHeader Placement = iota
	InQuery
	InBody
)

// ParsePlacement maps "header", "query" and "body" to a Placement, defaulting
// to InHeader.
func ParsePlacement(s string) Placement {
	switch s {
	case "query":
		return InQuery
	case "body":
		return InBody
	default:
		return InHeader
	}
}

func (p Placement) String() string {
	switch p {
	case InQuery:
		return "query"
	case InBody:
		return "body"
	default:
		return "header"
	}
}

// Bearer authorizes with an OAuth 2.0 access token.
type Bearer struct {
	Token     string
	Type      string // Authorization scheme, "Bearer" when empty
	Placement Placement
	Param     string // Query or body parameter name, "access_token" when empty
}

func (b Bearer) Authorize(_ context.Context, r *Request) error {
	param := b.Param
	if param == "" {
		param = "access_token"
	}
	switch b.Placement {
	case InQuery:
		r.Query.Set(param, b.Token)
	case InBody:
		// JSON bodies carry no form fields, so the token moves to the query.
		if r.bodyless() || r.JSON != nil {
			r.Query.Set(param, b.Token)
		} else {
			r.Form.Set(param, b.Token)
		}
	default:
		scheme := b.Type
		if scheme == "" || strings.EqualFold(scheme, "bearer") {
			scheme = "Bearer"
		}
		r.Header.Set("Authorization", scheme+" "+b.Token)
	}
	return nil
}

// Basic authorizes with HTTP Basic credentials. Per RFC 6749 section 2.3.1
// both parts are form-encoded before being joined.
type Basic struct {
	Username string
	Password string
}

func (b Basic) Authorize(_ context.Context, r *Request) error {
	creds := url.QueryEscape(b.Username) + ":" + url.QueryEscape(b.Password)
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	return nil
}

// Chain applies authorizers in order.
func Chain(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, r *Request) error {
		for _, a := range authorizers {
			if a == nil {
				continue
			}
			if err := a.Authorize(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}
