// Package request builds, authorizes and dispatches outbound provider
// requests, parsing every response into a univalue.Value.
//
// Synchronous and asynchronous calls share one code path: Executor.Go runs
// Executor.Do on a worker pool and returns a Future.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/signature"
)

// File is a part of a multipart request body.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Request describes an outbound call before authorization.
type Request struct {
	Method string
	URL    string
	Header http.Header

	// Query is appended to URL.
	Query Params

	// Form is sent as an urlencoded body, or as multipart fields when Files
	// are present. For GET, HEAD and DELETE it is merged into the query.
	Form Params

	// JSON, when set, is marshaled as the body and Form is ignored.
	JSON interface{}

	Files []File

	// Authorizer signs the request just before it is sent.
	Authorizer Authorizer
}

// New returns a request for method and url.
func New(method, rawURL string) *Request {
	return &Request{Method: method, URL: rawURL, Header: http.Header{}}
}

// Clone returns a deep copy of r, Authorizer and JSON are shared.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	c.Query = r.Query.Clone()
	c.Form = r.Form.Clone()
	c.Files = append([]File(nil), r.Files...)
	return &c
}

// HTTPMethod returns the upper-cased method, GET when unset.
func (r *Request) HTTPMethod() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func (r *Request) bodyless() bool {
	switch r.HTTPMethod() {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	}
	return false
}

// FormEncoded reports whether Form travels as an urlencoded body, the only
// body type whose parameters take part in an OAuth 1.0a signature.
func (r *Request) FormEncoded() bool {
	return !r.bodyless() && r.JSON == nil && len(r.Files) == 0
}

// SignableParams returns the parameters covered by an OAuth 1.0a signature,
// excluding any query already present on URL.
func (r *Request) SignableParams() []signature.Param {
	params := append([]signature.Param(nil), r.Query...)
	if r.bodyless() || r.FormEncoded() {
		params = append(params, r.Form...)
	}
	return params
}

// HTTPRequest authorizes a copy of r and converts it into an *http.Request.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req := r.Clone()
	if req.Authorizer != nil {
		if err := req.Authorizer.Authorize(ctx, req); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, errors.WrapPrefix(ErrRequest, "invalid url: "+err.Error(), 0)
	}
	query := req.Query.Clone()
	if req.bodyless() {
		query = append(query, req.Form...)
	}
	if len(query) > 0 {
		if u.RawQuery != "" {
			u.RawQuery += "&" + query.Encode()
		} else {
			u.RawQuery = query.Encode()
		}
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.bodyless():
	case len(req.Files) > 0:
		buf, ct, err := req.multipart()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, errors.WrapPrefix(ErrRequest, "encoding json body: "+err.Error(), 0)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	case len(req.Form) > 0:
		body, contentType = strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod(), u.String(), body)
	if err != nil {
		return nil, errors.WrapPrefix(ErrRequest, err.Error(), 0)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json, application/x-www-form-urlencoded;q=0.9, */*;q=0.8")
	}
	return httpReq, nil
}

func (r *Request) multipart() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range r.Form {
		if err := w.WriteField(p.Key, p.Value); err != nil {
			return nil, "", errors.WrapPrefix(ErrRequest, err.Error(), 0)
		}
	}
	for _, f := range r.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+escapeQuotes(f.Field)+`"; filename="`+escapeQuotes(f.Name)+`"`)
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", errors.WrapPrefix(ErrRequest, err.Error(), 0)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", errors.WrapPrefix(ErrRequest, err.Error(), 0)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.WrapPrefix(ErrRequest, err.Error(), 0)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
