package request

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/dpup/oauthkit/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	var p Params
	p.Add("b", "1")
	p.Add("a", "x y")
	p.Add("b", "2")
	assert.Equal(t, "b=1&a=x+y&b=2", p.Encode())

	p.Set("b", "3")
	assert.Equal(t, "b=3&a=x+y", p.Encode())

	p.SetDefault("a", "ignored")
	p.SetDefault("c", "new")
	assert.Equal(t, "x y", p.Get("a"))
	assert.Equal(t, "new", p.Get("c"))

	p.Del("a")
	assert.False(t, p.Has("a"))

	clone := p.Clone()
	clone.Set("b", "changed")
	assert.Equal(t, "3", p.Get("b"))

	p.Merge(Params{{Key: "b", Value: "m1"}, {Key: "b", Value: "m2"}})
	assert.Equal(t, []string{"m1", "m2"}, p.Values()["b"])
}

func TestParamsFromValues(t *testing.T) {
	p := ParamsFromValues(map[string][]string{"z": {"1"}, "a": {"2", "3"}})
	assert.Equal(t, Params{{Key: "a", Value: "2"}, {Key: "a", Value: "3"}, {Key: "z", Value: "1"}}, p)
}

func TestHTTPRequest_GetMergesFormIntoQuery(t *testing.T) {
	r := New("get", "https://api.example.com/me?fields=id")
	r.Query.Add("a", "1")
	r.Form.Add("b", "2")

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "fields=id&a=1&b=2", req.URL.RawQuery)
	assert.Nil(t, req.Body)
}

func TestHTTPRequest_FormBody(t *testing.T) {
	r := New(http.MethodPost, "https://example.com/token")
	r.Form.Add("grant_type", "authorization_code")
	r.Form.Add("code", "c+d")

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	body, _ := io.ReadAll(req.Body)
	assert.Equal(t, "grant_type=authorization_code&code=c%2Bd", string(body))
	assert.True(t, r.FormEncoded())
}

func TestHTTPRequest_JSONBody(t *testing.T) {
	r := New(http.MethodPut, "https://example.com/thing")
	r.Form.Add("ignored", "1")
	r.JSON = map[string]int{"n": 1}

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"n":1}`, string(body))
	assert.False(t, r.FormEncoded())
	assert.Empty(t, r.SignableParams())
}

func TestHTTPRequest_Multipart(t *testing.T) {
	r := New(http.MethodPost, "https://example.com/upload")
	r.Form.Add("caption", "hi")
	r.Files = []File{{Field: "media", Name: "a.png", ContentType: "image/png", Content: []byte("PNG")}}

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(req.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "caption", part.FormName())

	part, err = mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "media", part.FormName())
	assert.Equal(t, "a.png", part.FileName())
	content, _ := io.ReadAll(part)
	assert.Equal(t, "PNG", string(content))
}

func TestHTTPRequest_DoesNotMutateOriginal(t *testing.T) {
	r := New(http.MethodGet, "https://example.com")
	r.Authorizer = Bearer{Token: "T", Placement: InQuery}

	_, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)
	assert.Empty(t, r.Query)
	assert.Empty(t, r.Header)
}

func TestBearer(t *testing.T) {
	tests := []struct {
		name   string
		method string
		bearer Bearer
		check  func(t *testing.T, req *http.Request)
	}{
		{"header", http.MethodGet, Bearer{Token: "T"}, func(t *testing.T, req *http.Request) {
			assert.Equal(t, "Bearer T", req.Header.Get("Authorization"))
		}},
		{"header custom type", http.MethodGet, Bearer{Token: "T", Type: "OAuth"}, func(t *testing.T, req *http.Request) {
			assert.Equal(t, "OAuth T", req.Header.Get("Authorization"))
		}},
		{"lowercase bearer normalized", http.MethodGet, Bearer{Token: "T", Type: "bearer"}, func(t *testing.T, req *http.Request) {
			assert.Equal(t, "Bearer T", req.Header.Get("Authorization"))
		}},
		{"query", http.MethodGet, Bearer{Token: "T", Placement: InQuery, Param: "oauth_token"}, func(t *testing.T, req *http.Request) {
			assert.Equal(t, "T", req.URL.Query().Get("oauth_token"))
			assert.Empty(t, req.Header.Get("Authorization"))
		}},
		{"body", http.MethodPost, Bearer{Token: "T", Placement: InBody}, func(t *testing.T, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			assert.Equal(t, "access_token=T", string(body))
		}},
		{"body on get falls back to query", http.MethodGet, Bearer{Token: "T", Placement: InBody}, func(t *testing.T, req *http.Request) {
			assert.Equal(t, "T", req.URL.Query().Get("access_token"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.method, "https://example.com/api")
			r.Authorizer = tt.bearer
			req, err := r.HTTPRequest(t.Context())
			require.NoError(t, err)
			tt.check(t, req)
		})
	}
}

func TestBearer_BodyPlacementWithJSON(t *testing.T) {
	r := New(http.MethodPost, "https://api.test/x")
	r.JSON = map[string]string{"a": "b"}
	r.Authorizer = Bearer{Token: "SECRET", Placement: InBody}

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "SECRET", req.URL.Query().Get("access_token"))
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"a":"b"}`, string(body))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestBasic(t *testing.T) {
	r := New(http.MethodPost, "https://example.com/token")
	r.Authorizer = Basic{Username: "id", Password: "s:cret"}

	req, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)

	auth := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Basic "))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	require.NoError(t, err)
	assert.Equal(t, "id:s%3Acret", string(decoded))
}

func TestChain(t *testing.T) {
	var order []string
	record := func(name string) Authorizer {
		return AuthorizerFunc(func(_ context.Context, r *Request) error {
			order = append(order, name)
			return nil
		})
	}
	r := New(http.MethodGet, "https://example.com")
	r.Authorizer = Chain(record("a"), nil, record("b"))
	_, err := r.HTTPRequest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSignableParams(t *testing.T) {
	r := New(http.MethodPost, "https://example.com?q=1")
	r.Query.Add("a", "1")
	r.Form.Add("b", "2")
	assert.Equal(t, []signature.Param{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, r.SignableParams())
}

func TestParsePlacement(t *testing.T) {
	assert.Equal(t, InQuery, ParsePlacement("query"))
	assert.Equal(t, InBody, ParsePlacement("body"))
	assert.Equal(t, InHeader, ParsePlacement(""))
	assert.Equal(t, "body", InBody.String())
}
