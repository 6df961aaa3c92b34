package oauthkit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/dpup/oauthkit/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient is a Client whose flows complete with a fixed token.
type stubClient struct {
	name ClientName
}

func (c *stubClient) Name() ClientName           { return c.name }
func (c *stubClient) Protocol() Protocol         { return OAuth2 }
func (c *stubClient) Config() ProviderConfig     { return ProviderConfig{Name: c.name} }
func (c *stubClient) NewFlow(...FlowOption) Flow { return &stubFlow{client: c} }
func (c *stubClient) WithToken(Token) Client     { return c }
func (c *stubClient) Authorizer(Token) (request.Authorizer, error) {
	return request.None, nil
}

func (c *stubClient) Execute(context.Context, *request.Request, Token) (*request.Response, error) {
	return nil, ErrNotSupported
}

func (c *stubClient) ExecuteAsync(context.Context, *request.Request, Token) *request.Future[*request.Response] {
	return nil
}

func (c *stubClient) UserProfile(context.Context, Token) (*UserInfo, error) {
	return &UserInfo{UserID: "42"}, nil
}

type stubFlow struct {
	client *stubClient
	key    string
	token  Token
}

func (f *stubFlow) Client() Client { return f.client }

func (f *stubFlow) State() FlowState {
	if f.token != nil {
		return AccessTokenObtained
	}
	if f.key != "" {
		return AuthorizationURLIssued
	}
	return Unauthorized
}

func (f *stubFlow) AuthorizationURL(context.Context) (string, error) {
	f.key = NewState()
	return "https://provider.test/authorize?state=" + f.key, nil
}

func (f *stubFlow) Key() string { return f.key }

func (f *stubFlow) Complete(_ context.Context, params url.Values) (Token, error) {
	f.token = NewOAuth2AccessToken("AT-"+params.Get("code"), "", "", now)
	return f.token, nil
}

func (f *stubFlow) Token() Token { return f.token }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	gh := &stubClient{name: Name("github")}
	popup := &stubClient{name: ClientName{Group: "popup", Provider: "github"}}

	require.NoError(t, r.Add(gh))
	require.NoError(t, r.Add(popup))
	assert.Equal(t, 2, r.Len())

	got, err := r.Resolve(Name("github"))
	require.NoError(t, err)
	assert.Same(t, gh, got)

	got, err = r.Resolve(ParseClientName("popup/github"))
	require.NoError(t, err)
	assert.Same(t, popup, got)

	_, err = r.Resolve(Name("gitlab"))
	assert.ErrorIs(t, err, ErrClientNotRegistered)

	err = r.Register(Name("github"), gh)
	assert.ErrorIs(t, err, ErrDuplicateProvider)

	err = r.Register(ClientName{Group: "g"}, gh)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Equal(t, []ClientName{Name("github"), {Group: "popup", Provider: "github"}}, r.Names())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Add(&stubClient{name: Name(fmt.Sprintf("p%d", i))}))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.Resolve(Name("p0"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
}

func TestRegistry_Context(t *testing.T) {
	assert.Nil(t, RegistryFromContext(t.Context()))
	r := NewRegistry()
	assert.Same(t, r, RegistryFromContext(WithRegistry(t.Context(), r)))
}
