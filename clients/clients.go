// Package clients builds registered clients from configuration. Each entry
// under providers.<key> describes one provider:
//
//	providers:
//	  github:
//	    clientId: abc
//	    clientSecret: xyz
//	    authorizeUrl: https://github.com/login/oauth/authorize
//	    tokenUrl: https://github.com/login/oauth/access_token
//	    userInfoUrl: https://api.github.com/user
//	    defaultScope: read:user
//	  twitter:
//	    protocol: oauth1
//	    requestTokenUrl: https://api.twitter.com/oauth/request_token
//	    ...
package clients

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/logging"
	"github.com/dpup/oauthkit/oauth1"
	"github.com/dpup/oauthkit/oauth2"
	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/signature"
	"github.com/knadh/koanf/v2"
)

// providerEntry mirrors the providers.<key> configuration block.
type providerEntry struct {
	Protocol        string            `koanf:"protocol"`
	Group           string            `koanf:"group"`
	Provider        string            `koanf:"provider"`
	ClientID        string            `koanf:"clientId"`
	ClientSecret    string            `koanf:"clientSecret"`
	AuthorizeURL    string            `koanf:"authorizeUrl"`
	TokenURL        string            `koanf:"tokenUrl"`
	RevokeURL       string            `koanf:"revokeUrl"`
	RequestTokenURL string            `koanf:"requestTokenUrl"`
	AccessTokenURL  string            `koanf:"accessTokenUrl"`
	UserInfoURL     string            `koanf:"userInfoUrl"`
	UserInfoMethod  string            `koanf:"userInfoMethod"`
	Scope           string            `koanf:"scope"`
	DefaultScope    string            `koanf:"defaultScope"`
	ScopeSeparator  string            `koanf:"scopeSeparator"`
	ReturnURL       string            `koanf:"returnUrl"`
	ResponseType    string            `koanf:"responseType"`
	GrantType       string            `koanf:"grantType"`
	SignatureMethod string            `koanf:"signatureMethod"`
	PrivateKeyFile  string            `koanf:"privateKeyFile"`
	SupportsRefresh bool              `koanf:"supportsRefresh"`
	SupportsRevoke  bool              `koanf:"supportsRevoke"`
	TokenPlacement  string            `koanf:"tokenPlacement"`
	TokenParam      string            `koanf:"tokenParam"`
	Parameters      map[string]string `koanf:"parameters"`
	FieldMap        []fieldEntry      `koanf:"fieldMap"`
}

type fieldEntry struct {
	Target string `koanf:"target"`
	Source string `koanf:"source"`
	Format string `koanf:"format"`
}

// Keys returns the configured provider keys, sorted.
func Keys(k *koanf.Koanf) []string {
	keys := k.MapKeys("providers")
	sort.Strings(keys)
	return keys
}

// ProviderConfig reads providers.<key>. The provider name defaults to key.
// An omitted protocol is inferred from the endpoints present.
func ProviderConfig(k *koanf.Koanf, key string) (oauthkit.ProviderConfig, error) {
	path := "providers." + key
	if !k.Exists(path) {
		return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrUnknownProvider, key, 0)
	}
	var entry providerEntry
	if err := k.UnmarshalWithConf(path, &entry, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrInvalidConfig, key+": "+err.Error(), 0)
	}

	provider := entry.Provider
	if provider == "" {
		provider = key
	}
	cfg := oauthkit.ProviderConfig{
		Name:            oauthkit.ClientName{Group: entry.Group, Provider: provider},
		ClientID:        entry.ClientID,
		ClientSecret:    entry.ClientSecret,
		AuthorizeURL:    entry.AuthorizeURL,
		TokenURL:        entry.TokenURL,
		RevokeURL:       entry.RevokeURL,
		RequestTokenURL: entry.RequestTokenURL,
		AccessTokenURL:  entry.AccessTokenURL,
		UserInfoURL:     entry.UserInfoURL,
		UserInfoMethod:  entry.UserInfoMethod,
		Scope:           entry.Scope,
		DefaultScope:    entry.DefaultScope,
		ScopeSeparator:  entry.ScopeSeparator,
		ReturnURL:       entry.ReturnURL,
		ResponseType:    entry.ResponseType,
		GrantType:       oauthkit.GrantType(entry.GrantType),
		SupportsRefresh: entry.SupportsRefresh,
		SupportsRevoke:  entry.SupportsRevoke,
		TokenPlacement:  request.ParsePlacement(entry.TokenPlacement),
		TokenParam:      entry.TokenParam,
	}

	switch oauthkit.Protocol(entry.Protocol) {
	case oauthkit.OAuth1, oauthkit.OAuth2:
		cfg.Protocol = oauthkit.Protocol(entry.Protocol)
	case "":
		cfg.Protocol = oauthkit.OAuth2
		if entry.RequestTokenURL != "" {
			cfg.Protocol = oauthkit.OAuth1
		}
	default:
		return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrUnknownProvider, key+": unknown protocol "+entry.Protocol, 0)
	}

	if entry.SignatureMethod != "" {
		method, err := signature.ParseMethod(entry.SignatureMethod)
		if err != nil {
			return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrInvalidConfig, key+": "+err.Error(), 0)
		}
		cfg.SignatureMethod = method
	}
	if entry.PrivateKeyFile != "" {
		pem, err := os.ReadFile(entry.PrivateKeyFile)
		if err != nil {
			return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrInvalidConfig, key+": reading private key: "+err.Error(), 0)
		}
		if cfg.PrivateKey, err = signature.ParseRSAPrivateKey(pem); err != nil {
			return oauthkit.ProviderConfig{}, errors.WrapPrefix(oauthkit.ErrInvalidConfig, key+": "+err.Error(), 0)
		}
	}

	names := make([]string, 0, len(entry.Parameters))
	for name := range entry.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg.Parameters.Add(name, entry.Parameters[name])
	}

	if len(entry.FieldMap) > 0 {
		fm := make(oauthkit.FieldMap, 0, len(entry.FieldMap))
		for _, f := range entry.FieldMap {
			fm = append(fm, oauthkit.FieldMapping{Target: f.Target, Source: f.Source, Format: f.Format})
		}
		cfg.FieldMap = fm.Merge(oauthkit.DefaultFieldMap)
	}
	return cfg, nil
}

// New builds the protocol engine for cfg.
func New(cfg oauthkit.ProviderConfig, exec *request.Executor) (oauthkit.Client, error) {
	switch cfg.Protocol {
	case oauthkit.OAuth1:
		c, err := oauth1.New(cfg, oauth1.WithExecutor(exec))
		if err != nil {
			return nil, err
		}
		return c, nil
	case oauthkit.OAuth2, "":
		c, err := oauth2.New(cfg, oauth2.WithExecutor(exec))
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.WrapPrefix(oauthkit.ErrUnknownProvider, "unknown protocol "+string(cfg.Protocol), 0)
	}
}

// NewExecutor builds an executor from request.* settings. The worker pool
// stops with ctx.
func NewExecutor(ctx context.Context, k *koanf.Koanf) *request.Executor {
	opts := []request.ExecutorOption{
		request.WithTimeout(oauthkit.ConfigDuration(k, "request.timeout", request.DefaultTimeout)),
	}
	if ua := k.String("request.userAgent"); ua != "" {
		opts = append(opts, request.WithUserAgent(ua))
	}
	if workers := k.Int("request.workers"); workers > 0 {
		opts = append(opts, request.WithPool(request.NewPool(ctx, workers)))
	}
	return request.NewExecutor(opts...)
}

// Load builds a client for every configured provider and registers it.
func Load(ctx context.Context, k *koanf.Koanf, exec *request.Executor) (*oauthkit.Registry, error) {
	if exec == nil {
		exec = NewExecutor(ctx, k)
	}
	reg := oauthkit.NewRegistry()
	for _, key := range Keys(k) {
		cfg, err := ProviderConfig(k, key)
		if err != nil {
			return nil, err
		}
		c, err := New(cfg, exec)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(c); err != nil {
			return nil, err
		}
		logging.Debugw(ctx, "clients: registered provider", "client", cfg.Name.String(), "protocol", string(cfg.Protocol))
	}
	return reg, nil
}

// NewManager loads the configured providers and returns a manager whose
// pending store honors pending.ttl and sweeps every pending.sweepInterval
// until ctx is done.
func NewManager(ctx context.Context, k *koanf.Koanf, opts ...oauthkit.ManagerOption) (*oauthkit.Manager, error) {
	reg, err := Load(ctx, k, nil)
	if err != nil {
		return nil, err
	}
	pending := oauthkit.NewPendingStore(
		oauthkit.WithTTL(oauthkit.ConfigDuration(k, "pending.ttl", oauthkit.DefaultPendingTTL)),
		oauthkit.WithSweepInterval(oauthkit.ConfigDuration(k, "pending.sweepInterval", time.Minute)),
	)
	pending.Start(ctx)
	return oauthkit.NewManager(reg, pending, opts...), nil
}
