package oauthkit

import (
	"context"
	"net/url"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/events"
	"github.com/dpup/oauthkit/logging"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithProfile makes Verify fetch the user profile after a successful
// exchange.
func WithProfile(fetch bool) ManagerOption {
	return func(m *Manager) {
		m.fetchProfile = fetch
	}
}

// Manager runs authorization attempts end to end: it starts flows for
// registered clients, remembers them until the callback arrives and exchanges
// the callback for a token.
type Manager struct {
	registry     *Registry
	pending      *PendingStore
	fetchProfile bool
}

// NewManager returns a manager resolving clients from registry and
// correlating callbacks through pending.
func NewManager(registry *Registry, pending *PendingStore, opts ...ManagerOption) *Manager {
	m := &Manager{registry: registry, pending: pending}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the client registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Pending returns the correlation store.
func (m *Manager) Pending() *PendingStore {
	return m.pending
}

// Attempt is a started authorization.
type Attempt struct {
	ID        string
	Client    ClientName
	URL       string
	Key       string
	ExpiresAt time.Time
}

// Authorize starts an attempt for the named client. callerState is handed
// back by Verify.
func (m *Manager) Authorize(ctx context.Context, name ClientName, callerState any, opts ...FlowOption) (*Attempt, error) {
	client, err := m.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	flow := client.NewFlow(opts...)
	authURL, err := flow.AuthorizationURL(ctx)
	if err != nil {
		return nil, err
	}
	p, err := m.pending.Add(flow.Key(), flow, callerState)
	if err != nil {
		return nil, err
	}

	logging.Infow(ctx, "oauthkit: authorization started", "client", name.String(), "attempt", p.AttemptID)
	events.Publish(ctx, events.AuthorizationStarted, &events.Event{
		Group:     name.Group,
		Provider:  name.Provider,
		AttemptID: p.AttemptID,
	})

	return &Attempt{
		ID:        p.AttemptID,
		Client:    name,
		URL:       authURL,
		Key:       p.Key,
		ExpiresAt: p.CreatedAt.Add(m.pending.TTL()),
	}, nil
}

// Result is a verified callback.
type Result struct {
	AttemptID   string
	Client      ClientName
	Token       Token
	Profile     *UserInfo
	CallerState any
}

// IsSuccessful reports whether a usable token was obtained.
func (r *Result) IsSuccessful() bool {
	return r.Token != nil && r.Token.IsSuccessful()
}

// Verify resolves the attempt a callback belongs to and completes it. The
// attempt is consumed whatever the outcome, so a callback cannot be replayed.
//
// A provider error on the token endpoint is reported on Result.Token rather
// than returned. Errors reported on the callback itself are returned:
// error=access_denied and the OAuth 1.0a denied parameter as
// ErrAccessDenied, other errors as ErrAuthorization.
func (m *Manager) Verify(ctx context.Context, params url.Values) (*Result, error) {
	key := callbackKey(params)
	if key == "" {
		return nil, errors.WrapPrefix(ErrUnknownOrExpiredRequest, "callback carries no state", 0)
	}
	p, err := m.pending.Remove(key)
	if err != nil {
		logging.Warnw(ctx, "oauthkit: callback for unknown or expired attempt", "error", err)
		return nil, err
	}

	client := p.Client()
	name := client.Name()
	ev := &events.Event{Group: name.Group, Provider: name.Provider, AttemptID: p.AttemptID}
	fail := func(err error) (*Result, error) {
		logging.Warnw(ctx, "oauthkit: authorization failed", "client", name.String(), "attempt", p.AttemptID, "error", err)
		ev.Err = err
		events.Publish(ctx, events.AuthorizationFailed, ev)
		return nil, err
	}

	if err := CallbackError(params); err != nil {
		return fail(err)
	}

	tok, err := p.Flow.Complete(ctx, params)
	if err != nil {
		return fail(err)
	}

	result := &Result{
		AttemptID:   p.AttemptID,
		Client:      name,
		Token:       tok,
		CallerState: p.CallerState,
	}
	if !tok.IsSuccessful() {
		ev.Data = tok.ErrorInfo()
		logging.Infow(ctx, "oauthkit: provider rejected token exchange",
			"client", name.String(), "attempt", p.AttemptID, "error", tok.ErrorInfo().String())
		events.Publish(ctx, events.AuthorizationFailed, ev)
		return result, nil
	}

	if m.fetchProfile {
		profile, err := client.UserProfile(ctx, tok)
		if err != nil {
			return fail(err)
		}
		result.Profile = profile
	}

	logging.Infow(ctx, "oauthkit: authorization completed", "client", name.String(), "attempt", p.AttemptID)
	events.Publish(ctx, events.AuthorizationCompleted, ev)
	return result, nil
}

// VerifyURL is Verify for a full callback URL. Parameters are read from the
// query and from the fragment, where implicit grant tokens arrive.
func (m *Manager) VerifyURL(ctx context.Context, rawURL string) (*Result, error) {
	params, err := CallbackParams(rawURL)
	if err != nil {
		return nil, err
	}
	return m.Verify(ctx, params)
}

// CallbackParams merges the query and fragment parameters of a callback URL.
func CallbackParams(rawURL string) (url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WrapPrefix(ErrAuthorization, "invalid callback url", 0)
	}
	params := u.Query()
	if u.Fragment != "" {
		frag, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, errors.WrapPrefix(ErrAuthorization, "invalid callback fragment", 0)
		}
		for k, vs := range frag {
			for _, v := range vs {
				params.Add(k, v)
			}
		}
	}
	return params, nil
}

func callbackKey(params url.Values) string {
	for _, k := range []string{"state", "oauth_token", "denied"} {
		if v := params.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// CallbackError returns the error a provider reported on the callback:
// ErrAccessDenied for error=access_denied and the OAuth 1.0a denied
// parameter, ErrAuthorization for any other error code.
func CallbackError(params url.Values) error {
	if params.Get("denied") != "" {
		return errors.WrapPrefix(ErrAccessDenied, "user denied authorization", 0)
	}
	code := params.Get("error")
	if code == "" {
		return nil
	}
	msg := code
	if desc := params.Get("error_description"); desc != "" {
		msg += ": " + desc
	}
	if code == "access_denied" {
		return errors.WrapPrefix(ErrAccessDenied, msg, 0)
	}
	return errors.WrapPrefix(ErrAuthorization, msg, 0)
}
