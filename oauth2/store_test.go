package oauth2

import (
	"context"
	"errors"
	"sync"

	goauth2 "github.com/go-oauth2/oauth2/v4"
)

// clientStore serves the authorization server's registered clients.
type clientStore map[string]goauth2.ClientInfo

func (s clientStore) GetByID(_ context.Context, id string) (goauth2.ClientInfo, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, errors.New("client not found")
}

// tokenStore indexes issued tokens by code, access and refresh value. Misses
// return nil so the manager reports invalid_grant.
type tokenStore struct {
	mu      sync.RWMutex
	code    map[string]goauth2.TokenInfo
	access  map[string]goauth2.TokenInfo
	refresh map[string]goauth2.TokenInfo
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		code:    make(map[string]goauth2.TokenInfo),
		access:  make(map[string]goauth2.TokenInfo),
		refresh: make(map[string]goauth2.TokenInfo),
	}
}

func (s *tokenStore) Create(_ context.Context, info goauth2.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := info.GetCode(); c != "" {
		s.code[c] = info
	}
	if a := info.GetAccess(); a != "" {
		s.access[a] = info
	}
	if r := info.GetRefresh(); r != "" {
		s.refresh[r] = info
	}
	return nil
}

func (s *tokenStore) RemoveByCode(_ context.Context, code string) error {
	s.mu.Lock()
	delete(s.code, code)
	s.mu.Unlock()
	return nil
}

func (s *tokenStore) RemoveByAccess(_ context.Context, access string) error {
	s.mu.Lock()
	delete(s.access, access)
	s.mu.Unlock()
	return nil
}

func (s *tokenStore) RemoveByRefresh(_ context.Context, refresh string) error {
	s.mu.Lock()
	delete(s.refresh, refresh)
	s.mu.Unlock()
	return nil
}

func (s *tokenStore) GetByCode(_ context.Context, code string) (goauth2.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code[code], nil
}

func (s *tokenStore) GetByAccess(_ context.Context, access string) (goauth2.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access[access], nil
}

func (s *tokenStore) GetByRefresh(_ context.Context, refresh string) (goauth2.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh[refresh], nil
}
