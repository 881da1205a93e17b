package secret

import (
	"strings"
	"sync"
)

// SecretStore holds sensitive values such as the template backend token.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get returns the value for key, or an empty slice and nil error when
	// the key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// BackendTokenKey is the key under which the template backend bearer token
// is stored.
const BackendTokenKey = "backend_token"

// TokenProvider reads a bearer token from a SecretStore on every call, so a
// token rotated with `canvaskit token set` is picked up without restart.
type TokenProvider struct {
	Store SecretStore
	Key   string
}

func NewTokenProvider(store SecretStore) *TokenProvider {
	return &TokenProvider{Store: store, Key: BackendTokenKey}
}

// Token returns the stored token, or "" when none is set.
func (p *TokenProvider) Token() (string, error) {
	b, err := p.Store.Get(p.Key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// MemoryStore is an in-process SecretStore.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string][]byte{}}
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
