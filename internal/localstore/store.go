package localstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when a key has no stored value or the value expired.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a namespaced key/value file store used as the local fallback for
// profile and session data. Values are XOR-obfuscated against the namespace
// and base64-encoded; an optional expiry is honored on read.
type Store struct {
	dir       string
	namespace string
}

type envelope struct {
	Data      string     `json:"data"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir, namespace string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if namespace == "" {
		namespace = "marketlens"
	}
	return &Store{dir: dir, namespace: namespace}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, s.namespace+"."+key+".json")
}

// obfuscate is not encryption; it only keeps casual eyes off serialized
// profiles, matching the browser localStorage behavior being replaced.
func (s *Store) obfuscate(data []byte) []byte {
	key := []byte(s.namespace)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Set serializes v under key. A ttl of zero stores the value without expiry.
func (s *Store) Set(key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}
	env := envelope{Data: base64.StdEncoding.EncodeToString(s.obfuscate(raw))}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		env.ExpiresAt = &expires
	}
	encoded, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %q: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), encoded, 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Get deserializes the value under key into out. Expired values are removed
// and reported as ErrNotFound.
func (s *Store) Get(key string, out interface{}) error {
	encoded, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %q: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(encoded, &env); err != nil {
		return fmt.Errorf("failed to decode envelope for %q: %w", key, err)
	}
	if env.ExpiresAt != nil && time.Now().After(*env.ExpiresAt) {
		_ = os.Remove(s.path(key))
		return ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return fmt.Errorf("failed to decode value for %q: %w", key, err)
	}
	if err := json.Unmarshal(s.obfuscate(raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal value for %q: %w", key, err)
	}
	return nil
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
