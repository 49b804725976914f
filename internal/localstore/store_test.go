package localstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(t.TempDir(), "mltest")
	require.NoError(t, err)

	type payload struct {
		Email string `json:"email"`
		Count int    `json:"count"`
	}

	in := payload{Email: "user@example.com", Count: 42}
	require.NoError(t, store.Set("profile", in, 0))

	var out payload
	require.NoError(t, store.Get("profile", &out))
	assert.Equal(t, in, out)
}

func TestStoreObfuscatesOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "mltest")
	require.NoError(t, err)

	require.NoError(t, store.Set("profile", map[string]string{"email": "user@example.com"}, 0))

	raw, err := os.ReadFile(filepath.Join(dir, "mltest.profile.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "user@example.com")
}

func TestStoreExpiry(t *testing.T) {
	store, err := New(t.TempDir(), "mltest")
	require.NoError(t, err)

	require.NoError(t, store.Set("session", "value", 10*time.Millisecond))

	var out string
	require.NoError(t, store.Get("session", &out))
	assert.Equal(t, "value", out)

	time.Sleep(20 * time.Millisecond)
	err = store.Get("session", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreMissingKey(t *testing.T) {
	store, err := New(t.TempDir(), "mltest")
	require.NoError(t, err)

	var out string
	assert.ErrorIs(t, store.Get("missing", &out), ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	store, err := New(t.TempDir(), "mltest")
	require.NoError(t, err)

	require.NoError(t, store.Set("profile", "value", 0))
	require.NoError(t, store.Delete("profile"))

	var out string
	assert.ErrorIs(t, store.Get("profile", &out), ErrNotFound)

	// Deleting twice is fine.
	assert.NoError(t, store.Delete("profile"))
}

func TestStoreNamespaceSeparation(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir, "alpha")
	require.NoError(t, err)
	b, err := New(dir, "beta")
	require.NoError(t, err)

	require.NoError(t, a.Set("profile", "a-value", 0))

	var out string
	assert.ErrorIs(t, b.Get("profile", &out), ErrNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "alpha."))
	}
}
