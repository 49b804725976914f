package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/models"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return NewContext(newTestLocalBackend(t), slog.Default())
}

func TestContextSubscribeFiresImmediately(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.Init(context.Background()))

	var got []*models.UserProfile
	unsubscribe := c.Subscribe(func(p *models.UserProfile) {
		got = append(got, p)
	})
	defer unsubscribe()

	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestContextNotifiesOnAuthChanges(t *testing.T) {
	c := newTestContext(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))

	var got []*models.UserProfile
	unsubscribe := c.Subscribe(func(p *models.UserProfile) {
		got = append(got, p)
	})
	defer unsubscribe()

	profile, err := c.Signup(ctx, SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	_, err = c.Login(ctx, "demo@example.com", "pw", true)
	require.NoError(t, err)

	// subscribe(nil), signup, logout(nil), login
	require.Len(t, got, 4)
	assert.Nil(t, got[0])
	assert.Equal(t, profile.ID, got[1].ID)
	assert.Nil(t, got[2])
	assert.Equal(t, profile.ID, got[3].ID)
}

func TestContextUnsubscribeStopsNotifications(t *testing.T) {
	c := newTestContext(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))

	calls := 0
	unsubscribe := c.Subscribe(func(*models.UserProfile) { calls++ })
	unsubscribe()

	_, err := c.Signup(ctx, SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "only the initial fire at subscribe time")
}

func TestContextInitRestoresSession(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	first := NewContext(backend, slog.Default())
	_, err := first.Signup(ctx, SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	// A second context over the same backend restores the stored session.
	second := NewContext(backend, slog.Default())
	require.NoError(t, second.Init(ctx))
	current := second.Current()
	require.NotNil(t, current)
	assert.Equal(t, "demo@example.com", current.Email)
}

func TestContextTeardown(t *testing.T) {
	c := newTestContext(t)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))

	_, err := c.Signup(ctx, SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	c.Teardown()
	assert.Nil(t, c.Current())
}
