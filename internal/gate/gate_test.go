package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/localstore"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/quota"
	"github.com/marketlens/marketlens/internal/telemetry"
)

func newTestGate(t *testing.T, founders []string) (*Gate, *auth.Context, *telemetry.MockPublisher) {
	t.Helper()
	store, err := localstore.New(t.TempDir(), "mltest")
	require.NoError(t, err)
	authCtx := auth.NewContext(auth.NewLocalBackend(store, slog.Default()), slog.Default())
	ledger := quota.NewLedger(authCtx, founders, slog.Default())
	events := &telemetry.MockPublisher{}
	return New(authCtx, ledger, events, slog.Default()), authCtx, events
}

func TestGuardUnauthenticatedIsUnmetered(t *testing.T) {
	g, _, events := newTestGate(t, nil)

	executed := false
	result, err := g.Guard(context.Background(), models.UsageKeywordsAnalyzed, func(ctx context.Context) error {
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Executed)
	assert.True(t, executed)
	assert.Empty(t, events.Events, "unauthenticated usage emits no events")
}

// A fresh free-tier user gets exactly 100 keyword analyses; the 101st call
// is denied with professional as the recommended upgrade.
func TestGuardDeniesAfterLimit(t *testing.T) {
	g, authCtx, events := newTestGate(t, nil)
	ctx := context.Background()

	_, err := authCtx.Signup(ctx, auth.SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	action := func(ctx context.Context) error { return nil }
	for i := 0; i < 100; i++ {
		result, err := g.Guard(ctx, models.UsageKeywordsAnalyzed, action)
		require.NoError(t, err, "call %d", i+1)
		require.True(t, result.Executed)
	}

	result, err := g.Guard(ctx, models.UsageKeywordsAnalyzed, action)
	require.Error(t, err)
	assert.False(t, result.Allowed)
	assert.False(t, result.Executed)
	assert.Equal(t, models.TierProfessional, result.RecommendedTier)

	qe, ok := AsQuotaExceeded(err)
	require.True(t, ok)
	assert.Equal(t, 100, qe.Current)
	assert.Equal(t, 100, qe.Limit)
	assert.Equal(t, models.TierProfessional, qe.RecommendedTier)

	assert.Len(t, events.Events, 100)
}

func TestGuardFailedActionNotCounted(t *testing.T) {
	g, authCtx, events := newTestGate(t, nil)
	ctx := context.Background()

	_, err := authCtx.Signup(ctx, auth.SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	boom := errors.New("backend unavailable")
	for i := 0; i < 2; i++ {
		result, err := g.Guard(ctx, models.UsageContentGenerated, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.True(t, result.Allowed)
		assert.False(t, result.Executed)
	}

	assert.Equal(t, 0, authCtx.Current().Usage(models.UsageContentGenerated))
	assert.Empty(t, events.Events)
}

// Guarded calls arriving on separate goroutines must not corrupt the usage
// map; every successful execution lands in the counter exactly once.
func TestGuardConcurrentCalls(t *testing.T) {
	g, authCtx, events := newTestGate(t, nil)
	ctx := context.Background()

	_, err := authCtx.Signup(ctx, auth.SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := g.Guard(ctx, models.UsageKeywordsAnalyzed, func(ctx context.Context) error {
				return nil
			})
			assert.NoError(t, err)
			assert.True(t, result.Executed)
		}()
	}
	wg.Wait()

	assert.Equal(t, calls, authCtx.Current().Usage(models.UsageKeywordsAnalyzed))
	assert.Len(t, events.Events, calls)
}

func TestGuardFounderNeverDenied(t *testing.T) {
	g, authCtx, _ := newTestGate(t, []string{"founder@example.com"})
	ctx := context.Background()

	_, err := authCtx.Signup(ctx, auth.SignupFields{Email: "founder@example.com", Password: "pw"})
	require.NoError(t, err)

	action := func(ctx context.Context) error { return nil }
	for i := 0; i < 150; i++ {
		result, err := g.Guard(ctx, models.UsageKeywordsAnalyzed, action)
		require.NoError(t, err)
		require.True(t, result.Executed)
	}
}

func TestGuardEmitsUsageEvents(t *testing.T) {
	g, authCtx, events := newTestGate(t, nil)
	ctx := context.Background()

	profile, err := authCtx.Signup(ctx, auth.SignupFields{Email: "demo@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = g.Guard(ctx, models.UsageAttributionQueries, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	require.Len(t, events.Events, 1)
	event := events.Events[0]
	assert.Equal(t, profile.ID, event.UserID)
	assert.Equal(t, models.UsageAttributionQueries, event.UsageType)
	assert.Equal(t, 1, event.Amount)
	assert.Equal(t, models.TierFree, event.Tier)
	assert.NotEmpty(t, event.ID)
}
