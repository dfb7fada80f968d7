package council

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"conclave/internal/ledger"
)

func newTestLedger(t *testing.T, pool *ledger.Pool) *ledger.Ledger {
	t.Helper()
	if pool == nil {
		pool = ledger.DefaultPool()
	}
	return ledger.New(filepath.Join(t.TempDir(), "budget.json"), pool, ledger.DefaultLimits())
}

func TestRouteTask_TrivialGoesFast(t *testing.T) {
	r := NewRouter(newTestLedger(t, nil), DefaultRouterConfig())

	for _, complexity := range []int{1, 2} {
		d := r.RouteTask("fix typo", complexity)
		require.Equal(t, ledger.ProviderGemini, d.Provider)
		require.Equal(t, "gemini-1.5-flash", d.Model)
		require.Equal(t, 2000, d.MaxTokens)
	}
}

func TestRouteTask_StandardUsesRateCappedTier(t *testing.T) {
	r := NewRouter(newTestLedger(t, nil), DefaultRouterConfig())

	d := r.RouteTask("add input validation", 3)
	require.Equal(t, ledger.ProviderGroq, d.Provider)
	require.NotEmpty(t, d.Model)
	require.Equal(t, 4000, d.MaxTokens)
}

func TestRouteTask_StandardFallsBackOnDenial(t *testing.T) {
	// A pool whose token cap cannot fit the mid-tier budget forces the
	// fallback path.
	pool := ledger.NewPool([]*ledger.Model{
		{Name: "tiny", RPMLimit: 30, TPMLimit: 100, Tier: ledger.TierWorkhorse},
	})
	r := NewRouter(newTestLedger(t, pool), DefaultRouterConfig())

	d := r.RouteTask("add input validation", 4)
	require.Equal(t, ledger.ProviderGemini, d.Provider)
	require.Equal(t, "gemini-1.5-flash", d.Model)
	require.Contains(t, d.Reason, "falling back")
	require.Equal(t, 4000, d.MaxTokens)
}

func TestRouteTask_ComplexGoesDeep(t *testing.T) {
	r := NewRouter(newTestLedger(t, nil), DefaultRouterConfig())

	d := r.RouteTask("redesign the auth layer", 5)
	require.Equal(t, ledger.ProviderGemini, d.Provider)
	require.Equal(t, "gemini-1.5-pro", d.Model)
	require.Equal(t, 8192, d.MaxTokens)
}
