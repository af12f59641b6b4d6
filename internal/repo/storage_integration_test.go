//go:build integration
// +build integration

package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "clmm-lp-agent/internal/config"
	"clmm-lp-agent/internal/repo"
	"clmm-lp-agent/internal/svc"
	"clmm-lp-agent/pkg/clmm"
)

func newIntegrationServiceContext(t *testing.T) *svc.ServiceContext {
	t.Helper()
	cfg := appconfig.MustLoad()
	return svc.NewServiceContext(*cfg, time.Now())
}

func TestPostgresConnectivity(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	db := requirePostgres(t, svcCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var one int
	err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	assert.NoError(t, err, "postgres connectivity check failed")
	assert.Equal(t, 1, one, "postgres returned unexpected value")
}

// TestDecisionCyclesRoundTrip records a cycle through the repo layer and
// reads it back via Recent, checking that the to-state, the actions and the
// realized PnL delta survive the round trip.
func TestDecisionCyclesRoundTrip(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	if svcCtx.Repo == nil {
		t.Skip("Postgres not configured (Repo nil)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	controllerID := "integration-test-pool"
	pnl := "12.5"
	rec := repo.CycleRecord{
		ControllerID:          controllerID,
		CycleNumber:           1,
		TickTimestamp:         float64(time.Now().Unix()),
		FromState:             string(clmm.StateIdle),
		ToState:               string(clmm.StateEntrySwap),
		Reason:                clmm.ReasonSwapRequired,
		Actions:               []clmm.Action{{Type: clmm.ActionCreateExecutor, ControllerID: controllerID}},
		RealizedPnLDeltaQuote: &pnl,
		CreatedAt:             time.Now().Unix(),
	}

	require.NoError(t, svcCtx.Repo.DecisionCycles.Record(ctx, rec))

	rows, err := svcCtx.Repo.DecisionCycles.Recent(ctx, controllerID, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.ToState, rows[0].ToState)
	assert.Equal(t, []clmm.Action{{Type: clmm.ActionCreateExecutor, ControllerID: controllerID}}, rows[0].Actions)
	require.NotNil(t, rows[0].RealizedPnLDeltaQuote)
	assert.Equal(t, pnl, *rows[0].RealizedPnLDeltaQuote)
}

func requirePostgres(t *testing.T, svcCtx *svc.ServiceContext) *sql.DB {
	t.Helper()
	if svcCtx.DBConn == nil {
		t.Skip("Postgres not configured (DBConn nil)")
	}
	raw, err := svcCtx.DBConn.RawDB()
	if err != nil {
		t.Fatalf("failed to obtain postgres handle: %v", err)
	}
	return raw
}
