package svc

import (
	"context"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"clmm-lp-agent/internal/adapters"
	_ "clmm-lp-agent/internal/adapters/sim" // registers the "sim" connector type
	"clmm-lp-agent/internal/agent"
	"clmm-lp-agent/internal/config"
	"clmm-lp-agent/internal/coordination"
	"clmm-lp-agent/internal/model"
	"clmm-lp-agent/internal/repo"
	"clmm-lp-agent/pkg/clmm"
)

// ServiceContext is the composition root: it loads the agent/adapters
// sections, builds one venue connector per configured provider, constructs
// one PoolAgent per configured pool, and wires up decision-cycle persistence
// and cross-pool budget coordination.
type ServiceContext struct {
	Config config.Config

	AgentConfig    *agent.Config
	AdaptersConfig *adapters.Config
	Connectors     map[string]adapters.DexAdapter

	Pools map[string]*agent.PoolAgent

	DBConn      sqlx.SqlConn
	Repo        *repo.Set
	Coordinator clmm.BudgetCoordinator
}

// NewServiceContext wires a ServiceContext from loaded configuration. Fatal
// on any misconfiguration, matching the teacher's fail-fast bootstrap style.
func NewServiceContext(c config.Config, now time.Time) *ServiceContext {
	svc := &ServiceContext{Config: c}

	if c.Agent.Value == nil {
		log.Fatalf("service context: agent config section is required")
	}
	if c.Adapters.Value == nil {
		log.Fatalf("service context: adapters config section is required")
	}
	svc.AgentConfig = c.Agent.Value
	svc.AdaptersConfig = c.Adapters.Value

	connectors, err := svc.AdaptersConfig.BuildAdapters()
	if err != nil {
		log.Fatalf("service context: build adapters: %v", err)
	}
	svc.Connectors = connectors

	if c.Postgres.DataSource != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DataSource)
		svc.DBConn = conn

		decisionCyclesModel := model.NewDecisionCyclesModel(conn, c.Cache)
		repoSet, err := repo.New(repo.Dependencies{
			DBConn:              conn,
			DecisionCyclesModel: decisionCyclesModel,
		})
		if err != nil {
			log.Fatalf("service context: build repo set: %v", err)
		}
		svc.Repo = repoSet
	}

	if c.Redis.Host != "" {
		opts := []redis.Option{redis.WithPass(c.Redis.Pass)}
		if c.Redis.Type == "cluster" {
			opts = append(opts, redis.Cluster())
		}
		store := redis.New(c.Redis.Host, opts...)
		svc.Coordinator = coordination.New(store, c.Env)
	}

	svc.Pools = make(map[string]*agent.PoolAgent, len(svc.AgentConfig.Pools))
	for i := range svc.AgentConfig.Pools {
		pc := svc.AgentConfig.Pools[i]
		connectorName := pc.ConnectorName
		if connectorName == "" {
			connectorName = svc.AdaptersConfig.Default
		}
		connector, ok := svc.Connectors[connectorName]
		if !ok {
			log.Fatalf("service context: pool %s references unknown connector %q", pc.ControllerID, connectorName)
		}
		svc.Pools[pc.ControllerID] = agent.New(pc, connector, now)
	}

	return svc
}

// Runtime builds an agent.Runtime over every configured pool, wiring in
// decision-cycle persistence when the repo set is available and budget
// coordination when Redis is configured (needed once more than one pool
// shares a wallet).
func (svc *ServiceContext) Runtime() *agent.Runtime {
	var recorder agent.CycleRecorder
	if svc.Repo != nil {
		recorder = decisionCycleRecorder{repo: svc.Repo.DecisionCycles}
	}
	return agent.NewRuntime(svc.Pools, recorder, svc.Coordinator)
}

// decisionCycleRecorder adapts repo.DecisionCyclesRepo's domain-shaped
// CycleRecord to agent.CycleRecorder's narrower CycleRecordInput, so
// internal/agent doesn't need to import internal/repo.
type decisionCycleRecorder struct {
	repo repo.DecisionCyclesRepo
}

func (d decisionCycleRecorder) Record(ctx context.Context, rec agent.CycleRecordInput) error {
	return d.repo.Record(ctx, repo.CycleRecord{
		ControllerID:             rec.ControllerID,
		CycleNumber:              rec.CycleNumber,
		TickTimestamp:            rec.TickTimestamp,
		FromState:                rec.FromState,
		ToState:                  rec.ToState,
		Reason:                   rec.Reason,
		Actions:                  rec.Actions,
		RealizedPnLDeltaQuote:    rec.RealizedPnLDeltaQuote,
		RealizedVolumeDeltaQuote: rec.RealizedVolumeDeltaQuote,
		CreatedAt:                rec.CreatedAt,
	})
}
