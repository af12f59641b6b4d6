package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// ErrNotFound mirrors sqlc.ErrNotFound so callers outside this package don't
// need to import go-zero's store internals directly.
var ErrNotFound = sqlc.ErrNotFound

var _ DecisionCyclesModel = (*customDecisionCyclesModel)(nil)

const decisionCyclesTable = "public.decision_cycles"

const decisionCyclesRows = `id, controller_id, cycle_number, tick_timestamp, from_state, to_state,
reason, action_types, actions_json, realized_pnl_delta_quote, realized_volume_delta_quote, created_at`

// DecisionCycles is one persisted FSM tick: the state transition it produced,
// the reason code, the actions dispatched and any PnL/volume realized on
// close, recorded for replay and post-hoc audit. ActionTypes is stored as a
// native Postgres text[] alongside the ActionsJson blob so a cycle can be
// filtered by dispatched action kind without parsing the JSON column.
type DecisionCycles struct {
	Id                       int64          `db:"id"`
	ControllerId             string         `db:"controller_id"`
	CycleNumber              int64          `db:"cycle_number"`
	TickTimestamp            float64        `db:"tick_timestamp"`
	FromState                string         `db:"from_state"`
	ToState                  string         `db:"to_state"`
	Reason                   string         `db:"reason"`
	ActionTypes              pq.StringArray `db:"action_types"`
	ActionsJson              string         `db:"actions_json"`
	RealizedPnlDeltaQuote    sql.NullString `db:"realized_pnl_delta_quote"`
	RealizedVolumeDeltaQuote sql.NullString `db:"realized_volume_delta_quote"`
	CreatedAt                int64          `db:"created_at"`
}

type (
	// decisionCyclesModel is the generated CRUD surface; customDecisionCyclesModel
	// below adds the domain-specific read path (FindRecent).
	decisionCyclesModel interface {
		Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error)
		FindOne(ctx context.Context, id int64) (*DecisionCycles, error)
		Update(ctx context.Context, data *DecisionCycles) error
		Delete(ctx context.Context, id int64) error
	}

	defaultDecisionCyclesModel struct {
		sqlc.CachedConn
		table string
	}

	// DecisionCyclesModel is an interface to be customized, add more methods here,
	// and implement the added methods in customDecisionCyclesModel.
	DecisionCyclesModel interface {
		decisionCyclesModel
		// FindRecent returns the most recent cycles for a controller, newest first.
		FindRecent(ctx context.Context, controllerID string, limit int) ([]*DecisionCycles, error)
	}

	customDecisionCyclesModel struct {
		*defaultDecisionCyclesModel
	}
)

func newDecisionCyclesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) *defaultDecisionCyclesModel {
	return &defaultDecisionCyclesModel{
		CachedConn: sqlc.NewConn(conn, c, opts...),
		table:      decisionCyclesTable,
	}
}

// NewDecisionCyclesModel returns a model for the database table.
func NewDecisionCyclesModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) DecisionCyclesModel {
	return &customDecisionCyclesModel{
		defaultDecisionCyclesModel: newDecisionCyclesModel(conn, c, opts...),
	}
}

func (m *defaultDecisionCyclesModel) cacheKey(id int64) string {
	return fmt.Sprintf("cache:decisionCycles:id:%d", id)
}

func (m *defaultDecisionCyclesModel) Insert(ctx context.Context, data *DecisionCycles) (sql.Result, error) {
	query := fmt.Sprintf(`INSERT INTO %s (controller_id, cycle_number, tick_timestamp, from_state,
to_state, reason, action_types, actions_json, realized_pnl_delta_quote, realized_volume_delta_quote, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, m.table)
	return m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		return conn.ExecCtx(ctx, query, data.ControllerId, data.CycleNumber, data.TickTimestamp,
			data.FromState, data.ToState, data.Reason, data.ActionTypes, data.ActionsJson,
			data.RealizedPnlDeltaQuote, data.RealizedVolumeDeltaQuote, data.CreatedAt)
	})
}

func (m *defaultDecisionCyclesModel) FindOne(ctx context.Context, id int64) (*DecisionCycles, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, decisionCyclesRows, m.table)
	var resp DecisionCycles
	err := m.QueryRowCtx(ctx, &resp, m.cacheKey(id), func(ctx context.Context, conn sqlx.SqlConn, v any) error {
		return conn.QueryRowCtx(ctx, v, query, id)
	})
	switch err {
	case nil:
		return &resp, nil
	case sqlc.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultDecisionCyclesModel) Update(ctx context.Context, data *DecisionCycles) error {
	query := fmt.Sprintf(`UPDATE %s SET from_state = $1, to_state = $2, reason = $3,
actions_json = $4, realized_pnl_delta_quote = $5, realized_volume_delta_quote = $6 WHERE id = $7`, m.table)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		return conn.ExecCtx(ctx, query, data.FromState, data.ToState, data.Reason,
			data.ActionsJson, data.RealizedPnlDeltaQuote, data.RealizedVolumeDeltaQuote, data.Id)
	}, m.cacheKey(data.Id))
	return err
}

func (m *defaultDecisionCyclesModel) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, m.table)
	_, err := m.ExecCtx(ctx, func(ctx context.Context, conn sqlx.SqlConn) (sql.Result, error) {
		return conn.ExecCtx(ctx, query, id)
	}, m.cacheKey(id))
	return err
}

// FindRecent returns the most recent cycles for one controller. Bypasses the
// row cache since it is a ranged, non-keyed read.
func (m *customDecisionCyclesModel) FindRecent(ctx context.Context, controllerID string, limit int) ([]*DecisionCycles, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE controller_id = $1 ORDER BY cycle_number DESC LIMIT $2`,
		decisionCyclesRows, m.table)
	var rows []*DecisionCycles
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, controllerID, limit); err != nil {
		return nil, fmt.Errorf("decisionCyclesModel.FindRecent: %w", err)
	}
	return rows, nil
}
