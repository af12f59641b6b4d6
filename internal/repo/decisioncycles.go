package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"clmm-lp-agent/internal/model"
	"clmm-lp-agent/pkg/clmm"
)

// CycleRecord is the domain-level view of one persisted decision cycle,
// decoupled from the generated model row's nullable-column encoding.
type CycleRecord struct {
	ControllerID            string
	CycleNumber              int64
	TickTimestamp            float64
	FromState                string
	ToState                  string
	Reason                   string
	Actions                  []clmm.Action
	RealizedPnLDeltaQuote    *string
	RealizedVolumeDeltaQuote *string
	CreatedAt                int64
}

// DecisionCyclesRepo persists and replays the tick-by-tick FSM history of a
// pool controller.
type DecisionCyclesRepo interface {
	// Record stores one completed decision cycle.
	Record(ctx context.Context, rec CycleRecord) error
	// Recent returns the most recent cycles for a controller, newest first.
	Recent(ctx context.Context, controllerID string, limit int) ([]CycleRecord, error)
}

type decisionCyclesRepo struct {
	model model.DecisionCyclesModel
}

func newDecisionCyclesRepo(deps Dependencies) DecisionCyclesRepo {
	return &decisionCyclesRepo{model: deps.DecisionCyclesModel}
}

func (r *decisionCyclesRepo) Record(ctx context.Context, rec CycleRecord) error {
	actionsJSON, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("decisionCyclesRepo.Record: marshal actions: %w", err)
	}

	actionTypes := make(pq.StringArray, 0, len(rec.Actions))
	for _, a := range rec.Actions {
		actionTypes = append(actionTypes, string(a.Type))
	}

	row := &model.DecisionCycles{
		ControllerId:  rec.ControllerID,
		CycleNumber:   rec.CycleNumber,
		TickTimestamp: rec.TickTimestamp,
		FromState:     rec.FromState,
		ToState:       rec.ToState,
		Reason:        rec.Reason,
		ActionTypes:   actionTypes,
		ActionsJson:   string(actionsJSON),
		CreatedAt:     rec.CreatedAt,
	}
	if rec.RealizedPnLDeltaQuote != nil {
		row.RealizedPnlDeltaQuote = sql.NullString{String: *rec.RealizedPnLDeltaQuote, Valid: true}
	}
	if rec.RealizedVolumeDeltaQuote != nil {
		row.RealizedVolumeDeltaQuote = sql.NullString{String: *rec.RealizedVolumeDeltaQuote, Valid: true}
	}

	if _, err := r.model.Insert(ctx, row); err != nil {
		return fmt.Errorf("decisionCyclesRepo.Record: insert: %w", err)
	}
	return nil
}

func (r *decisionCyclesRepo) Recent(ctx context.Context, controllerID string, limit int) ([]CycleRecord, error) {
	rows, err := r.model.FindRecent(ctx, controllerID, limit)
	if err != nil {
		return nil, fmt.Errorf("decisionCyclesRepo.Recent: %w", err)
	}

	out := make([]CycleRecord, 0, len(rows))
	for _, row := range rows {
		rec := CycleRecord{
			ControllerID:  row.ControllerId,
			CycleNumber:   row.CycleNumber,
			TickTimestamp: row.TickTimestamp,
			FromState:     row.FromState,
			ToState:       row.ToState,
			Reason:        row.Reason,
			CreatedAt:     row.CreatedAt,
		}
		var actions []clmm.Action
		if row.ActionsJson != "" {
			if err := json.Unmarshal([]byte(row.ActionsJson), &actions); err != nil {
				return nil, fmt.Errorf("decisionCyclesRepo.Recent: unmarshal actions: %w", err)
			}
		}
		rec.Actions = actions
		if row.RealizedPnlDeltaQuote.Valid {
			value := row.RealizedPnlDeltaQuote.String
			rec.RealizedPnLDeltaQuote = &value
		}
		if row.RealizedVolumeDeltaQuote.Valid {
			value := row.RealizedVolumeDeltaQuote.String
			rec.RealizedVolumeDeltaQuote = &value
		}
		out = append(out, rec)
	}
	return out, nil
}
