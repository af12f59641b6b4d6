package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlc"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"clmm-lp-agent/internal/model"
)

// Dependencies bundles the generated goctl model and shared infrastructure
// required by repository implementations.
type Dependencies struct {
	DBConn     sqlx.SqlConn
	CachedConn *sqlc.CachedConn
	Cache      cache.Cache

	DecisionCyclesModel model.DecisionCyclesModel
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	DecisionCycles DecisionCyclesRepo
}

// New constructs the repository set, validating required dependencies.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	if deps.DecisionCyclesModel == nil {
		return nil, errors.New("repo: missing DecisionCyclesModel dependency")
	}

	return &Set{
		DecisionCycles: newDecisionCyclesRepo(deps),
	}, nil
}
