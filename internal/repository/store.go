package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories into the engine's read-side interface.
// Individual repositories stay reachable for handler-level queries.
type Store struct {
	*RequestRepo
	*PolicyRepo
	*StepRepo
	*DelegationRepo
}

// NewStore creates the aggregate store over one pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		RequestRepo:    NewRequestRepo(pool),
		PolicyRepo:     NewPolicyRepo(pool),
		StepRepo:       NewStepRepo(pool),
		DelegationRepo: NewDelegationRepo(pool),
	}
}
