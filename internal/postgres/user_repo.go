package postgres

import (
	"context"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

type UserRepository struct {
	q querier
}

func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) GetUser(ctx context.Context, id domain.UserID) (domain.Identity, error) {
	var (
		uid  string
		name string
	)
	if err := r.q.QueryRow(ctx, queryGetUser, string(id)).Scan(&uid, &name); err != nil {
		return domain.Identity{}, mapPgError(err)
	}
	return domain.Identity{ID: domain.UserID(uid), DisplayName: name}, nil
}
