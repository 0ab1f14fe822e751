package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadwell/conversation-service/internal/domain"
)

// AgentRepository manages support agent records.
type AgentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository builds repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, email, name, password_hash, created_at`

func (r *agentRepository) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	return r.fetchSingle(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1`, id)
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	return r.fetchSingle(ctx, `SELECT `+agentColumns+` FROM agents WHERE email=$1`, email)
}

func (r *agentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	var agent domain.Agent
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&agent.ID,
		&agent.Email,
		&agent.Name,
		&agent.PasswordHash,
		&agent.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
