package repo

import (
	"context"
	"database/sql"

	"digitalcoo/internal/domain"
)

const agentColumns = `id,user_id,name,description,type,created_by,prompt,script,readme,usage_count,is_active,created_at,updated_at`

func scanAgent(row scanner) (domain.Agent, error) {
	var a domain.Agent
	var desc, prompt, script, readme sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &desc, &a.Type, &a.CreatedBy, &prompt, &script, &readme, &a.UsageCount, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Description = desc.String
	a.Prompt = prompt.String
	a.Script = script.String
	a.Readme = readme.String
	return a, nil
}

func (r Repo) InsertAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO agents(`+agentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.Name, nullable(a.Description), a.Type, a.CreatedBy, nullable(a.Prompt), nullable(a.Script), nullable(a.Readme),
		a.UsageCount, boolInt(a.IsActive), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAgent(ctx context.Context, tx *sql.Tx, userID, id string) (domain.Agent, error) {
	return scanAgent(r.on(tx).QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) ListAgents(ctx context.Context, userID string, activeOnly bool) ([]domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE user_id=?`
	if activeOnly {
		query += ` AND is_active=1`
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE agents SET name=?, description=?, type=?, prompt=?, script=?, readme=?, is_active=?, updated_at=? WHERE id=? AND user_id=?`,
		a.Name, nullable(a.Description), a.Type, nullable(a.Prompt), nullable(a.Script), nullable(a.Readme), boolInt(a.IsActive), a.UpdatedAt, a.ID, a.UserID))
}

func (r Repo) IncrementAgentUsage(ctx context.Context, tx *sql.Tx, userID, id, updatedAt string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE agents SET usage_count=usage_count+1, updated_at=? WHERE id=? AND user_id=?`, updatedAt, id, userID))
}

func (r Repo) DeleteAgent(ctx context.Context, tx *sql.Tx, userID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM agents WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) CountAgents(ctx context.Context, userID string) (int, error) {
	return r.countWhere(ctx, "agents", "user_id=?", userID)
}
