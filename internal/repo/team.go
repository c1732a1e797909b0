package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"digitalcoo/internal/domain"
)

// ErrDuplicate is returned when an invite for the same email already exists.
var ErrDuplicate = errors.New("duplicate")

const teamColumns = `id,owner_id,member_id,email,role,status,invited_at,accepted_at`

func scanTeamMember(row scanner) (domain.TeamMember, error) {
	var m domain.TeamMember
	var memberID, acceptedAt sql.NullString
	err := row.Scan(&m.ID, &m.OwnerID, &memberID, &m.Email, &m.Role, &m.Status, &m.InvitedAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.MemberID = stringPtr(memberID)
	m.AcceptedAt = stringPtr(acceptedAt)
	return m, nil
}

func (r Repo) InsertTeamMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO team_members(`+teamColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.OwnerID, nullableStringPtr(m.MemberID), m.Email, m.Role, m.Status, m.InvitedAt, nullableStringPtr(m.AcceptedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

func (r Repo) GetTeamMember(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.TeamMember, error) {
	return scanTeamMember(r.on(tx).QueryRowContext(ctx, `SELECT `+teamColumns+` FROM team_members WHERE id=? AND owner_id=?`, id, ownerID))
}

func (r Repo) ListTeamMembers(ctx context.Context, ownerID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+teamColumns+` FROM team_members WHERE owner_id=? ORDER BY invited_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTeamMember(ctx context.Context, tx *sql.Tx, m domain.TeamMember) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `UPDATE team_members SET member_id=?, role=?, status=?, accepted_at=? WHERE id=? AND owner_id=?`,
		nullableStringPtr(m.MemberID), m.Role, m.Status, nullableStringPtr(m.AcceptedAt), m.ID, m.OwnerID))
}

func (r Repo) DeleteTeamMember(ctx context.Context, tx *sql.Tx, ownerID, id string) error {
	return affectedOrNotFound(r.on(tx).ExecContext(ctx, `DELETE FROM team_members WHERE id=? AND owner_id=?`, id, ownerID))
}
