package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// CreateTeam inserts a Team and its Chief as a member with role
// "Chief", atomically. Fails with ErrDuplicate on a case-insensitive
// name collision.
func (s *Store) CreateTeam(ctx context.Context, name, chiefAgentID, description string) (string, error) {
	teamID := uuid.New().String()
	now := nowStamp()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO team_compositions (id, name, name_lower, chief_agent_id, description, created_at, performance_score)
			 VALUES (?, ?, ?, ?, ?, ?, 0)`,
			teamID, name, lower(name), chiefAgentID, description, now)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return wrapStorageErr("insert team", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, agent_id, role, performance_in_team) VALUES (?, ?, 'Chief', 0)`,
			teamID, chiefAgentID)
		if err != nil {
			return wrapStorageErr("insert chief membership", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return teamID, nil
}

// AddToTeam inserts a non-Chief member into a team.
func (s *Store) AddToTeam(ctx context.Context, teamID, agentID, role, assignmentReason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, agent_id, role, assignment_reason, performance_in_team) VALUES (?, ?, ?, ?, 0)`,
		teamID, agentID, role, assignmentReason)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return wrapStorageErr("insert team member", err)
	}
	return nil
}

// RemoveFromTeam removes a member from a team. Refuses to remove the
// Chief — the chief invariant holds for the lifetime of the team.
func (s *Store) RemoveFromTeam(ctx context.Context, teamID, agentID string) error {
	var chiefAgentID string
	if err := s.db.QueryRowContext(ctx,
		`SELECT chief_agent_id FROM team_compositions WHERE id = ?`, teamID).Scan(&chiefAgentID); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return wrapStorageErr("query team", err)
	}
	if chiefAgentID == agentID {
		return ErrChiefCannotBeRemoved
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = ? AND agent_id = ?`, teamID, agentID)
	if err != nil {
		return wrapStorageErr("delete team member", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTeamMemberPerformance sets one member's performanceInTeam and
// recomputes the team's performanceScore as the arithmetic mean over
// all members.
func (s *Store) UpdateTeamMemberPerformance(ctx context.Context, teamID, agentID string, performance float64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE team_members SET performance_in_team = ? WHERE team_id = ? AND agent_id = ?`,
			performance, teamID, agentID)
		if err != nil {
			return wrapStorageErr("update member performance", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		var mean sql.NullFloat64
		row := tx.QueryRowContext(ctx,
			`SELECT AVG(performance_in_team) FROM team_members WHERE team_id = ?`, teamID)
		if err := row.Scan(&mean); err != nil {
			return wrapStorageErr("average team performance", err)
		}
		score := 0.0
		if mean.Valid {
			score = mean.Float64
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE team_compositions SET performance_score = ? WHERE id = ?`, score, teamID); err != nil {
			return wrapStorageErr("update team score", err)
		}
		return nil
	})
}

// GetTeam returns a team's current row.
func (s *Store) GetTeam(ctx context.Context, teamID string) (Team, error) {
	var t Team
	var createdAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, chief_agent_id, COALESCE(description,''), created_at, performance_score
		 FROM team_compositions WHERE id = ?`, teamID)
	if err := row.Scan(&t.ID, &t.Name, &t.ChiefAgentID, &t.Description, &createdAt, &t.PerformanceScore); err != nil {
		if err == sql.ErrNoRows {
			return Team{}, ErrNotFound
		}
		return Team{}, wrapStorageErr("query team", err)
	}
	t.CreatedAt = parseStamp(createdAt)
	return t, nil
}

// GetTeamByName looks up a team case-insensitively, for callers (e.g.
// an ACTIVATE_TEAM directive) that only have the team's display name.
func (s *Store) GetTeamByName(ctx context.Context, name string) (Team, error) {
	var t Team
	var createdAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, chief_agent_id, COALESCE(description,''), created_at, performance_score
		 FROM team_compositions WHERE name_lower = ?`, lower(name))
	if err := row.Scan(&t.ID, &t.Name, &t.ChiefAgentID, &t.Description, &createdAt, &t.PerformanceScore); err != nil {
		if err == sql.ErrNoRows {
			return Team{}, ErrNotFound
		}
		return Team{}, wrapStorageErr("query team by name", err)
	}
	t.CreatedAt = parseStamp(createdAt)
	return t, nil
}

// ListTeamMembers returns every membership row for a team, Chief included.
func (s *Store) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, agent_id, role, COALESCE(assignment_reason,''), performance_in_team
		 FROM team_members WHERE team_id = ?`, teamID)
	if err != nil {
		return nil, wrapStorageErr("list team members", err)
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.AgentID, &m.Role, &m.AssignmentReason, &m.PerformanceInTeam); err != nil {
			return nil, wrapStorageErr("scan team member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("iterate team members", err)
	}
	return members, nil
}
