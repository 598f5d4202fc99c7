package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// AddAgent atomically inserts an Agent and its first, active
// AgentVersion. Fails with ErrDuplicate on a case-insensitive name
// collision.
func (s *Store) AddAgent(ctx context.Context, name, purpose, initialPrompt string) (string, error) {
	agentID := uuid.New().String()
	versionID := uuid.New().String()
	now := nowStamp()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO agents (id, name, name_lower, purpose, active, created_at, last_modified_at, base_score)
			 VALUES (?, ?, ?, ?, 1, ?, ?, 0)`,
			agentID, name, lower(name), purpose, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return wrapStorageErr("insert agent", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO agent_versions (id, agent_id, version_number, prompt_text, created_at, created_by, performance_score, active)
			 VALUES (?, ?, 1, ?, ?, 'bootstrap', 0, 1)`,
			versionID, agentID, initialPrompt, now)
		if err != nil {
			return wrapStorageErr("insert initial version", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return agentID, nil
}

// GetCurrentAgentVersion returns the single active AgentVersion for an
// agent. Returns ErrNotFound if the agent has no active version.
func (s *Store) GetCurrentAgentVersion(ctx context.Context, agentID string) (AgentVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, version_number, prompt_text, COALESCE(comments,''), COALESCE(known_issues,''),
		        created_at, COALESCE(created_by,''), performance_score, active
		 FROM agent_versions WHERE agent_id = ? AND active = 1`,
		agentID)

	var v AgentVersion
	var createdAt string
	var active int
	err := row.Scan(&v.ID, &v.AgentID, &v.VersionNumber, &v.PromptText, &v.Comments, &v.KnownIssues,
		&createdAt, &v.CreatedBy, &v.PerformanceScore, &active)
	if err == sql.ErrNoRows {
		return AgentVersion{}, ErrNotFound
	}
	if err != nil {
		return AgentVersion{}, wrapStorageErr("query active version", err)
	}
	v.CreatedAt = parseStamp(createdAt)
	v.Active = active != 0
	return v, nil
}

// AddAgentVersion adds a new prompt version for an agent, version-bumps
// it in place (the agent row is never removed and recreated), and
// returns the new version number. Implements spec.md §4.4's
// addAgentVersion contract.
func (s *Store) AddAgentVersion(ctx context.Context, agentID, newPrompt, reason, changeSummary string, perfBefore float64) (int64, error) {
	var newVersionNumber int64
	now := nowStamp()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var maxVersion int64
		var previousVersionID string
		row := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version_number), 0) FROM agent_versions WHERE agent_id = ?`, agentID)
		if err := row.Scan(&maxVersion); err != nil {
			return wrapStorageErr("query max version", err)
		}
		if maxVersion == 0 {
			return ErrNotFound
		}

		row = tx.QueryRowContext(ctx,
			`SELECT id FROM agent_versions WHERE agent_id = ? AND active = 1`, agentID)
		if err := row.Scan(&previousVersionID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: agent %s has no active version", ErrInvalidState, agentID)
			}
			return wrapStorageErr("query active version", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE agent_versions SET active = 0 WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("deactivate previous versions", err)
		}

		newVersionID := uuid.New().String()
		newVersionNumber = maxVersion + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agent_versions (id, agent_id, version_number, prompt_text, created_at, created_by, performance_score, active)
			 VALUES (?, ?, ?, ?, ?, 'refinement', ?, 1)`,
			newVersionID, agentID, newVersionNumber, newPrompt, now, perfBefore); err != nil {
			return wrapStorageErr("insert new version", err)
		}

		modID := uuid.New().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_modifications (id, version_id, previous_version_id, reason, change_summary, performance_before, modified_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			modID, newVersionID, previousVersionID, reason, changeSummary, perfBefore, now); err != nil {
			return wrapStorageErr("insert prompt modification", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE agents SET last_modified_at = ? WHERE id = ?`, now, agentID); err != nil {
			return wrapStorageErr("touch agent", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersionNumber, nil
}

// RemoveAgentCompletely transactionally cascades the deletion of an
// agent across all dependent rows. Team compositions where this agent
// is Chief are handled per policy (see CascadePolicy).
func (s *Store) RemoveAgentCompletely(ctx context.Context, agentID string, policy CascadePolicy) error {
	var chiefOfCount int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_compositions WHERE chief_agent_id = ?`, agentID).Scan(&chiefOfCount); err != nil {
		return wrapStorageErr("count chiefed teams", err)
	}

	if chiefOfCount > 0 && policy == CascadeReject {
		return ErrChiefCannotBeRemoved
	}

	if chiefOfCount > 0 && policy == CascadeLeaveDangling {
		// The FK on team_compositions.chief_agent_id has no ON DELETE
		// action, so it must be relaxed for this one operation to
		// reproduce the spec's literal "leave dangling" behavior.
		if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
			return wrapStorageErr("relax foreign keys", err)
		}
		defer s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if chiefOfCount > 0 && policy == CascadeForce {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM team_compositions WHERE chief_agent_id = ?`, agentID); err != nil {
				return wrapStorageErr("delete chiefed teams", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM agent_performance WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("delete performance rows", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM interaction_history WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("delete interaction rows", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM prompt_modifications WHERE version_id IN (SELECT id FROM agent_versions WHERE agent_id = ?)
			    OR previous_version_id IN (SELECT id FROM agent_versions WHERE agent_id = ?)`,
			agentID, agentID); err != nil {
			return wrapStorageErr("delete prompt modifications", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM agent_capabilities WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("delete capabilities", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("delete team memberships", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM agent_versions WHERE agent_id = ?`, agentID); err != nil {
			return wrapStorageErr("delete versions", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, agentID)
		if err != nil {
			return wrapStorageErr("delete agent", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetAgent returns an agent's identity row. Returns ErrNotFound if no
// such agent exists.
func (s *Store) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, purpose, active, created_at, last_modified_at, base_score, total_interactions, successful_interactions
		 FROM agents WHERE id = ?`, agentID)

	var a Agent
	var createdAt, lastModifiedAt string
	var active int
	err := row.Scan(&a.ID, &a.Name, &a.Purpose, &active, &createdAt, &lastModifiedAt,
		&a.BaseScore, &a.TotalInteractions, &a.SuccessfulInteractions)
	if err == sql.ErrNoRows {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, wrapStorageErr("query agent", err)
	}
	a.Active = active != 0
	a.CreatedAt = parseStamp(createdAt)
	a.LastModifiedAt = parseStamp(lastModifiedAt)
	return a, nil
}

// GetAgentByName looks up an agent case-insensitively, for callers
// (e.g. an activation result keyed by the Chief's module name) that
// only have the agent's display name.
func (s *Store) GetAgentByName(ctx context.Context, name string) (Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, purpose, active, created_at, last_modified_at, base_score, total_interactions, successful_interactions
		 FROM agents WHERE name_lower = ?`, lower(name))

	var a Agent
	var createdAt, lastModifiedAt string
	var active int
	err := row.Scan(&a.ID, &a.Name, &a.Purpose, &active, &createdAt, &lastModifiedAt,
		&a.BaseScore, &a.TotalInteractions, &a.SuccessfulInteractions)
	if err == sql.ErrNoRows {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, wrapStorageErr("query agent by name", err)
	}
	a.Active = active != 0
	a.CreatedAt = parseStamp(createdAt)
	a.LastModifiedAt = parseStamp(lastModifiedAt)
	return a, nil
}

// ListActiveAgents returns the identity rows of every active agent, for
// a caller (e.g. the CLI bootstrap) that needs to rehydrate runtimes
// from a prior run.
func (s *Store) ListActiveAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, purpose, active, created_at, last_modified_at, base_score, total_interactions, successful_interactions
		 FROM agents WHERE active = 1`)
	if err != nil {
		return nil, wrapStorageErr("list active agents", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		var createdAt, lastModifiedAt string
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &a.Purpose, &active, &createdAt, &lastModifiedAt,
			&a.BaseScore, &a.TotalInteractions, &a.SuccessfulInteractions); err != nil {
			return nil, wrapStorageErr("scan agent", err)
		}
		a.Active = active != 0
		a.CreatedAt = parseStamp(createdAt)
		a.LastModifiedAt = parseStamp(lastModifiedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("iterate agents", err)
	}
	return out, nil
}

// ListCapabilities returns every capability recorded for an agent.
func (s *Store) ListCapabilities(ctx context.Context, agentID string) ([]AgentCapability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, name, COALESCE(description,''), rating FROM agent_capabilities WHERE agent_id = ?`,
		agentID)
	if err != nil {
		return nil, wrapStorageErr("list capabilities", err)
	}
	defer rows.Close()

	var out []AgentCapability
	for rows.Next() {
		var c AgentCapability
		if err := rows.Scan(&c.ID, &c.AgentID, &c.Name, &c.Description, &c.Rating); err != nil {
			return nil, wrapStorageErr("scan capability", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("iterate capabilities", err)
	}
	return out, nil
}

// AddCapability attaches a named capability rating to an agent. Fails
// with ErrDuplicate on a case-insensitive name collision within the
// agent.
func (s *Store) AddCapability(ctx context.Context, agentID, name, description string, rating float64) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_capabilities (id, agent_id, name, name_lower, description, rating) VALUES (?, ?, ?, ?, ?, ?)`,
		id, agentID, name, lower(name), description, rating)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", wrapStorageErr("insert capability", err)
	}
	return id, nil
}
