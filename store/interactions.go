package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// RecordInteraction records one immutable Interaction, updates the
// agent's running counters, upserts the AgentPerformance rollup for
// its taskType, and recomputes the active version's performanceScore —
// all within one transaction, satisfying the commit-time snapshot
// invariant (an Interaction's versionId is whatever version was active
// at insertion time).
func (s *Store) RecordInteraction(ctx context.Context, agentID, taskType, request, response string, isCorrect *bool, processingTime float64, notes string) (string, error) {
	interactionID := uuid.New().String()
	now := nowStamp()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var versionID string
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM agent_versions WHERE agent_id = ? AND active = 1`, agentID)
		if err := row.Scan(&versionID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: agent %s has no active version", ErrInvalidState, agentID)
			}
			return wrapStorageErr("query active version", err)
		}

		var isCorrectVal sql.NullBool
		if isCorrect != nil {
			isCorrectVal = sql.NullBool{Bool: *isCorrect, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO interaction_history (id, agent_id, version_id, task_type, request, response, is_correct, processing_time, created_at, evaluation_notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			interactionID, agentID, versionID, taskType, request, response, isCorrectVal, processingTime, now, notes); err != nil {
			return wrapStorageErr("insert interaction", err)
		}

		successIncrement := 0
		if isCorrect != nil && *isCorrect {
			successIncrement = 1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE agents SET total_interactions = total_interactions + 1,
			                    successful_interactions = successful_interactions + ?,
			                    last_modified_at = ?
			 WHERE id = ?`,
			successIncrement, now, agentID); err != nil {
			return wrapStorageErr("update agent counters", err)
		}

		if err := upsertPerformance(ctx, tx, agentID, versionID, taskType, isCorrect, processingTime, now); err != nil {
			return err
		}

		if err := logPerformanceEvent(ctx, tx, agentID, versionID, taskType, isCorrect, now); err != nil {
			return err
		}
		if err := upsertPerformanceSummary(ctx, tx, agentID, isCorrect, now); err != nil {
			return err
		}

		score, err := computeVersionScore(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE agent_versions SET performance_score = ? WHERE id = ?`, score, versionID); err != nil {
			return wrapStorageErr("update version score", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return interactionID, nil
}

// ListPerformance returns every AgentPerformance rollup row for an
// agent, across all of its versions and taskTypes.
func (s *Store) ListPerformance(ctx context.Context, agentID string) ([]AgentPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, version_id, task_type, correct_responses, total_attempts, average_response_time, last_evaluation_date
		 FROM agent_performance WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, wrapStorageErr("list performance", err)
	}
	defer rows.Close()

	var out []AgentPerformance
	for rows.Next() {
		var p AgentPerformance
		var lastEval string
		if err := rows.Scan(&p.AgentID, &p.VersionID, &p.TaskType, &p.CorrectResponses, &p.TotalAttempts,
			&p.AverageResponseTime, &lastEval); err != nil {
			return nil, wrapStorageErr("scan performance row", err)
		}
		p.LastEvaluationDate = parseStamp(lastEval)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr("iterate performance rows", err)
	}
	return out, nil
}

// upsertPerformance updates the (agentId, versionId, taskType) rollup
// row with a running-mean response time: newAvg = (oldAvg*oldAttempts +
// sample) / (oldAttempts+1).
func upsertPerformance(ctx context.Context, tx *sql.Tx, agentID, versionID, taskType string, isCorrect *bool, processingTime float64, now string) error {
	var oldAttempts, oldCorrect int64
	var oldAvg float64
	row := tx.QueryRowContext(ctx,
		`SELECT total_attempts, correct_responses, average_response_time
		 FROM agent_performance WHERE agent_id = ? AND version_id = ? AND task_type = ?`,
		agentID, versionID, taskType)
	err := row.Scan(&oldAttempts, &oldCorrect, &oldAvg)
	found := true
	if err == sql.ErrNoRows {
		found = false
	} else if err != nil {
		return wrapStorageErr("query performance row", err)
	}

	newAvg := (oldAvg*float64(oldAttempts) + processingTime) / float64(oldAttempts+1)
	newCorrect := oldCorrect
	if isCorrect != nil && *isCorrect {
		newCorrect++
	}
	newAttempts := oldAttempts + 1

	if !found {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO agent_performance (agent_id, version_id, task_type, correct_responses, total_attempts, average_response_time, last_evaluation_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			agentID, versionID, taskType, newCorrect, newAttempts, newAvg, now)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE agent_performance SET correct_responses = ?, total_attempts = ?, average_response_time = ?, last_evaluation_date = ?
			 WHERE agent_id = ? AND version_id = ? AND task_type = ?`,
			newCorrect, newAttempts, newAvg, now, agentID, versionID, taskType)
	}
	if err != nil {
		return wrapStorageErr("upsert performance row", err)
	}
	return nil
}

// logPerformanceEvent appends one row to the AgentPerformanceLog, an
// append-only event stream of every interaction's correctness —
// kept alongside the interaction_history row it mirrors so the
// quick-access tables never need a join back to it.
func logPerformanceEvent(ctx context.Context, tx *sql.Tx, agentID, versionID, taskType string, isCorrect *bool, now string) error {
	correct := isCorrect != nil && *isCorrect
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agent_performance_log (agent_id, version_id, task_type, is_correct, logged_at)
		 VALUES (?, ?, ?, ?, ?)`,
		agentID, versionID, taskType, correct, now); err != nil {
		return wrapStorageErr("log performance event", err)
	}
	return nil
}

// upsertPerformanceSummary maintains the agent-level (all versions,
// all taskTypes) running totals in PerformanceSummary, so a reader
// wanting "how is this agent doing overall" never has to scan
// AgentPerformance across every version it has ever had.
func upsertPerformanceSummary(ctx context.Context, tx *sql.Tx, agentID string, isCorrect *bool, now string) error {
	correctIncrement := 0
	if isCorrect != nil && *isCorrect {
		correctIncrement = 1
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE performance_summary SET total_attempts = total_attempts + 1,
		                                total_correct = total_correct + ?,
		                                updated_at = ?
		 WHERE agent_id = ?`,
		correctIncrement, now, agentID)
	if err != nil {
		return wrapStorageErr("update performance summary", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO performance_summary (agent_id, total_attempts, total_correct, updated_at)
		 VALUES (?, ?, ?, ?)`,
		agentID, 1, correctIncrement, now); err != nil {
		return wrapStorageErr("insert performance summary", err)
	}
	return nil
}

// GetPerformanceSummary returns an agent's flat cross-version totals,
// the quick-access row metrics.Analyze reads instead of summing
// AgentPerformance. An agent with no recorded interactions yet
// returns a zero-valued summary rather than ErrNotFound.
func (s *Store) GetPerformanceSummary(ctx context.Context, agentID string) (PerformanceSummary, error) {
	summary := PerformanceSummary{AgentID: agentID}
	var updatedAt string
	row := s.db.QueryRowContext(ctx,
		`SELECT total_attempts, total_correct, updated_at FROM performance_summary WHERE agent_id = ?`, agentID)
	err := row.Scan(&summary.TotalAttempts, &summary.TotalCorrect, &updatedAt)
	if err == sql.ErrNoRows {
		return summary, nil
	}
	if err != nil {
		return PerformanceSummary{}, wrapStorageErr("get performance summary", err)
	}
	summary.UpdatedAt = parseStamp(updatedAt)
	return summary, nil
}

// computeVersionScore sums correct/attempts over all of a version's
// AgentPerformance rows; returns 0 if the version has no attempts yet.
func computeVersionScore(ctx context.Context, tx *sql.Tx, versionID string) (float64, error) {
	var correct, total int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(correct_responses), 0), COALESCE(SUM(total_attempts), 0)
		 FROM agent_performance WHERE version_id = ?`, versionID)
	if err := row.Scan(&correct, &total); err != nil {
		return 0, wrapStorageErr("sum performance rows", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// SetVersionPerformanceScore directly sets a version's performanceScore,
// for callers (e.g. an A/B test conclusion) that compute a final score
// outside of the normal recordInteraction rollup path.
func (s *Store) SetVersionPerformanceScore(ctx context.Context, versionID string, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_versions SET performance_score = ? WHERE id = ?`, score, versionID)
	if err != nil {
		return wrapStorageErr("set version performance score", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecomputeScores recomputes a version's performanceScore, writes
// performanceAfter to any PromptModification row referencing it, and
// sets the parent Agent's baseScore to the version's score. Concurrent
// calls for the same versionID are deduplicated via singleflight so
// they collapse into one pass.
func (s *Store) RecomputeScores(ctx context.Context, versionID string) error {
	_, err, _ := s.recompute.Do(versionID, func() (interface{}, error) {
		return nil, withTx(ctx, s.db, func(tx *sql.Tx) error {
			var agentID string
			if err := tx.QueryRowContext(ctx,
				`SELECT agent_id FROM agent_versions WHERE id = ?`, versionID).Scan(&agentID); err != nil {
				if err == sql.ErrNoRows {
					return ErrNotFound
				}
				return wrapStorageErr("query version's agent", err)
			}

			score, err := computeVersionScore(ctx, tx, versionID)
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE agent_versions SET performance_score = ? WHERE id = ?`, score, versionID); err != nil {
				return wrapStorageErr("update version score", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE prompt_modifications SET performance_after = ? WHERE version_id = ?`, score, versionID); err != nil {
				return wrapStorageErr("update prompt modification", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE agents SET base_score = ? WHERE id = ?`, score, agentID); err != nil {
				return wrapStorageErr("update agent base score", err)
			}
			return nil
		})
	})
	return err
}
