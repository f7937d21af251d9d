package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResultStore = (*ResultRepo)(nil)

// ranAtLayout has a fixed-width fraction so stored values sort as text.
const ranAtLayout = "2006-01-02T15:04:05.000000000Z"

// ResultRepo is the SQLite implementation of the ResultStore port.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a ResultRepo backed by db.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// Record appends rec. A zero RanAt is stamped with the current time.
func (r *ResultRepo) Record(ctx context.Context, rec model.ActionRecord) (int64, error) {
	ranAt := rec.RanAt
	if ranAt.IsZero() {
		ranAt = time.Now()
	}

	const query = `
		INSERT INTO action_results
			(run_id, repo_full_name, pr_number, head_sha, rule_name, action, triggered_by, conclusion, title, summary, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.Writer.ExecContext(ctx, query,
		rec.RunID, rec.RepoFullName, rec.PRNumber, rec.HeadSHA, rec.RuleName, rec.Action,
		string(rec.Trigger), string(rec.Result.Conclusion), rec.Result.Title, rec.Result.Summary,
		ranAt.UTC().Format(ranAtLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("record %s result for %s#%d: %w", rec.Action, rec.RepoFullName, rec.PRNumber, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListByPR returns the history of a pull request, newest first.
func (r *ResultRepo) ListByPR(ctx context.Context, repoFullName string, prNumber int) ([]model.ActionRecord, error) {
	const query = `
		SELECT id, run_id, repo_full_name, pr_number, head_sha, rule_name, action, triggered_by, conclusion, title, summary, ran_at
		FROM action_results
		WHERE repo_full_name = ? AND pr_number = ?
		ORDER BY ran_at DESC, id DESC
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName, prNumber)
	if err != nil {
		return nil, fmt.Errorf("list results for %s#%d: %w", repoFullName, prNumber, err)
	}
	defer rows.Close()

	records := []model.ActionRecord{}
	for rows.Next() {
		var (
			rec        model.ActionRecord
			trigger    string
			conclusion string
			ranAt      string
		)
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.RepoFullName, &rec.PRNumber, &rec.HeadSHA, &rec.RuleName, &rec.Action,
			&trigger, &conclusion, &rec.Result.Title, &rec.Result.Summary, &ranAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec.Trigger = model.Trigger(trigger)
		rec.Result.Conclusion, err = model.ParseConclusion(conclusion)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", rec.ID, err)
		}

		rec.RanAt, err = parseTime(ranAt)
		if err != nil {
			return nil, fmt.Errorf("parse ran_at of result %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return records, nil
}

// HasRun reports whether a rule-triggered run of action for rule was recorded
// on headSHA. Command runs never count.
func (r *ResultRepo) HasRun(ctx context.Context, repoFullName string, prNumber int, rule, action, headSHA string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM action_results
			WHERE repo_full_name = ? AND pr_number = ? AND rule_name = ? AND action = ? AND head_sha = ?
			  AND triggered_by = 'rule'
		)
	`
	var exists bool
	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName, prNumber, rule, action, headSHA).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s/%s run on %s#%d: %w", rule, action, repoFullName, prNumber, err)
	}
	return exists, nil
}
