package journal

import (
	"context"
	"fmt"
	"strings"

	"extflow/internal/domain"
)

// Filter narrows journal listings. Zero values match everything.
type Filter struct {
	ProjectID string
	Outcome   string
}

func (f Filter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome=?")
		args = append(args, f.Outcome)
	}
	return clauses, args
}

const selectColumns = `SELECT id,request_id,ts,project_id,actor_id,COALESCE(role,''),from_status,to_status,outcome,COALESCE(message,'') FROM transition_journal`

// Latest returns the newest entries first. A positive before cursor skips
// entries with id >= before.
func (j Journal) Latest(ctx context.Context, limit int, before int64, f Filter) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses, args := f.clauses()
	if before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, before)
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY id DESC LIMIT ?`, selectColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return j.query(ctx, query, args...)
}

// After returns entries with ids greater than the cursor in ascending order.
func (j Journal) After(ctx context.Context, limit int, cursor int64, f Filter) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses, args := f.clauses()
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY id ASC LIMIT ?`, selectColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return j.query(ctx, query, args...)
}

// LatestID returns the most recent entry id, 0 when the journal is empty.
func (j Journal) LatestID(ctx context.Context) (int64, error) {
	var id int64
	if err := j.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM transition_journal`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CountByOutcome tallies attempts per outcome, optionally for one project.
func (j Journal) CountByOutcome(ctx context.Context, projectID string) (map[string]int, error) {
	clauses, args := Filter{ProjectID: projectID}.clauses()
	rows, err := j.DB.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM transition_journal WHERE `+strings.Join(clauses, " AND ")+` GROUP BY outcome`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (j Journal) query(ctx context.Context, query string, args ...any) ([]domain.JournalEntry, error) {
	rows, err := j.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.JournalEntry{}
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.TS, &e.ProjectID, &e.ActorID, &e.Role, &e.FromStatus, &e.ToStatus, &e.Outcome, &e.Message); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
