package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"extflow/internal/domain"
)

// Journal stores transition attempts in the workspace database.
type Journal struct {
	DB  *sql.DB
	Now func() time.Time
}

func New(db *sql.DB) Journal {
	return Journal{DB: db, Now: time.Now}
}

// Record appends one attempt. A missing timestamp is filled in.
func (j Journal) Record(ctx context.Context, e domain.JournalEntry) error {
	if j.DB == nil {
		return errors.New("journal database not configured")
	}
	if e.TS == "" {
		now := time.Now
		if j.Now != nil {
			now = j.Now
		}
		e.TS = now().UTC().Format(time.RFC3339)
	}
	_, err := j.DB.ExecContext(ctx, `INSERT INTO transition_journal(request_id,ts,project_id,actor_id,role,from_status,to_status,outcome,message) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.RequestID, e.TS, e.ProjectID, e.ActorID, nullable(e.Role), e.FromStatus, e.ToStatus, e.Outcome, nullable(e.Message))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
