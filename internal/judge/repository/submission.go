package repository

import (
	"context"
	"database/sql"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/verdict"
	appErr "arbiter/pkg/errors"
)

// SubmissionStore persists submissions. The verdict write is terminal: it
// only applies while the record is still Pending, so a submission can never
// be re-judged through the normal flow.
type SubmissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)

	// UpdateVerdict writes the terminal verdict and diagnostic, conditional
	// on the stored verdict still being Pending.
	UpdateVerdict(ctx context.Context, id string, v verdict.Verdict, diagnostic string) error

	// CountPending counts submissions of the (contest, team) pair still in
	// Pending state. An empty teamID selects test runs.
	CountPending(ctx context.Context, contestID, teamID string) (int, error)

	Delete(ctx context.Context, id string) error
}

// MySQLSubmissionStore implements SubmissionStore with MySQL.
type MySQLSubmissionStore struct {
	db *sql.DB
}

// NewSubmissionStore creates a MySQL submission store.
func NewSubmissionStore(db *sql.DB) *MySQLSubmissionStore {
	return &MySQLSubmissionStore{db: db}
}

const submissionColumns = "id, contest_id, problem_id, team_id, user_id, language, filename, submitted_at, verdict, diagnostic"

// Create inserts a submission in Pending state.
func (s *MySQLSubmissionStore) Create(ctx context.Context, sub *model.Submission) error {
	if sub == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("submission is nil")
	}
	if sub.ID == "" {
		return appErr.ValidationError("id", "required")
	}
	if sub.Verdict == "" {
		sub.Verdict = verdict.Pending
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO submissions ("+submissionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sub.ID, sub.ContestID, sub.ProblemID, nullable(sub.TeamID), sub.UserID,
		sub.Language, sub.Filename, sub.SubmittedAt, string(sub.Verdict), sub.Diagnostic,
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "insert submission failed")
	}
	return nil
}

// Get returns a submission by id.
func (s *MySQLSubmissionStore) Get(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id)

	var sub model.Submission
	var teamID sql.NullString
	var v string
	err := row.Scan(&sub.ID, &sub.ContestID, &sub.ProblemID, &teamID, &sub.UserID,
		&sub.Language, &sub.Filename, &sub.SubmittedAt, &v, &sub.Diagnostic)
	if err == sql.ErrNoRows {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query submission failed")
	}
	sub.TeamID = teamID.String
	sub.Verdict = verdict.Verdict(v)
	return &sub, nil
}

// UpdateVerdict writes the terminal verdict, guarded on the record still
// being Pending.
func (s *MySQLSubmissionStore) UpdateVerdict(ctx context.Context, id string, v verdict.Verdict, diagnostic string) error {
	if !v.Terminal() {
		return appErr.Newf(appErr.InvalidParams, "verdict %q is not terminal", v)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE submissions SET verdict = ?, diagnostic = ? WHERE id = ? AND verdict = ?",
		string(v), diagnostic, id, string(verdict.Pending),
	)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "update verdict failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "read affected rows failed")
	}
	if affected == 0 {
		return appErr.New(appErr.SubmissionAlreadyJudged)
	}
	return nil
}

// CountPending counts outstanding submissions for the (contest, team) pair.
func (s *MySQLSubmissionStore) CountPending(ctx context.Context, contestID, teamID string) (int, error) {
	var (
		row *sql.Row
	)
	if teamID == "" {
		row = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM submissions WHERE contest_id = ? AND team_id IS NULL AND verdict = ?",
			contestID, string(verdict.Pending))
	} else {
		row = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM submissions WHERE contest_id = ? AND team_id = ? AND verdict = ?",
			contestID, teamID, string(verdict.Pending))
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, appErr.Wrapf(err, appErr.DatabaseError, "count pending submissions failed")
	}
	return count, nil
}

// Delete removes the submission row. Removing the on-disk data dir is the
// caller's job, since only it knows the layout.
func (s *MySQLSubmissionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = ?", id)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "delete submission failed")
	}
	return nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
