package repository

import (
	"context"
	"database/sql"

	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

// ContestStore reads contest and problem records. Contest/problem CRUD lives
// outside this module; the judge only needs limits and counts.
type ContestStore interface {
	GetContest(ctx context.Context, id string) (*model.Contest, error)
	GetProblem(ctx context.Context, id string) (*model.Problem, error)
}

// MySQLContestStore implements ContestStore with MySQL.
type MySQLContestStore struct {
	db *sql.DB
}

// NewContestStore creates a MySQL contest store.
func NewContestStore(db *sql.DB) *MySQLContestStore {
	return &MySQLContestStore{db: db}
}

// GetContest returns a contest with its problem count.
func (s *MySQLContestStore) GetContest(ctx context.Context, id string) (*model.Contest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.starts_at, c.ends_at,
		        (SELECT COUNT(*) FROM problems p WHERE p.contest_id = c.id)
		 FROM contests c WHERE c.id = ?`, id)

	var contest model.Contest
	err := row.Scan(&contest.ID, &contest.Name, &contest.StartsAt, &contest.EndsAt, &contest.ProblemCount)
	if err == sql.ErrNoRows {
		return nil, appErr.New(appErr.ContestNotFound)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query contest failed")
	}
	return &contest, nil
}

// GetProblem returns a problem with its judging limits.
func (s *MySQLContestStore) GetProblem(ctx context.Context, id string) (*model.Problem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, contest_id, title, time_limit, space_limit FROM problems WHERE id = ?", id)

	var problem model.Problem
	err := row.Scan(&problem.ID, &problem.ContestID, &problem.Title, &problem.TimeLimit, &problem.SpaceLimit)
	if err == sql.ErrNoRows {
		return nil, appErr.New(appErr.ProblemNotFound)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query problem failed")
	}
	return &problem, nil
}
