package scoreboard

import (
	"context"
	"sync"

	appErr "arbiter/pkg/errors"
)

// MemoryRepository is a mutex-guarded in-process Repository. It backs tests
// and single-node deployments; multi-worker deployments use the Redis
// repository.
type MemoryRepository struct {
	mu       sync.Mutex
	contests map[string]*memoryBoard
}

type memoryBoard struct {
	teams  map[string]*TeamRow
	order  []string
	marker int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{contests: make(map[string]*memoryBoard)}
}

// Create initializes an empty scoreboard.
func (r *MemoryRepository) Create(_ context.Context, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contests[contestID]; !ok {
		r.contests[contestID] = &memoryBoard{teams: make(map[string]*TeamRow)}
	}
	return nil
}

// Delete removes the scoreboard.
func (r *MemoryRepository) Delete(_ context.Context, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contests, contestID)
	return nil
}

// EnsureEntries creates zeroed team and cell entries if absent.
func (r *MemoryRepository) EnsureEntries(_ context.Context, contestID, teamID, problemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	board := r.board(contestID)
	team, ok := board.teams[teamID]
	if !ok {
		team = &TeamRow{Problems: make(map[string]Cell)}
		board.teams[teamID] = team
	}
	if _, ok := team.Problems[problemID]; !ok {
		team.Problems[problemID] = Cell{}
	}
	return nil
}

// AddFailedTry applies a failed try if the cell is not solved.
func (r *MemoryRepository) AddFailedTry(_ context.Context, contestID, teamID, problemID string, submittedAt, penalty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cell, team, err := r.cell(contestID, teamID, problemID)
	if err != nil {
		return err
	}
	if cell.Solved {
		return nil
	}
	cell.SubmittedAt = submittedAt
	cell.FailedTries++
	cell.Penalty += penalty
	team.Problems[problemID] = cell
	return nil
}

// MarkSolved marks the cell solved if not solved yet.
func (r *MemoryRepository) MarkSolved(_ context.Context, contestID, teamID, problemID string, submittedAt, penalty int64) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cell, team, err := r.cell(contestID, teamID, problemID)
	if err != nil {
		return false, 0, err
	}
	if cell.Solved {
		return false, 0, nil
	}
	cell.Solved = true
	cell.SubmittedAt = submittedAt
	cell.Penalty += penalty
	team.Problems[problemID] = cell
	return true, cell.Penalty, nil
}

// AddTeamSolve folds a solved cell into the team aggregate and bumps the marker.
func (r *MemoryRepository) AddTeamSolve(_ context.Context, contestID, teamID string, cellPenalty int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.contests[contestID]
	if !ok {
		return 0, appErr.New(appErr.ScoreboardNotFound)
	}
	team, ok := board.teams[teamID]
	if !ok {
		return 0, appErr.Newf(appErr.ScoreboardNotFound, "team %s has no scoreboard entry", teamID)
	}
	team.Penalty += cellPenalty
	team.SolvedCount++
	board.marker++
	return board.marker, nil
}

// Snapshot returns a deep copy of the scoreboard plus the current marker.
func (r *MemoryRepository) Snapshot(_ context.Context, contestID string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.contests[contestID]
	if !ok {
		return Snapshot{}, appErr.New(appErr.ScoreboardNotFound)
	}
	snap := Snapshot{
		Teams:  make(map[string]TeamRow, len(board.teams)),
		Order:  append([]string(nil), board.order...),
		Marker: board.marker,
	}
	for id, team := range board.teams {
		row := TeamRow{
			SolvedCount: team.SolvedCount,
			Penalty:     team.Penalty,
			Problems:    make(map[string]Cell, len(team.Problems)),
		}
		for pid, cell := range team.Problems {
			row.Problems[pid] = cell
		}
		snap.Teams[id] = row
	}
	return snap, nil
}

// ReplaceOrder writes the order if the marker is unchanged.
func (r *MemoryRepository) ReplaceOrder(_ context.Context, contestID string, marker int64, order []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.contests[contestID]
	if !ok {
		return false, appErr.New(appErr.ScoreboardNotFound)
	}
	if board.marker != marker {
		return false, nil
	}
	board.order = append([]string(nil), order...)
	return true, nil
}

// board auto-creates contest state; lazy creation mirrors the conditional
// "create if absent" step that precedes every update.
func (r *MemoryRepository) board(contestID string) *memoryBoard {
	board, ok := r.contests[contestID]
	if !ok {
		board = &memoryBoard{teams: make(map[string]*TeamRow)}
		r.contests[contestID] = board
	}
	return board
}

func (r *MemoryRepository) cell(contestID, teamID, problemID string) (Cell, *TeamRow, error) {
	board, ok := r.contests[contestID]
	if !ok {
		return Cell{}, nil, appErr.New(appErr.ScoreboardNotFound)
	}
	team, ok := board.teams[teamID]
	if !ok {
		return Cell{}, nil, appErr.Newf(appErr.ScoreboardNotFound, "team %s has no scoreboard entry", teamID)
	}
	cell, ok := team.Problems[problemID]
	if !ok {
		return Cell{}, nil, appErr.Newf(appErr.ScoreboardNotFound, "problem %s has no scoreboard entry", problemID)
	}
	return cell, team, nil
}
