package scoreboard

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"arbiter/internal/judge/verdict"
	"arbiter/pkg/logger"
)

// Aggregator folds verdicts into a contest scoreboard. Both entry points are
// idempotent with respect to "already solved", so verdicts may arrive in any
// order and any number of times.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates an aggregator over the given repository.
func NewAggregator(repo Repository) (*Aggregator, error) {
	if repo == nil {
		return nil, fmt.Errorf("scoreboard repository is required")
	}
	return &Aggregator{repo: repo}, nil
}

// Apply routes a terminal verdict to the matching entry point. Pending is
// rejected; every other verdict that is not Accepted counts as a failed try.
func (a *Aggregator) Apply(ctx context.Context, contestID, teamID, problemID string, v verdict.Verdict, submittedAt, contestStartsAt int64) error {
	if !v.Terminal() {
		return fmt.Errorf("cannot apply non-terminal verdict %q", v)
	}
	if v == verdict.Accepted {
		return a.RecordAccepted(ctx, contestID, teamID, problemID, submittedAt, contestStartsAt)
	}
	return a.RecordFailedTry(ctx, contestID, teamID, problemID, submittedAt)
}

// RecordFailedTry charges a failed try against an unsolved (team, problem)
// cell. Arriving after the problem was solved it is a no-op.
func (a *Aggregator) RecordFailedTry(ctx context.Context, contestID, teamID, problemID string, submittedAt int64) error {
	if err := a.repo.EnsureEntries(ctx, contestID, teamID, problemID); err != nil {
		return err
	}
	return a.repo.AddFailedTry(ctx, contestID, teamID, problemID, submittedAt, FailedTryPenalty)
}

// RecordAccepted marks a (team, problem) cell solved and re-ranks the
// contest. Only the first acceptance applies; later ones are no-ops. The
// solving submission itself costs (submittedAt - contestStartsAt) / 60
// penalty minutes, frozen into the team aggregate together with the failed
// tries accrued before the solve.
func (a *Aggregator) RecordAccepted(ctx context.Context, contestID, teamID, problemID string, submittedAt, contestStartsAt int64) error {
	if err := a.repo.EnsureEntries(ctx, contestID, teamID, problemID); err != nil {
		return err
	}

	acceptPenalty := (submittedAt - contestStartsAt) / 60
	applied, cellPenalty, err := a.repo.MarkSolved(ctx, contestID, teamID, problemID, submittedAt, acceptPenalty)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	marker, err := a.repo.AddTeamSolve(ctx, contestID, teamID, cellPenalty)
	if err != nil {
		return err
	}
	return a.rerank(ctx, contestID, marker)
}

// rerank recomputes the team order from a snapshot and writes it back only if
// the change marker has not moved since. An abandoned write is fine: the
// update that moved the marker triggers its own re-rank.
func (a *Aggregator) rerank(ctx context.Context, contestID string, marker int64) error {
	snap, err := a.repo.Snapshot(ctx, contestID)
	if err != nil {
		return err
	}

	order := RankTeams(snap.Teams)
	applied, err := a.repo.ReplaceOrder(ctx, contestID, marker, order)
	if err != nil {
		return err
	}
	if !applied {
		logger.Debug(ctx, "re-rank abandoned, a newer update owns the ordering",
			zap.String("contest_id", contestID), zap.Int64("marker", marker))
	}
	return nil
}

// RankTeams totally orders team ids: solved count descending, penalty
// ascending, team id ascending as the deterministic tie-break.
func RankTeams(teams map[string]TeamRow) []string {
	order := make([]string, 0, len(teams))
	for id := range teams {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := teams[order[i]], teams[order[j]]
		if a.SolvedCount != b.SolvedCount {
			return a.SolvedCount > b.SolvedCount
		}
		if a.Penalty != b.Penalty {
			return a.Penalty < b.Penalty
		}
		return order[i] < order[j]
	})
	return order
}
