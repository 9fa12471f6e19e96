package service

import (
	"context"

	"go.uber.org/zap"

	"arbiter/internal/judge/repository"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// AdmissionController bounds the per-team backlog: a (contest, team) pair may
// hold at most as many Pending submissions as the contest has problems. The
// count and the insert are not one atomic step, so a burst can briefly
// overshoot; the limit is a throttle, not a ledger.
type AdmissionController struct {
	submissions repository.SubmissionStore
	contests    repository.ContestStore
}

// NewAdmissionController creates an admission controller.
func NewAdmissionController(submissions repository.SubmissionStore, contests repository.ContestStore) (*AdmissionController, error) {
	if submissions == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("submission store is required")
	}
	if contests == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("contest store is required")
	}
	return &AdmissionController{submissions: submissions, contests: contests}, nil
}

// Admit decides whether the (contest, team) pair may submit now. An empty
// teamID throttles test runs against the same bound.
func (c *AdmissionController) Admit(ctx context.Context, contestID, teamID string) error {
	contest, err := c.contests.GetContest(ctx, contestID)
	if err != nil {
		return err
	}
	pending, err := c.submissions.CountPending(ctx, contestID, teamID)
	if err != nil {
		return err
	}
	if pending >= contest.ProblemCount {
		logger.Warn(ctx, "submission rejected, too many pending",
			zap.String("contest_id", contestID),
			zap.String("team_id", teamID),
			zap.Int("pending", pending),
			zap.Int("limit", contest.ProblemCount))
		return appErr.New(appErr.TooManySubmissions)
	}
	return nil
}
