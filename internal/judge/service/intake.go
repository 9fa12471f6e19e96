package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/verdict"
	appErr "arbiter/pkg/errors"
)

// Intake is the submission front door: admission check, persistence in
// Pending state, then dispatch to the worker pool.
type Intake struct {
	admission   *AdmissionController
	submissions submissionCreator
	pool        *Pool
}

type submissionCreator interface {
	Create(ctx context.Context, s *model.Submission) error
	Delete(ctx context.Context, id string) error
}

// NewIntake creates an intake over admission, store and pool.
func NewIntake(admission *AdmissionController, submissions submissionCreator, pool *Pool) (*Intake, error) {
	if admission == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("admission controller is required")
	}
	if submissions == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("submission store is required")
	}
	if pool == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("worker pool is required")
	}
	return &Intake{admission: admission, submissions: submissions, pool: pool}, nil
}

// Submit admits, records and enqueues a submission. The caller must have
// placed the code file into the data layout already. On a full queue the
// record is rolled back so the admission bound does not leak.
func (i *Intake) Submit(ctx context.Context, sub *model.Submission) error {
	if sub == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("submission is nil")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt == 0 {
		sub.SubmittedAt = time.Now().Unix()
	}
	sub.Verdict = verdict.Pending
	sub.Diagnostic = ""

	if err := i.admission.Admit(ctx, sub.ContestID, sub.TeamID); err != nil {
		return err
	}
	if err := i.submissions.Create(ctx, sub); err != nil {
		return err
	}
	if err := i.pool.Enqueue(sub); err != nil {
		_ = i.submissions.Delete(ctx, sub.ID)
		return err
	}
	return nil
}
