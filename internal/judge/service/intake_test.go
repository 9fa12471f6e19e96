package service

import (
	"context"
	"fmt"
	"testing"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/verdict"
	appErr "arbiter/pkg/errors"
)

func newTestIntake(t *testing.T, env *judgeEnv, cfg PoolConfig) (*Intake, *Pool) {
	t.Helper()
	pool, err := NewPool(env.orchestrator, cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	admission, err := NewAdmissionController(env.submissions, env.contests)
	if err != nil {
		t.Fatalf("new admission controller: %v", err)
	}
	intake, err := NewIntake(admission, env.submissions, pool)
	if err != nil {
		t.Fatalf("new intake: %v", err)
	}
	return intake, pool
}

func TestSubmitAssignsIDAndEnqueues(t *testing.T) {
	t.Parallel()
	env := newJudgeEnv(t, &scriptedExecutor{artifacts: passingArtifacts("42\n")})
	intake, pool := newTestIntake(t, env, PoolConfig{Workers: 1, QueueSize: 4})

	sub := &model.Submission{
		ContestID: "c1",
		ProblemID: "p1",
		TeamID:    "team-1",
		UserID:    "u1",
		Language:  "c",
		Filename:  "main.c",
	}
	if err := intake.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.ID == "" || sub.SubmittedAt == 0 {
		t.Fatalf("submission missing id or timestamp: %+v", sub)
	}

	stored, err := env.submissions.Get(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Verdict != verdict.Pending {
		t.Fatalf("verdict = %s, want Pending", stored.Verdict)
	}
	pool.Stop()
}

// A full queue must roll the record back, or the admission bound would stay
// consumed by a submission that will never be judged.
func TestSubmitRollsBackOnFullQueue(t *testing.T) {
	t.Parallel()
	env := newJudgeEnv(t, &scriptedExecutor{artifacts: passingArtifacts("42\n")})
	intake, _ := newTestIntake(t, env, PoolConfig{Workers: 1, QueueSize: 1})

	submit := func(id string) error {
		return intake.Submit(context.Background(), &model.Submission{
			ID:        id,
			ContestID: "c1",
			ProblemID: "p1",
			TeamID:    "team-1",
			UserID:    "u1",
			Language:  "c",
			Filename:  "main.c",
		})
	}

	if err := submit("first"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	err := submit("second")
	if appErr.GetCode(err) != appErr.JudgeQueueFull {
		t.Fatalf("error = %v, want JudgeQueueFull", err)
	}
	if _, err := env.submissions.Get(context.Background(), "second"); err == nil {
		t.Fatal("rejected submission left a record behind")
	}
}

func TestSubmitHonorsAdmissionBound(t *testing.T) {
	t.Parallel()
	env := newJudgeEnv(t, &scriptedExecutor{artifacts: passingArtifacts("42\n")})
	intake, _ := newTestIntake(t, env, PoolConfig{Workers: 1, QueueSize: 16})

	for i := 0; i < 3; i++ {
		err := intake.Submit(context.Background(), &model.Submission{
			ID:        fmt.Sprintf("s%d", i),
			ContestID: "c1",
			ProblemID: "p1",
			TeamID:    "team-1",
			UserID:    "u1",
			Language:  "c",
			Filename:  "main.c",
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	err := intake.Submit(context.Background(), &model.Submission{
		ContestID: "c1",
		ProblemID: "p1",
		TeamID:    "team-1",
		UserID:    "u1",
		Language:  "c",
		Filename:  "main.c",
	})
	if appErr.GetCode(err) != appErr.TooManySubmissions {
		t.Fatalf("error = %v, want TooManySubmissions", err)
	}
}
