package service

import (
	"context"
	"os"

	"go.uber.org/zap"

	"arbiter/internal/judge/bundle"
	"arbiter/internal/judge/classifier"
	"arbiter/internal/judge/model"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/verdict"
	"arbiter/internal/scoreboard"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

// internalDiagnostic is stored when judging itself failed. Genuine submission
// failures carry a "testcase: <name>" diagnostic instead, so the two are
// distinguishable without exposing infrastructure detail to contestants.
const internalDiagnostic = "internal judging error"

// Config wires the orchestrator's collaborators.
type Config struct {
	Executor    sandbox.Executor
	Submissions repository.SubmissionStore
	Contests    repository.ContestStore
	Scoreboard  *scoreboard.Aggregator
	Languages   map[string]model.Language
	Layout      model.Layout

	// Bundles, when set, fetches testcase bundles from object storage before
	// judging. When nil the testcase dirs must already exist on disk.
	Bundles *bundle.Cache

	// Events, when set, announces every persisted verdict. Publish failures
	// are logged and never affect the verdict.
	Events repository.VerdictEventPublisher
}

// Orchestrator drives a submission through execute, classify, persist and
// scoreboard update. It is the only writer of verdicts.
type Orchestrator struct {
	cfg Config
}

// NewOrchestrator validates the config and creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Executor == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("executor is required")
	}
	if cfg.Submissions == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("submission store is required")
	}
	if cfg.Contests == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("contest store is required")
	}
	if cfg.Scoreboard == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("scoreboard aggregator is required")
	}
	if len(cfg.Languages) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("at least one language is required")
	}
	if cfg.Layout.SubmissionRoot == "" || cfg.Layout.TestcaseRoot == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("data layout roots are required")
	}
	return &Orchestrator{cfg: cfg}, nil
}

// Judge runs one submission to its terminal verdict. Execution or
// classification failures never escape: they become a RuntimeError verdict
// with a generic diagnostic, and the real cause goes to the log. The returned
// error covers persistence only.
func (o *Orchestrator) Judge(ctx context.Context, sub *model.Submission) error {
	if sub == nil || sub.ID == "" {
		return appErr.ValidationError("submission", "required")
	}
	ctx = context.WithValue(ctx, logger.SubmissionIDKey, sub.ID)
	ctx = context.WithValue(ctx, logger.ContestIDKey, sub.ContestID)

	v, diagnostic := o.evaluate(ctx, sub)

	if err := o.cfg.Submissions.UpdateVerdict(ctx, sub.ID, v, diagnostic); err != nil {
		if appErr.GetCode(err) == appErr.SubmissionAlreadyJudged {
			logger.Warn(ctx, "verdict already recorded, dropping result",
				zap.String("verdict", string(v)))
			return nil
		}
		return err
	}
	sub.Verdict = v
	sub.Diagnostic = diagnostic
	logger.Info(ctx, "submission judged",
		zap.String("verdict", string(v)),
		zap.String("diagnostic", diagnostic))

	if o.cfg.Events != nil {
		if err := o.cfg.Events.PublishVerdict(ctx, sub); err != nil {
			logger.Error(ctx, "publish verdict event failed", zap.Error(err))
		}
	}

	if sub.IsTestRun() {
		return nil
	}
	return o.forward(ctx, sub)
}

// evaluate produces the verdict and diagnostic for a submission, absorbing
// every failure mode of the pipeline into RuntimeError.
func (o *Orchestrator) evaluate(ctx context.Context, sub *model.Submission) (v verdict.Verdict, diagnostic string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "judging panicked", zap.Any("panic", r))
			v, diagnostic = verdict.RuntimeError, internalDiagnostic
		}
	}()

	lang, ok := o.cfg.Languages[sub.Language]
	if !ok {
		logger.Error(ctx, "language not supported", zap.String("language", sub.Language))
		return verdict.RuntimeError, internalDiagnostic
	}
	problem, err := o.cfg.Contests.GetProblem(ctx, sub.ProblemID)
	if err != nil {
		logger.Error(ctx, "load problem failed", zap.Error(err))
		return verdict.RuntimeError, internalDiagnostic
	}

	testcaseDir := o.cfg.Layout.TestcaseDir(problem.ID)
	if o.cfg.Bundles != nil {
		testcaseDir, err = o.cfg.Bundles.Ensure(ctx, problem.ID)
		if err != nil {
			logger.Error(ctx, "fetch testcase bundle failed", zap.Error(err))
			return verdict.RuntimeError, internalDiagnostic
		}
	}

	timeLimit := lang.ScaledTimeLimit(problem.TimeLimit)
	codePath := o.cfg.Layout.CodePath(sub)
	logDir := model.LogDir(codePath)

	err = o.cfg.Executor.Run(ctx, sandbox.ExecRequest{
		SubmissionID: sub.ID,
		CodePath:     codePath,
		Language:     lang,
		InputsDir:    model.InputsDir(testcaseDir),
		LogDir:       logDir,
		TimeLimit:    timeLimit,
		SpaceLimit:   problem.SpaceLimit,
	})
	if err != nil {
		logger.Error(ctx, "sandbox execution failed", zap.Error(err))
		return verdict.RuntimeError, internalDiagnostic
	}

	v, diagnostic, err = classifier.Classify(logDir, model.OutputsDir(testcaseDir), timeLimit, problem.SpaceLimit)
	if err != nil {
		logger.Error(ctx, "classify artifacts failed", zap.Error(err))
		return verdict.RuntimeError, internalDiagnostic
	}
	return v, diagnostic
}

// forward folds the verdict into the contest scoreboard.
func (o *Orchestrator) forward(ctx context.Context, sub *model.Submission) error {
	contest, err := o.cfg.Contests.GetContest(ctx, sub.ContestID)
	if err != nil {
		return err
	}
	return o.cfg.Scoreboard.Apply(ctx, sub.ContestID, sub.TeamID, sub.ProblemID,
		sub.Verdict, sub.SubmittedAt, contest.StartsAt)
}

// RemoveSubmission deletes a submission record together with its on-disk data
// dir. Scoreboard effects already applied stay applied.
func (o *Orchestrator) RemoveSubmission(ctx context.Context, id string) error {
	sub, err := o.cfg.Submissions.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.cfg.Submissions.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(o.cfg.Layout.SubmissionDataDir(sub)); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "remove submission data failed")
	}
	return nil
}
