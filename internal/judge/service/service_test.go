package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/verdict"
	"arbiter/internal/scoreboard"
	appErr "arbiter/pkg/errors"
)

// fakeSubmissionStore is an in-memory SubmissionStore with the same
// conditional verdict write as the MySQL implementation.
type fakeSubmissionStore struct {
	mu          sync.Mutex
	submissions map[string]*model.Submission
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{submissions: make(map[string]*model.Submission)}
}

func (s *fakeSubmissionStore) Create(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Verdict == "" {
		sub.Verdict = verdict.Pending
	}
	copied := *sub
	s.submissions[sub.ID] = &copied
	return nil
}

func (s *fakeSubmissionStore) Get(_ context.Context, id string) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	copied := *sub
	return &copied, nil
}

func (s *fakeSubmissionStore) UpdateVerdict(_ context.Context, id string, v verdict.Verdict, diagnostic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return appErr.New(appErr.SubmissionNotFound)
	}
	if sub.Verdict != verdict.Pending {
		return appErr.New(appErr.SubmissionAlreadyJudged)
	}
	sub.Verdict = v
	sub.Diagnostic = diagnostic
	return nil
}

func (s *fakeSubmissionStore) CountPending(_ context.Context, contestID, teamID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sub := range s.submissions {
		if sub.ContestID == contestID && sub.TeamID == teamID && sub.Verdict == verdict.Pending {
			count++
		}
	}
	return count, nil
}

func (s *fakeSubmissionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submissions, id)
	return nil
}

type fakeContestStore struct {
	contests map[string]*model.Contest
	problems map[string]*model.Problem
}

func (s *fakeContestStore) GetContest(_ context.Context, id string) (*model.Contest, error) {
	contest, ok := s.contests[id]
	if !ok {
		return nil, appErr.New(appErr.ContestNotFound)
	}
	return contest, nil
}

func (s *fakeContestStore) GetProblem(_ context.Context, id string) (*model.Problem, error) {
	problem, ok := s.problems[id]
	if !ok {
		return nil, appErr.New(appErr.ProblemNotFound)
	}
	return problem, nil
}

// scriptedExecutor writes canned artifact files, standing in for the sandbox.
type scriptedExecutor struct {
	fail      bool
	artifacts map[string]string
}

func (e *scriptedExecutor) Run(_ context.Context, req sandbox.ExecRequest) error {
	if e.fail {
		return errors.New("sandbox daemon unreachable")
	}
	if err := os.MkdirAll(req.LogDir, 0755); err != nil {
		return err
	}
	for name, content := range e.artifacts {
		if err := os.WriteFile(filepath.Join(req.LogDir, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
}

func (p *recordingPublisher) PublishVerdict(_ context.Context, s *model.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, s.ID)
	return nil
}

const statReportOK = "\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:00.30\n" +
	"\tMaximum resident set size (kbytes): 10000\n"

func passingArtifacts(output string) map[string]string {
	return map[string]string{
		"compile.err": "",
		"t1.out":      output,
		"t1.err":      "",
		"t1.stt":      statReportOK,
	}
}

// judgeEnv holds a fully wired orchestrator over fakes and temp dirs.
type judgeEnv struct {
	orchestrator *Orchestrator
	submissions  *fakeSubmissionStore
	contests     *fakeContestStore
	board        *scoreboard.MemoryRepository
	events       *recordingPublisher
	layout       model.Layout
}

func newJudgeEnv(t *testing.T, executor sandbox.Executor) *judgeEnv {
	t.Helper()
	root := t.TempDir()
	layout := model.Layout{
		SubmissionRoot: filepath.Join(root, "submissions"),
		TestcaseRoot:   filepath.Join(root, "testcases"),
	}

	outputsDir := model.OutputsDir(layout.TestcaseDir("p1"))
	if err := os.MkdirAll(outputsDir, 0755); err != nil {
		t.Fatalf("mkdir outputs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputsDir, "t1"), []byte("42\n"), 0644); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if err := os.MkdirAll(model.InputsDir(layout.TestcaseDir("p1")), 0755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}

	contests := &fakeContestStore{
		contests: map[string]*model.Contest{
			"c1": {ID: "c1", Name: "Test Round", StartsAt: 1000, EndsAt: 2000, ProblemCount: 3},
		},
		problems: map[string]*model.Problem{
			"p1": {ID: "p1", ContestID: "c1", TimeLimit: 1.0, SpaceLimit: 64},
		},
	}
	submissions := newFakeSubmissionStore()
	board := scoreboard.NewMemoryRepository()
	aggregator, err := scoreboard.NewAggregator(board)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	events := &recordingPublisher{}

	orchestrator, err := NewOrchestrator(Config{
		Executor:    executor,
		Submissions: submissions,
		Contests:    contests,
		Scoreboard:  aggregator,
		Languages:   map[string]model.Language{"c": {Name: "c"}},
		Layout:      layout,
		Events:      events,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &judgeEnv{
		orchestrator: orchestrator,
		submissions:  submissions,
		contests:     contests,
		board:        board,
		events:       events,
		layout:       layout,
	}
}

func (env *judgeEnv) createSubmission(t *testing.T, id, teamID string, submittedAt int64) *model.Submission {
	t.Helper()
	sub := &model.Submission{
		ID:          id,
		ContestID:   "c1",
		ProblemID:   "p1",
		TeamID:      teamID,
		UserID:      "u1",
		Language:    "c",
		Filename:    "main.c",
		SubmittedAt: submittedAt,
	}
	if err := env.submissions.Create(context.Background(), sub); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if err := os.MkdirAll(env.layout.SubmissionDataDir(sub), 0755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	if err := os.WriteFile(env.layout.CodePath(sub), []byte("int main(){}"), 0644); err != nil {
		t.Fatalf("write code: %v", err)
	}
	return sub
}
