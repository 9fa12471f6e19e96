package scoreboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	appErr "arbiter/pkg/errors"
)

func newRedisRepo(t *testing.T) *RedisRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo, err := NewRedisRepository(client)
	if err != nil {
		t.Fatalf("new redis repository: %v", err)
	}
	if err := repo.Create(context.Background(), testContest); err != nil {
		t.Fatalf("create scoreboard: %v", err)
	}
	return repo
}

func TestRedisFailedTryConditional(t *testing.T) {
	t.Parallel()
	repo := newRedisRepo(t)
	ctx := context.Background()

	if err := repo.EnsureEntries(ctx, testContest, "team-1", testProblem); err != nil {
		t.Fatalf("ensure entries: %v", err)
	}
	if err := repo.AddFailedTry(ctx, testContest, "team-1", testProblem, 100, FailedTryPenalty); err != nil {
		t.Fatalf("add failed try: %v", err)
	}

	applied, cellPenalty, err := repo.MarkSolved(ctx, testContest, "team-1", testProblem, 200, 5)
	if err != nil {
		t.Fatalf("mark solved: %v", err)
	}
	if !applied {
		t.Fatal("first acceptance did not apply")
	}
	if cellPenalty != FailedTryPenalty+5 {
		t.Fatalf("cell penalty = %d, want %d", cellPenalty, FailedTryPenalty+5)
	}

	// Solved cell: late failed tries and accepts are no-ops.
	if err := repo.AddFailedTry(ctx, testContest, "team-1", testProblem, 300, FailedTryPenalty); err != nil {
		t.Fatalf("late failed try: %v", err)
	}
	applied, _, err = repo.MarkSolved(ctx, testContest, "team-1", testProblem, 400, 99)
	if err != nil {
		t.Fatalf("late mark solved: %v", err)
	}
	if applied {
		t.Fatal("second acceptance applied")
	}

	snap, err := repo.Snapshot(ctx, testContest)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	cell := snap.Teams["team-1"].Problems[testProblem]
	if !cell.Solved || cell.FailedTries != 1 || cell.Penalty != FailedTryPenalty+5 || cell.SubmittedAt != 200 {
		t.Fatalf("cell = %+v, want frozen post-solve state", cell)
	}
}

func TestRedisEnsureEntriesPreservesState(t *testing.T) {
	t.Parallel()
	repo := newRedisRepo(t)
	ctx := context.Background()

	if err := repo.EnsureEntries(ctx, testContest, "team-1", testProblem); err != nil {
		t.Fatalf("ensure entries: %v", err)
	}
	if err := repo.AddFailedTry(ctx, testContest, "team-1", testProblem, 100, FailedTryPenalty); err != nil {
		t.Fatalf("add failed try: %v", err)
	}
	// Re-ensuring must not reset the counters.
	if err := repo.EnsureEntries(ctx, testContest, "team-1", testProblem); err != nil {
		t.Fatalf("re-ensure entries: %v", err)
	}

	snap, err := repo.Snapshot(ctx, testContest)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	cell := snap.Teams["team-1"].Problems[testProblem]
	if cell.FailedTries != 1 || cell.Penalty != FailedTryPenalty {
		t.Fatalf("cell = %+v, want failed try preserved", cell)
	}
}

func TestRedisMarkerAndReplaceOrder(t *testing.T) {
	t.Parallel()
	repo := newRedisRepo(t)
	ctx := context.Background()

	if err := repo.EnsureEntries(ctx, testContest, "team-1", testProblem); err != nil {
		t.Fatalf("ensure entries: %v", err)
	}
	marker, err := repo.AddTeamSolve(ctx, testContest, "team-1", 30)
	if err != nil {
		t.Fatalf("add team solve: %v", err)
	}
	if marker != 1 {
		t.Fatalf("marker = %d, want 1", marker)
	}

	applied, err := repo.ReplaceOrder(ctx, testContest, marker, []string{"team-1"})
	if err != nil {
		t.Fatalf("replace order: %v", err)
	}
	if !applied {
		t.Fatal("order write with current marker abandoned")
	}

	// A second solve moves the marker; the old marker must now lose.
	if _, err := repo.AddTeamSolve(ctx, testContest, "team-1", 10); err != nil {
		t.Fatalf("add team solve: %v", err)
	}
	applied, err = repo.ReplaceOrder(ctx, testContest, marker, []string{"stale"})
	if err != nil {
		t.Fatalf("replace order: %v", err)
	}
	if applied {
		t.Fatal("stale order write applied")
	}

	snap, err := repo.Snapshot(ctx, testContest)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Order) != 1 || snap.Order[0] != "team-1" {
		t.Fatalf("order = %v, want [team-1]", snap.Order)
	}
	row := snap.Teams["team-1"]
	if row.SolvedCount != 2 || row.Penalty != 40 {
		t.Fatalf("team row = %+v, want 2 solves / 40 penalty", row)
	}
}

func TestRedisSnapshotMissingContest(t *testing.T) {
	t.Parallel()
	repo := newRedisRepo(t)
	_, err := repo.Snapshot(context.Background(), "no-such-contest")
	if appErr.GetCode(err) != appErr.ScoreboardNotFound {
		t.Fatalf("error = %v, want ScoreboardNotFound", err)
	}
}

func TestRedisDelete(t *testing.T) {
	t.Parallel()
	repo := newRedisRepo(t)
	ctx := context.Background()

	if err := repo.EnsureEntries(ctx, testContest, "team-1", testProblem); err != nil {
		t.Fatalf("ensure entries: %v", err)
	}
	if err := repo.Delete(ctx, testContest); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := repo.Snapshot(ctx, testContest)
	if appErr.GetCode(err) != appErr.ScoreboardNotFound {
		t.Fatalf("error = %v, want ScoreboardNotFound after delete", err)
	}
}
