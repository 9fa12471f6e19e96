package scoreboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	appErr "arbiter/pkg/errors"
)

const keyPrefix = "scoreboard:"

// RedisRepository implements Repository on Redis. Conditional updates run as
// Lua scripts so each one is atomic server-side; workers on different hosts
// need no coordination beyond that.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a Redis-backed scoreboard repository.
func NewRedisRepository(client *redis.Client) (*RedisRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisRepository{client: client}, nil
}

func keyTeams(contestID string) string  { return keyPrefix + contestID + ":teams" }
func keyCells(contestID string) string  { return keyPrefix + contestID + ":cells" }
func keyMarker(contestID string) string { return keyPrefix + contestID + ":marker" }
func keyOrder(contestID string) string  { return keyPrefix + contestID + ":order" }

func keyTeam(contestID, teamID string) string {
	return keyPrefix + contestID + ":team:" + teamID
}

func keyCell(contestID, cellID string) string {
	return keyPrefix + contestID + ":cell:" + cellID
}

func cellID(teamID, problemID string) string {
	return teamID + "|" + problemID
}

var ensureEntriesScript = redis.NewScript(`
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('HSETNX', KEYS[3], 'solved_count', 0)
redis.call('HSETNX', KEYS[3], 'penalty', 0)
redis.call('HSETNX', KEYS[4], 'solved', 0)
redis.call('HSETNX', KEYS[4], 'failed_tries', 0)
redis.call('HSETNX', KEYS[4], 'penalty', 0)
redis.call('HSETNX', KEYS[4], 'submitted_at', 0)
return 1
`)

var failedTryScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'solved') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'submitted_at', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'failed_tries', 1)
redis.call('HINCRBY', KEYS[1], 'penalty', ARGV[2])
return 1
`)

var markSolvedScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'solved') == '1' then
  return {0, 0}
end
redis.call('HSET', KEYS[1], 'solved', 1)
redis.call('HSET', KEYS[1], 'submitted_at', ARGV[1])
local penalty = redis.call('HINCRBY', KEYS[1], 'penalty', ARGV[2])
return {1, penalty}
`)

var addTeamSolveScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], 'penalty', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'solved_count', 1)
return redis.call('INCR', KEYS[2])
`)

var replaceOrderScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[2])
for i = 2, #ARGV do
  redis.call('RPUSH', KEYS[2], ARGV[i])
end
return 1
`)

// Create initializes the change marker; idempotent.
func (r *RedisRepository) Create(ctx context.Context, contestID string) error {
	if err := r.client.SetNX(ctx, keyMarker(contestID), 0, 0).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create scoreboard failed")
	}
	return nil
}

// Delete removes every key belonging to the contest scoreboard.
func (r *RedisRepository) Delete(ctx context.Context, contestID string) error {
	teams, err := r.client.SMembers(ctx, keyTeams(contestID)).Result()
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "read scoreboard teams failed")
	}
	cells, err := r.client.SMembers(ctx, keyCells(contestID)).Result()
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "read scoreboard cells failed")
	}

	keys := []string{keyTeams(contestID), keyCells(contestID), keyMarker(contestID), keyOrder(contestID)}
	for _, team := range teams {
		keys = append(keys, keyTeam(contestID, team))
	}
	for _, cell := range cells {
		keys = append(keys, keyCell(contestID, cell))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "delete scoreboard failed")
	}
	return nil
}

// EnsureEntries creates zeroed team and cell entries if absent.
func (r *RedisRepository) EnsureEntries(ctx context.Context, contestID, teamID, problemID string) error {
	keys := []string{
		keyTeams(contestID),
		keyCells(contestID),
		keyTeam(contestID, teamID),
		keyCell(contestID, cellID(teamID, problemID)),
	}
	if err := ensureEntriesScript.Run(ctx, r.client, keys, teamID, cellID(teamID, problemID)).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "ensure scoreboard entries failed")
	}
	return nil
}

// AddFailedTry applies a failed try, conditional on the cell being unsolved.
func (r *RedisRepository) AddFailedTry(ctx context.Context, contestID, teamID, problemID string, submittedAt, penalty int64) error {
	keys := []string{keyCell(contestID, cellID(teamID, problemID))}
	if err := failedTryScript.Run(ctx, r.client, keys, submittedAt, penalty).Err(); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "record failed try failed")
	}
	return nil
}

// MarkSolved marks the cell solved, conditional on it being unsolved.
func (r *RedisRepository) MarkSolved(ctx context.Context, contestID, teamID, problemID string, submittedAt, penalty int64) (bool, int64, error) {
	keys := []string{keyCell(contestID, cellID(teamID, problemID))}
	res, err := markSolvedScript.Run(ctx, r.client, keys, submittedAt, penalty).Slice()
	if err != nil {
		return false, 0, appErr.Wrapf(err, appErr.CacheError, "mark solved failed")
	}
	if len(res) != 2 {
		return false, 0, appErr.Newf(appErr.CacheError, "mark solved returned %d values", len(res))
	}
	applied, _ := res[0].(int64)
	cellPenalty, _ := res[1].(int64)
	return applied == 1, cellPenalty, nil
}

// AddTeamSolve folds the solved cell into the team aggregate and bumps the marker.
func (r *RedisRepository) AddTeamSolve(ctx context.Context, contestID, teamID string, cellPenalty int64) (int64, error) {
	keys := []string{keyTeam(contestID, teamID), keyMarker(contestID)}
	marker, err := addTeamSolveScript.Run(ctx, r.client, keys, cellPenalty).Int64()
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "add team solve failed")
	}
	return marker, nil
}

// Snapshot reads the whole scoreboard. The marker is read first: a
// ReplaceOrder conditioned on it fails if any solve lands after this point,
// which is exactly the consistency the re-rank needs.
func (r *RedisRepository) Snapshot(ctx context.Context, contestID string) (Snapshot, error) {
	marker, err := r.client.Get(ctx, keyMarker(contestID)).Int64()
	if err == redis.Nil {
		return Snapshot{}, appErr.New(appErr.ScoreboardNotFound)
	}
	if err != nil {
		return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read scoreboard marker failed")
	}

	teams, err := r.client.SMembers(ctx, keyTeams(contestID)).Result()
	if err != nil {
		return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read scoreboard teams failed")
	}
	order, err := r.client.LRange(ctx, keyOrder(contestID), 0, -1).Result()
	if err != nil {
		return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read scoreboard order failed")
	}

	snap := Snapshot{
		Teams:  make(map[string]TeamRow, len(teams)),
		Order:  order,
		Marker: marker,
	}
	for _, teamID := range teams {
		fields, err := r.client.HGetAll(ctx, keyTeam(contestID, teamID)).Result()
		if err != nil {
			return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read team row failed")
		}
		snap.Teams[teamID] = TeamRow{
			SolvedCount: parseField(fields, "solved_count"),
			Penalty:     parseField(fields, "penalty"),
			Problems:    make(map[string]Cell),
		}
	}

	cells, err := r.client.SMembers(ctx, keyCells(contestID)).Result()
	if err != nil {
		return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read scoreboard cells failed")
	}
	for _, id := range cells {
		teamID, problemID, ok := strings.Cut(id, "|")
		if !ok {
			continue
		}
		row, ok := snap.Teams[teamID]
		if !ok {
			continue
		}
		fields, err := r.client.HGetAll(ctx, keyCell(contestID, id)).Result()
		if err != nil {
			return Snapshot{}, appErr.Wrapf(err, appErr.CacheError, "read scoreboard cell failed")
		}
		row.Problems[problemID] = Cell{
			SubmittedAt: parseField(fields, "submitted_at"),
			FailedTries: parseField(fields, "failed_tries"),
			Penalty:     parseField(fields, "penalty"),
			Solved:      parseField(fields, "solved") == 1,
		}
		snap.Teams[teamID] = row
	}
	return snap, nil
}

// ReplaceOrder writes the order only if the marker is unchanged.
func (r *RedisRepository) ReplaceOrder(ctx context.Context, contestID string, marker int64, order []string) (bool, error) {
	keys := []string{keyMarker(contestID), keyOrder(contestID)}
	args := make([]interface{}, 0, len(order)+1)
	args = append(args, marker)
	for _, teamID := range order {
		args = append(args, teamID)
	}
	applied, err := replaceOrderScript.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.CacheError, "replace order failed")
	}
	return applied == 1, nil
}

func parseField(fields map[string]string, name string) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
