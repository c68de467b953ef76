// Package workstore is the Redis-backed work-queue/key-value protocol the
// scheduler drains: a FIFO work queue plus the needs-update and flag sets
// used to coalesce delayed parent-layer updates.
package workstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	workQueueKey   = "up:q:0"
	needsUpdateFmt = "up:nu:%s"
	flagSetFmt     = "up:nu:f:%s"
)

// Store is the work-store protocol described in the system's external
// interfaces: a blocking work queue and the atomic scripts used to
// coalesce parent-layer re-enqueues.
type Store struct {
	rdb *redis.Client

	drainNeedsUpdate *redis.Script
	drainFlags       *redis.Script
	scheduleParent   *redis.Script
}

// New wraps an already-configured redis client.
func New(rdb *redis.Client) *Store {
	return &Store{
		rdb:              rdb,
		drainNeedsUpdate: redis.NewScript(drainNeedsUpdateLua),
		drainFlags:       redis.NewScript(drainFlagsLua),
		scheduleParent:   redis.NewScript(scheduleParentLua),
	}
}

// Dial builds a Store from addr/password, matching the worker's
// REDIS_PASSWORD / redis addr configuration.
func Dial(addr, password string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr, Password: password}))
}

// Pop blocks (with a 5s server-side timeout, so shutdown is observed
// promptly) waiting for work. It returns ("", nil) on timeout.
func (s *Store) Pop(ctx context.Context) (string, error) {
	res, err := s.rdb.BRPop(ctx, 5*time.Second, workQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "work queue pop")
	}
	// BRPOP returns [key, value]; we only asked for one key.
	if len(res) != 2 {
		return "", errors.Errorf("work queue pop: unexpected reply %v", res)
	}
	return res[1], nil
}

// Push enqueues a chunk id for processing (producers LPUSH; the scheduler
// re-pushes rejected/requeued items the same way).
func (s *Store) Push(ctx context.Context, chunkID string) error {
	if err := s.rdb.LPush(ctx, workQueueKey, chunkID).Err(); err != nil {
		return errors.Wrap(err, "work queue push")
	}
	return nil
}

// drain-needs-update(chunk_id): SMEMBERS then DEL the set, returning the
// members.
const drainNeedsUpdateLua = `
local members = redis.call('SMEMBERS', KEYS[1])
redis.call('DEL', KEYS[1])
return members
`

// DrainNeedsUpdate returns and clears the set of children needing update
// for chunkID.
func (s *Store) DrainNeedsUpdate(ctx context.Context, chunkID string) ([]string, error) {
	res, err := s.drainNeedsUpdate.Run(ctx, s.rdb, []string{needsUpdateKey(chunkID)}).StringSlice()
	if err != nil {
		return nil, errors.Wrapf(err, "drain-needs-update %s", chunkID)
	}
	return res, nil
}

// drain-flags(child_ids[]): for each key SMEMBERS; then DEL all keys;
// return an array of arrays parallel to input order.
const drainFlagsLua = `
local out = {}
for i, id in ipairs(KEYS) do
    out[i] = redis.call('SMEMBERS', id)
end
redis.call('DEL', unpack(KEYS))
return out
`

// DrainFlags returns, parallel to childIDs, the set of flag tokens
// pending for each child, clearing all of the sets atomically.
func (s *Store) DrainFlags(ctx context.Context, childIDs []string) ([][]string, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(childIDs))
	for i, id := range childIDs {
		keys[i] = flagKey(id)
	}
	raw, err := s.drainFlags.Run(ctx, s.rdb, keys).Result()
	if err != nil {
		return nil, errors.Wrap(err, "drain-flags")
	}
	out := make([][]string, len(childIDs))
	rows, ok := raw.([]any)
	if !ok || len(rows) != len(childIDs) {
		return nil, errors.Errorf("drain-flags: unexpected reply shape %v", raw)
	}
	for i, row := range rows {
		members, _ := row.([]any)
		toks := make([]string, len(members))
		for j, m := range members {
			toks[j], _ = m.(string)
		}
		out[i] = toks
	}
	return out, nil
}

// schedule-parent(parent_id, this_id, expire_s): SADD this_id into
// up:nu:<parent_id>; if the set was newly created and at least one
// member was added, EXPIRE the set and LPUSH parent_id onto up:q:0.
const scheduleParentLua = `
local added = redis.call('SADD', KEYS[1], ARGV[1])
local created = tonumber(redis.call('SCARD', KEYS[1])) == added
if added > 0 and created then
    redis.call('EXPIRE', KEYS[1], ARGV[2])
    redis.call('LPUSH', KEYS[2], ARGV[3])
end
return added
`

// ScheduleParent marks thisID as needing-update against parentID,
// expiring and (re)enqueueing the parent exactly once per coalescing
// window.
func (s *Store) ScheduleParent(ctx context.Context, parentID, thisID string, expireSeconds int) error {
	_, err := s.scheduleParent.Run(ctx, s.rdb,
		[]string{needsUpdateKey(parentID), workQueueKey},
		thisID, expireSeconds, parentID,
	).Result()
	if err != nil {
		return errors.Wrapf(err, "schedule-parent %s<-%s", parentID, thisID)
	}
	return nil
}

func needsUpdateKey(chunkID string) string { return fmt.Sprintf(needsUpdateFmt, chunkID) }
func flagKey(childID string) string        { return fmt.Sprintf(flagSetFmt, childID) }
