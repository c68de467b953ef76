// Package sched implements the pipeline scheduler: the delayed-update
// table, the purge FIFO, and the main loop that drains the work queue
// with bounded concurrency and de-duplication.
package sched

import (
	"container/heap"
	"context"

	"github.com/lodworld/tileworker/internal/nlog"
)

// parentScheduler is the subset of workstore.Store the delayed-update
// table depends on; it exists so tests can substitute a fake.
type parentScheduler interface {
	ScheduleParent(ctx context.Context, parentID, thisID string, expireSeconds int) error
}

// delayedEntry is one (wake_time_epoch_s, parent_chunk_id) item in the
// min-heap.
type delayedEntry struct {
	wakeAt int64
	parent string
}

type delayedHeap []delayedEntry

func (h delayedHeap) Len() int            { return len(h) }
func (h delayedHeap) Less(i, j int) bool  { return h[i].wakeAt < h[j].wakeAt }
func (h delayedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayedHeap) Push(x any)         { *h = append(*h, x.(delayedEntry)) }
func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// nowFn is overridable in tests.
var nowFn = func() int64 { return timeNowUnix() }

// DelayedUpdates is the time-ordered, coalesced re-enqueue table for
// parent-layer updates: a min-heap over (wake_time, parent_chunk_id) plus
// a map of parent_chunk_id to the set of children collected for it.
type DelayedUpdates struct {
	h        delayedHeap
	children map[string]map[string]struct{}
}

// NewDelayedUpdates builds an empty table.
func NewDelayedUpdates() *DelayedUpdates {
	return &DelayedUpdates{children: make(map[string]map[string]struct{})}
}

// Track records childID against parentChunkID. If parentChunkID is not
// already tracked, it is enqueued to wake after delaySeconds; childID is
// always added to its child set regardless.
func (d *DelayedUpdates) Track(parentChunkID, childID string, delaySeconds int64) {
	set, tracked := d.children[parentChunkID]
	if !tracked {
		set = make(map[string]struct{})
		d.children[parentChunkID] = set
		heap.Push(&d.h, delayedEntry{wakeAt: nowFn() + delaySeconds, parent: parentChunkID})
	}
	set[childID] = struct{}{}
}

// Refresh promotes every entry whose wake time has arrived: for each,
// it issues the atomic schedule-parent script once per collected child
// and drops the parent's bookkeeping.
func (d *DelayedUpdates) Refresh(ctx context.Context, store parentScheduler) {
	now := nowFn()
	for d.h.Len() > 0 && d.h[0].wakeAt <= now {
		entry := heap.Pop(&d.h).(delayedEntry)
		d.flush(ctx, store, entry.parent)
	}
}

// Purge unconditionally drains every tracked parent, regardless of wake
// time; used on shutdown so no pending update is lost.
func (d *DelayedUpdates) Purge(ctx context.Context, store parentScheduler) {
	for parent := range d.children {
		d.flush(ctx, store, parent)
	}
	d.h = d.h[:0]
}

func (d *DelayedUpdates) flush(ctx context.Context, store parentScheduler, parent string) {
	children, ok := d.children[parent]
	if !ok {
		return
	}
	delete(d.children, parent)
	for child := range children {
		if err := store.ScheduleParent(ctx, parent, child, needsUpdateExpireSeconds); err != nil {
			nlog.Errorf("delayed update %s<-%s: %v", parent, child, err)
		}
	}
}

// needsUpdateExpireSeconds bounds how long an orphaned needs-update set
// survives if the worker crashes before draining it.
const needsUpdateExpireSeconds = 3600
