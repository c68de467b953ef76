package sched

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lodworld/tileworker/chunkid"
	"github.com/lodworld/tileworker/chunkproc"
	"github.com/lodworld/tileworker/internal/nlog"
	"github.com/lodworld/tileworker/raster"
	"github.com/lodworld/tileworker/workstore"
)

// workStore is the subset of workstore.Store the scheduler depends on.
type workStore interface {
	Pop(ctx context.Context) (string, error)
	Push(ctx context.Context, chunkID string) error
	DrainNeedsUpdate(ctx context.Context, chunkID string) ([]string, error)
	DrainFlags(ctx context.Context, childIDs []string) ([][]string, error)
	ScheduleParent(ctx context.Context, parentID, thisID string, expireSeconds int) error
}

// purger is the subset of objstore.CDNPurger the purge loop depends on.
type purger interface {
	PurgeCache(urls []string)
}

// Config holds the scheduler's tuning knobs, sourced from internal/config.
type Config struct {
	PipelineLimit  int
	PurgeDelay     time.Duration
	PurgeURLsLimit int
	DelayL0Seconds int
	DelayL1Seconds int
	CDNBaseURL     string
}

// Scheduler drains the work queue on a single goroutine, dispatching each
// popped chunk id to its own process_chunk task bounded by a pipeline
// permit, and runs a separate purge loop batching completed ids to the
// CDN.
type Scheduler struct {
	store  workStore
	deps   chunkproc.Deps
	pool   *raster.Pool
	purger purger
	cfg    Config

	sem *semaphore.Weighted

	// mu guards inFlight plus delayed and purgeFIFO, both of which are
	// documented as not safe for concurrent use and are touched from the
	// Run loop, the purge loop goroutine, and per-chunk goroutines.
	mu       sync.Mutex
	inFlight map[string]struct{}

	delayed   *DelayedUpdates
	purgeFIFO *PurgeFIFO

	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// New builds a Scheduler around its store/compute/purge collaborators.
func New(store workStore, deps chunkproc.Deps, pool *raster.Pool, cdn purger, cfg Config) *Scheduler {
	return &Scheduler{
		store:     store,
		deps:      deps,
		pool:      pool,
		purger:    cdn,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.PipelineLimit)),
		inFlight:  make(map[string]struct{}),
		delayed:   NewDelayedUpdates(),
		purgeFIFO: NewPurgeFIFO(),
		shutdown:  make(chan struct{}),
	}
}

// Shutdown flips the shutdown flag; Run exits its work-accepting phase
// after its current blocking pop, then drains in-flight work, the purge
// FIFO, and the delayed-update table before returning.
func (s *Scheduler) Shutdown() { s.once.Do(func() { close(s.shutdown) }) }

// Run is the scheduler's main loop. It blocks until Shutdown is called
// (or ctx is canceled) and the drain sequence completes.
func (s *Scheduler) Run(ctx context.Context) {
	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		s.purgeLoop(ctx)
	}()

	for {
		select {
		case <-s.shutdown:
			s.drain(ctx)
			<-purgeDone
			return
		case <-ctx.Done():
			s.drain(ctx)
			<-purgeDone
			return
		default:
		}

		s.mu.Lock()
		s.delayed.Refresh(ctx, s.store)
		s.mu.Unlock()

		id, err := s.store.Pop(ctx)
		if err != nil {
			nlog.Errorf("scheduler: pop: %v", err)
			continue
		}
		if id == "" {
			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}

		s.mu.Lock()
		if _, busy := s.inFlight[id]; busy {
			s.mu.Unlock()
			s.sem.Release(1)
			if err := s.store.Push(ctx, id); err != nil {
				nlog.Errorf("scheduler: requeue %s: %v", id, err)
			}
			continue
		}
		s.inFlight[id] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.processChunk(ctx, id)
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	s.wg.Wait()
	for {
		s.mu.Lock()
		ids := s.purgeFIFO.DrainAll()
		s.mu.Unlock()
		if len(ids) == 0 {
			break
		}
		s.purger.PurgeCache(s.purgeURLs(ids))
	}
	s.mu.Lock()
	s.delayed.Purge(ctx, s.store)
	s.mu.Unlock()
}

func (s *Scheduler) purgeURLs(ids []string) []string {
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = s.cfg.CDNBaseURL + id
	}
	return urls
}

// processChunk runs one chunk's full prep/process/update cycle. A scope
// guard removes id from inFlight and releases the pipeline permit on
// every exit path, including early returns on error. Each phase logs its
// duration at Debug level under a logger carrying chunk_id/layer, and the
// whole cycle logs one Info summary line on completion or failure.
func (s *Scheduler) processChunk(ctx context.Context, id string) {
	start := time.Now()
	log := nlog.With("chunk_id", id)

	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
		s.sem.Release(1)
	}()

	childRaw, err := s.store.DrainNeedsUpdate(ctx, id)
	if err != nil {
		nlog.Errorf("scheduler: drain needs-update %s: %v", id, err)
		return
	}
	if len(childRaw) == 0 {
		return
	}

	parsedID, err := chunkid.Parse(id)
	if err != nil {
		nlog.Errorf("scheduler: parse id %s: %v", id, err)
		return
	}
	log = log.With("layer", strconv.Itoa(parsedID.Layer))

	childIDs, err := chunkproc.ParseChildIDs(childRaw)
	if err != nil {
		nlog.Errorf("scheduler: parse child ids for %s: %v", id, err)
		return
	}

	var flags map[uint64]workstore.Flags
	if chunkproc.Classify(parsedID) != chunkproc.VariantLOD {
		flagSets, err := s.store.DrainFlags(ctx, childRaw)
		if err != nil {
			nlog.Errorf("scheduler: drain flags for %s: %v", id, err)
			return
		}
		flags = make(map[uint64]workstore.Flags, len(childIDs))
		for i, cid := range childIDs {
			flags[cid] = workstore.ParseFlags(flagSets[i])
		}
	}

	proc := chunkproc.New(s.deps, parsedID, childIDs, flags)

	phaseStart := time.Now()
	if err := proc.Prep(ctx); err != nil {
		nlog.Errorf("scheduler: prep %s: %v", id, err)
		log.Infof("process_chunk failed phase=prep duration_ms=%d", time.Since(start).Milliseconds())
		return
	}
	log.Debugf("process_chunk phase=prep duration_ms=%d", time.Since(phaseStart).Milliseconds())

	phaseStart = time.Now()
	if err := proc.Process(ctx, s.pool); err != nil {
		nlog.Errorf("scheduler: process %s: %v", id, err)
		log.Infof("process_chunk failed phase=process duration_ms=%d", time.Since(start).Milliseconds())
		return
	}
	log.Debugf("process_chunk phase=process duration_ms=%d", time.Since(phaseStart).Milliseconds())

	phaseStart = time.Now()
	nextID, hasNext, err := proc.Update(ctx)
	if err != nil {
		nlog.Errorf("scheduler: update %s: %v", id, err)
		log.Infof("process_chunk failed phase=update duration_ms=%d", time.Since(start).Milliseconds())
		return
	}
	log.Debugf("process_chunk phase=update duration_ms=%d", time.Since(phaseStart).Milliseconds())

	if hasNext {
		delay := s.cfg.DelayL1Seconds
		if nextParsed, err := chunkid.Parse(nextID); err == nil && nextParsed.Layer == 0 {
			delay = s.cfg.DelayL0Seconds
		}
		// The parent's needs-update set holds child indices in decimal,
		// the form ParseChildIDs reads back when the parent is processed.
		childIdx := strconv.FormatUint(uint64(parsedID.Index), 10)
		s.mu.Lock()
		s.delayed.Track(nextID, childIdx, int64(delay))
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.purgeFIFO.Push(id)
	s.mu.Unlock()
	log.Infof("process_chunk done duration_ms=%d", time.Since(start).Milliseconds())
}

func (s *Scheduler) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PurgeDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.mu.Lock()
			ids := s.purgeFIFO.PopUpTo(s.cfg.PurgeURLsLimit)
			s.mu.Unlock()
			if len(ids) == 0 {
				continue
			}
			s.purger.PurgeCache(s.purgeURLs(ids))
		}
	}
}
