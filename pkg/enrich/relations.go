// Package enrich runs the background loaders that fill in relation and
// title data the primary work-item query does not include. Loaders own
// their goroutine and channel; the UI polls them non-blockingly once
// per tick and never shares state with them.
package enrich

import (
	"context"
	"time"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// DefaultFetchDelay is the courtesy pause between sequential relation
// fetches so the az backend is not hammered.
const DefaultFetchDelay = 100 * time.Millisecond

// resultBuffer sizes the loader channels; the UI drains every tick so
// producers rarely block.
const resultBuffer = 100

// RelationResult is one completed relation fetch. OK distinguishes a
// successful fetch (possibly with no relations) from a failure; only
// successful ids may be marked loaded by the caller.
type RelationResult struct {
	ID        int
	Relations []model.Relation
	OK        bool
}

// FetchRelationsFunc fetches the relation list for one work item.
type FetchRelationsFunc func(ctx context.Context, id int) ([]model.Relation, error)

// RelationLoader fetches relations for a queue of work-item ids,
// sequentially and rate-limited. A loader run is cancellable only by
// Stop (or by the producer draining); individual fetch failures are
// swallowed and left for the next run to retry.
type RelationLoader struct {
	fetch FetchRelationsFunc
	delay time.Duration

	active  bool
	results chan RelationResult
	stop    chan struct{}
}

// NewRelationLoader creates a loader using the given fetch function.
// A delay of 0 means DefaultFetchDelay.
func NewRelationLoader(fetch FetchRelationsFunc, delay time.Duration) *RelationLoader {
	if delay == 0 {
		delay = DefaultFetchDelay
	}
	return &RelationLoader{fetch: fetch, delay: delay}
}

// Active reports whether a loader run is in flight.
func (l *RelationLoader) Active() bool { return l.active }

// Start begins fetching relations for ids in order. It is a no-op if a
// run is already active or ids is empty, and reports whether a run was
// started. Fetch order equals the order of ids (the caller enumerates
// the tree depth-first).
func (l *RelationLoader) Start(ctx context.Context, ids []int) bool {
	if l.active || len(ids) == 0 {
		return false
	}

	l.active = true
	l.results = make(chan RelationResult, resultBuffer)
	l.stop = make(chan struct{})

	results, stop := l.results, l.stop
	queue := make([]int, len(ids))
	copy(queue, ids)

	go func() {
		defer close(results)
		for _, id := range queue {
			rels, err := l.fetch(ctx, id)
			res := RelationResult{ID: id, Relations: rels, OK: err == nil}
			select {
			case results <- res:
			case <-stop:
				return
			}
			select {
			case <-time.After(l.delay):
			case <-stop:
				return
			}
		}
	}()

	return true
}

// Poll drains any completed results without blocking. When the
// producer has finished and the channel is drained, the loader flips
// back to inactive so a later Start can re-queue failed ids.
func (l *RelationLoader) Poll() []RelationResult {
	if l.results == nil {
		return nil
	}
	var out []RelationResult
	for {
		select {
		case res, ok := <-l.results:
			if !ok {
				l.active = false
				l.results = nil
				return out
			}
			out = append(out, res)
		default:
			return out
		}
	}
}

// Stop aborts the remaining queue. Results already produced can still
// be drained with Poll.
func (l *RelationLoader) Stop() {
	if !l.active {
		return
	}
	close(l.stop)
	l.active = false
	l.results = nil
	l.stop = nil
}
