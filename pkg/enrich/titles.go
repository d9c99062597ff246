package enrich

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TitleRequest asks for the title behind one relation artifact: either
// a pull request (PullRequestID set) or a commit (Hash set). Key is the
// title-cache key the result will be stored under.
type TitleRequest struct {
	Key           string
	PullRequestID string
	Repository    string
	Hash          string
}

// TitleResult is one fetched title, keyed for the relation title cache.
type TitleResult struct {
	Key   string
	Title string
}

// TitleFetcher resolves artifact titles. Both methods are read-only
// and safe for concurrent use.
type TitleFetcher interface {
	GetPullRequestTitle(ctx context.Context, prID string) (string, error)
	GetCommitTitle(ctx context.Context, repoID, hash string) (string, error)
}

// TitleLoader fetches artifact titles fan-out in parallel. Unlike the
// relation loader there is no ordering guarantee; every result is
// independently keyed. Failed fetches produce no result.
type TitleLoader struct {
	fetcher TitleFetcher

	active  bool
	results chan TitleResult
}

// NewTitleLoader creates a loader backed by the given fetcher.
func NewTitleLoader(fetcher TitleFetcher) *TitleLoader {
	return &TitleLoader{fetcher: fetcher}
}

// Active reports whether a loader run is in flight.
func (l *TitleLoader) Active() bool { return l.active }

// Start fetches every requested title in parallel. It is a no-op if a
// run is already active or there is nothing to fetch, and reports
// whether a run was started.
func (l *TitleLoader) Start(ctx context.Context, requests []TitleRequest) bool {
	if l.active || len(requests) == 0 {
		return false
	}

	l.active = true
	l.results = make(chan TitleResult, resultBuffer)

	results := l.results
	queue := make([]TitleRequest, len(requests))
	copy(queue, requests)

	go func() {
		defer close(results)
		g, gctx := errgroup.WithContext(ctx)
		for _, req := range queue {
			g.Go(func() error {
				var title string
				var err error
				if req.PullRequestID != "" {
					title, err = l.fetcher.GetPullRequestTitle(gctx, req.PullRequestID)
				} else {
					title, err = l.fetcher.GetCommitTitle(gctx, req.Repository, req.Hash)
				}
				if err != nil || title == "" {
					return nil
				}
				select {
				case results <- TitleResult{Key: req.Key, Title: title}:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return true
}

// Poll drains completed titles without blocking, flipping back to
// inactive once the run finishes.
func (l *TitleLoader) Poll() []TitleResult {
	if l.results == nil {
		return nil
	}
	var out []TitleResult
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
