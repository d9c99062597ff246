package enrich

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeTitleFetcher struct {
	prTitles     map[string]string
	commitTitles map[string]string
}

func (f *fakeTitleFetcher) GetPullRequestTitle(ctx context.Context, prID string) (string, error) {
	title, ok := f.prTitles[prID]
	if !ok {
		return "", errors.New("pr not found")
	}
	return title, nil
}

func (f *fakeTitleFetcher) GetCommitTitle(ctx context.Context, repoID, hash string) (string, error) {
	title, ok := f.commitTitles[repoID+"/"+hash]
	if !ok {
		return "", errors.New("commit not found")
	}
	return title, nil
}

func drainTitles(t *testing.T, l *TitleLoader) map[string]string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	out := map[string]string{}
	for l.Active() {
		for _, res := range l.Poll() {
			out[res.Key] = res.Title
		}
		if time.Now().After(deadline) {
			t.Fatalf("title loader did not finish, got %d titles so far", len(out))
		}
		time.Sleep(time.Millisecond)
	}
	for _, res := range l.Poll() {
		out[res.Key] = res.Title
	}
	return out
}

func TestTitleLoader_FetchesAllKinds(t *testing.T) {
	fetcher := &fakeTitleFetcher{
		prTitles:     map[string]string{"4821": "Add retry logic"},
		commitTitles: map[string]string{"repo-guid/abc123": "Fix null deref"},
	}

	l := NewTitleLoader(fetcher)
	started := l.Start(context.Background(), []TitleRequest{
		{Key: "pr:4821", PullRequestID: "4821"},
		{Key: "commit:abc123", Repository: "repo-guid", Hash: "abc123"},
	})
	if !started {
		t.Fatal("Start returned false")
	}

	titles := drainTitles(t, l)
	if got := titles["pr:4821"]; got != "Add retry logic" {
		t.Errorf("pr title = %q, want %q", got, "Add retry logic")
	}
	if got := titles["commit:abc123"]; got != "Fix null deref" {
		t.Errorf("commit title = %q, want %q", got, "Fix null deref")
	}
}

func TestTitleLoader_FailuresAreSkipped(t *testing.T) {
	fetcher := &fakeTitleFetcher{
		prTitles: map[string]string{"1": "Known"},
	}

	l := NewTitleLoader(fetcher)
	l.Start(context.Background(), []TitleRequest{
		{Key: "pr:1", PullRequestID: "1"},
		{Key: "pr:2", PullRequestID: "2"},
		{Key: "commit:dead", Repository: "r", Hash: "dead"},
	})

	titles := drainTitles(t, l)
	if len(titles) != 1 {
		t.Fatalf("got %d titles, want 1: %v", len(titles), titles)
	}
	if titles["pr:1"] != "Known" {
		t.Errorf("pr:1 = %q, want %q", titles["pr:1"], "Known")
	}
}

func TestTitleLoader_StartWhileActiveIsNoop(t *testing.T) {
	fetcher := &fakeTitleFetcher{prTitles: map[string]string{"1": "x"}}
	l := NewTitleLoader(fetcher)
	if !l.Start(context.Background(), []TitleRequest{{Key: "pr:1", PullRequestID: "1"}}) {
		t.Fatal("first Start returned false")
	}
	// The second Start must refuse regardless of whether the first run
	// already finished draining into the buffered channel.
	if l.Active() && l.Start(context.Background(), []TitleRequest{{Key: "pr:1", PullRequestID: "1"}}) {
		t.Error("second Start returned true while active")
	}
	drainTitles(t, l)
}

func TestTitleLoader_EmptyQueueIsNoop(t *testing.T) {
	l := NewTitleLoader(&fakeTitleFetcher{})
	if l.Start(context.Background(), nil) {
		t.Error("Start returned true for empty queue")
	}
	if l.Active() {
		t.Error("loader active after empty Start")
	}
}
