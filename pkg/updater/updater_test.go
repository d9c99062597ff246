package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"0.1.0", "0.1.0", 0},
		{"v0.1.1", "0.1.0", 1},
		{"0.1.0", "0.1.1", -1},
		{"0.10.0", "0.2.0", 1},
		{"1.0", "1.0.0", 0},
		{"2.0.0", "1.9.9", 1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.v1, tt.v2); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.want)
		}
	}
}

func withReleaseServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	old := releaseURL
	releaseURL = srv.URL
	t.Cleanup(func() { releaseURL = old })
}

func TestCheck_NewerRelease(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name": "v9.9.9", "html_url": "https://example.com/rel"}`)
	})

	tag, url, err := Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if tag != "v9.9.9" || url != "https://example.com/rel" {
		t.Errorf("Check = (%q, %q)", tag, url)
	}
}

func TestCheck_UpToDate(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name": "v%s"}`, Version)
	})

	tag, _, err := Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if tag != "" {
		t.Errorf("tag = %q, want empty for current version", tag)
	}
}

func TestCheck_ServerError(t *testing.T) {
	withReleaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	})

	if _, _, err := Check(context.Background()); err == nil {
		t.Error("Check succeeded against failing server")
	}
}
