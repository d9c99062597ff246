// Package cache persists one board snapshot per project so the
// dashboard is interactive immediately on startup. A missing or corrupt
// cache is a miss, never an error.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// Entry is the persisted snapshot for one project. WorkItems is the
// flattened, parent-linked list; the tree is rebuilt on load.
type Entry struct {
	Timestamp      uint64           `json:"timestamp"`
	Sprints        []model.Sprint   `json:"sprints"`
	WorkItems      []model.WorkItem `json:"work_items"`
	Users          []model.User     `json:"users"`
	SprintPath     string           `json:"sprint_path"`
	FilterState    string           `json:"filter_state,omitempty"`
	FilterAssignee string           `json:"filter_assignee,omitempty"`
	PinnedItems    []int            `json:"pinned_items,omitempty"`
}

// NewEntry stamps a snapshot with the current wall clock.
func NewEntry(sprints []model.Sprint, workItems []model.WorkItem, users []model.User, sprintPath string) *Entry {
	return &Entry{
		Timestamp:  uint64(time.Now().Unix()),
		Sprints:    sprints,
		WorkItems:  workItems,
		Users:      users,
		SprintPath: sprintPath,
	}
}

// AgeSeconds returns wall-clock seconds since the entry was written,
// saturating at zero if the clock went backward.
func (e *Entry) AgeSeconds() uint64 {
	now := uint64(time.Now().Unix())
	if now < e.Timestamp {
		return 0
	}
	return now - e.Timestamp
}

// For testing: allow overriding the base cache directory.
var userCacheDir = os.UserCacheDir

// Dir returns the per-application cache directory.
func Dir() (string, error) {
	base, err := userCacheDir()
	if err != nil {
		return "", fmt.Errorf("no user cache directory: %w", err)
	}
	return filepath.Join(base, "lazyops"), nil
}

// SanitizeFilename maps a project display name to a filesystem-safe
// cache key: anything outside [A-Za-z0-9_-] becomes an underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func entryPath(project string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SanitizeFilename(project)+".json"), nil
}

// Load reads the cached snapshot for a project. Any I/O or decode
// failure is treated as a cache miss so startup is never blocked by a
// stale or corrupt file.
func Load(project string) *Entry {
	path, err := entryPath(project)
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	return &entry
}

// Save writes the snapshot atomically, creating the cache directory if
// absent. Single active session per project is assumed; there is no
// cross-process locking.
func Save(project string, entry *Entry) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path, err := entryPath(project)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// SaveLastProject remembers the project the user last had open.
func SaveLastProject(name string) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, "last_project.txt")
	return atomic.WriteFile(path, strings.NewReader(name))
}

// LoadLastProject returns the last open project name, or "".
func LoadLastProject() string {
	dir, err := Dir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dir, "last_project.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
