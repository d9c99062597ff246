package ui

import (
	"time"

	"github.com/GappelSolutions/lazyops/pkg/config"
	"github.com/GappelSolutions/lazyops/pkg/model"
)

// tickMsg drives the poll loop: loader draining, status expiry, and
// the periodic refresh check.
type tickMsg time.Time

// boardLoadedMsg carries a full board load: sprints, the chosen sprint,
// the sprint's work items, and the signed-in user.
type boardLoadedMsg struct {
	sprints     []model.Sprint
	sprintIdx   int
	items       []model.WorkItem
	currentUser string
	err         error
}

// sprintItemsMsg carries the work items of a newly selected sprint.
type sprintItemsMsg struct {
	sprintIdx int
	items     []model.WorkItem
	err       error
}

// refreshDoneMsg carries the periodic or manual background refresh.
type refreshDoneMsg struct {
	sprintPath string
	items      []model.WorkItem
	err        error
}

// itemUpdatedMsg reports the outcome of a field edit pushed to the
// backend.
type itemUpdatedMsg struct {
	id    int
	field string
	value string
	err   error
}

// updateAvailableMsg reports a newer release on GitHub.
type updateAvailableMsg struct {
	tag string
	url string
}

// configReloadedMsg carries a hot-reloaded configuration.
type configReloadedMsg struct {
	cfg *config.Config
}
