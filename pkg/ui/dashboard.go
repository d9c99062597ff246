// Package ui is the interactive sprint dashboard. The model owns all
// session state: the work item tree, the visible projection, the
// background loaders, and the input modes layered on top of them.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/GappelSolutions/lazyops/pkg/azure"
	"github.com/GappelSolutions/lazyops/pkg/cache"
	"github.com/GappelSolutions/lazyops/pkg/config"
	"github.com/GappelSolutions/lazyops/pkg/enrich"
	"github.com/GappelSolutions/lazyops/pkg/hierarchy"
	"github.com/GappelSolutions/lazyops/pkg/model"
	"github.com/GappelSolutions/lazyops/pkg/projection"
	"github.com/GappelSolutions/lazyops/pkg/updater"
)

// inputMode is the active key handling layer.
type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeFilterState
	modeFilterAssignee
	modeEditState
	modeEditAssignee
	modeSprintSelect
	modeProjectSelect
	modeHelp
)

// focusPane selects which pane receives navigation keys.
type focusPane int

const (
	focusList focusPane = iota
	focusPreview
)

// previewTab selects the right-pane content.
type previewTab int

const (
	tabDetails previewTab = iota
	tabReferences
)

const (
	tickInterval   = 50 * time.Millisecond
	statusLifetime = 5 * time.Second
	previewJump    = 10
)

// Model is the dashboard session. It implements tea.Model.
type Model struct {
	cfg        *config.Config
	projectIdx int
	client     *azure.Client

	sprints     []model.Sprint
	sprintIdx   int
	forest      []*model.WorkItem
	users       []model.User
	currentUser string

	visible  []model.VisibleWorkItem
	selected int

	expanded       map[int]struct{}
	pinned         map[int]struct{}
	forceCollapsed bool
	filterState    string
	filterAssignee string
	searchQuery    string

	relLoader       *enrich.RelationLoader
	titleLoader     *enrich.TitleLoader
	relationsLoaded map[int]struct{}
	relationTitles  map[string]string

	mode        inputMode
	searchInput textinput.Model
	filterInput textinput.Model
	dropdownIdx int

	focus         focusPane
	tab           previewTab
	previewScroll int
	relationIdx   int

	spin       spinner.Model
	loading    bool
	loadingMsg string

	status        string
	statusIsError bool
	statusSetAt   time.Time

	cacheAge    int64
	lastRefresh time.Time
	updateTag   string
	updateURL   string

	width  int
	height int
	styles Styles

	cfgWatcher *config.Watcher
}

// New builds the dashboard for one configured project. If a cache
// snapshot exists it is loaded immediately so the first frame already
// shows data.
func New(cfg *config.Config, projectIdx int) *Model {
	si := textinput.New()
	si.Placeholder = "Search..."
	si.CharLimit = 64
	si.Width = 40

	fi := textinput.New()
	fi.CharLimit = 64
	fi.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		cfg:             cfg,
		projectIdx:      projectIdx,
		expanded:        map[int]struct{}{},
		pinned:          map[int]struct{}{},
		relationsLoaded: map[int]struct{}{},
		relationTitles:  map[string]string{},
		searchInput:     si,
		filterInput:     fi,
		spin:            sp,
		selected:        -1,
		cacheAge:        -1,
		lastRefresh:     time.Now(),
		styles:          NewStyles(cfg.Theme),
	}
	m.rebuildClient()

	delay := time.Duration(cfg.Settings.APIDelayMS) * time.Millisecond
	m.relLoader = enrich.NewRelationLoader(m.fetchRelations, delay)
	m.titleLoader = enrich.NewTitleLoader(m.client)

	if m.loadFromCache() {
		mins := m.cacheAge / 60
		if mins > 0 {
			m.setStatus(fmt.Sprintf("Cached (%dm ago) - press r to refresh", mins))
		} else {
			m.setStatus(fmt.Sprintf("Cached (%ds ago) - press r to refresh", m.cacheAge))
		}
	}
	return m
}

// SetConfigWatcher attaches a hot-reload watcher whose changes are
// polled from the tick loop.
func (m *Model) SetConfigWatcher(w *config.Watcher) {
	m.cfgWatcher = w
}

func (m *Model) rebuildClient() {
	p := m.currentProject()
	if p == nil {
		m.client = nil
		return
	}
	m.client = azure.NewClient(p.Organization, p.Project, p.Team)
	if m.cfg.Settings.APITimeout > 0 {
		m.client.Timeout = time.Duration(m.cfg.Settings.APITimeout) * time.Second
	}
}

func (m *Model) currentProject() *config.ProjectConfig {
	if m.projectIdx < 0 || m.projectIdx >= len(m.cfg.Projects) {
		return nil
	}
	return &m.cfg.Projects[m.projectIdx]
}

func (m *Model) fetchRelations(ctx context.Context, id int) ([]model.Relation, error) {
	client := m.client
	if client == nil {
		return nil, errors.New("no project configured")
	}
	item, err := client.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return item.Relations, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, tick(), checkUpdate()}
	if len(m.forest) == 0 && m.client != nil {
		m.setLoading(true, "Loading sprints...")
		cmds = append(cmds, m.loadBoard())
	} else {
		m.startRelationsLoader()
	}
	if m.cfgWatcher != nil {
		cmds = append(cmds, waitConfig(m.cfgWatcher))
	}
	return tea.Batch(cmds...)
}

// ─── Commands ───

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func checkUpdate() tea.Cmd {
	return func() tea.Msg {
		tag, url, err := updater.Check(context.Background())
		if err != nil || tag == "" {
			return nil
		}
		return updateAvailableMsg{tag: tag, url: url}
	}
}

func waitConfig(w *config.Watcher) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-w.Changes()
		if !ok {
			return nil
		}
		return configReloadedMsg{cfg: cfg}
	}
}

// loadBoard fetches sprints, the current sprint's items, and the
// signed-in user in one shot.
func (m *Model) loadBoard() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx := context.Background()
		sprints, err := client.GetSprints(ctx)
		if err != nil {
			return boardLoadedMsg{err: err}
		}
		idx := 0
		for i, s := range sprints {
			if s.IsCurrent() {
				idx = i
				break
			}
		}
		var items []model.WorkItem
		if len(sprints) > 0 {
			items, err = client.GetSprintWorkItems(ctx, sprints[idx].Path)
			if err != nil {
				return boardLoadedMsg{sprints: sprints, sprintIdx: idx, err: err}
			}
		}
		user, _ := client.GetCurrentUser(ctx)
		return boardLoadedMsg{sprints: sprints, sprintIdx: idx, items: items, currentUser: user}
	}
}

func (m *Model) loadSprint(idx int) tea.Cmd {
	client := m.client
	path := m.sprints[idx].Path
	return func() tea.Msg {
		items, err := client.GetSprintWorkItems(context.Background(), path)
		return sprintItemsMsg{sprintIdx: idx, items: items, err: err}
	}
}

func (m *Model) refreshBoard() tea.Cmd {
	client := m.client
	sprint := m.selectedSprint()
	if client == nil || sprint == nil {
		return nil
	}
	path := sprint.Path
	return func() tea.Msg {
		items, err := client.GetSprintWorkItems(context.Background(), path)
		return refreshDoneMsg{sprintPath: path, items: items, err: err}
	}
}

func (m *Model) updateItem(id int, field, value string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		_, err := client.UpdateWorkItem(context.Background(), id, field, value)
		return itemUpdatedMsg{id: id, field: field, value: value, err: err}
	}
}

// ─── Update ───

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(append(m.onTick(), tick())...)

	case boardLoadedMsg:
		return m.onBoardLoaded(msg)

	case sprintItemsMsg:
		m.setLoading(false, "")
		if msg.err != nil {
			m.setError(fmt.Sprintf("Failed to load sprint: %v", msg.err))
			return m, nil
		}
		m.sprintIdx = msg.sprintIdx
		m.installItems(msg.items)
		m.saveToCache()
		m.restartRelationsLoader()
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			return m, nil
		}
		if sprint := m.selectedSprint(); sprint == nil || sprint.Path != msg.sprintPath {
			return m, nil
		}
		m.applyRefresh(msg.items)
		return m, nil

	case itemUpdatedMsg:
		m.setLoading(false, "")
		if msg.err != nil {
			m.setError(fmt.Sprintf("Update failed: %v", msg.err))
			return m, nil
		}
		m.applyLocalEdit(msg.id, msg.field, msg.value)
		m.setStatus(fmt.Sprintf("Updated #%d", msg.id))
		return m, nil

	case updateAvailableMsg:
		m.updateTag = msg.tag
		m.updateURL = msg.url
		return m, nil

	case configReloadedMsg:
		m.cfg = msg.cfg
		m.styles = NewStyles(msg.cfg.Theme)
		m.rebuildClient()
		if !m.titleLoader.Active() {
			m.titleLoader = enrich.NewTitleLoader(m.client)
		}
		m.setStatus("Config reloaded")
		return m, waitConfig(m.cfgWatcher)

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m *Model) onTick() []tea.Cmd {
	m.pollLoaders()
	m.clearExpiredStatus()

	var cmds []tea.Cmd
	if !m.titleLoader.Active() && len(m.relationsLoaded) > 0 {
		m.startTitlesLoader()
	}

	interval := time.Duration(m.cfg.Settings.RefreshInterval) * time.Second
	if interval > 0 && !m.loading && m.mode == modeNormal && time.Since(m.lastRefresh) >= interval {
		m.lastRefresh = time.Now()
		if cmd := m.refreshBoard(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (m *Model) onBoardLoaded(msg boardLoadedMsg) (tea.Model, tea.Cmd) {
	m.setLoading(false, "")
	if msg.err != nil {
		m.setError(fmt.Sprintf("Failed to load: %v", msg.err))
		m.sprints = msg.sprints
		m.sprintIdx = msg.sprintIdx
		return m, nil
	}
	m.sprints = msg.sprints
	m.sprintIdx = msg.sprintIdx
	m.currentUser = msg.currentUser
	m.installItems(msg.items)
	m.cacheAge = 0
	m.saveToCache()
	m.restartRelationsLoader()
	return m, nil
}

// installItems replaces the tree with freshly fetched items and resets
// the projection. Relations already loaded for surviving items carry
// over.
func (m *Model) installItems(items []model.WorkItem) {
	snap := hierarchy.SnapshotRelations(m.forest)
	m.forest = hierarchy.Build(items)
	hierarchy.RestoreRelations(m.forest, snap)
	m.users = hierarchy.ExtractUsers(m.forest)
	m.rebuildRows()
	if len(m.visible) > 0 {
		m.selected = 0
	}
}

// applyRefresh swaps in refreshed items while keeping loaded relations
// and the selected row.
func (m *Model) applyRefresh(items []model.WorkItem) {
	snap := hierarchy.SnapshotRelations(m.forest)
	selectedID := m.selectedID()

	m.forest = hierarchy.Build(items)
	m.users = hierarchy.ExtractUsers(m.forest)
	hierarchy.RestoreRelations(m.forest, snap)
	m.rebuildRows()
	m.reselect(selectedID)
	m.cacheAge = 0
	m.restartRelationsLoader()
}

func (m *Model) pollLoaders() {
	for _, res := range m.relLoader.Poll() {
		if !res.OK {
			continue
		}
		if item := hierarchy.FindByID(m.forest, res.ID); item != nil {
			item.Relations = res.Relations
		}
		for i := range m.visible {
			if m.visible[i].Item.ID == res.ID {
				m.visible[i].Item.Relations = res.Relations
				break
			}
		}
		m.relationsLoaded[res.ID] = struct{}{}
	}
	for _, res := range m.titleLoader.Poll() {
		m.relationTitles[res.Key] = res.Title
	}
}

func (m *Model) startRelationsLoader() {
	ids := m.idsNeedingRelations()
	m.relLoader.Start(context.Background(), ids)
}

// restartRelationsLoader aborts the in-flight run and queues whatever
// the new tree is missing.
func (m *Model) restartRelationsLoader() {
	m.relLoader.Stop()
	m.startRelationsLoader()
}

func (m *Model) idsNeedingRelations() []int {
	var ids []int
	for _, id := range hierarchy.CollectIDs(m.forest) {
		if _, ok := m.relationsLoaded[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// startTitlesLoader queues artifact titles for every relation that does
// not have one yet.
func (m *Model) startTitlesLoader() {
	var reqs []enrich.TitleRequest
	for _, item := range hierarchy.Flatten(m.forest) {
		for _, rel := range item.Relations {
			key := azure.TitleKey(rel)
			if key == "" {
				continue
			}
			if _, ok := m.relationTitles[key]; ok {
				continue
			}
			switch rel.Attributes.Name {
			case model.RelNamePullRequest:
				if ref, ok := azure.ParsePullRequestLocator(rel.URL); ok {
					reqs = append(reqs, enrich.TitleRequest{Key: key, PullRequestID: ref.ID})
				}
			case model.RelNameFixedInCommit:
				if ref, ok := azure.ParseCommitLocator(rel.URL); ok {
					reqs = append(reqs, enrich.TitleRequest{Key: key, Repository: ref.Repository, Hash: ref.Hash})
				}
			}
		}
	}
	m.titleLoader.Start(context.Background(), reqs)
}

// ─── Projection and selection ───

func (m *Model) rebuildRows() {
	m.visible = projection.Project(m.forest, projection.Options{
		FilterState:    m.filterState,
		FilterAssignee: m.filterAssignee,
		SearchQuery:    m.searchQuery,
		ExpandedIDs:    m.expanded,
		PinnedIDs:      m.pinned,
		ForceCollapsed: m.forceCollapsed,
	})
	m.selected = projection.ClampSelection(m.selected, len(m.visible))
}

func (m *Model) selectedRow() *model.VisibleWorkItem {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return nil
	}
	return &m.visible[m.selected]
}

func (m *Model) selectedID() int {
	if row := m.selectedRow(); row != nil {
		return row.Item.ID
	}
	return 0
}

func (m *Model) reselect(id int) {
	if id == 0 {
		return
	}
	if idx := projection.IndexOf(m.visible, id); idx >= 0 {
		m.selected = idx
	}
}

func (m *Model) selectedSprint() *model.Sprint {
	if m.sprintIdx < 0 || m.sprintIdx >= len(m.sprints) {
		return nil
	}
	return &m.sprints[m.sprintIdx]
}

// ─── Cache ───

func (m *Model) loadFromCache() bool {
	p := m.currentProject()
	if p == nil {
		return false
	}
	entry := cache.Load(p.Name)
	if entry == nil {
		return false
	}

	m.sprints = entry.Sprints
	m.forest = hierarchy.Build(entry.WorkItems)
	m.users = hierarchy.ExtractUsers(m.forest)
	m.cacheAge = int64(entry.AgeSeconds())
	m.filterState = entry.FilterState
	m.filterAssignee = entry.FilterAssignee
	m.pinned = map[int]struct{}{}
	for _, id := range entry.PinnedItems {
		m.pinned[id] = struct{}{}
	}

	m.sprintIdx = resolveSprintIndex(m.sprints, entry.SprintPath)

	m.rebuildRows()
	if len(m.visible) > 0 {
		m.selected = 0
	}
	return true
}

// resolveSprintIndex maps a remembered sprint path back onto the sprint
// list. A path that no longer resolves (renamed or retired sprint) falls
// back to the current iteration, then to the first sprint.
func resolveSprintIndex(sprints []model.Sprint, path string) int {
	for i, s := range sprints {
		if path != "" && s.Path == path {
			return i
		}
	}
	for i, s := range sprints {
		if s.IsCurrent() {
			return i
		}
	}
	return 0
}

func (m *Model) saveToCache() {
	p := m.currentProject()
	if p == nil {
		return
	}
	sprintPath := ""
	if s := m.selectedSprint(); s != nil {
		sprintPath = s.Path
	}
	entry := cache.NewEntry(m.sprints, hierarchy.Flatten(m.forest), m.users, sprintPath)
	entry.FilterState = m.filterState
	entry.FilterAssignee = m.filterAssignee
	entry.PinnedItems = sortedIDs(m.pinned)
	_ = cache.Save(p.Name, entry)
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ─── Status bar ───

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusIsError = false
	m.statusSetAt = time.Now()
}

func (m *Model) setError(msg string) {
	m.status = msg
	m.statusIsError = true
	m.statusSetAt = time.Now()
}

func (m *Model) clearExpiredStatus() {
	if m.status != "" && time.Since(m.statusSetAt) > statusLifetime {
		m.status = ""
		m.statusIsError = false
	}
}

func (m *Model) setLoading(loading bool, msg string) {
	m.loading = loading
	m.loadingMsg = msg
}

// ─── Tree actions ───

func (m *Model) toggleExpand() {
	row := m.selectedRow()
	if row == nil || !row.HasChildren {
		return
	}
	id := row.Item.ID
	if _, ok := m.expanded[id]; ok {
		delete(m.expanded, id)
	} else {
		m.expanded[id] = struct{}{}
	}
	m.rebuildRows()
}

func (m *Model) expandAll() {
	id := m.selectedID()
	hierarchy.CollectExpandable(m.forest, m.expanded)
	m.rebuildRows()
	m.reselect(id)
}

func (m *Model) collapseAll() {
	id := m.selectedID()
	m.expanded = map[int]struct{}{}
	m.rebuildRows()
	m.reselect(id)
}

func (m *Model) toggleExpandAll() {
	if m.forceCollapsed || len(m.expanded) == 0 {
		m.forceCollapsed = false
		m.expandAll()
	} else {
		m.forceCollapsed = true
		m.collapseAll()
	}
}

// togglePin pins the selected root, or the selected item's parent when
// a child row is selected. Pinned subtrees float to the top.
func (m *Model) togglePin() {
	row := m.selectedRow()
	if row == nil {
		return
	}
	id := row.Item.ID
	if row.Depth > 0 && row.Item.Fields.ParentID != nil {
		id = *row.Item.Fields.ParentID
	}
	if _, ok := m.pinned[id]; ok {
		delete(m.pinned, id)
	} else {
		m.pinned[id] = struct{}{}
	}
	m.rebuildRows()
	m.saveToCache()
}

func (m *Model) clearFilters() {
	m.filterState = ""
	m.filterAssignee = ""
	m.forceCollapsed = false
	m.rebuildRows()
}

func (m *Model) hasActiveFilters() bool {
	return m.filterState != "" || m.filterAssignee != ""
}

// applyLocalEdit mirrors a confirmed backend edit into the tree so the
// UI does not wait for the next refresh.
func (m *Model) applyLocalEdit(id int, field, value string) {
	item := hierarchy.FindByID(m.forest, id)
	if item == nil {
		return
	}
	switch field {
	case "state":
		item.Fields.State = value
	case "title":
		item.Fields.Title = value
	case "assigned-to":
		display := value
		for _, u := range m.users {
			if u.UniqueName == value {
				display = u.DisplayName
				break
			}
		}
		item.Fields.AssignedTo = &model.AssignedTo{DisplayName: display, UniqueName: value}
	}
	selectedID := m.selectedID()
	m.rebuildRows()
	m.reselect(selectedID)
	m.saveToCache()
}

// ─── Navigation ───

func (m *Model) listNext() { m.moveSelection(1) }
func (m *Model) listPrev() { m.moveSelection(-1) }

func (m *Model) moveSelection(delta int) {
	if len(m.visible) == 0 {
		return
	}
	i := m.selected + delta
	if i < 0 {
		i = 0
	}
	if i > len(m.visible)-1 {
		i = len(m.visible) - 1
	}
	m.selected = i
	m.previewScroll = 0
	m.relationIdx = 0
}

func (m *Model) listTop() {
	if len(m.visible) > 0 {
		m.selected = 0
		m.previewScroll = 0
	}
}

func (m *Model) listBottom() {
	if len(m.visible) > 0 {
		m.selected = len(m.visible) - 1
		m.previewScroll = 0
	}
}

func (m *Model) pageJump() int {
	if m.cfg.Settings.PageJump > 0 {
		return m.cfg.Settings.PageJump
	}
	return 10
}

// ─── Dropdown helpers ───

func fuzzyFilter(input string, options []string) []string {
	if input == "" {
		return options
	}
	matches := fuzzy.Find(input, options)
	out := make([]string, len(matches))
	for i, match := range matches {
		out[i] = match.Str
	}
	return out
}

func (m *Model) availableFilterStates() []string {
	return m.cfg.Settings.StateList()
}

func (m *Model) filteredStates() []string {
	return fuzzyFilter(m.filterInput.Value(), m.availableFilterStates())
}

func (m *Model) availableFilterAssignees() []string {
	assignees := []string{"All", projection.FilterUnassigned}
	for _, u := range m.users {
		assignees = append(assignees, u.DisplayName)
	}
	return assignees
}

func (m *Model) filteredAssignees() []string {
	return fuzzyFilter(m.filterInput.Value(), m.availableFilterAssignees())
}

func (m *Model) filteredEditStates() []string {
	row := m.selectedRow()
	if row == nil {
		return nil
	}
	return fuzzyFilter(m.filterInput.Value(), row.Item.AvailableStates())
}

func (m *Model) filteredEditAssignees() []model.User {
	input := m.filterInput.Value()
	if input == "" {
		return m.users
	}
	names := make([]string, len(m.users))
	for i, u := range m.users {
		names[i] = u.DisplayName
	}
	var out []model.User
	for _, match := range fuzzy.Find(input, names) {
		out = append(out, m.users[match.Index])
	}
	return out
}

func (m *Model) dropdownNext(max int) {
	if max == 0 {
		return
	}
	m.dropdownIdx = (m.dropdownIdx + 1) % max
}

func (m *Model) dropdownPrev(max int) {
	if max == 0 {
		return
	}
	if m.dropdownIdx == 0 {
		m.dropdownIdx = max - 1
	} else {
		m.dropdownIdx--
	}
}

// ─── Clipboard ───

func (m *Model) yankID() {
	row := m.selectedRow()
	if row == nil {
		return
	}
	id := fmt.Sprintf("%d", row.Item.ID)
	if err := clipboard.WriteAll(id); err == nil {
		m.setStatus(fmt.Sprintf("Copied #%s to clipboard", id))
	}
}

func (m *Model) yankContent() {
	row := m.selectedRow()
	if row == nil {
		return
	}
	if err := clipboard.WriteAll(ticketContent(&row.Item)); err == nil {
		m.setStatus("Copied ticket content to clipboard")
	}
}
