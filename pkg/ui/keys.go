package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/GappelSolutions/lazyops/pkg/cache"
	"github.com/GappelSolutions/lazyops/pkg/model"
)

// onKey dispatches a key press to the active input mode.
func (m *Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeHelp:
		m.mode = modeNormal
		return m, nil
	case modeSearch:
		return m.onSearchKey(msg)
	case modeFilterState:
		return m.onDropdownKey(msg, m.filteredStates(), func(choice string) tea.Cmd {
			if choice == "All" {
				m.filterState = ""
			} else {
				m.filterState = choice
			}
			m.rebuildRows()
			m.saveToCache()
			return nil
		})
	case modeFilterAssignee:
		return m.onDropdownKey(msg, m.filteredAssignees(), func(choice string) tea.Cmd {
			if choice == "All" {
				m.filterAssignee = ""
			} else {
				m.filterAssignee = choice
			}
			m.rebuildRows()
			m.saveToCache()
			return nil
		})
	case modeEditState:
		return m.onDropdownKey(msg, m.filteredEditStates(), func(choice string) tea.Cmd {
			row := m.selectedRow()
			if row == nil {
				return nil
			}
			m.setLoading(true, "Updating state...")
			return m.updateItem(row.Item.ID, "state", choice)
		})
	case modeEditAssignee:
		users := m.filteredEditAssignees()
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = u.DisplayName
		}
		return m.onDropdownKey(msg, names, func(choice string) tea.Cmd {
			row := m.selectedRow()
			if row == nil {
				return nil
			}
			for _, u := range users {
				if u.DisplayName == choice {
					m.setLoading(true, "Updating assignee...")
					return m.updateItem(row.Item.ID, "assigned-to", u.UniqueName)
				}
			}
			return nil
		})
	case modeSprintSelect:
		names := make([]string, len(m.sprints))
		for i, s := range m.sprints {
			names[i] = s.Name
		}
		return m.onDropdownKey(msg, names, func(choice string) tea.Cmd {
			for i, s := range m.sprints {
				if s.Name == choice {
					m.setLoading(true, "Loading sprint...")
					return m.loadSprint(i)
				}
			}
			return nil
		})
	case modeProjectSelect:
		names := make([]string, len(m.cfg.Projects))
		for i, p := range m.cfg.Projects {
			names[i] = p.Name
		}
		return m.onDropdownKey(msg, names, func(choice string) tea.Cmd {
			for i, p := range m.cfg.Projects {
				if p.Name == choice {
					return m.switchProject(i)
				}
			}
			return nil
		})
	default:
		return m.onNormalKey(msg)
	}
}

func (m *Model) onSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchQuery = ""
		m.searchInput.SetValue("")
		m.mode = modeNormal
		m.rebuildRows()
		return m, nil
	case "enter":
		m.mode = modeNormal
		return m, nil
	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.searchQuery = m.searchInput.Value()
		m.rebuildRows()
		return m, cmd
	}
}

// onDropdownKey handles the shared dropdown interaction: type to
// filter, arrows to move, enter to commit.
func (m *Model) onDropdownKey(msg tea.KeyMsg, options []string, commit func(choice string) tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeDropdown()
		return m, nil
	case "down", "ctrl+n":
		m.dropdownNext(len(options))
		return m, nil
	case "up", "ctrl+p":
		m.dropdownPrev(len(options))
		return m, nil
	case "enter":
		var cmd tea.Cmd
		if m.dropdownIdx >= 0 && m.dropdownIdx < len(options) {
			cmd = commit(options[m.dropdownIdx])
		}
		m.closeDropdown()
		return m, cmd
	default:
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.dropdownIdx = 0
		return m, cmd
	}
}

func (m *Model) openDropdown(mode inputMode, startIdx int) {
	m.mode = mode
	m.dropdownIdx = startIdx
	m.filterInput.SetValue("")
	m.filterInput.Focus()
}

func (m *Model) closeDropdown() {
	m.mode = modeNormal
	m.filterInput.SetValue("")
	m.filterInput.Blur()
}

func (m *Model) switchProject(idx int) tea.Cmd {
	if idx == m.projectIdx {
		return nil
	}
	m.projectIdx = idx
	m.rebuildClient()
	m.relLoader.Stop()
	m.relationsLoaded = map[int]struct{}{}
	m.relationTitles = map[string]string{}
	m.forest = nil
	m.visible = nil
	m.selected = -1
	m.expanded = map[int]struct{}{}
	m.pinned = map[int]struct{}{}
	m.clearFilters()

	if p := m.currentProject(); p != nil {
		_ = cache.SaveLastProject(p.Name)
	}
	if m.loadFromCache() {
		m.startRelationsLoader()
		return nil
	}
	m.setLoading(true, "Loading project...")
	return m.loadBoard()
}

func (m *Model) onNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.cfgWatcher != nil {
			m.cfgWatcher.Close()
		}
		return m, tea.Quit

	case "?":
		m.mode = modeHelp

	case "j", "down":
		if m.focus == focusPreview {
			if m.tab == tabReferences {
				m.relationNext(1)
			} else {
				m.previewScroll++
			}
		} else {
			m.listNext()
		}
	case "k", "up":
		if m.focus == focusPreview {
			if m.tab == tabReferences {
				m.relationNext(-1)
			} else if m.previewScroll > 0 {
				m.previewScroll--
			}
		} else {
			m.listPrev()
		}
	case "ctrl+d":
		if m.focus == focusPreview {
			if m.tab == tabReferences {
				m.relationNext(previewJump)
			} else {
				m.previewScroll += previewJump
			}
		} else {
			m.moveSelection(m.pageJump())
		}
	case "ctrl+u":
		if m.focus == focusPreview {
			if m.tab == tabReferences {
				m.relationNext(-previewJump)
			} else {
				m.previewScroll -= previewJump
				if m.previewScroll < 0 {
					m.previewScroll = 0
				}
			}
		} else {
			m.moveSelection(-m.pageJump())
		}
	case "g":
		m.listTop()
	case "G":
		m.listBottom()

	case "h":
		m.focus = focusList
	case "l":
		m.focus = focusPreview
	case "tab":
		if m.tab == tabDetails {
			m.tab = tabReferences
		} else {
			m.tab = tabDetails
		}
		m.previewScroll = 0
		m.relationIdx = 0

	case "enter":
		if m.focus == focusList {
			m.toggleExpand()
		}
	case "t":
		m.toggleExpandAll()
	case "p":
		m.togglePin()

	case "f":
		m.searchInput.SetValue(m.searchQuery)
		m.searchInput.Focus()
		m.mode = modeSearch
	case "s":
		m.openDropdown(modeFilterState, 0)
	case "a":
		m.openDropdown(modeFilterAssignee, 0)
	case "c":
		if m.hasActiveFilters() {
			m.clearFilters()
			m.saveToCache()
			m.setStatus("Filters cleared")
		}
	case "S":
		if m.selectedRow() != nil {
			m.openDropdown(modeEditState, 0)
		}
	case "A":
		if m.selectedRow() != nil && len(m.users) > 0 {
			m.openDropdown(modeEditAssignee, 0)
		}
	case "I":
		m.openDropdown(modeSprintSelect, m.sprintIdx)
	case "P":
		m.openDropdown(modeProjectSelect, m.projectIdx)

	case "y":
		m.yankID()
	case "Y":
		m.yankContent()

	case "r":
		if !m.loading && m.client != nil {
			m.setLoading(true, "Refreshing...")
			m.lastRefresh = time.Now()
			return m, m.manualRefresh()
		}
	}
	return m, nil
}

func (m *Model) relationNext(delta int) {
	refs := m.selectedRelations()
	if len(refs) == 0 {
		return
	}
	i := m.relationIdx + delta
	if i < 0 {
		i = 0
	}
	if i > len(refs)-1 {
		i = len(refs) - 1
	}
	m.relationIdx = i
}

// manualRefresh reloads sprints and items, keeping loaded relations.
func (m *Model) manualRefresh() tea.Cmd {
	return m.loadBoard()
}

// ticketContent renders a work item as markdown for the clipboard.
func ticketContent(item *model.WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# #%d %s\n\n", item.ID, item.Fields.Title)
	if item.Fields.Description != "" {
		b.WriteString("## Description\n\n")
		b.WriteString(stripHTML(item.Fields.Description))
		b.WriteString("\n\n")
	}
	if item.Fields.Tags != "" {
		fmt.Fprintf(&b, "**Tags:** %s\n", item.Fields.Tags)
	}
	return b.String()
}
