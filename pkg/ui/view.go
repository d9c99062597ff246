package ui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/GappelSolutions/lazyops/pkg/azure"
	"github.com/GappelSolutions/lazyops/pkg/model"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}

	header := m.renderSprintBar()
	status := m.renderStatusBar()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(status)
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	listWidth := m.width / 2
	previewWidth := m.width - listWidth

	list := m.renderList(listWidth, bodyHeight)
	preview := m.renderPreview(previewWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, preview)

	view := lipgloss.JoinVertical(lipgloss.Left, header, body, status)

	switch m.mode {
	case modeHelp:
		return m.renderHelp()
	case modeFilterState:
		return m.overlayDropdown(view, "Filter by state", m.filteredStates())
	case modeFilterAssignee:
		return m.overlayDropdown(view, "Filter by assignee", m.filteredAssignees())
	case modeEditState:
		return m.overlayDropdown(view, "Set state", m.filteredEditStates())
	case modeEditAssignee:
		users := m.filteredEditAssignees()
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = u.DisplayName
		}
		return m.overlayDropdown(view, "Assign to", names)
	case modeSprintSelect:
		names := make([]string, len(m.sprints))
		for i, s := range m.sprints {
			names[i] = s.Name
		}
		return m.overlayDropdown(view, "Select sprint", names)
	case modeProjectSelect:
		names := make([]string, len(m.cfg.Projects))
		for i, p := range m.cfg.Projects {
			names[i] = p.Name
		}
		return m.overlayDropdown(view, "Select project", names)
	}
	return view
}

func (m *Model) renderSprintBar() string {
	var parts []string
	if p := m.currentProject(); p != nil {
		parts = append(parts, m.styles.Title.Render(p.Name))
	}
	if s := m.selectedSprint(); s != nil {
		label := s.Name
		if s.IsCurrent() {
			label += " (current)"
		}
		parts = append(parts, m.styles.Text.Render(label))
	}
	if m.cacheAge >= 0 {
		parts = append(parts, m.styles.Muted.Render(formatAge(m.cacheAge)))
	}
	if m.filterState != "" {
		parts = append(parts, m.styles.Highlight.Render("state:"+m.filterState))
	}
	if m.filterAssignee != "" {
		parts = append(parts, m.styles.Highlight.Render("assignee:"+m.filterAssignee))
	}
	if m.searchQuery != "" || m.mode == modeSearch {
		parts = append(parts, m.styles.Highlight.Render("/"+m.searchQuery))
	}
	if m.updateTag != "" {
		parts = append(parts, m.styles.Pin.Render("update "+m.updateTag+" available"))
	}
	bar := strings.Join(parts, m.styles.Muted.Render(" │ "))
	return lipgloss.NewStyle().Padding(0, 1).Width(m.width).Render(bar)
}

func formatAge(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds old", seconds)
	}
	return fmt.Sprintf("%dm old", seconds/60)
}

func (m *Model) renderStatusBar() string {
	left := ""
	switch {
	case m.loading:
		left = m.spin.View() + " " + m.loadingMsg
	case m.status != "":
		if m.statusIsError {
			left = m.styles.StatusError.Render(m.status)
		} else {
			left = m.styles.StatusBar.Render(m.status)
		}
	}
	if m.mode == modeSearch {
		left = "/" + m.searchInput.View()
	}
	right := m.styles.Help.Render("?:help  f:search  s:state  a:assignee  p:pin  r:refresh  q:quit")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderList(width, height int) string {
	style := m.styles.Panel
	if m.focus == focusList {
		style = m.styles.FocusedPanel
	}
	innerWidth := width - 2
	innerHeight := height - 2
	if innerHeight < 1 {
		innerHeight = 1
	}

	if len(m.visible) == 0 {
		empty := m.styles.Muted.Render("No work items")
		return style.Width(innerWidth).Height(innerHeight).Render(empty)
	}

	// Keep the selected row in the window.
	top := 0
	if m.selected >= innerHeight {
		top = m.selected - innerHeight + 1
	}

	var rows []string
	for i := top; i < len(m.visible) && i-top < innerHeight; i++ {
		rows = append(rows, m.renderRow(m.visible[i], i == m.selected, innerWidth))
	}
	return style.Width(innerWidth).Height(innerHeight).
		Render(strings.Join(rows, "\n"))
}

func (m *Model) renderRow(row model.VisibleWorkItem, selected bool, width int) string {
	indent := strings.Repeat("  ", row.Depth)

	marker := "  "
	if row.HasChildren {
		if row.IsExpanded {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
	}
	pin := ""
	if row.IsPinned {
		pin = m.styles.Pin.Render("● ")
	}

	icon := TypeStyle(row.Item.Fields.WorkItemType).Render(typeIcon(row.Item.Fields.WorkItemType))
	state := StateStyle(row.Item.Fields.State).Render(row.Item.Fields.State)
	id := m.styles.Muted.Render(fmt.Sprintf("#%d", row.Item.ID))

	assignee := ""
	if name := row.Item.Assignee(); name != "" {
		assignee = m.styles.Muted.Render(" @" + shortName(name))
	}

	line := fmt.Sprintf("%s%s%s%s %s %s %s%s",
		indent, pin, marker, icon, id, row.Item.Fields.Title, state, assignee)
	line = runewidth.Truncate(line, width, "…")

	if selected {
		return m.styles.Selected.Width(width).Render(line)
	}
	return line
}

// shortName compresses "First Last" to "First L."
func shortName(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	last := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(last[0]) + "."
}

func (m *Model) renderPreview(width, height int) string {
	style := m.styles.Panel
	if m.focus == focusPreview {
		style = m.styles.FocusedPanel
	}
	innerWidth := width - 2
	innerHeight := height - 2
	if innerHeight < 1 {
		innerHeight = 1
	}

	row := m.selectedRow()
	if row == nil {
		return style.Width(innerWidth).Height(innerHeight).
			Render(m.styles.Muted.Render("Nothing selected"))
	}

	tabs := m.renderTabs()
	var content string
	if m.tab == tabReferences {
		content = m.renderReferences(innerWidth, innerHeight-2)
	} else {
		content = m.renderDetails(&row.Item, innerWidth, innerHeight-2)
	}
	return style.Width(innerWidth).Height(innerHeight).
		Render(tabs + "\n" + content)
}

func (m *Model) renderTabs() string {
	details := "Details"
	refs := "References"
	if m.tab == tabDetails {
		details = m.styles.Title.Render(details)
		refs = m.styles.Muted.Render(refs)
	} else {
		details = m.styles.Muted.Render(details)
		refs = m.styles.Title.Render(refs)
	}
	return details + "  " + refs
}

func (m *Model) renderDetails(item *model.WorkItem, width, height int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# #%d %s\n\n", item.ID, item.Fields.Title)
	fmt.Fprintf(&b, "**Type:** %s  \n", item.Fields.WorkItemType)
	fmt.Fprintf(&b, "**State:** %s  \n", item.Fields.State)
	if name := item.Assignee(); name != "" {
		fmt.Fprintf(&b, "**Assignee:** %s  \n", name)
	}
	if item.Fields.IterationPath != "" {
		fmt.Fprintf(&b, "**Iteration:** %s  \n", item.Fields.IterationPath)
	}
	if item.Fields.Tags != "" {
		fmt.Fprintf(&b, "**Tags:** %s  \n", item.Fields.Tags)
	}
	if item.Fields.RemainingWork != nil {
		fmt.Fprintf(&b, "**Remaining:** %.1fh  \n", *item.Fields.RemainingWork)
	}
	if item.Fields.Description != "" {
		b.WriteString("\n---\n\n")
		b.WriteString(stripHTML(item.Fields.Description))
	}

	rendered, err := glamour.Render(b.String(), "dark")
	if err != nil {
		rendered = b.String()
	}
	return scrollWindow(rendered, m.previewScroll, height, width)
}

func (m *Model) renderReferences(width, height int) string {
	refs := m.selectedRelations()
	if len(refs) == 0 {
		return m.styles.Muted.Render("No references loaded")
	}
	var lines []string
	for i, rel := range refs {
		label := m.relationLabel(rel)
		label = runewidth.Truncate(label, width, "…")
		if i == m.relationIdx && m.focus == focusPreview {
			label = m.styles.Selected.Render(label)
		}
		lines = append(lines, label)
	}
	return scrollWindow(strings.Join(lines, "\n"), 0, height, width)
}

// relationLabel renders one reference row, substituting the enriched
// title when the loader has fetched it.
func (m *Model) relationLabel(rel model.Relation) string {
	name := rel.Attributes.Name
	switch {
	case rel.Rel == model.RelHierarchyForward:
		name = "Child"
	case rel.Rel == model.RelAttachedFile:
		name = "Attachment"
	case name == "":
		name = "Link"
	}
	if key := azure.TitleKey(rel); key != "" {
		if title, ok := m.relationTitles[key]; ok {
			return fmt.Sprintf("[%s] %s", name, title)
		}
	}
	return fmt.Sprintf("[%s] %s", name, rel.URL)
}

// selectedRelations returns the selected item's references, parent
// links removed, sorted children first, then attachments, pull
// requests, commits, branches, and the rest.
func (m *Model) selectedRelations() []model.Relation {
	row := m.selectedRow()
	if row == nil {
		return nil
	}
	var refs []model.Relation
	for _, rel := range row.Item.Relations {
		if rel.Rel == model.RelHierarchyReverse {
			continue
		}
		refs = append(refs, rel)
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return relationRank(refs[i]) < relationRank(refs[j])
	})
	return refs
}

func relationRank(rel model.Relation) int {
	if rel.Rel == model.RelHierarchyForward {
		return 0
	}
	if rel.Rel == model.RelAttachedFile {
		return 1
	}
	switch rel.Attributes.Name {
	case "Child":
		return 0
	case model.RelNamePullRequest:
		return 2
	case model.RelNameFixedInCommit:
		return 3
	case model.RelNameBranch:
		return 4
	default:
		return 5
	}
}

func (m *Model) overlayDropdown(base, title string, options []string) string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(m.filterInput.View())
	b.WriteString("\n\n")
	for i, opt := range options {
		if i == m.dropdownIdx {
			b.WriteString(m.styles.Selected.Render("> " + opt))
		} else {
			b.WriteString("  " + opt)
		}
		b.WriteString("\n")
	}
	box := m.styles.FocusedPanel.Padding(0, 1).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderHelp() string {
	rows := []struct{ key, desc string }{
		{"j/k", "move selection"},
		{"g/G", "top / bottom"},
		{"ctrl+d/u", "jump"},
		{"enter", "expand / collapse"},
		{"t", "expand / collapse all"},
		{"h/l", "focus list / preview"},
		{"tab", "details / references"},
		{"f", "search"},
		{"s / a", "filter state / assignee"},
		{"c", "clear filters"},
		{"S / A", "edit state / assignee"},
		{"p", "pin subtree"},
		{"y / Y", "copy id / ticket"},
		{"I / P", "switch sprint / project"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Keybindings"))
	b.WriteString("\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %s\n",
			m.styles.Highlight.Render(runewidth.FillRight(r.key, 10)),
			m.styles.Text.Render(r.desc))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("press any key to close"))
	box := m.styles.FocusedPanel.Padding(1, 2).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// scrollWindow cuts a vertical window out of rendered content.
func scrollWindow(content string, offset, height, width int) string {
	lines := strings.Split(content, "\n")
	if offset > len(lines)-1 {
		offset = len(lines) - 1
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	out := lines[offset:end]
	for i, line := range out {
		out[i] = runewidth.Truncate(line, width, "")
	}
	return strings.Join(out, "\n")
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	htmlBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	htmlEntities = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'",
	)
)

// stripHTML flattens the HTML azure stores in description fields into
// plain text suitable for markdown rendering.
func stripHTML(s string) string {
	s = htmlBreakRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = htmlEntities.Replace(s)
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
