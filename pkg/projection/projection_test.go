package projection

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GappelSolutions/lazyops/pkg/hierarchy"
	"github.com/GappelSolutions/lazyops/pkg/model"
)

func intPtr(v int) *int { return &v }

func workItem(id int, parent *int, title, state, itemType, assignee string) model.WorkItem {
	wi := model.WorkItem{
		ID: id,
		Fields: model.Fields{
			Title:        title,
			State:        state,
			WorkItemType: itemType,
			ParentID:     parent,
		},
	}
	if assignee != "" {
		wi.Fields.AssignedTo = &model.AssignedTo{
			DisplayName: assignee,
			UniqueName:  assignee + "@example.com",
		}
	}
	return wi
}

func ids(rows []model.VisibleWorkItem) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Item.ID
	}
	return out
}

func idSet(vals ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

func TestProject_NoFilters(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
	})

	rows := Project(forest, Options{})

	if diff := cmp.Diff([]int{10, 11}, ids(rows)); diff != "" {
		t.Errorf("visible ids (-want +got):\n%s", diff)
	}
}

func TestProject_StateFilter(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
	})

	rows := Project(forest, Options{FilterState: "New"})

	if diff := cmp.Diff([]int{10}, ids(rows)); diff != "" {
		t.Errorf("visible ids (-want +got):\n%s", diff)
	}
}

func TestProject_StateFilterCaseInsensitive(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
	})

	rows := Project(forest, Options{FilterState: "new"})
	if len(rows) != 1 {
		t.Errorf("case-insensitive state filter should match, got %d rows", len(rows))
	}
}

func TestProject_AssigneeFilter(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
		workItem(12, nil, "Write docs", "New", "Task", ""),
	})

	rows := Project(forest, Options{FilterAssignee: "alice"})
	if diff := cmp.Diff([]int{10}, ids(rows)); diff != "" {
		t.Errorf("assignee filter (-want +got):\n%s", diff)
	}

	rows = Project(forest, Options{FilterAssignee: FilterUnassigned})
	if diff := cmp.Diff([]int{12}, ids(rows)); diff != "" {
		t.Errorf("Unassigned filter (-want +got):\n%s", diff)
	}
}

func TestProject_SearchByIDSubstring(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
	})

	rows := Project(forest, Options{SearchQuery: "11"})

	if diff := cmp.Diff([]int{11}, ids(rows)); diff != "" {
		t.Errorf("id search (-want +got):\n%s", diff)
	}
}

func TestProject_SearchFuzzyTitle(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix login bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
	})

	rows := Project(forest, Options{SearchQuery: "login"})

	if diff := cmp.Diff([]int{10}, ids(rows)); diff != "" {
		t.Errorf("title search (-want +got):\n%s", diff)
	}
}

func TestProject_PinnedRootsFirst(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "Fix bug", "New", "Bug", "Alice"),
		workItem(11, nil, "Add feature", "Done", "Story", "Bob"),
	})

	rows := Project(forest, Options{PinnedIDs: idSet(11)})

	if diff := cmp.Diff([]int{11, 10}, ids(rows)); diff != "" {
		t.Errorf("pinned order (-want +got):\n%s", diff)
	}
	if !rows[0].IsPinned || rows[1].IsPinned {
		t.Errorf("pinned flags wrong: %v %v", rows[0].IsPinned, rows[1].IsPinned)
	}
}

func TestProject_PinnedKeepsSubtreeTogether(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "First epic", "New", "Epic", ""),
		workItem(2, intPtr(1), "First child", "New", "Task", ""),
		workItem(3, nil, "Second epic", "New", "Epic", ""),
		workItem(4, intPtr(3), "Second child", "New", "Task", ""),
	})

	rows := Project(forest, Options{
		PinnedIDs:   idSet(3),
		ExpandedIDs: idSet(1, 3),
	})

	if diff := cmp.Diff([]int{3, 4, 1, 2}, ids(rows)); diff != "" {
		t.Errorf("pinned subtree order (-want +got):\n%s", diff)
	}
	// Pinned flag is only meaningful at depth 0.
	for _, row := range rows {
		if row.Depth > 0 && row.IsPinned {
			t.Errorf("child %d marked pinned", row.Item.ID)
		}
	}
}

func TestProject_CollapsedByDefault(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "New", "Epic", ""),
		workItem(2, intPtr(1), "Task", "New", "Task", ""),
	})

	rows := Project(forest, Options{})

	if diff := cmp.Diff([]int{1}, ids(rows)); diff != "" {
		t.Errorf("collapsed root should hide children (-want +got):\n%s", diff)
	}
	if !rows[0].HasChildren || rows[0].IsExpanded {
		t.Errorf("root flags: hasChildren=%v expanded=%v", rows[0].HasChildren, rows[0].IsExpanded)
	}
}

func TestProject_ExpandedEmitsChildren(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "New", "Epic", ""),
		workItem(2, intPtr(1), "Task", "New", "Task", ""),
	})

	rows := Project(forest, Options{ExpandedIDs: idSet(1)})

	if diff := cmp.Diff([]int{1, 2}, ids(rows)); diff != "" {
		t.Errorf("expanded root (-want +got):\n%s", diff)
	}
	if rows[1].Depth != 1 {
		t.Errorf("child depth = %d, want 1", rows[1].Depth)
	}
}

func TestProject_FilterKeepsAncestorAndAutoExpands(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "Active", "Epic", ""),
		workItem(2, intPtr(1), "Task", "New", "Task", ""),
	})

	// The epic does not match but its child does: the epic stays
	// visible as context and auto-expands.
	rows := Project(forest, Options{FilterState: "New"})

	if diff := cmp.Diff([]int{1, 2}, ids(rows)); diff != "" {
		t.Errorf("ancestor retention (-want +got):\n%s", diff)
	}
	if !rows[0].IsExpanded {
		t.Errorf("matching descendant should auto-expand the ancestor")
	}
}

func TestProject_ForceCollapsedSuppressesAutoExpand(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "Active", "Epic", ""),
		workItem(2, intPtr(1), "Task", "New", "Task", ""),
	})

	rows := Project(forest, Options{FilterState: "New", ForceCollapsed: true})

	if diff := cmp.Diff([]int{1}, ids(rows)); diff != "" {
		t.Errorf("force-collapsed (-want +got):\n%s", diff)
	}
	if rows[0].IsExpanded {
		t.Errorf("force-collapsed row should not be expanded")
	}
}

func TestProject_Idempotent(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "New", "Epic", "Alice"),
		workItem(2, intPtr(1), "Task", "New", "Task", "Bob"),
		workItem(3, nil, "Bug", "Active", "Bug", ""),
	})
	opts := Options{
		FilterState: "New",
		ExpandedIDs: idSet(1),
		PinnedIDs:   idSet(3),
	}

	first := Project(forest, opts)
	second := Project(forest, opts)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("projection not idempotent (-first +second):\n%s", diff)
	}
}

func TestProject_FilterMonotonicity(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "New", "Epic", "Alice"),
		workItem(2, intPtr(1), "Task", "Done", "Task", "Bob"),
		workItem(3, nil, "Bug", "Active", "Bug", ""),
		workItem(4, nil, "Story", "New", "Story", "Alice"),
	})

	for _, expanded := range []map[int]struct{}{nil, idSet(1)} {
		unfiltered := Project(forest, Options{ExpandedIDs: expanded})
		for _, state := range []string{"New", "Active", "Done", "Nonexistent"} {
			filtered := Project(forest, Options{FilterState: state, ExpandedIDs: expanded})
			if len(filtered) > len(unfiltered) {
				t.Errorf("state filter %q grew row count: %d > %d",
					state, len(filtered), len(unfiltered))
			}
		}
	}
}

func TestProject_RowsAreSnapshots(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(1, nil, "Epic", "New", "Epic", ""),
	})

	rows := Project(forest, Options{})
	rows[0].Item.Fields.Title = "mutated"

	if forest[0].Fields.Title != "Epic" {
		t.Errorf("projection row mutation leaked into the tree")
	}
}

func TestClampSelection(t *testing.T) {
	cases := []struct {
		selected, count, want int
	}{
		{0, 3, 0},
		{2, 3, 2},
		{5, 3, 0},
		{-1, 3, 0},
		{0, 0, -1},
	}
	for _, tc := range cases {
		if got := ClampSelection(tc.selected, tc.count); got != tc.want {
			t.Errorf("ClampSelection(%d, %d) = %d, want %d",
				tc.selected, tc.count, got, tc.want)
		}
	}
}

func TestIndexOf(t *testing.T) {
	forest := hierarchy.Build([]model.WorkItem{
		workItem(10, nil, "A", "New", "Task", ""),
		workItem(11, nil, "B", "New", "Task", ""),
	})
	rows := Project(forest, Options{})

	if got := IndexOf(rows, 11); got != 1 {
		t.Errorf("IndexOf(11) = %d, want 1", got)
	}
	if got := IndexOf(rows, 99); got != -1 {
		t.Errorf("IndexOf(99) = %d, want -1", got)
	}
}
