// Package projection flattens a work-item forest into the visible row
// list the board renders, applying filter, search, expand and pin state.
package projection

import (
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// FilterUnassigned is the assignee filter value that matches items with
// no assignee.
const FilterUnassigned = "Unassigned"

// Options is the state the projector evaluates against each node.
// Empty strings mean "no filter"/"no search". ExpandedIDs and PinnedIDs
// are identifier sets so they survive tree rebuilds.
type Options struct {
	FilterState    string
	FilterAssignee string
	SearchQuery    string
	ExpandedIDs    map[int]struct{}
	PinnedIDs      map[int]struct{}
	ForceCollapsed bool
}

func (o Options) filterActive() bool {
	return o.SearchQuery != "" || o.FilterState != "" || o.FilterAssignee != ""
}

// Project computes the flattened, render-ready row sequence for the
// forest. Pinned roots are emitted first (with their subtrees, in
// forest order), then the remaining roots in forest order. It is a pure
// function of its inputs; the caller owns cursor clamping.
func Project(forest []*model.WorkItem, opts Options) []model.VisibleWorkItem {
	var rows []model.VisibleWorkItem

	for _, root := range forest {
		if _, pinned := opts.PinnedIDs[root.ID]; pinned {
			flatten([]*model.WorkItem{root}, &rows, 0, opts)
		}
	}
	for _, root := range forest {
		if _, pinned := opts.PinnedIDs[root.ID]; !pinned {
			flatten([]*model.WorkItem{root}, &rows, 0, opts)
		}
	}

	return rows
}

// flatten emits rows for every item that passes the active filters, or
// that has a passing descendant while a filter is active. It returns
// whether anything in items' subtrees matched, which drives both
// ancestor retention and filter-driven auto-expansion.
func flatten(items []*model.WorkItem, rows *[]model.VisibleWorkItem, depth int, opts Options) bool {
	hasMatch := false

	for _, item := range items {
		stateMatch := opts.FilterState == "" ||
			strings.EqualFold(item.Fields.State, opts.FilterState)
		assigneeMatch := matchAssignee(item, opts.FilterAssignee)

		hasChildren := len(item.Children) > 0
		_, isExpanded := opts.ExpandedIDs[item.ID]
		_, pinned := opts.PinnedIDs[item.ID]
		isPinned := depth == 0 && pinned

		// Speculative descent: with an active filter we must know
		// whether any descendant passes, without emitting rows.
		childMatches := false
		if hasChildren && opts.filterActive() {
			var discard []model.VisibleWorkItem
			childMatches = flatten(item.Children, &discard, depth+1, opts)
		}

		passesFilter := stateMatch && assigneeMatch
		passesSearch := matchSearch(item, opts.SearchQuery)

		if (passesFilter && passesSearch) || childMatches {
			hasMatch = true
			showExpanded := isExpanded ||
				(opts.filterActive() && childMatches && !opts.ForceCollapsed)
			*rows = append(*rows, model.VisibleWorkItem{
				Item:        item.Clone(),
				Depth:       depth,
				HasChildren: hasChildren,
				IsExpanded:  showExpanded,
				IsPinned:    isPinned,
			})
			if showExpanded && hasChildren {
				flatten(item.Children, rows, depth+1, opts)
			}
		}
	}

	return hasMatch
}

func matchAssignee(item *model.WorkItem, filter string) bool {
	if filter == "" {
		return true
	}
	if filter == FilterUnassigned {
		return item.Fields.AssignedTo == nil
	}
	if item.Fields.AssignedTo == nil {
		return false
	}
	return strings.EqualFold(item.Fields.AssignedTo.DisplayName, filter)
}

func matchSearch(item *model.WorkItem, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strconv.Itoa(item.ID), query) {
		return true
	}
	return fuzzyMatch(item.Fields.Title, query) ||
		fuzzyMatch(item.Fields.WorkItemType, query)
}

func fuzzyMatch(s, query string) bool {
	return len(fuzzy.Find(query, []string{s})) > 0
}

// ClampSelection maps a previous cursor index onto a freshly projected
// row list: in-bounds indices are kept, out-of-bounds indices snap to
// the first row, and an empty list yields -1 (no selection).
func ClampSelection(selected, rowCount int) int {
	if rowCount == 0 {
		return -1
	}
	if selected < 0 || selected >= rowCount {
		return 0
	}
	return selected
}

// IndexOf returns the row index of the given work-item id, or -1.
func IndexOf(rows []model.VisibleWorkItem, id int) int {
	for i, row := range rows {
		if row.Item.ID == id {
			return i
		}
	}
	return -1
}
