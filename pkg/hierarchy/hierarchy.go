// Package hierarchy builds a work-item forest from the flat, ordered
// list the az CLI returns, and flattens it back for cache persistence.
package hierarchy

import (
	"sort"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// Build converts a flat list of work items into a forest of trees.
//
// The input order is meaningful (the WIQL query already sorted it) and
// is preserved at every level: roots and each children list are ordered
// by original input position, never re-sorted by id or title. An item
// whose parent id does not resolve within the batch is promoted to a
// root rather than dropped.
//
// Items are consumed from an id-keyed pool as they are attached, so an
// item appears in the output at most once. A genuine parent cycle
// (which the upstream data model should make impossible) leaves one
// member of the cycle unreachable and therefore absent from the output.
func Build(items []model.WorkItem) []*model.WorkItem {
	if len(items) == 0 {
		return nil
	}

	// Rank preserves the arrival order from the query.
	rank := make(map[int]int, len(items))
	for i, item := range items {
		rank[item.ID] = i
	}

	pool := make(map[int]*model.WorkItem, len(items))
	for i := range items {
		item := items[i].Clone()
		item.Children = nil
		pool[item.ID] = &item
	}

	childIDs := make(map[int][]int)
	var rootIDs []int
	for _, item := range items {
		pid := item.Fields.ParentID
		if pid != nil {
			if _, ok := pool[*pid]; ok {
				childIDs[*pid] = append(childIDs[*pid], item.ID)
				continue
			}
		}
		rootIDs = append(rootIDs, item.ID)
	}

	byRank := func(ids []int) {
		sort.Slice(ids, func(i, j int) bool {
			return rank[ids[i]] < rank[ids[j]]
		})
	}
	byRank(rootIDs)
	for _, ids := range childIDs {
		byRank(ids)
	}

	var attach func(id, depth int) *model.WorkItem
	attach = func(id, depth int) *model.WorkItem {
		node, ok := pool[id]
		if !ok {
			return nil
		}
		delete(pool, id)
		node.Depth = depth
		for _, cid := range childIDs[id] {
			if child := attach(cid, depth+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node
	}

	forest := make([]*model.WorkItem, 0, len(rootIDs))
	for _, id := range rootIDs {
		if root := attach(id, 0); root != nil {
			forest = append(forest, root)
		}
	}
	return forest
}

// Flatten returns the forest as a depth-first flat list with children
// cleared. The parent id retained in each item's fields is enough for
// Build to reconstruct the same forest.
func Flatten(forest []*model.WorkItem) []model.WorkItem {
	var out []model.WorkItem
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			out = append(out, item.CloneShallow())
			walk(item.Children)
		}
	}
	walk(forest)
	return out
}

// CollectIDs returns every work-item id in the forest, depth-first.
// This ordering is also the fetch order of the relation loader.
func CollectIDs(forest []*model.WorkItem) []int {
	var ids []int
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			ids = append(ids, item.ID)
			walk(item.Children)
		}
	}
	walk(forest)
	return ids
}

// CollectExpandable adds the id of every node that has children to set.
func CollectExpandable(forest []*model.WorkItem, set map[int]struct{}) {
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			if len(item.Children) > 0 {
				set[item.ID] = struct{}{}
				walk(item.Children)
			}
		}
	}
	walk(forest)
}

// FindByID returns the node with the given id, or nil.
func FindByID(forest []*model.WorkItem, id int) *model.WorkItem {
	for _, item := range forest {
		if item.ID == id {
			return item
		}
		if found := FindByID(item.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// ExtractUsers collects the unique assignees across the forest, sorted
// by display name.
func ExtractUsers(forest []*model.WorkItem) []model.User {
	seen := make(map[string]struct{})
	var users []model.User
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			if at := item.Fields.AssignedTo; at != nil {
				if _, ok := seen[at.UniqueName]; !ok {
					seen[at.UniqueName] = struct{}{}
					users = append(users, model.User{
						DisplayName: at.DisplayName,
						UniqueName:  at.UniqueName,
					})
				}
			}
			walk(item.Children)
		}
	}
	walk(forest)
	sort.Slice(users, func(i, j int) bool {
		return users[i].DisplayName < users[j].DisplayName
	})
	return users
}

// SnapshotRelations captures every loaded relation list keyed by item
// id, so a full refresh can replay them onto the rebuilt forest.
func SnapshotRelations(forest []*model.WorkItem) map[int][]model.Relation {
	snap := make(map[int][]model.Relation)
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			if item.Relations != nil {
				rels := make([]model.Relation, len(item.Relations))
				copy(rels, item.Relations)
				snap[item.ID] = rels
			}
			walk(item.Children)
		}
	}
	walk(forest)
	return snap
}

// RestoreRelations replays a relation snapshot onto matching ids in the
// forest. Ids absent from the snapshot are left untouched.
func RestoreRelations(forest []*model.WorkItem, snap map[int][]model.Relation) {
	var walk func(items []*model.WorkItem)
	walk = func(items []*model.WorkItem) {
		for _, item := range items {
			if rels, ok := snap[item.ID]; ok {
				item.Relations = rels
			}
			walk(item.Children)
		}
	}
	walk(forest)
}
