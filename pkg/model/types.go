package model

// WorkItem represents one row of work as returned by the az CLI.
// Children and Depth are populated by hierarchy.Build and are never
// serialized; the parent link in Fields is what survives a cache
// round-trip.
type WorkItem struct {
	ID        int         `json:"id"`
	Rev       int         `json:"rev"`
	Fields    Fields      `json:"fields"`
	Relations []Relation  `json:"relations,omitempty"`
	Children  []*WorkItem `json:"-"`
	Depth     int         `json:"-"`
}

// Fields holds the az field reference names we query via WIQL.
type Fields struct {
	Title            string      `json:"System.Title"`
	State            string      `json:"System.State"`
	WorkItemType     string      `json:"System.WorkItemType"`
	AssignedTo       *AssignedTo `json:"System.AssignedTo,omitempty"`
	IterationPath    string      `json:"System.IterationPath,omitempty"`
	Description      string      `json:"System.Description,omitempty"`
	ParentID         *int        `json:"System.Parent,omitempty"`
	Tags             string      `json:"System.Tags,omitempty"`
	RemainingWork    *float64    `json:"Microsoft.VSTS.Scheduling.RemainingWork,omitempty"`
	OriginalEstimate *float64    `json:"Microsoft.VSTS.Scheduling.OriginalEstimate,omitempty"`
	CompletedWork    *float64    `json:"Microsoft.VSTS.Scheduling.CompletedWork,omitempty"`
}

// AssignedTo identifies the person a work item is assigned to.
type AssignedTo struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// Relation is a typed edge from a work item to an external artifact
// (pull request, commit, attachment, branch) or a structural link.
// The relation list is a snapshot as of the last fetch; enrichment
// replaces it wholesale.
type Relation struct {
	Rel        string             `json:"rel"`
	URL        string             `json:"url"`
	Attributes RelationAttributes `json:"attributes"`
}

// RelationAttributes carries the optional display name of a relation.
type RelationAttributes struct {
	Name string `json:"name,omitempty"`
}

// Structural relation kinds used by Azure DevOps.
const (
	RelHierarchyForward = "System.LinkTypes.Hierarchy-Forward"
	RelHierarchyReverse = "System.LinkTypes.Hierarchy-Reverse"
	RelAttachedFile     = "AttachedFile"
)

// Relation display names that carry artifact locators.
const (
	RelNamePullRequest   = "Pull Request"
	RelNameFixedInCommit = "Fixed in Commit"
	RelNameBranch        = "Branch"
)

// Sprint is a team iteration. Path doubles as the cache key for the
// selected sprint.
type Sprint struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Path       string           `json:"path"`
	Attributes SprintAttributes `json:"attributes"`
}

// SprintAttributes holds the iteration time frame metadata.
type SprintAttributes struct {
	StartDate  string `json:"startDate,omitempty"`
	FinishDate string `json:"finishDate,omitempty"`
	TimeFrame  string `json:"timeFrame,omitempty"`
}

// TimeFrameCurrent marks the iteration the team is currently in.
const TimeFrameCurrent = "current"

// IsCurrent reports whether this sprint is the team's current iteration.
func (s Sprint) IsCurrent() bool {
	return s.Attributes.TimeFrame == TimeFrameCurrent
}

// User is a unique assignee extracted from work items.
type User struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// VisibleWorkItem is one flattened, render-ready row produced by the
// projector. It holds a cloned snapshot, not a pointer into the tree.
type VisibleWorkItem struct {
	Item        WorkItem
	Depth       int
	HasChildren bool
	IsExpanded  bool
	IsPinned    bool
}

// Clone creates a deep copy of the work item, including its subtree.
func (w WorkItem) Clone() WorkItem {
	clone := w.CloneShallow()

	if w.Children != nil {
		clone.Children = make([]*WorkItem, len(w.Children))
		for i, child := range w.Children {
			if child != nil {
				c := child.Clone()
				clone.Children[i] = &c
			}
		}
	}

	return clone
}

// CloneShallow copies the item's own fields and relations but not its
// children. Used when flattening the tree back to a parent-linked list.
func (w WorkItem) CloneShallow() WorkItem {
	clone := w
	clone.Children = nil

	if w.Fields.AssignedTo != nil {
		v := *w.Fields.AssignedTo
		clone.Fields.AssignedTo = &v
	}
	if w.Fields.ParentID != nil {
		v := *w.Fields.ParentID
		clone.Fields.ParentID = &v
	}
	if w.Fields.RemainingWork != nil {
		v := *w.Fields.RemainingWork
		clone.Fields.RemainingWork = &v
	}
	if w.Fields.OriginalEstimate != nil {
		v := *w.Fields.OriginalEstimate
		clone.Fields.OriginalEstimate = &v
	}
	if w.Fields.CompletedWork != nil {
		v := *w.Fields.CompletedWork
		clone.Fields.CompletedWork = &v
	}

	if w.Relations != nil {
		clone.Relations = make([]Relation, len(w.Relations))
		copy(clone.Relations, w.Relations)
	}

	return clone
}

// AvailableStates returns the board states an item of this type can be
// moved to. Tasks use the simplified Task workflow; story-like types
// carry the full delivery pipeline.
func (w WorkItem) AvailableStates() []string {
	switch w.Fields.WorkItemType {
	case "Task":
		return []string{"To Do", "In Progress", "Done", "Removed"}
	case "Bug", "Product Backlog Item", "User Story":
		return []string{
			"New", "In Progress", "Done In Stage",
			"Done Not Released", "Done", "Tested w/Bugs",
		}
	default:
		return []string{
			"New", "In Progress", "Done In Stage",
			"Done Not Released", "Done",
		}
	}
}

// Assignee returns the display name of the assignee, or "" if the item
// is unassigned.
func (w WorkItem) Assignee() string {
	if w.Fields.AssignedTo == nil {
		return ""
	}
	return w.Fields.AssignedTo.DisplayName
}
