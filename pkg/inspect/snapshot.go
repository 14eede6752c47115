package inspect

import (
	"context"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/reconcile"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// Row is one visible line of the tree view.
type Row struct {
	ID          tree.NodeID
	Depth       int
	Label       string
	Name        string
	ControlType string
	Expanded    bool
	Selected    bool
	State       tree.ChildState
	// Expandable is false only for nodes known to have no children.
	Expandable bool
	LoadErr    string
}

// SyncReport summarizes the last reconciliation triggered by a report.
type SyncReport struct {
	Source        string
	Target        string
	Selected      string
	Matched       int
	PathLen       int
	ForcedReloads int
	Truncated     bool
	Cycle         bool
	Err           string
}

// Stats are running counters for the session.
type Stats struct {
	Reports       int
	Syncs         int
	NotFound      int
	ForcedReloads int
}

// Snapshot is an immutable copy of the tree state, safe to hand to other
// goroutines.
type Snapshot struct {
	Version      uint64
	Rows         []Row
	SelectedID   tree.NodeID
	SelectedPath string
	// XPath of the selected element, set only while XPath display is on.
	XPath        string
	Details      []automation.DetailGroup
	Tracking     map[string]bool
	LastSync     *SyncReport
	Stats        Stats
	Nodes        int
}

// SelectedRow returns the row of the selected node when it is visible.
func (s Snapshot) SelectedRow() (Row, bool) {
	for _, r := range s.Rows {
		if r.ID == s.SelectedID && r.Selected {
			return r, true
		}
	}
	return Row{}, false
}

func newRow(ctx context.Context, n *tree.Node) Row {
	info := n.Info(ctx)
	row := Row{
		ID:          n.ID(),
		Depth:       n.Depth(),
		Label:       n.Label(ctx),
		Name:        info.Name,
		ControlType: info.ControlType,
		Expanded:    n.IsExpanded(),
		Selected:    n.IsSelected(),
		State:       n.ChildState(),
		Expandable:  n.ChildState() == tree.NotLoaded || len(n.Children()) > 0,
	}
	if err := n.LoadErr(); err != nil {
		row.LoadErr = err.Error()
	}
	return row
}

func newSyncReport(ctx context.Context, source string, res reconcile.Result, facade automation.Facade) *SyncReport {
	report := &SyncReport{
		Source:        source,
		Matched:       res.Matched,
		PathLen:       res.PathLen,
		ForcedReloads: len(res.ForcedReloads),
		Truncated:     res.Path.Truncated,
		Cycle:         res.Path.Cycle,
	}
	if res.Path.Target != nil {
		if info, err := facade.Describe(ctx, res.Path.Target); err == nil {
			report.Target = info.Name
		} else {
			report.Target = res.Path.Target.RuntimeID()
		}
	}
	if res.Selected != nil {
		report.Selected = res.Selected.NamePath(ctx)
	}
	if res.Err != nil {
		report.Err = res.Err.Error()
	}
	return report
}
