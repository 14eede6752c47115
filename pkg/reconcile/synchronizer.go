// Package reconcile makes a reported automation element the selected,
// visible node of a tree.Model.
//
// Matching first compares against children that are already loaded and only
// reloads the current node's children on a miss, one level per attempt. A
// deeply stale subtree may therefore need several reports to heal; the whole
// desktop is never rescanned for a single report.
package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// Synchronizer reconciles reported elements against a tree model.
type Synchronizer struct {
	facade automation.Facade
	logger *logrus.Entry
}

// New creates a synchronizer for the given backend.
func New(facade automation.Facade, logger *logrus.Entry) *Synchronizer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Synchronizer{
		facade: facade,
		logger: logger.WithField("component", "reconcile"),
	}
}

// Result describes one reconciliation.
type Result struct {
	// Selected is the deepest node reached; it is the model's selection.
	Selected *tree.Node
	// Matched counts path elements found in the model.
	Matched int
	// PathLen is the length of the reconciled path.
	PathLen int
	// ForcedReloads lists the nodes whose children were reloaded on a miss.
	ForcedReloads []tree.NodeID
	// Path is the path that was reconciled.
	Path Path
	// Err is ErrTargetNotFound when the descent stopped early.
	Err error
}

// Complete reports whether the full path was matched.
func (r Result) Complete() bool {
	return r.Err == nil && r.Matched == r.PathLen
}

// Sync resolves the path of target and reconciles it in one call. It must
// run on the goroutine owning model.
func (s *Synchronizer) Sync(ctx context.Context, model *tree.Model, target automation.Element) Result {
	return s.Reconcile(ctx, model, s.ResolvePath(ctx, target))
}

// Reconcile walks path down the model, expanding every matched node, and
// selects the deepest node reached. It must run on the goroutine owning
// model.
func (s *Synchronizer) Reconcile(ctx context.Context, model *tree.Model, path Path) Result {
	res := Result{Path: path, PathLen: path.Len()}

	root := model.Root()
	if !root.IsExpanded() {
		// The root's children must be loaded before matching starts.
		root.Expand(ctx)
	}

	cur := root
	remaining := path.Elements
	if path.Truncated || path.Cycle {
		cur, remaining = s.anchor(model, path)
		res.Matched = path.Len() - len(remaining)
		for _, a := range cur.Ancestors() {
			a.Expand(ctx)
		}
	}

	for _, el := range remaining {
		next := cur.FindChild(el)
		if next == nil {
			// The live tree may have changed since cur was loaded.
			cur.LoadChildren(ctx, true)
			res.ForcedReloads = append(res.ForcedReloads, cur.ID())
			next = cur.FindChild(el)
			if next == nil {
				res.Err = fmt.Errorf("%w: %s under %s", ErrTargetNotFound, el.RuntimeID(), cur.Element().RuntimeID())
				s.logger.WithFields(logrus.Fields{
					"element": el.RuntimeID(),
					"parent":  cur.Element().RuntimeID(),
					"matched": res.Matched,
					"path":    path.Len(),
				}).Warn("Could not find the next element")
				break
			}
		}
		cur = next
		res.Matched++
		if !cur.IsExpanded() {
			cur.Expand(ctx)
		}
	}

	cur.Select()
	res.Selected = cur
	return res
}

// anchor finds where a truncated or cyclic path meets the loaded model: the
// deepest path element that already has a node. Without a match the descent
// starts at the root with the whole path.
func (s *Synchronizer) anchor(model *tree.Model, path Path) (*tree.Node, []automation.Element) {
	for i := len(path.Elements) - 1; i >= 0; i-- {
		if n := model.Find(path.Elements[i]); n != nil {
			return n, path.Elements[i+1:]
		}
	}
	return model.Root(), path.Elements
}
