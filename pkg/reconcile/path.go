package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

var (
	// ErrTargetNotFound is reported when a path element is missing from its
	// parent even after a forced reload.
	ErrTargetNotFound = errors.New("target not found")
	// ErrCycleDetected is recorded when the parent walk revisits an element.
	ErrCycleDetected = errors.New("cycle detected in parent walk")
)

// Path is the chain of elements between the desktop root and a target,
// root-most first. The root itself is never part of a path.
type Path struct {
	Target   automation.Element
	Elements []automation.Element
	// Truncated is set when a parent lookup failed, so the first element
	// is not necessarily a child of the root.
	Truncated bool
	// Cycle is set when the walk stopped on a repeated element.
	Cycle bool
	// Err holds the walk failure, if any.
	Err error
}

// Len is the number of elements on the path.
func (p Path) Len() int { return len(p.Elements) }

// ResolvePath walks parents from target up to the desktop root. It only
// talks to the facade, so it may run on any goroutine.
//
// The walk stops when the root is reached, when a parent is nil, when an
// element repeats, or when the facade fails. The last two are logged and
// leave a shorter path rather than an error.
func (s *Synchronizer) ResolvePath(ctx context.Context, target automation.Element) Path {
	root := s.facade.Root()
	path := Path{Target: target}

	var stack []automation.Element
	cur := target
	for cur != nil {
		if s.facade.Equal(cur, root) {
			break
		}
		if s.contains(stack, cur) {
			path.Cycle = true
			path.Err = fmt.Errorf("%w at %s", ErrCycleDetected, cur.RuntimeID())
			s.logger.WithField("element", cur.RuntimeID()).Warn("Parent walk revisited an element; stopping")
			break
		}
		stack = append(stack, cur)

		if err := ctx.Err(); err != nil {
			path.Truncated = true
			path.Err = err
			break
		}
		parent, err := s.facade.Parent(ctx, cur)
		if err != nil {
			path.Truncated = true
			path.Err = fmt.Errorf("parent of %s: %w", cur.RuntimeID(), err)
			s.logger.WithError(err).WithField("element", cur.RuntimeID()).Warn("Parent walk failed; using partial path")
			break
		}
		if parent == nil && !s.facade.Equal(cur, root) {
			// A parentless element that is not the root: the walk did not
			// end where the tree is anchored.
			path.Truncated = true
		}
		cur = parent
	}

	path.Elements = make([]automation.Element, len(stack))
	for i, el := range stack {
		path.Elements[len(stack)-1-i] = el
	}
	return path
}

func (s *Synchronizer) contains(stack []automation.Element, el automation.Element) bool {
	for _, seen := range stack {
		if s.facade.Equal(seen, el) {
			return true
		}
	}
	return false
}
