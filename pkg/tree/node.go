package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

// ErrLoadFailed marks a node whose children could not be enumerated.
var ErrLoadFailed = errors.New("load children failed")

// NodeID identifies a node within one Model. IDs are never reused.
type NodeID uint64

// ChildState tells whether a node's children have been enumerated.
type ChildState int

const (
	// NotLoaded means the children were never requested.
	NotLoaded ChildState = iota
	// Loaded means Children is the snapshot taken at the last load.
	Loaded
	// LoadFailed means the last load failed; Children is empty.
	LoadFailed
)

func (s ChildState) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load-failed"
	default:
		return fmt.Sprintf("ChildState(%d)", int(s))
	}
}

// Node mirrors one automation element.
type Node struct {
	id      NodeID
	parent  NodeID // zero for the root; resolved through the model's node table
	depth   int
	model   *Model
	element automation.Element

	info    *automation.Info
	infoErr error

	state    ChildState
	children []*Node
	loadErr  error

	expanded bool
	selected bool
}

// ID returns the node's identifier within its model.
func (n *Node) ID() NodeID { return n.id }

// Element returns the automation element this node mirrors.
func (n *Node) Element() automation.Element { return n.element }

// Depth is zero for the root.
func (n *Node) Depth() int { return n.depth }

// Parent returns the parent node, or nil for the root or a detached node.
func (n *Node) Parent() *Node {
	if n.parent == 0 {
		return nil
	}
	return n.model.Lookup(n.parent)
}

// ChildState reports whether children have been loaded.
func (n *Node) ChildState() ChildState { return n.state }

// Children returns the loaded children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// LoadErr returns the error of the last failed load, wrapping ErrLoadFailed.
func (n *Node) LoadErr() error { return n.loadErr }

// IsExpanded reports the expansion flag.
func (n *Node) IsExpanded() bool { return n.expanded }

// IsSelected reports the selection flag.
func (n *Node) IsSelected() bool { return n.selected }

// Info returns the element's identifying properties. The first successful
// lookup is cached; a vanished element yields an Info carrying only the
// runtime id.
func (n *Node) Info(ctx context.Context) automation.Info {
	if n.info != nil {
		return *n.info
	}
	info, err := n.model.facade.Describe(ctx, n.element)
	if err != nil {
		if n.infoErr == nil {
			n.model.logger.WithError(err).WithField("node", n.id).Debug("Could not describe element")
		}
		n.infoErr = err
		return automation.Info{RuntimeID: n.element.RuntimeID()}
	}
	n.info = &info
	n.infoErr = nil
	return info
}

// Label is the display text of the node: "ControlType \"Name\"".
func (n *Node) Label(ctx context.Context) string {
	info := n.Info(ctx)
	if info.ControlType == "" {
		return fmt.Sprintf("<unavailable %s>", info.RuntimeID)
	}
	if info.Name == "" {
		return info.ControlType
	}
	return fmt.Sprintf("%s %q", info.ControlType, info.Name)
}

// Ancestors returns the chain from the root down to n, n included.
func (n *Node) Ancestors() []*Node {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// NamePath renders the ancestor chain as "Desktop/Window/Button".
func (n *Node) NamePath(ctx context.Context) string {
	chain := n.Ancestors()
	names := make([]string, len(chain))
	for i, a := range chain {
		names[i] = a.Info(ctx).Name
	}
	return strings.Join(names, "/")
}

// XPath renders the chain below the root as a control type path such as
// /Window[@Name='Calculator']/Group[1]/Button[2]. Top-level windows are
// matched by name; deeper steps by their 1-based position among the loaded
// siblings with the same control type.
func (n *Node) XPath(ctx context.Context) string {
	chain := n.Ancestors()[1:]
	if len(chain) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, a := range chain {
		info := a.Info(ctx)
		b.WriteString("/")
		b.WriteString(info.ControlType)
		if a.Parent() == n.model.root && info.Name != "" {
			quote := "'"
			if strings.Contains(info.Name, quote) {
				quote = `"`
			}
			fmt.Fprintf(&b, "[@Name=%s%s%s]", quote, info.Name, quote)
			continue
		}
		pos := 1
		for _, sib := range a.Parent().Children() {
			if sib == a {
				break
			}
			if sib.Info(ctx).ControlType == info.ControlType {
				pos++
			}
		}
		fmt.Fprintf(&b, "[%d]", pos)
	}
	return b.String()
}

// LoadChildren enumerates the element's children. Without recursive, an
// already loaded node is left alone; with recursive the children are always
// re-read. Children still reported by the backend keep their nodes and
// their own loaded subtrees, with cached properties refreshed; the others
// are dropped. A failed enumeration leaves the node LoadFailed with no
// children.
func (n *Node) LoadChildren(ctx context.Context, recursive bool) {
	if n.state != NotLoaded && !recursive {
		return
	}
	m := n.model
	elements, err := m.facade.Children(ctx, n.element)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"node":    n.id,
			"element": n.element.RuntimeID(),
		}).Warn("Could not load children")
		m.dropAll(n.children)
		n.children = nil
		n.state = LoadFailed
		n.loadErr = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		m.notifyChildren(n)
		return
	}

	old := n.children
	reused := make([]bool, len(old))
	children := make([]*Node, 0, len(elements))
	for _, el := range elements {
		var child *Node
		for i, o := range old {
			if !reused[i] && m.facade.Equal(o.element, el) {
				reused[i] = true
				child = o
				child.info = nil
				break
			}
		}
		if child == nil {
			child = m.newNode(el, n)
		}
		children = append(children, child)
	}
	for i, o := range old {
		if !reused[i] {
			m.drop(o)
		}
	}
	n.children = children
	n.state = Loaded
	n.loadErr = nil
	m.notifyChildren(n)
}

// Expand sets the expansion flag, loading the children first if they were
// never loaded.
func (n *Node) Expand(ctx context.Context) {
	if n.state == NotLoaded {
		n.LoadChildren(ctx, false)
	}
	if n.expanded {
		return
	}
	n.expanded = true
	n.model.notifyExpansion(n)
}

// Collapse clears the expansion flag.
func (n *Node) Collapse() {
	if !n.expanded {
		return
	}
	n.expanded = false
	n.model.notifyExpansion(n)
}

// Select makes n the model's selected node. Dropped nodes cannot be
// selected.
func (n *Node) Select() {
	if n.model.Lookup(n.id) != n {
		return
	}
	n.model.setSelected(n)
}

// FindChild returns the first loaded child mirroring el.
func (n *Node) FindChild(el automation.Element) *Node {
	for _, c := range n.children {
		if n.model.facade.Equal(c.element, el) {
			return c
		}
	}
	return nil
}
