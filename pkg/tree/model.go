// Package tree holds the lazily materialized mirror of an automation tree.
//
// A Model and its nodes are not safe for concurrent use. They are meant to be
// owned by a single goroutine (see the inspect package); other goroutines
// only ever see copies.
package tree

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

// Listener receives tree notifications. Calls happen on the goroutine that
// mutates the model.
type Listener interface {
	// SelectionChanged is called after the selected node changed; n is nil
	// when the selection was cleared.
	SelectionChanged(n *Node)
	ChildrenChanged(n *Node)
	ExpansionChanged(n *Node)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnSelection func(*Node)
	OnChildren  func(*Node)
	OnExpansion func(*Node)
}

func (f ListenerFuncs) SelectionChanged(n *Node) {
	if f.OnSelection != nil {
		f.OnSelection(n)
	}
}

func (f ListenerFuncs) ChildrenChanged(n *Node) {
	if f.OnChildren != nil {
		f.OnChildren(n)
	}
}

func (f ListenerFuncs) ExpansionChanged(n *Node) {
	if f.OnExpansion != nil {
		f.OnExpansion(n)
	}
}

// Model owns the desktop root node and every node below it.
type Model struct {
	facade    automation.Facade
	logger    *logrus.Entry
	root      *Node
	nodes     map[NodeID]*Node
	lastID    NodeID
	selected  *Node
	listeners []Listener
}

// NewModel creates a model holding an unloaded root for facade.Root().
func NewModel(facade automation.Facade, logger *logrus.Entry) *Model {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	m := &Model{
		facade: facade,
		logger: logger.WithField("component", "tree"),
		nodes:  make(map[NodeID]*Node),
	}
	m.root = m.newNode(facade.Root(), nil)
	return m
}

// Facade returns the backend the model mirrors.
func (m *Model) Facade() automation.Facade { return m.facade }

// Root returns the desktop node.
func (m *Model) Root() *Node { return m.root }

// Selected returns the selected node, or nil.
func (m *Model) Selected() *Node { return m.selected }

// Lookup resolves a node id; nil when the node was dropped.
func (m *Model) Lookup(id NodeID) *Node { return m.nodes[id] }

// Len is the number of materialized nodes.
func (m *Model) Len() int { return len(m.nodes) }

// AddListener registers l for all future notifications.
func (m *Model) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Reset drops every node and starts over from a fresh desktop root, which is
// loaded and expanded.
func (m *Model) Reset(ctx context.Context) {
	m.setSelected(nil)
	m.dropAll([]*Node{m.root})
	m.root = m.newNode(m.facade.Root(), nil)
	m.root.LoadChildren(ctx, false)
	m.root.Expand(ctx)
}

// ClearSelection deselects the selected node, if any.
func (m *Model) ClearSelection() {
	m.setSelected(nil)
}

// Walk visits loaded nodes depth first in child order. Returning false from
// fn skips the node's children.
func (m *Model) Walk(fn func(n *Node) bool) {
	var visit func(n *Node)
	visit = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(m.root)
}

// Visible lists the nodes shown by an expanded tree view: the root and every
// node whose ancestors are all expanded.
func (m *Model) Visible() []*Node {
	var out []*Node
	m.Walk(func(n *Node) bool {
		out = append(out, n)
		return n.expanded
	})
	return out
}

// Find returns the first loaded node mirroring el, searching depth first.
// Only already loaded nodes are compared; nothing is enumerated.
func (m *Model) Find(el automation.Element) *Node {
	var found *Node
	m.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if m.facade.Equal(n.element, el) {
			found = n
			return false
		}
		return true
	})
	return found
}

func (m *Model) newNode(el automation.Element, parent *Node) *Node {
	m.lastID++
	n := &Node{
		id:      m.lastID,
		model:   m,
		element: el,
	}
	if parent != nil {
		n.parent = parent.id
		n.depth = parent.depth + 1
	}
	m.nodes[n.id] = n
	return n
}

// drop removes n and its subtree from the node table.
func (m *Model) drop(n *Node) {
	if m.selected == n {
		m.setSelected(nil)
	}
	n.selected = false
	delete(m.nodes, n.id)
	m.dropAll(n.children)
}

func (m *Model) dropAll(nodes []*Node) {
	for _, n := range nodes {
		m.drop(n)
	}
}

func (m *Model) setSelected(n *Node) {
	if m.selected == n {
		return
	}
	if m.selected != nil {
		m.selected.selected = false
	}
	m.selected = n
	if n != nil {
		n.selected = true
	}
	for _, l := range m.listeners {
		l.SelectionChanged(n)
	}
}

func (m *Model) notifyChildren(n *Node) {
	for _, l := range m.listeners {
		l.ChildrenChanged(n)
	}
}

func (m *Model) notifyExpansion(n *Node) {
	for _, l := range m.listeners {
		l.ExpansionChanged(n)
	}
}
