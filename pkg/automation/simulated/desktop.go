// Package simulated implements an in-memory automation backend. The desktop
// is described in YAML and can be mutated at runtime, either through the Go
// API or by editing the definition file while it is being watched.
package simulated

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

// Kind is the automation type name the backend registers under.
const Kind = "simulated"

func init() {
	automation.Register(Kind, open)
}

func open(ctx context.Context, opts automation.Options) (automation.Backend, error) {
	def := Sample()
	if opts.Source != "" {
		var err error
		if def, err = Load(opts.Source); err != nil {
			return nil, err
		}
	}
	d := New(def, opts.Logger)
	if opts.Watch && opts.Source != "" {
		if err := d.Watch(ctx, opts.Source); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// idSpace namespaces derived element ids.
var idSpace = uuid.MustParse("8f0c5a52-3c7e-4d5e-9f7e-2b1d6c1f0a11")

type element struct {
	id string
}

func (e element) RuntimeID() string { return e.id }

func (e element) String() string { return e.id }

type node struct {
	id       string
	info     automation.Info
	props    map[string]string
	parent   *node
	children []*node
}

// Desktop is a mutable, concurrency safe simulated automation tree.
type Desktop struct {
	mu      sync.RWMutex
	root    *node
	byID    map[string]*node
	pointer *Point
	focus   string
	logger  *logrus.Entry
	closers []func()
}

// New builds a desktop from a definition.
func New(def *Definition, logger *logrus.Entry) *Desktop {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	d := &Desktop{logger: logger.WithField("component", "simulated")}
	d.replace(def)
	return d
}

// Replace swaps the whole tree for a new definition. Elements whose derived
// (or explicit) id is unchanged stay valid; the others vanish.
func (d *Desktop) Replace(def *Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replace(def)
}

func (d *Desktop) replace(def *Definition) {
	d.byID = make(map[string]*node)
	d.root = d.build(def.Root, nil, "")
	d.pointer = def.Pointer
	d.focus = ""
	if def.Focus != "" {
		if n := d.resolveRef(def.Focus); n != nil {
			d.focus = n.id
		} else {
			d.logger.WithField("focus", def.Focus).Warn("focus reference does not match any element")
		}
	}
}

func (d *Desktop) build(def ElementDef, parent *node, key string) *node {
	id := def.ID
	if id == "" {
		id = uuid.NewSHA1(idSpace, []byte(key)).String()
	}
	if _, dup := d.byID[id]; dup {
		id = uuid.NewSHA1(idSpace, []byte(key+"#"+id)).String()
	}
	enabled := true
	if def.Enabled != nil {
		enabled = *def.Enabled
	}
	n := &node{
		id:     id,
		parent: parent,
		props:  def.Properties,
		info: automation.Info{
			RuntimeID:    id,
			Name:         def.Name,
			ControlType:  normalizeControlType(def.ControlType),
			AutomationID: def.AutomationID,
			ClassName:    def.ClassName,
			Bounds:       def.Bounds,
			IsEnabled:    enabled,
			IsOffscreen:  def.Offscreen,
		},
	}
	d.byID[id] = n

	seen := make(map[string]int)
	for _, childDef := range def.Children {
		occurrence := seen[childDef.Name]
		seen[childDef.Name]++
		childKey := fmt.Sprintf("%s/%s[%d]", key, childDef.Name, occurrence)
		n.children = append(n.children, d.build(childDef, n, childKey))
	}
	return n
}

// resolveRef finds an element by id or by a slash separated name path below
// the root. Callers hold the lock.
func (d *Desktop) resolveRef(ref string) *node {
	if n, ok := d.byID[ref]; ok {
		return n
	}
	cur := d.root
	for _, name := range strings.Split(strings.Trim(ref, "/"), "/") {
		var next *node
		for _, c := range cur.children {
			if c.info.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (d *Desktop) lookup(el automation.Element) (*node, error) {
	if el == nil {
		return nil, fmt.Errorf("nil element: %w", automation.ErrElementNotAvailable)
	}
	n, ok := d.byID[el.RuntimeID()]
	if !ok {
		return nil, fmt.Errorf("element %s: %w", el.RuntimeID(), automation.ErrElementNotAvailable)
	}
	return n, nil
}

// Root returns the desktop element.
func (d *Desktop) Root() automation.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return element{id: d.root.id}
}

// Parent returns the parent of el, or nil for the root.
func (d *Desktop) Parent(_ context.Context, el automation.Element) (automation.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.lookup(el)
	if err != nil {
		return nil, err
	}
	if n.parent == nil {
		return nil, nil
	}
	return element{id: n.parent.id}, nil
}

// Children returns the children of el in definition order.
func (d *Desktop) Children(_ context.Context, el automation.Element) ([]automation.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.lookup(el)
	if err != nil {
		return nil, err
	}
	children := make([]automation.Element, len(n.children))
	for i, c := range n.children {
		children[i] = element{id: c.id}
	}
	return children, nil
}

// Equal compares elements by runtime id.
func (d *Desktop) Equal(a, b automation.Element) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.RuntimeID() == b.RuntimeID()
}

// Describe returns the identifying properties of el.
func (d *Desktop) Describe(_ context.Context, el automation.Element) (automation.Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.lookup(el)
	if err != nil {
		return automation.Info{}, err
	}
	return n.info, nil
}

// Details returns the grouped property rows of el.
func (d *Desktop) Details(_ context.Context, el automation.Element) ([]automation.DetailGroup, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, err := d.lookup(el)
	if err != nil {
		return nil, err
	}
	info := n.info
	groups := []automation.DetailGroup{
		{
			Name: "Identification",
			Details: []automation.Detail{
				{Key: "AutomationId", Value: info.AutomationID, Important: true},
				{Key: "Name", Value: info.Name, Important: true},
				{Key: "ClassName", Value: info.ClassName, Important: true},
				{Key: "ControlType", Value: info.ControlType, Important: true},
				{Key: "RuntimeId", Value: info.RuntimeID},
			},
		},
		{
			Name: "Details",
			Details: []automation.Detail{
				{Key: "BoundingRectangle", Value: info.Bounds.String()},
				{Key: "IsEnabled", Value: fmt.Sprintf("%t", info.IsEnabled)},
				{Key: "IsOffscreen", Value: fmt.Sprintf("%t", info.IsOffscreen)},
			},
		},
	}
	if len(n.props) > 0 {
		keys := make([]string, 0, len(n.props))
		for k := range n.props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := automation.DetailGroup{Name: "Properties"}
		for _, k := range keys {
			props.Details = append(props.Details, automation.Detail{Key: k, Value: n.props[k]})
		}
		groups = append(groups, props)
	}
	return groups, nil
}

// ElementUnderPointer hit-tests the simulated pointer against element bounds
// and returns the deepest match. It returns nil when no pointer is set.
func (d *Desktop) ElementUnderPointer(_ context.Context) (automation.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pointer == nil {
		return nil, nil
	}
	hit := d.root
	for {
		var next *node
		for _, c := range hit.children {
			if c.info.Bounds.Contains(d.pointer.X, d.pointer.Y) {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		hit = next
	}
	return element{id: hit.id}, nil
}

// FocusedElement returns the focused element, or nil when nothing has focus.
func (d *Desktop) FocusedElement(_ context.Context) (automation.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.focus == "" {
		return nil, nil
	}
	if _, ok := d.byID[d.focus]; !ok {
		return nil, fmt.Errorf("focused element %s: %w", d.focus, automation.ErrElementNotAvailable)
	}
	return element{id: d.focus}, nil
}

// Find resolves an element by id or slash separated name path below the root.
func (d *Desktop) Find(ref string) (automation.Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := d.resolveRef(ref)
	if n == nil {
		return nil, false
	}
	return element{id: n.id}, true
}

// MustFind is Find for tests and fixtures; it panics when ref is unknown.
func (d *Desktop) MustFind(ref string) automation.Element {
	el, ok := d.Find(ref)
	if !ok {
		panic("simulated: no element " + ref)
	}
	return el
}

// Add appends a new subtree under parent and returns the new element.
func (d *Desktop) Add(parent automation.Element, def ElementDef) (automation.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.lookup(parent)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%s+%s", p.id, def.Name, uuid.NewString())
	n := d.build(def, p, key)
	p.children = append(p.children, n)
	return element{id: n.id}, nil
}

// Remove detaches el and its subtree; handles into it vanish.
func (d *Desktop) Remove(el automation.Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(el)
	if err != nil {
		return err
	}
	if n.parent == nil {
		return fmt.Errorf("cannot remove the desktop root")
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	d.forget(n)
	return nil
}

func (d *Desktop) forget(n *node) {
	delete(d.byID, n.id)
	if d.focus == n.id {
		d.focus = ""
	}
	for _, c := range n.children {
		d.forget(c)
	}
}

// SetPointer moves the simulated pointer.
func (d *Desktop) SetPointer(x, y int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pointer = &Point{X: x, Y: y}
}

// SetFocus gives keyboard focus to el; nil clears focus.
func (d *Desktop) SetFocus(el automation.Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el == nil {
		d.focus = ""
		return
	}
	d.focus = el.RuntimeID()
}

// Close stops background watchers started by Watch.
func (d *Desktop) Close() error {
	d.mu.Lock()
	closers := d.closers
	d.closers = nil
	d.mu.Unlock()
	for _, c := range closers {
		c()
	}
	return nil
}
