package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/automation/simulated"
)

const testDesktop = `
root:
  name: Desktop
  children:
    - name: Window1
      control_type: window
      children:
        - name: Button1
          control_type: button
        - name: Panel1
          control_type: pane
          children:
            - name: Button2
              control_type: button
    - name: Window2
      control_type: window
`

func newDesktop(t *testing.T) *simulated.Desktop {
	t.Helper()
	def, err := simulated.Parse([]byte(testDesktop))
	require.NoError(t, err)
	return simulated.New(def, nil)
}

// failingFacade fails Children for one element.
type failingFacade struct {
	automation.Facade
	failChildrenOf string
}

func (f *failingFacade) Children(ctx context.Context, el automation.Element) ([]automation.Element, error) {
	if el.RuntimeID() == f.failChildrenOf {
		return nil, automation.ErrElementNotAvailable
	}
	return f.Facade.Children(ctx, el)
}

type recorder struct {
	selections []*Node
	children   []*Node
	expansions []*Node
}

func (r *recorder) listener() Listener {
	return ListenerFuncs{
		OnSelection: func(n *Node) { r.selections = append(r.selections, n) },
		OnChildren:  func(n *Node) { r.children = append(r.children, n) },
		OnExpansion: func(n *Node) { r.expansions = append(r.expansions, n) },
	}
}

func names(ctx context.Context, nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Info(ctx).Name
	}
	return out
}

func TestNewModelHasUnloadedRoot(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)

	root := m.Root()
	require.NotNil(t, root)
	assert.Equal(t, NotLoaded, root.ChildState())
	assert.Nil(t, root.Children())
	assert.False(t, root.IsExpanded())
	assert.Nil(t, m.Selected())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "Desktop", root.Info(ctx).Name)
	assert.Equal(t, "Pane \"Desktop\"", root.Label(ctx))
}

func TestLoadChildrenPreservesBackendOrder(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)
	rec := &recorder{}
	m.AddListener(rec.listener())

	m.Root().LoadChildren(ctx, false)

	assert.Equal(t, Loaded, m.Root().ChildState())
	assert.Equal(t, []string{"Window1", "Window2"}, names(ctx, m.Root().Children()))
	assert.Len(t, rec.children, 1)
	for _, c := range m.Root().Children() {
		assert.Equal(t, m.Root(), c.Parent())
		assert.Equal(t, 1, c.Depth())
	}

	// A second non-recursive load is a no-op.
	m.Root().LoadChildren(ctx, false)
	assert.Len(t, rec.children, 1)
}

func TestLeafLoadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)
	m.Root().LoadChildren(ctx, false)
	w2 := m.Root().Children()[1]

	w2.LoadChildren(ctx, false)

	assert.Equal(t, Loaded, w2.ChildState())
	assert.Empty(t, w2.Children())
	assert.NoError(t, w2.LoadErr())
}

func TestLoadChildrenFailureLeavesEmptyChildren(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	window1 := d.MustFind("Window1")
	m := NewModel(&failingFacade{Facade: d, failChildrenOf: window1.RuntimeID()}, nil)
	rec := &recorder{}
	m.AddListener(rec.listener())

	m.Root().Expand(ctx)
	w1 := m.Root().FindChild(window1)
	require.NotNil(t, w1)

	w1.Expand(ctx)

	assert.Equal(t, LoadFailed, w1.ChildState())
	assert.Empty(t, w1.Children())
	assert.True(t, errors.Is(w1.LoadErr(), ErrLoadFailed))
	assert.True(t, errors.Is(w1.LoadErr(), automation.ErrElementNotAvailable))
	assert.True(t, w1.IsExpanded())
	// Children notifications fire for the root and for the failed load.
	assert.Len(t, rec.children, 2)
}

func TestSelectFiresOnce(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)
	rec := &recorder{}
	m.AddListener(rec.listener())
	m.Root().Expand(ctx)
	w1, w2 := m.Root().Children()[0], m.Root().Children()[1]

	w1.Select()
	assert.Equal(t, w1, m.Selected())
	assert.True(t, w1.IsSelected())
	require.Len(t, rec.selections, 1)

	w1.Select()
	assert.Len(t, rec.selections, 1, "reselecting must not notify")

	w2.Select()
	assert.False(t, w1.IsSelected())
	assert.True(t, w2.IsSelected())
	assert.Equal(t, []*Node{w1, w2}, rec.selections)
}

func TestExpandCollapse(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)
	rec := &recorder{}
	m.AddListener(rec.listener())

	m.Root().Expand(ctx)
	assert.True(t, m.Root().IsExpanded())
	assert.Equal(t, Loaded, m.Root().ChildState())

	m.Root().Expand(ctx)
	m.Root().Collapse()
	m.Root().Collapse()
	assert.False(t, m.Root().IsExpanded())
	assert.Len(t, rec.expansions, 2)
	// Collapsing keeps the loaded children.
	assert.Len(t, m.Root().Children(), 2)
}

func TestRecursiveReloadKeepsSurvivorsAndDropsVanished(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().Expand(ctx)
	w1 := m.Root().FindChild(d.MustFind("Window1"))
	w1.Expand(ctx)
	panel := w1.FindChild(d.MustFind("Window1/Panel1"))
	panel.Expand(ctx)
	button2 := panel.Children()[0]
	button2.Select()
	before := m.Len()

	require.NoError(t, d.Remove(d.MustFind("Window1/Panel1")))
	added, err := d.Add(d.MustFind("Window1"), simulated.ElementDef{Name: "Panel2", ControlType: "pane"})
	require.NoError(t, err)

	w1.LoadChildren(ctx, true)

	assert.Equal(t, []string{"Button1", "Panel2"}, names(ctx, w1.Children()))
	assert.NotNil(t, w1.FindChild(added))
	assert.Nil(t, m.Lookup(panel.ID()), "vanished node must leave the node table")
	assert.Nil(t, m.Lookup(button2.ID()))
	assert.Nil(t, m.Selected(), "dropping the selected node clears the selection")
	assert.Equal(t, before-2+1, m.Len())

	// A dropped node cannot be selected any more.
	button2.Select()
	assert.Nil(t, m.Selected())
}

func TestVisibleFollowsExpansion(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().Expand(ctx)
	assert.Equal(t, []string{"Desktop", "Window1", "Window2"}, names(ctx, m.Visible()))

	w1 := m.Root().Children()[0]
	w1.Expand(ctx)
	assert.Equal(t, []string{"Desktop", "Window1", "Button1", "Panel1", "Window2"}, names(ctx, m.Visible()))

	w1.Collapse()
	assert.Equal(t, []string{"Desktop", "Window1", "Window2"}, names(ctx, m.Visible()))
}

func TestFindSearchesLoadedNodesOnly(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().Expand(ctx)

	assert.NotNil(t, m.Find(d.MustFind("Window1")))
	assert.Nil(t, m.Find(d.MustFind("Window1/Panel1")), "Panel1 was never loaded")
}

func TestResetStartsOver(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newDesktop(t), nil)
	rec := &recorder{}
	m.AddListener(rec.listener())
	m.Root().Expand(ctx)
	oldRoot := m.Root()
	oldRoot.Children()[0].Select()

	m.Reset(ctx)

	assert.NotEqual(t, oldRoot.ID(), m.Root().ID())
	assert.Nil(t, m.Lookup(oldRoot.ID()))
	assert.True(t, m.Root().IsExpanded())
	assert.Len(t, m.Root().Children(), 2)
	assert.Nil(t, m.Selected())
	assert.Nil(t, rec.selections[len(rec.selections)-1])
	assert.Equal(t, 3, m.Len())
}

func TestAncestorsAndNamePath(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().Expand(ctx)
	w1 := m.Root().Children()[0]
	w1.Expand(ctx)
	panel := w1.Children()[1]

	assert.Equal(t, []*Node{m.Root(), w1, panel}, panel.Ancestors())
	assert.Equal(t, "Desktop/Window1/Panel1", panel.NamePath(ctx))
}

func TestXPath(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().Expand(ctx)
	w1 := m.Root().Children()[0]
	w1.Expand(ctx)
	button1, panel := w1.Children()[0], w1.Children()[1]
	panel.Expand(ctx)
	button2 := panel.Children()[0]
	_, err := d.Add(d.MustFind("Window1/Panel1"), simulated.ElementDef{Name: "Button3", ControlType: "button"})
	require.NoError(t, err)
	panel.LoadChildren(ctx, true)
	button3 := panel.Children()[1]

	assert.Equal(t, "/", m.Root().XPath(ctx))
	assert.Equal(t, "/Window[@Name='Window1']", w1.XPath(ctx))
	assert.Equal(t, "/Window[@Name='Window1']/Button[1]", button1.XPath(ctx))
	assert.Equal(t, "/Window[@Name='Window1']/Pane[1]/Button[1]", button2.XPath(ctx))
	assert.Equal(t, "/Window[@Name='Window1']/Pane[1]/Button[2]", button3.XPath(ctx))

	_, err = d.Add(d.Root(), simulated.ElementDef{Name: "Bob's window", ControlType: "window"})
	require.NoError(t, err)
	m.Root().LoadChildren(ctx, true)
	assert.Equal(t, `/Window[@Name="Bob's window"]`, m.Root().Children()[2].XPath(ctx))
}

func TestInfoOfVanishedElement(t *testing.T) {
	ctx := context.Background()
	d := newDesktop(t)
	m := NewModel(d, nil)
	m.Root().LoadChildren(ctx, false)
	w2 := m.Root().Children()[1]
	require.NoError(t, d.Remove(d.MustFind("Window2")))

	info := w2.Info(ctx)
	assert.Empty(t, info.Name)
	assert.Equal(t, w2.Element().RuntimeID(), info.RuntimeID)
	assert.Contains(t, w2.Label(ctx), "<unavailable")
}
