package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/automation/simulated"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

const scenarioDesktop = `
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

// probeFacade counts child enumerations and lets tests break parent walks.
type probeFacade struct {
	automation.Facade

	mu            sync.Mutex
	childCalls    map[string]int
	parentCalls   int
	failParentOf  map[string]bool
	parentRewrite map[string]automation.Element
}

func newProbe(d *simulated.Desktop) *probeFacade {
	return &probeFacade{
		Facade:        d,
		childCalls:    make(map[string]int),
		failParentOf:  make(map[string]bool),
		parentRewrite: make(map[string]automation.Element),
	}
}

func (f *probeFacade) Children(ctx context.Context, el automation.Element) ([]automation.Element, error) {
	f.mu.Lock()
	f.childCalls[el.RuntimeID()]++
	f.mu.Unlock()
	return f.Facade.Children(ctx, el)
}

func (f *probeFacade) Parent(ctx context.Context, el automation.Element) (automation.Element, error) {
	f.mu.Lock()
	f.parentCalls++
	fail := f.failParentOf[el.RuntimeID()]
	rewrite, rewritten := f.parentRewrite[el.RuntimeID()]
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("transient failure: %w", automation.ErrElementNotAvailable)
	}
	if rewritten {
		return rewrite, nil
	}
	return f.Facade.Parent(ctx, el)
}

func (f *probeFacade) calls(el automation.Element) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.childCalls[el.RuntimeID()]
}

func (f *probeFacade) snapshot() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.childCalls))
	for k, v := range f.childCalls {
		out[k] = v
	}
	return out
}

type fixture struct {
	desktop *simulated.Desktop
	probe   *probeFacade
	model   *tree.Model
	sync    *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	def, err := simulated.Parse([]byte(scenarioDesktop))
	require.NoError(t, err)
	d := simulated.New(def, nil)
	probe := newProbe(d)
	return &fixture{
		desktop: d,
		probe:   probe,
		model:   tree.NewModel(probe, nil),
		sync:    New(probe, nil),
	}
}

func (f *fixture) node(t *testing.T, ref string) *tree.Node {
	t.Helper()
	n := f.model.Find(f.desktop.MustFind(ref))
	require.NotNil(t, n, "no loaded node for %s", ref)
	return n
}

func TestSyncExpandsPathAndSelectsTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.desktop.MustFind("Window1/Panel1/Button2")

	res := f.sync.Sync(ctx, f.model, target)

	require.NoError(t, res.Err)
	assert.True(t, res.Complete())
	assert.Equal(t, 3, res.PathLen)
	assert.Equal(t, 3, res.Matched)
	assert.Empty(t, res.ForcedReloads, "lazy expansion is not a forced reload")

	assert.True(t, f.model.Root().IsExpanded())
	assert.True(t, f.node(t, "Window1").IsExpanded())
	assert.True(t, f.node(t, "Window1/Panel1").IsExpanded())
	button2 := f.node(t, "Window1/Panel1/Button2")
	assert.True(t, button2.IsSelected())
	assert.Equal(t, button2, f.model.Selected())
	assert.Equal(t, button2, res.Selected)
	assert.False(t, f.node(t, "Window2").IsExpanded(), "siblings off the path stay collapsed")
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.desktop.MustFind("Window1/Panel1/Button2")

	first := f.sync.Sync(ctx, f.model, target)
	calls := f.probe.snapshot()
	second := f.sync.Sync(ctx, f.model, target)

	assert.Equal(t, first.Selected, second.Selected)
	assert.Empty(t, second.ForcedReloads)
	assert.Equal(t, calls, f.probe.snapshot(), "second run must not enumerate anything")
}

func TestSyncWithFullyLoadedTreeUsesComparisonsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.model.Root().Expand(ctx)
	for _, ref := range []string{"Window1", "Window1/Panel1", "Window1/Panel1/Button2", "Window1/Button1"} {
		f.node(t, ref).Expand(ctx)
	}
	calls := f.probe.snapshot()

	res := f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

	require.NoError(t, res.Err)
	assert.Empty(t, res.ForcedReloads)
	assert.Equal(t, calls, f.probe.snapshot())
	assert.True(t, f.node(t, "Window1/Panel1/Button2").IsSelected())
}

func TestSyncHealsStaleNodeWithOneForcedReload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

	panelEl := f.desktop.MustFind("Window1/Panel1")
	group, err := f.desktop.Add(panelEl, simulated.ElementDef{
		Name:        "Group1",
		ControlType: "group",
		Children:    []simulated.ElementDef{{Name: "Button3", ControlType: "button"}},
	})
	require.NoError(t, err)
	button3 := f.desktop.MustFind("Window1/Panel1/Group1/Button3")

	before := f.probe.snapshot()
	res := f.sync.Sync(ctx, f.model, button3)

	require.NoError(t, res.Err)
	panel := f.node(t, "Window1/Panel1")
	assert.Equal(t, []tree.NodeID{panel.ID()}, res.ForcedReloads)
	assert.Equal(t, before[panelEl.RuntimeID()]+1, f.probe.calls(panelEl))

	root := f.desktop.Root()
	window1 := f.desktop.MustFind("Window1")
	assert.Equal(t, before[root.RuntimeID()], f.probe.calls(root), "no rescan above the stale node")
	assert.Equal(t, before[window1.RuntimeID()], f.probe.calls(window1))

	assert.True(t, f.model.Find(group).IsExpanded())
	assert.True(t, f.model.Find(button3).IsSelected())
}

func TestSyncTargetNotFoundKeepsDeepestAncestor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

	// The path is resolved while the element exists, then it vanishes
	// before reconciliation.
	panelEl := f.desktop.MustFind("Window1/Panel1")
	ghost, err := f.desktop.Add(panelEl, simulated.ElementDef{Name: "Ghost", ControlType: "button"})
	require.NoError(t, err)
	path := f.sync.ResolvePath(ctx, ghost)
	require.NoError(t, f.desktop.Remove(ghost))

	res := f.sync.Reconcile(ctx, f.model, path)

	assert.True(t, errors.Is(res.Err, ErrTargetNotFound))
	assert.False(t, res.Complete())
	assert.Equal(t, 2, res.Matched)
	panel := f.node(t, "Window1/Panel1")
	assert.Equal(t, panel, res.Selected)
	assert.True(t, panel.IsSelected())
	assert.Equal(t, []tree.NodeID{panel.ID()}, res.ForcedReloads)
}

func TestSyncScenarioReloadOnlyWhenAddedAfterLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("already loaded", func(t *testing.T) {
		f := newFixture(t)
		f.model.Root().Expand(ctx)
		f.node(t, "Window1").Expand(ctx)
		f.node(t, "Window1/Panel1").Expand(ctx)

		res := f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

		assert.Empty(t, res.ForcedReloads)
		assert.True(t, res.Complete())
	})

	t.Run("added after Panel1 was loaded", func(t *testing.T) {
		def, err := simulated.Parse([]byte(`
root:
  name: Desktop
  children:
    - name: Window1
      children:
        - name: Button1
        - name: Panel1
`))
		require.NoError(t, err)
		d := simulated.New(def, nil)
		probe := newProbe(d)
		model := tree.NewModel(probe, nil)
		s := New(probe, nil)
		s.Sync(ctx, model, d.MustFind("Window1/Panel1"))

		_, err = d.Add(d.MustFind("Window1/Panel1"), simulated.ElementDef{Name: "Button2", ControlType: "button"})
		require.NoError(t, err)
		res := s.Sync(ctx, model, d.MustFind("Window1/Panel1/Button2"))

		panel := model.Find(d.MustFind("Window1/Panel1"))
		require.NotNil(t, panel)
		assert.Equal(t, []tree.NodeID{panel.ID()}, res.ForcedReloads)
		assert.True(t, model.Find(d.MustFind("Window1/Panel1/Button2")).IsSelected())
		assert.True(t, model.Root().IsExpanded())
		assert.True(t, model.Find(d.MustFind("Window1")).IsExpanded())
		assert.True(t, panel.IsExpanded())
	})
}

func TestSyncRootTargetSelectsRoot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.sync.Sync(ctx, f.model, f.desktop.Root())

	assert.Equal(t, 0, res.PathLen)
	assert.NoError(t, res.Err)
	assert.Equal(t, f.model.Root(), res.Selected)
	assert.True(t, f.model.Root().IsSelected())
	assert.True(t, f.model.Root().IsExpanded())
}

func TestResolvePathOrdersRootMostFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	path := f.sync.ResolvePath(ctx, f.desktop.MustFind("Window1/Panel1/Button2"))

	require.Len(t, path.Elements, 3)
	assert.Equal(t, f.desktop.MustFind("Window1").RuntimeID(), path.Elements[0].RuntimeID())
	assert.Equal(t, f.desktop.MustFind("Window1/Panel1").RuntimeID(), path.Elements[1].RuntimeID())
	assert.Equal(t, f.desktop.MustFind("Window1/Panel1/Button2").RuntimeID(), path.Elements[2].RuntimeID())
	assert.False(t, path.Truncated)
	assert.False(t, path.Cycle)
	assert.NoError(t, path.Err)
}

func TestResolvePathStopsOnCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	button2 := f.desktop.MustFind("Window1/Panel1/Button2")
	panel := f.desktop.MustFind("Window1/Panel1")
	f.probe.parentRewrite[panel.RuntimeID()] = button2

	path := f.sync.ResolvePath(ctx, button2)

	assert.True(t, path.Cycle)
	assert.True(t, errors.Is(path.Err, ErrCycleDetected))
	assert.Equal(t, 2, path.Len())
	assert.Equal(t, 2, f.probe.parentCalls, "the walk must not loop")

	// Reconciling a cyclic path still terminates and selects something.
	res := f.sync.Reconcile(ctx, f.model, path)
	assert.NotNil(t, res.Selected)
}

func TestSyncTruncatedPath(t *testing.T) {
	ctx := context.Background()

	t.Run("ancestors loaded", func(t *testing.T) {
		f := newFixture(t)
		f.model.Root().Expand(ctx)
		f.node(t, "Window1").Expand(ctx)
		f.probe.failParentOf[f.desktop.MustFind("Window1/Panel1").RuntimeID()] = true

		res := f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

		assert.True(t, res.Path.Truncated)
		assert.True(t, errors.Is(res.Path.Err, automation.ErrElementNotAvailable))
		assert.Equal(t, 2, res.PathLen)
		assert.NoError(t, res.Err)
		assert.True(t, f.node(t, "Window1/Panel1/Button2").IsSelected())
		assert.True(t, f.node(t, "Window1/Panel1").IsExpanded())
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		f := newFixture(t)
		f.probe.failParentOf[f.desktop.MustFind("Window1/Panel1").RuntimeID()] = true

		res := f.sync.Sync(ctx, f.model, f.desktop.MustFind("Window1/Panel1/Button2"))

		assert.True(t, res.Path.Truncated)
		assert.True(t, errors.Is(res.Err, ErrTargetNotFound))
		assert.Equal(t, f.model.Root(), res.Selected)
		assert.Equal(t, []tree.NodeID{f.model.Root().ID()}, res.ForcedReloads)
	})
}

func TestSyncVanishedTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w2 := f.desktop.MustFind("Window2")
	require.NoError(t, f.desktop.Remove(w2))

	res := f.sync.Sync(ctx, f.model, w2)

	assert.True(t, res.Path.Truncated)
	assert.True(t, errors.Is(res.Err, ErrTargetNotFound))
	assert.Equal(t, f.model.Root(), res.Selected)
}
