// Package inspect runs an inspection session: it owns the tree model on a
// single goroutine and feeds it with reports from observation sources and
// operator commands.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/observe"
	"github.com/mattsolo1/grove-inspect/pkg/reconcile"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

var (
	// ErrClosed is returned for work submitted after Run returned.
	ErrClosed = errors.New("session closed")
	// ErrNodeNotFound is returned for node ids that are no longer in the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrElementNotFound is returned by FindByPath when no element matches a
	// name path.
	ErrElementNotFound = errors.New("element not found")
	// ErrNoSelection is returned by operations that need a selected node.
	ErrNoSelection = errors.New("no element selected")
	// ErrUnknownSource is returned when toggling a source never registered.
	ErrUnknownSource = errors.New("unknown observation source")
)

type report struct {
	source string
	el     automation.Element
}

type resolvedReport struct {
	report
	path reconcile.Path
}

type task struct {
	fn   func(ctx context.Context, m *tree.Model) error
	done chan error
}

type attachment struct {
	src  observe.Source
	stop chan struct{}
	done chan struct{}
}

// Session owns a tree.Model. Only the owner goroutine started by Run ever
// touches the model; everything else goes through Do and gets Snapshots.
//
// Ordering policy: reports from all sources share one single-slot mailbox,
// so a report that arrives before the previous one was picked up replaces
// it (latest wins). Picked-up reports are resolved one at a time off the
// owner goroutine and reconciled strictly in order on it; two runs never
// interleave their tree mutations.
type Session struct {
	facade automation.Facade
	model  *tree.Model
	sync   *reconcile.Synchronizer
	logger *logrus.Entry

	reports  *observe.Latest[report]
	tasks    chan task
	done     chan struct{}
	running  atomic.Bool
	received atomic.Int64
	xpath    atomic.Bool

	// owner goroutine only
	dirty      bool
	version    uint64
	details    []automation.DetailGroup
	detailsFor tree.NodeID
	lastSync   *SyncReport
	stats      Stats

	mu          sync.Mutex
	baseCtx     context.Context
	sources     map[string]*attachment
	subscribers []func(Snapshot)
}

// New creates a session for facade. Nothing happens until Run is called.
func New(facade automation.Facade, logger *logrus.Entry) *Session {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	s := &Session{
		facade:  facade,
		model:   tree.NewModel(facade, logger),
		sync:    reconcile.New(facade, logger),
		logger:  logger.WithField("component", "session"),
		reports: observe.NewLatest[report](),
		tasks:   make(chan task),
		done:    make(chan struct{}),
		baseCtx: context.Background(),
		sources: make(map[string]*attachment),
	}
	markDirty := func(*tree.Node) { s.dirty = true }
	s.model.AddListener(tree.ListenerFuncs{
		OnSelection: markDirty,
		OnChildren:  markDirty,
		OnExpansion: markDirty,
	})
	return s
}

// Facade returns the automation facade the session mirrors.
func (s *Session) Facade() automation.Facade { return s.facade }

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the owner goroutine and must not call back into the session
// synchronously.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Run loads the desktop root and processes reports and tasks until ctx is
// done. Attached sources are stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	defer s.detachAll()

	resolved := make(chan resolvedReport)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.resolve(gctx, resolved)
		return nil
	})
	g.Go(func() error {
		defer close(s.done)
		return s.own(gctx, resolved)
	})
	return g.Wait()
}

// resolve walks parents for one report at a time. It only uses the facade,
// keeping slow automation calls off the owner goroutine.
func (s *Session) resolve(ctx context.Context, out chan<- resolvedReport) {
	for {
		var r report
		select {
		case <-ctx.Done():
			return
		case r = <-s.reports.C():
		}
		path := s.sync.ResolvePath(ctx, r.el)
		select {
		case <-ctx.Done():
			return
		case out <- resolvedReport{report: r, path: path}:
		}
	}
}

func (s *Session) own(ctx context.Context, resolved <-chan resolvedReport) error {
	s.model.Reset(ctx)
	s.dirty = true
	s.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-s.tasks:
			t.done <- t.fn(ctx, s.model)
		case r := <-resolved:
			s.apply(ctx, r.source, r.path)
		}
		s.publish(ctx)
	}
}

func (s *Session) apply(ctx context.Context, source string, path reconcile.Path) reconcile.Result {
	res := s.sync.Reconcile(ctx, s.model, path)
	s.stats.Syncs++
	s.stats.ForcedReloads += len(res.ForcedReloads)
	if errors.Is(res.Err, reconcile.ErrTargetNotFound) {
		s.stats.NotFound++
	}
	s.lastSync = newSyncReport(ctx, source, res, s.facade)
	s.dirty = true
	s.logger.WithFields(logrus.Fields{
		"source":         source,
		"matched":        res.Matched,
		"path":           res.PathLen,
		"forced_reloads": len(res.ForcedReloads),
	}).Debug("Synchronized selection")
	return res
}

func (s *Session) publish(ctx context.Context) {
	if !s.dirty {
		return
	}
	s.dirty = false
	snap := s.snapshot(ctx)
	s.mu.Lock()
	subs := append([]func(Snapshot){}, s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Session) snapshot(ctx context.Context) Snapshot {
	s.version++
	snap := Snapshot{
		Version:  s.version,
		Tracking: s.Tracking(),
		Stats:    s.stats,
		Nodes:    s.model.Len(),
	}
	snap.Stats.Reports = int(s.received.Load())
	if s.lastSync != nil {
		last := *s.lastSync
		snap.LastSync = &last
	}
	for _, n := range s.model.Visible() {
		snap.Rows = append(snap.Rows, newRow(ctx, n))
	}
	if sel := s.model.Selected(); sel != nil {
		snap.SelectedID = sel.ID()
		snap.SelectedPath = sel.NamePath(ctx)
		if s.detailsFor != sel.ID() {
			details, err := s.facade.Details(ctx, sel.Element())
			if err != nil {
				s.logger.WithError(err).Warn("Could not read element details")
			}
			s.details = details
			s.detailsFor = sel.ID()
		}
		snap.Details = s.details
		if s.xpath.Load() {
			snap.XPath = sel.XPath(ctx)
		}
	}
	return snap
}

// Do runs fn on the owner goroutine and waits for it. The model must not be
// retained after fn returns.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, m *tree.Model) error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// The owner runs an accepted task to completion before anything else.
	return <-t.done
}

// Report hands an element of interest to the session. It never blocks; a
// report not yet picked up is replaced.
func (s *Session) Report(source string, el automation.Element) {
	if el == nil {
		return
	}
	s.received.Add(1)
	s.reports.Put(report{source: source, el: el})
}

// Sync resolves and reconciles el immediately, bypassing the mailbox.
func (s *Session) Sync(ctx context.Context, source string, el automation.Element) (reconcile.Result, error) {
	path := s.sync.ResolvePath(ctx, el)
	var res reconcile.Result
	err := s.Do(ctx, func(ctx context.Context, _ *tree.Model) error {
		res = s.apply(ctx, source, path)
		return nil
	})
	return res, err
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.Do(ctx, func(ctx context.Context, _ *tree.Model) error {
		snap = s.snapshot(ctx)
		return nil
	})
	return snap, err
}

func (s *Session) withNode(ctx context.Context, id tree.NodeID, fn func(ctx context.Context, n *tree.Node)) error {
	return s.Do(ctx, func(ctx context.Context, m *tree.Model) error {
		n := m.Lookup(id)
		if n == nil {
			return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
		fn(ctx, n)
		return nil
	})
}

// Toggle expands a collapsed node and collapses an expanded one.
func (s *Session) Toggle(ctx context.Context, id tree.NodeID) error {
	return s.withNode(ctx, id, func(ctx context.Context, n *tree.Node) {
		if n.IsExpanded() {
			n.Collapse()
		} else {
			n.Expand(ctx)
		}
	})
}

// Expand expands a node, loading its children on first use.
func (s *Session) Expand(ctx context.Context, id tree.NodeID) error {
	return s.withNode(ctx, id, func(ctx context.Context, n *tree.Node) { n.Expand(ctx) })
}

// Collapse collapses a node.
func (s *Session) Collapse(ctx context.Context, id tree.NodeID) error {
	return s.withNode(ctx, id, func(_ context.Context, n *tree.Node) { n.Collapse() })
}

// Select makes a node the selection.
func (s *Session) Select(ctx context.Context, id tree.NodeID) error {
	return s.withNode(ctx, id, func(_ context.Context, n *tree.Node) { n.Select() })
}

// Reload forces a fresh load of a node's children.
func (s *Session) Reload(ctx context.Context, id tree.NodeID) error {
	return s.withNode(ctx, id, func(ctx context.Context, n *tree.Node) { n.LoadChildren(ctx, true) })
}

// SetXPath turns the XPath of the selected element in snapshots on or off.
func (s *Session) SetXPath(ctx context.Context, on bool) error {
	if s.xpath.Swap(on) == on || !s.running.Load() {
		return nil
	}
	err := s.Do(ctx, func(context.Context, *tree.Model) error {
		s.dirty = true
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// ToggleXPath flips SetXPath and returns the new state.
func (s *Session) ToggleXPath(ctx context.Context) (bool, error) {
	on := !s.xpath.Load()
	return on, s.SetXPath(ctx, on)
}

// Refresh throws the mirror away and reloads it from the desktop root.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, m *tree.Model) error {
		m.Reset(ctx)
		s.detailsFor = 0
		s.dirty = true
		return nil
	})
}

// ExpandTo expands every node down to depth (the root is depth 0).
func (s *Session) ExpandTo(ctx context.Context, depth int) error {
	return s.Do(ctx, func(ctx context.Context, m *tree.Model) error {
		var expand func(n *tree.Node)
		expand = func(n *tree.Node) {
			if n.Depth() >= depth || ctx.Err() != nil {
				return
			}
			n.Expand(ctx)
			for _, c := range n.Children() {
				expand(c)
			}
		}
		expand(m.Root())
		return ctx.Err()
	})
}
