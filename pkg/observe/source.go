// Package observe contains the watchers that report an "element of
// interest": the element under the pointer (hover) and the element with
// keyboard focus.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
)

// ErrAlreadyStarted is returned by Start on a running source.
var ErrAlreadyStarted = errors.New("source already started")

// Source is a background watcher. While started it delivers elements on
// Events; after Stop returns nothing more is delivered.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Events() <-chan automation.Element
}

// probeFunc reads the current element of interest.
type probeFunc func(ctx context.Context) (automation.Element, error)

// poller drives a probe on a ticker and delivers changes to a Latest slot.
type poller struct {
	name     string
	interval time.Duration
	probe    probeFunc
	equal    func(a, b automation.Element) bool
	logger   *logrus.Entry
	out      *Latest[automation.Element]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(name string, interval time.Duration, probe probeFunc, facade automation.Facade, logger *logrus.Entry) *poller {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &poller{
		name:     name,
		interval: interval,
		probe:    probe,
		equal:    facade.Equal,
		logger:   logger.WithField("source", name),
		out:      NewLatest[automation.Element](),
	}
}

func (p *poller) Name() string { return p.name }

func (p *poller) Events() <-chan automation.Element { return p.out.C() }

func (p *poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.loop(ctx, done)
	p.logger.Debug("Observer started")
	return nil
}

// Stop blocks until the polling goroutine exited and drops an undelivered
// element, so no event is received after Stop returns.
func (p *poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.out.Drain()
	p.logger.Debug("Observer stopped")
}

func (p *poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last automation.Element
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		el, err := p.probe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.WithError(err).Debug("Probe failed")
			}
			continue
		}
		if el == nil || (last != nil && p.equal(last, el)) {
			continue
		}
		last = el
		// Deliver only while still running; Stop waits for this goroutine.
		if ctx.Err() != nil {
			return
		}
		p.out.Put(el)
	}
}

// HoverObserver reports the element under the pointer whenever it changes.
type HoverObserver struct {
	*poller
}

// NewHoverObserver polls probe every interval.
func NewHoverObserver(probe automation.HoverProbe, facade automation.Facade, interval time.Duration, logger *logrus.Entry) *HoverObserver {
	return &HoverObserver{newPoller("hover", interval, probe.ElementUnderPointer, facade, logger)}
}

// FocusObserver reports the focused element whenever it changes.
type FocusObserver struct {
	*poller
}

// NewFocusObserver polls probe every interval.
func NewFocusObserver(probe automation.FocusProbe, facade automation.Facade, interval time.Duration, logger *logrus.Entry) *FocusObserver {
	return &FocusObserver{newPoller("focus", interval, probe.FocusedElement, facade, logger)}
}
