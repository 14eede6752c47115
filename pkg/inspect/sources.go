package inspect

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mattsolo1/grove-inspect/pkg/observe"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// Register makes src known to the session without starting it. Registering
// a second source under the same name replaces the first, which is stopped.
func (s *Session) Register(src observe.Source) {
	s.mu.Lock()
	old := s.sources[src.Name()]
	s.sources[src.Name()] = &attachment{src: src}
	var stop, done chan struct{}
	if old != nil {
		stop, done = old.stop, old.done
		old.stop, old.done = nil, nil
	}
	s.mu.Unlock()
	if old != nil {
		stopPump(old.src, stop, done)
	}
}

// Attach registers src and starts forwarding its events as reports.
func (s *Session) Attach(ctx context.Context, src observe.Source) error {
	s.Register(src)
	return s.SetTracking(ctx, src.Name(), true)
}

// Detach stops a source. No report from it is accepted once Detach returns.
func (s *Session) Detach(ctx context.Context, name string) error {
	return s.SetTracking(ctx, name, false)
}

// SetTracking starts or stops a registered source and publishes the change.
func (s *Session) SetTracking(ctx context.Context, name string, on bool) error {
	s.mu.Lock()
	a, ok := s.sources[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	base := s.baseCtx
	if on && a.stop == nil {
		if err := a.src.Start(base); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("start %s: %w", name, err)
		}
		a.stop = make(chan struct{})
		a.done = make(chan struct{})
		go s.pump(a.src, a.stop, a.done)
		s.mu.Unlock()
		s.logger.WithField("source", name).Info("Tracking enabled")
	} else if !on && a.stop != nil {
		stop, done := a.stop, a.done
		a.stop, a.done = nil, nil
		s.mu.Unlock()
		stopPump(a.src, stop, done)
		s.logger.WithField("source", name).Info("Tracking disabled")
	} else {
		s.mu.Unlock()
		return nil
	}
	if !s.running.Load() {
		return nil
	}
	err := s.Do(ctx, func(context.Context, *tree.Model) error {
		s.dirty = true
		return nil
	})
	if errors.Is(err, ErrClosed) {
		// Nothing left to publish to.
		return nil
	}
	return err
}

// ToggleTracking flips a source and returns its new state.
func (s *Session) ToggleTracking(ctx context.Context, name string) (bool, error) {
	on := !s.Tracking()[name]
	return on, s.SetTracking(ctx, name, on)
}

// Tracking reports which registered sources are running.
func (s *Session) Tracking() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.sources))
	for name, a := range s.sources {
		out[name] = a.src.Running()
	}
	return out
}

// Sources returns the registered source names in order.
func (s *Session) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) pump(src observe.Source, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case el := <-src.Events():
			s.Report(src.Name(), el)
		}
	}
}

// stopPump stops the source first, so nothing is left in flight once the
// pump has exited.
func stopPump(src observe.Source, stop, done chan struct{}) {
	src.Stop()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (s *Session) detachAll() {
	type running struct {
		src        observe.Source
		stop, done chan struct{}
	}
	s.mu.Lock()
	var stops []running
	for _, a := range s.sources {
		if a.stop != nil {
			stops = append(stops, running{a.src, a.stop, a.done})
			a.stop, a.done = nil, nil
		}
	}
	s.mu.Unlock()
	for _, r := range stops {
		stopPump(r.src, r.stop, r.done)
	}
}
