package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options are passed to a backend factory when an automation type is opened.
type Options struct {
	// Source is backend specific, e.g. the definition file of the simulated
	// desktop. Empty means the backend default.
	Source string
	// Watch asks the backend to follow live changes of Source when it can.
	Watch  bool
	Logger *logrus.Entry
}

// Factory opens a backend. The context bounds background work the backend
// starts, such as file watching.
type Factory func(ctx context.Context, opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under the given automation type name.
// It panics when the name is registered twice.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("automation: Register called twice for " + kind)
	}
	registry[kind] = factory
}

// Open opens the backend registered for the automation type.
func Open(ctx context.Context, kind string, opts Options) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown automation type %q (available: %v)", kind, Kinds())
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.New())
	}
	return factory(ctx, opts)
}

// Kinds lists the registered automation types in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
