package observe

// Latest is a single-slot mailbox: Put never blocks and replaces a value
// that was not received yet, so a slow consumer only ever sees the most
// recent one.
type Latest[T any] struct {
	ch chan T
}

// NewLatest creates an empty slot.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Put stores v, discarding any undelivered value.
func (l *Latest[T]) Put(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// C is the receive side of the slot.
func (l *Latest[T]) C() <-chan T { return l.ch }

// Drain discards an undelivered value, if any.
func (l *Latest[T]) Drain() {
	select {
	case <-l.ch:
	default:
	}
}
