package engine

import "github.com/scrypster/companion/pkg/types"

// Notifier receives change events after a mutation has been persisted.
// Implementations must not block.
type Notifier interface {
	Notify(event types.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(types.Event)

// Notify calls f(event).
func (f NotifierFunc) Notify(event types.Event) { f(event) }

// MultiNotifier fans an event out to several notifiers in order.
type MultiNotifier []Notifier

// Notify forwards the event to every non-nil notifier.
func (m MultiNotifier) Notify(event types.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(event)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(types.Event) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
