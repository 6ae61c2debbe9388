package bridge

import "sync"

// Transport labels which adapter surface produced an observation.
type Transport string

const (
	TransportMCP   Transport = "mcp"
	TransportWebUI Transport = "webui"
)

// DispatchObservation captures one tool dispatch outcome.
type DispatchObservation struct {
	Tool       string
	Transport  Transport
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// ResourceObservation captures one resource read outcome.
type ResourceObservation struct {
	URI        string
	Transport  Transport
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// Observer receives bridge-level observability events. Observers must
// not block: they run inline on the dispatch path.
type Observer interface {
	ObserveDispatch(observation DispatchObservation)
	ObserveResource(observation ResourceObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(DispatchObservation) {}
func (noopObserver) ObserveResource(ResourceObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide bridge observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func emitDispatchObservation(observation DispatchObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveDispatch(observation)
}

func emitResourceObservation(observation ResourceObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveResource(observation)
}

type multiObserver struct {
	observers []Observer
}

// MultiObserver fans events out to each non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	kept := make([]Observer, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			kept = append(kept, observer)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &multiObserver{observers: kept}
}

func (m *multiObserver) ObserveDispatch(observation DispatchObservation) {
	for _, observer := range m.observers {
		observer.ObserveDispatch(observation)
	}
}

func (m *multiObserver) ObserveResource(observation ResourceObservation) {
	for _, observer := range m.observers {
		observer.ObserveResource(observation)
	}
}
