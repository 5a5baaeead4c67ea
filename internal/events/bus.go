// Package events provides the synchronous observer registry used by learning
// sessions, and recorders that persist notifications for analytics.
package events

// Event types emitted by a session.
const (
	SubjectChanged  = "subject_changed"  // payload: subject name (string)
	UnitChanged     = "unit_changed"     // payload: unit index (int)
	TopicChanged    = "topic_changed"    // payload: topic name (string)
	ProgressUpdated = "progress_updated" // payload: progress.UserProgress snapshot
)

// Observer receives state change notifications.
type Observer interface {
	Notify(eventType string, payload any)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(eventType string, payload any)

func (f ObserverFunc) Notify(eventType string, payload any) {
	f(eventType, payload)
}

// ObserverID identifies a registration for RemoveObserver.
type ObserverID uint64

type registration struct {
	id       ObserverID
	observer Observer
}

// Bus calls its observers synchronously, in registration order, once each.
//
// Observers must not call back into the component that owns the Bus while
// being notified. Bus has no locking; the owner serializes access.
type Bus struct {
	nextID    ObserverID
	observers []registration
}

// AddObserver registers o and returns the ID used to remove it.
func (b *Bus) AddObserver(o Observer) ObserverID {
	b.nextID++
	b.observers = append(b.observers, registration{id: b.nextID, observer: o})
	return b.nextID
}

// RemoveObserver unregisters an observer. It reports whether id was registered.
func (b *Bus) RemoveObserver(id ObserverID) bool {
	for i, r := range b.observers {
		if r.id == id {
			// Copy so a Notify in progress keeps iterating its own slice.
			kept := make([]registration, 0, len(b.observers)-1)
			kept = append(kept, b.observers[:i]...)
			b.observers = append(kept, b.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered observers.
func (b *Bus) Len() int {
	return len(b.observers)
}

// Notify delivers an event to every registered observer.
func (b *Bus) Notify(eventType string, payload any) {
	for _, r := range b.observers {
		r.observer.Notify(eventType, payload)
	}
}
