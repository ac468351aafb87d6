package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Store event suffixes, appended to "store.<name>.".
const (
	StoreUpdated = "updated"
	StoreReset   = "reset"
	StoreFailed  = "failed"
)

// Event kinds outside the store namespace.
const (
	KindActionSucceeded   = "action.succeeded"
	KindActionFailed      = "action.failed"
	KindAvailabilitySaved = "availability.saved"
	KindAvailabilityReset = "availability.reset"
	KindFeedViewed        = "readstate.viewed"
)

// StoreKind returns the event kind for a store lifecycle event, e.g.
// "store.jobs.updated".
func StoreKind(store, suffix string) string {
	return "store." + store + "." + suffix
}

// StoreNamespace returns the prefix matching every event of one store.
func StoreNamespace(store string) string {
	return "store." + store + "."
}
