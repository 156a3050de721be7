package transfer

import "sync"

// AccountRegistry tracks which account ids currently have an in-flight balance
// mutation. It is the only synchronization point between transfers: it
// serializes stages on the same account while stages on disjoint accounts run
// fully in parallel (there is deliberately no lock shared by all accounts).
type AccountRegistry struct {
	busy sync.Map // account id -> struct{}
}

// NewAccountRegistry creates an empty registry.
func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{}
}

// TryAcquire marks the account busy and returns true, or returns false with no
// side effect if another stage already holds it. The test-and-mark is a single
// atomic insert-if-absent; a separate contains-then-add would race.
func (r *AccountRegistry) TryAcquire(accountID string) bool {
	_, loaded := r.busy.LoadOrStore(accountID, struct{}{})
	return !loaded
}

// Release clears the busy mark, allowing a future TryAcquire to succeed.
func (r *AccountRegistry) Release(accountID string) {
	r.busy.Delete(accountID)
}
