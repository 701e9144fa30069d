// Package persist defines the bus's optional durability hook. Grounded on
// the teacher's narrow Backend interface (internal/interfaces/backend.go),
// which lets a device plug in a storage implementation without the queue
// runner knowing which one; here the Bus plugs in a durability
// implementation without the reliability overlay knowing which one.
package persist

// Store is the capability a Bus can use to durably record and replay
// messages keyed by their reliability sequence number. It is entirely
// optional — the Non-goals explicitly exclude a durable persistence layer
// — so the zero value the Bus falls back to is NoOpStore.
type Store interface {
	// Persist durably records data under sequence seq. It returns false if
	// the write could not be guaranteed durable.
	Persist(seq uint64, data []byte) bool

	// Recover returns the previously persisted payload for seq, if any.
	Recover(seq uint64) ([]byte, bool)

	// Replay invokes fn for every persisted sequence in [from, to), in
	// order. It returns false if the range could not be fully replayed.
	Replay(from, to uint64, fn func(seq uint64, data []byte)) bool
}

// NoOpStore is a Store that persists nothing and recovers nothing. It is
// the Bus's default, matching the teacher's pattern of an always-present,
// harmless default collaborator (NoOpObserver) rather than a nil check on
// every call site.
type NoOpStore struct{}

func (NoOpStore) Persist(uint64, []byte) bool                            { return true }
func (NoOpStore) Recover(uint64) ([]byte, bool)                          { return nil, false }
func (NoOpStore) Replay(uint64, uint64, func(uint64, []byte)) bool { return true }

var _ Store = NoOpStore{}
