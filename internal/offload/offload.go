// Package offload defines the bus's optional compute-offload hook: a
// collaborator a component can hand bulk work to (decompression, checksum
// verification, batch transforms) instead of doing it inline. It exists so
// the health overlay's GPU fault kind and its FALLBACK recovery action have
// a concrete collaborator to fall back to — the same role the teacher's
// DiscardBackend plays as an optional capability a Backend may or may not
// implement (internal/interfaces/backend.go).
package offload

// Engine is the capability a Bus can use to offload a batch of payloads to
// an accelerator. It is entirely optional; the Non-goals explicitly
// exclude a real GPU/accelerator integration, so NoOpEngine is the Bus's
// default and every call falls back to inline handling.
type Engine interface {
	// Available reports whether the engine is currently able to accept
	// work. The Bus calls this before attempting an offload and reports a
	// GPU fault if it returns false.
	Available() bool

	// Process offloads data, returning the transformed result. ok is false
	// if the engine could not complete the work, in which case the caller
	// falls back to inline processing.
	Process(data []byte) (result []byte, ok bool)
}

// NoOpEngine is an Engine that is never available, so every caller always
// takes its inline fallback path.
type NoOpEngine struct{}

func (NoOpEngine) Available() bool                     { return false }
func (NoOpEngine) Process(data []byte) ([]byte, bool) { return nil, false }

var _ Engine = NoOpEngine{}
