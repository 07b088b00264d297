// Package storage defines the per-instance context store the flow handlers
// coordinate through. It is the only shared mutable resource of the core:
// (a) key/value payloads scoped to a process instance and (b) token tracking
// records used by parallel-gateway joins and the conditional/default
// sequence fallback.
package storage

import (
	"context"
	"errors"

	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
)

var ErrNotFound = errors.New("not found")

// TokenRef identifies the logical position a tracking record belongs to.
type TokenRef struct {
	ProcessID  string
	InstanceID string
	ElementID  string
}

// TokenEntry is one persisted token with its monotonically increasing store
// stamp. Stamps order concurrent arrivals at the same position.
type TokenEntry struct {
	Stamp int64
	Token runtime.Token
}

// TokenRecord is the accumulated set of tokens persisted for one position.
// Last is the stamp of the most recently stored entry; the optimistic join
// check compares it against the writer's own stamp.
type TokenRecord struct {
	Last    int64
	Entries []TokenEntry
}

// Contains reports whether any persisted token carries the given
// lastElementId provenance.
func (r TokenRecord) Contains(lastElementID string) bool {
	for _, e := range r.Entries {
		if e.Token.Attributes.LastElementID == lastElementID {
			return true
		}
	}
	return false
}

// Store is the contract of the external context/key-value collaborator.
type Store interface {
	// Add persists a value under the given key in the instance context,
	// overwriting any prior value.
	Add(ctx context.Context, instanceID string, key string, value any) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, instanceID string, key string) (any, error)

	// GetKeys returns the values for all given keys. Missing keys are
	// absent from the result rather than an error.
	GetKeys(ctx context.Context, instanceID string, keys []string) (map[string]any, error)

	// SaveToken appends a token to the tracking record of ref and returns
	// the record snapshot as of immediately after the append. The append
	// and the snapshot are atomic, which makes exact join completion
	// possible; callers preserving the original optimistic protocol do a
	// separate GetTokens read instead.
	SaveToken(ctx context.Context, ref TokenRef, token runtime.Token) (TokenRecord, error)

	// GetTokens returns the current tracking record of ref. A position
	// that never saw a token yields an empty record, not an error.
	GetTokens(ctx context.Context, ref TokenRef) (TokenRecord, error)
}
