// Package store is the engine's single persistence contract: keyed records
// with a per-key serialized read-modify-write primitive. Every ledger and
// session operation is exactly one Mutate (or MutateMany for transfers), so
// check-and-apply sequences cannot interleave on the same key while
// unrelated keys proceed in parallel.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record kinds.
const (
	KindAccount  = "account"
	KindGuild    = "guild"
	KindSession  = "session"
	KindGiveaway = "giveaway"
)

// Key identifies one record: an entity kind plus its identifying tuple
// (guild+user for an account, guild for guild config, guild+channel for a
// session, guild+message for a giveaway).
type Key struct {
	Kind  string
	Parts []string
}

// NewKey builds a key from a kind and identifying parts.
func NewKey(kind string, parts ...string) Key {
	return Key{Kind: kind, Parts: parts}
}

// ID joins the identifying parts into the record identifier.
func (k Key) ID() string {
	return strings.Join(k.Parts, "/")
}

func (k Key) String() string {
	return k.Kind + ":" + k.ID()
}

// Entry is one listed record.
type Entry struct {
	Key   Key
	Value []byte
}

// Skip lets a MutateFunc conclude without writing anything, in the manner
// of fs.SkipDir: Mutate returns nil and the record is left exactly as read.
var Skip = errors.New("store: skip write")

// MutateFunc transforms the current value of a record. found is false when
// the record does not exist, in which case current is nil. Returning nil
// bytes deletes the record (a no-op when it did not exist); returning Skip
// as the error commits nothing and reports success; any other error aborts
// the mutation without writing.
type MutateFunc func(current []byte, found bool) ([]byte, error)

// MutateManyFunc is MutateFunc over several records at once; slices are
// aligned with the keys passed to MutateMany.
type MutateManyFunc func(current [][]byte, found []bool) ([][]byte, error)

// Store is the persistence contract shared by every medium. Concurrent
// Mutate calls on the same key never interleave; calls on different keys
// proceed independently. A failed write leaves the prior value intact and
// surfaces an *OpError.
type Store interface {
	// Get returns the record's value, or found=false when absent.
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	// Put writes the record unconditionally.
	Put(ctx context.Context, key Key, value []byte) error
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, key Key) error
	// Mutate runs fn over the record as a single serialized unit.
	Mutate(ctx context.Context, key Key, fn MutateFunc) error
	// MutateMany runs fn over several distinct keys as one atomic unit,
	// acquiring the per-key serialization of every key involved.
	MutateMany(ctx context.Context, keys []Key, fn MutateManyFunc) error
	// List returns every record of a kind, optionally narrowed to those
	// whose identifier starts with the given leading parts.
	List(ctx context.Context, kind string, prefix ...string) ([]Entry, error)
	Close() error
}

// OpError reports a failure of the persistence medium.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, key Key, err error) *OpError {
	return &OpError{Op: op, Key: key.String(), Err: err}
}

// distinctKeys validates a MutateMany key set: at least one key, no
// duplicates.
func distinctKeys(keys []Key) error {
	if len(keys) == 0 {
		return errors.New("no keys")
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		id := k.String()
		if seen[id] {
			return fmt.Errorf("duplicate key %s", id)
		}
		seen[id] = true
	}
	return nil
}

// matchesPrefix reports whether id falls under the identifier prefix formed
// by parts (an exact match or a parent path).
func matchesPrefix(id string, parts []string) bool {
	if len(parts) == 0 {
		return true
	}
	prefix := strings.Join(parts, "/")
	return id == prefix || strings.HasPrefix(id, prefix+"/")
}

func splitID(id string) []string {
	return strings.Split(id, "/")
}
