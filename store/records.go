package store

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// RecordOp is what a typed mutate decided to do with the record.
type RecordOp int

const (
	// OpWrite persists the (possibly modified) record.
	OpWrite RecordOp = iota
	// OpSkip leaves the record exactly as it was read.
	OpSkip
	// OpDelete removes the record.
	OpDelete
)

// GetRecord reads and decodes the record at key. found is false when the
// record does not exist.
func GetRecord[T any](ctx context.Context, s Store, key Key) (*T, bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	rec := new(T)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, false, opError("decode", key, err)
	}
	return rec, true, nil
}

// PutRecord encodes and writes rec at key.
func PutRecord[T any](ctx context.Context, s Store, key Key, rec *T) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return opError("encode", key, err)
	}
	return s.Put(ctx, key, raw)
}

// MutateRecord runs fn over the decoded record as one serialized unit. When
// the record is absent fn receives a zero T with found=false. A record that
// exists but cannot be decoded aborts the mutation; use
// MutateRecordLenient where a fresh default is semantically valid.
func MutateRecord[T any](ctx context.Context, s Store, key Key, fn func(rec *T, found bool) (RecordOp, error)) error {
	return mutateRecord(ctx, s, key, fn, false)
}

// MutateRecordLenient is MutateRecord, except an undecodable stored value
// is treated as absent so fn can rebuild it from a default.
func MutateRecordLenient[T any](ctx context.Context, s Store, key Key, fn func(rec *T, found bool) (RecordOp, error)) error {
	return mutateRecord(ctx, s, key, fn, true)
}

func mutateRecord[T any](ctx context.Context, s Store, key Key, fn func(rec *T, found bool) (RecordOp, error), lenient bool) error {
	return s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
		rec := new(T)
		if found {
			if err := json.Unmarshal(current, rec); err != nil {
				if !lenient {
					return nil, opError("decode", key, err)
				}
				log.WithFields(log.Fields{
					"key":   key.String(),
					"error": err,
				}).Warn("Discarding undecodable record")
				rec = new(T)
				found = false
			}
		}
		op, err := fn(rec, found)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpSkip:
			return nil, Skip
		case OpDelete:
			return nil, nil
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, opError("encode", key, err)
		}
		return raw, nil
	})
}

// MutatePair runs fn over two decoded records as one atomic unit, the
// transfer primitive. Undecodable records are treated leniently like
// MutateRecordLenient. On success both records are written.
func MutatePair[T any](ctx context.Context, s Store, a, b Key, fn func(ra, rb *T, foundA, foundB bool) error) error {
	return s.MutateMany(ctx, []Key{a, b}, func(current [][]byte, found []bool) ([][]byte, error) {
		recs := [2]*T{new(T), new(T)}
		ok := [2]bool{found[0], found[1]}
		keys := [2]Key{a, b}
		for i := range recs {
			if !ok[i] {
				continue
			}
			if err := json.Unmarshal(current[i], recs[i]); err != nil {
				log.WithFields(log.Fields{
					"key":   keys[i].String(),
					"error": err,
				}).Warn("Discarding undecodable record")
				recs[i] = new(T)
				ok[i] = false
			}
		}
		if err := fn(recs[0], recs[1], ok[0], ok[1]); err != nil {
			return nil, err
		}
		out := make([][]byte, 2)
		for i := range recs {
			raw, err := json.Marshal(recs[i])
			if err != nil {
				return nil, opError("encode", keys[i], err)
			}
			out[i] = raw
		}
		return out, nil
	})
}
