package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	runStoreConformance(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	runStoreConformance(t, openTempSQLite)
}

func openTempSQLite(t *testing.T) Store {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// runStoreConformance checks the Store contract against one medium.
func runStoreConformance(t *testing.T, open func(t *testing.T) Store) {
	s := open(t)
	ctx := context.Background()

	t.Run("get put delete roundtrip", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "100")

		_, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.Put(ctx, key, []byte(`{"balance":5}`)))
		value, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.JSONEq(t, `{"balance":5}`, string(value))

		require.NoError(t, s.Delete(ctx, key))
		_, found, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)

		// Deleting an absent record is fine.
		require.NoError(t, s.Delete(ctx, key))
	})

	t.Run("mutate creates on absent", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "101")
		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			require.False(t, found)
			require.Nil(t, current)
			return []byte("1"), nil
		})
		require.NoError(t, err)

		value, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "1", string(value))
	})

	t.Run("mutate reads current value", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "102")
		require.NoError(t, s.Put(ctx, key, []byte("10")))

		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			require.True(t, found)
			n, err := strconv.Atoi(string(current))
			require.NoError(t, err)
			return []byte(strconv.Itoa(n + 5)), nil
		})
		require.NoError(t, err)

		value, _, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "15", string(value))
	})

	t.Run("mutate nil deletes", func(t *testing.T) {
		key := NewKey(KindSession, "1", "200")
		require.NoError(t, s.Put(ctx, key, []byte("x")))

		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)

		_, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("mutate nil on absent is a no-op", func(t *testing.T) {
		key := NewKey(KindSession, "1", "201")
		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)

		_, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("mutate skip leaves record alone", func(t *testing.T) {
		key := NewKey(KindGuild, "5")
		require.NoError(t, s.Put(ctx, key, []byte("keep")))

		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			return nil, Skip
		})
		require.NoError(t, err)

		value, found, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "keep", string(value))
	})

	t.Run("mutate error aborts without writing", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "103")
		require.NoError(t, s.Put(ctx, key, []byte("before")))

		boom := errors.New("boom")
		err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
			return []byte("after"), boom
		})
		require.ErrorIs(t, err, boom)

		value, _, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "before", string(value))
	})

	t.Run("concurrent mutates on one key serialize", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "104")
		require.NoError(t, s.Put(ctx, key, []byte("0")))

		const workers = 50
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
					n, err := strconv.Atoi(string(current))
					if err != nil {
						return nil, err
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		value, _, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers), string(value))
	})

	t.Run("concurrent opposing pair mutates do not deadlock", func(t *testing.T) {
		a := NewKey(KindAccount, "1", "105")
		b := NewKey(KindAccount, "1", "106")
		require.NoError(t, s.Put(ctx, a, []byte("100")))
		require.NoError(t, s.Put(ctx, b, []byte("100")))

		move := func(from, to []Key) {
			err := s.MutateMany(ctx, from, func(current [][]byte, found []bool) ([][]byte, error) {
				src, err := strconv.Atoi(string(current[0]))
				if err != nil {
					return nil, err
				}
				dst, err := strconv.Atoi(string(current[1]))
				if err != nil {
					return nil, err
				}
				return [][]byte{
					[]byte(strconv.Itoa(src - 1)),
					[]byte(strconv.Itoa(dst + 1)),
				}, nil
			})
			assert.NoError(t, err)
		}

		const rounds = 25
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				move([]Key{a, b}, nil)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				move([]Key{b, a}, nil)
			}
		}()
		wg.Wait()

		va, _, err := s.Get(ctx, a)
		require.NoError(t, err)
		vb, _, err := s.Get(ctx, b)
		require.NoError(t, err)
		na, _ := strconv.Atoi(string(va))
		nb, _ := strconv.Atoi(string(vb))
		assert.Equal(t, 200, na+nb, "pair total must be conserved")
	})

	t.Run("mutate many rejects duplicate keys", func(t *testing.T) {
		key := NewKey(KindAccount, "1", "107")
		err := s.MutateMany(ctx, []Key{key, key}, func(current [][]byte, found []bool) ([][]byte, error) {
			t.Fatal("fn must not run for invalid key sets")
			return nil, nil
		})
		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
	})

	t.Run("list filters by kind and prefix", func(t *testing.T) {
		for guild := 1; guild <= 2; guild++ {
			for user := 0; user < 3; user++ {
				key := NewKey(KindGiveaway, strconv.Itoa(guild+300), strconv.Itoa(user))
				require.NoError(t, s.Put(ctx, key, []byte(fmt.Sprintf(`{"g":%d,"u":%d}`, guild, user))))
			}
		}

		all, err := s.List(ctx, KindGiveaway)
		require.NoError(t, err)
		assert.Len(t, all, 6)

		guild1, err := s.List(ctx, KindGiveaway, "301")
		require.NoError(t, err)
		require.Len(t, guild1, 3)
		for _, e := range guild1 {
			assert.Equal(t, "301", e.Key.Parts[0])
		}

		none, err := s.List(ctx, KindGiveaway, "999")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	key := NewKey(KindAccount, "9", "42")
	require.NoError(t, s.Put(ctx, key, []byte(`{"balance":77}`)))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, found, err := reopened.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"balance":77}`, string(value))
}

func TestMemoryWriteFailureLeavesPriorValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	key := NewKey(KindAccount, "1", "1")
	require.NoError(t, m.Put(ctx, key, []byte("before")))

	m.SetFailWrite(errors.New("disk full"))
	err := m.Mutate(ctx, key, func(current []byte, found bool) ([]byte, error) {
		return []byte("after"), nil
	})
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)

	m.SetFailWrite(nil)
	value, _, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "before", string(value), "failed write must not change the record")
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	type counter struct {
		N int `json:"n"`
	}
	key := NewKey(KindGuild, "7")

	t.Run("mutate record builds default when absent", func(t *testing.T) {
		err := MutateRecord(ctx, s, key, func(rec *counter, found bool) (RecordOp, error) {
			require.False(t, found)
			rec.N = 3
			return OpWrite, nil
		})
		require.NoError(t, err)

		rec, found, err := GetRecord[counter](ctx, s, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 3, rec.N)
	})

	t.Run("op skip leaves record", func(t *testing.T) {
		err := MutateRecord(ctx, s, key, func(rec *counter, found bool) (RecordOp, error) {
			rec.N = 99
			return OpSkip, nil
		})
		require.NoError(t, err)

		rec, _, err := GetRecord[counter](ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, 3, rec.N)
	})

	t.Run("op delete removes record", func(t *testing.T) {
		err := MutateRecord(ctx, s, key, func(rec *counter, found bool) (RecordOp, error) {
			return OpDelete, nil
		})
		require.NoError(t, err)

		_, found, err := GetRecord[counter](ctx, s, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("strict mutate surfaces undecodable records", func(t *testing.T) {
		bad := NewKey(KindGuild, "8")
		require.NoError(t, s.Put(ctx, bad, []byte("not json")))

		err := MutateRecord(ctx, s, bad, func(rec *counter, found bool) (RecordOp, error) {
			t.Fatal("fn must not run on decode failure")
			return OpSkip, nil
		})
		var opErr *OpError
		require.ErrorAs(t, err, &opErr)
	})

	t.Run("lenient mutate rebuilds undecodable records", func(t *testing.T) {
		bad := NewKey(KindGuild, "9")
		require.NoError(t, s.Put(ctx, bad, []byte("not json")))

		err := MutateRecordLenient(ctx, s, bad, func(rec *counter, found bool) (RecordOp, error) {
			require.False(t, found, "corrupt record must present as absent")
			rec.N = 1
			return OpWrite, nil
		})
		require.NoError(t, err)

		rec, found, err := GetRecord[counter](ctx, s, bad)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 1, rec.N)
	})

	t.Run("mutate pair writes both records", func(t *testing.T) {
		a := NewKey(KindAccount, "1", "1")
		b := NewKey(KindAccount, "1", "2")
		require.NoError(t, PutRecord(ctx, s, a, &counter{N: 10}))

		err := MutatePair(ctx, s, a, b, func(ra, rb *counter, foundA, foundB bool) error {
			require.True(t, foundA)
			require.False(t, foundB)
			ra.N -= 4
			rb.N += 4
			return nil
		})
		require.NoError(t, err)

		ra, _, err := GetRecord[counter](ctx, s, a)
		require.NoError(t, err)
		rb, _, err := GetRecord[counter](ctx, s, b)
		require.NoError(t, err)
		assert.Equal(t, 6, ra.N)
		assert.Equal(t, 4, rb.N)
	})

	t.Run("mutate pair error writes neither", func(t *testing.T) {
		a := NewKey(KindAccount, "2", "1")
		b := NewKey(KindAccount, "2", "2")
		require.NoError(t, PutRecord(ctx, s, a, &counter{N: 10}))
		require.NoError(t, PutRecord(ctx, s, b, &counter{N: 20}))

		boom := errors.New("boom")
		err := MutatePair(ctx, s, a, b, func(ra, rb *counter, foundA, foundB bool) error {
			ra.N = 0
			rb.N = 0
			return boom
		})
		require.ErrorIs(t, err, boom)

		ra, _, err := GetRecord[counter](ctx, s, a)
		require.NoError(t, err)
		rb, _, err := GetRecord[counter](ctx, s, b)
		require.NoError(t, err)
		assert.Equal(t, 10, ra.N)
		assert.Equal(t, 20, rb.N)
	})
}
