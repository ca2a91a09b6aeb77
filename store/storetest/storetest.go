// Package storetest holds the behavioral checks every [store.Store]
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/MrEthical07/goVault/store"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the store contract. s must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("values", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.Put(ctx, "user:1", []byte("first")))
		got, err := s.Get(ctx, "user:1")
		require.NoError(t, err)
		require.Equal(t, []byte("first"), got)

		require.NoError(t, s.Put(ctx, "user:1", []byte("second")))
		got, err = s.Get(ctx, "user:1")
		require.NoError(t, err)
		require.Equal(t, []byte("second"), got)

		require.NoError(t, s.Delete(ctx, "user:1", "never-existed"))
		_, err = s.Get(ctx, "user:1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("lists", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Append(ctx, "events:u1", []byte(fmt.Sprintf("e%d", i))))
		}

		all, err := s.List(ctx, "events:u1", 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		require.Equal(t, []byte("e4"), all[0])
		require.Equal(t, []byte("e0"), all[4])

		recent, err := s.List(ctx, "events:u1", 2)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("e4"), []byte("e3")}, recent)

		empty, err := s.List(ctx, "events:nobody", 10)
		require.NoError(t, err)
		require.Empty(t, empty)

		require.NoError(t, s.Delete(ctx, "events:u1"))
		all, err = s.List(ctx, "events:u1", 0)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("sets", func(t *testing.T) {
		require.NoError(t, s.AddMember(ctx, "sessions:u1", "a"))
		require.NoError(t, s.AddMember(ctx, "sessions:u1", "b"))
		require.NoError(t, s.AddMember(ctx, "sessions:u1", "a"))

		members, err := s.Members(ctx, "sessions:u1")
		require.NoError(t, err)
		sort.Strings(members)
		require.Equal(t, []string{"a", "b"}, members)

		require.NoError(t, s.RemoveMember(ctx, "sessions:u1", "a"))
		require.NoError(t, s.RemoveMember(ctx, "sessions:u1", "zzz"))
		members, err = s.Members(ctx, "sessions:u1")
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, members)

		require.NoError(t, s.Delete(ctx, "sessions:u1"))
		members, err = s.Members(ctx, "sessions:u1")
		require.NoError(t, err)
		require.Empty(t, members)
	})
}
