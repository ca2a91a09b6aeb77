package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/goVault/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestSQLiteConformance(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "user:1", []byte("alice")))
	require.NoError(t, s.Append(ctx, "events:1", []byte("created")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "user:1")
	require.NoError(t, err)
	require.Equal(t, []byte("alice"), v)

	events, err := s.List(ctx, "events:1", 0)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("created")}, events)
}
