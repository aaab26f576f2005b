package keystore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateIfNotExists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys", "seed")
	seed := []byte{1, 2, 3, 4}
	calls := 0

	create := func() ([]byte, error) {
		calls++

		return seed, nil
	}

	got, err := CreateIfNotExists(path, create)
	require.NoError(t, err)
	require.Equal(t, seed, got)

	// second call reads the file instead of generating
	got, err = CreateIfNotExists(path, create)
	require.NoError(t, err)
	require.Equal(t, seed, got)
	require.Equal(t, 1, calls)
}

func TestCreateIfNotExists_GeneratorFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed")

	_, err := CreateIfNotExists(path, func() ([]byte, error) {
		return nil, errors.New("no entropy")
	})
	require.ErrorContains(t, err, "no entropy")

	_, err = ReadSeed(path)
	require.Error(t, err)
}
