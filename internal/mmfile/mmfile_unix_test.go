//go:build unix

package mmfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesAndGrowsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phys.img")

	r, err := Open(path, 8192)
	require.NoError(t, err)
	require.True(t, r.Persistent())
	require.Equal(t, 8192, r.Len())

	copy(r.Bytes()[4096:], []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, r.FlushRange(4096, 4096))
	require.NoError(t, r.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(8192), st.Size())

	// Reopen keeps contents
	r, err = Open(path, 8192)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, r.Bytes()[4096:4100])
}

func TestOpenAnonymous(t *testing.T) {
	r, err := Open("", 4096)
	require.NoError(t, err)
	require.False(t, r.Persistent())
	for _, b := range r.Bytes() {
		require.Zero(t, b)
	}
	require.NoError(t, r.FlushRange(0, 4096))
	require.NoError(t, r.Close())
	// Double close is a no-op
	require.NoError(t, r.Close())
}

func TestOpenRejectsBadSize(t *testing.T) {
	_, err := Open("", 0)
	require.Error(t, err)
}

func TestFlushRangeBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phys.img")
	r, err := Open(path, 4096)
	require.NoError(t, err)
	defer r.Close()

	require.Error(t, r.FlushRange(0, 8192))
	require.Error(t, r.FlushRange(-1, 1))
}
