package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasename(t *testing.T) {
	testCases := []struct {
		name    string
		source  string
		want    string
		wantErr bool
	}{
		{"plain", "https://storage.googleapis.com/tff-datasets-public/shakespeare.sqlite.lzma", "shakespeare.sqlite.lzma", false},
		{"query ignored", "https://example.com/data/emnist.tar.bz2?token=abc#frag", "emnist.tar.bz2", false},
		{"trailing dot segments", "https://example.com/a/b/../c.bin", "c.bin", false},
		{"escaped slash kept", "https://example.com/v1%2Fdata.bin", "v1%2Fdata.bin", false},
		{"escaped space kept", "https://example.com/my%20data.bin", "my%20data.bin", false},
		{"trailing slash", "https://example.com/data.bin/", "", true},
		{"dot element", "https://example.com/data/..", "", true},
		{"no path", "https://example.com", "", true},
		{"root path", "https://example.com/", "", true},
		{"empty", "", "", true},
		{"partial suffix", "https://example.com/c.bin.partial", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Basename(tc.source)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/home/alice", ".cache", "fedjax"), DefaultDir("/home/alice", ""))
	assert.Equal(t, filepath.Join("/home/alice", ".cache", "custom"), DefaultDir("/home/alice", "custom"))
}

func TestResolveDirKeepsExplicitDir(t *testing.T) {
	dir, err := ResolveDir("/tmp/x/../cache", "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cache", dir)
}

func TestPaths(t *testing.T) {
	finalPath, partialPath, err := Paths("https://example.com/x/y.bin", "/cache")
	require.NoError(t, err)
	assert.Equal(t, "/cache/y.bin", finalPath)
	assert.Equal(t, "/cache/y.bin.partial", partialPath)
}

func TestNewChecksum(t *testing.T) {
	c, err := NewChecksum("d3d11fceb9e105439ac6f4d52af6efafed5a2a1e1eb24c5bd2dd54ced242f5c4", 1329828)
	require.NoError(t, err)
	assert.Equal(t, "sha256:d3d11fceb9e105439ac6f4d52af6efafed5a2a1e1eb24c5bd2dd54ced242f5c4", c.Digest.String())
	assert.Equal(t, int64(1329828), c.Size)

	_, err = NewChecksum("d3d11f", 0)
	assert.ErrorIs(t, err, ErrInvalidChecksum)

	c, err = NewChecksum("", 10)
	require.NoError(t, err)
	assert.False(t, c.IsZero())
	assert.True(t, Checksum{}.IsZero())
}
