package cache

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fixtureSize matches the byte length of the shakespeare.sqlite.lzma dataset.
const fixtureSize = 1329828

const fixtureName = "shakespeare.sqlite.lzma"

func fixturePayload() []byte {
	buf := make([]byte, fixtureSize)
	for i := range buf {
		buf[i] = byte(i*7 + i/251)
	}
	return buf
}

// upstreamStub serves a fixed payload and counts GET requests.
type upstreamStub struct {
	*httptest.Server
	payload  []byte
	requests atomic.Int64
	status   atomic.Int64
	truncate atomic.Bool
}

func newUpstreamStub(t *testing.T, payload []byte) *upstreamStub {
	t.Helper()
	stub := &upstreamStub{payload: payload}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.serve))
	t.Cleanup(stub.Close)
	return stub
}

func (s *upstreamStub) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if status := s.status.Load(); status != 0 {
		http.Error(w, "stubbed failure", int(status))
		return
	}
	if s.truncate.Load() {
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.payload[:100])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}
	http.ServeContent(w, r, fixtureName, time.Time{}, bytes.NewReader(s.payload))
}

func (s *upstreamStub) source() string {
	return s.URL + "/tff-datasets-public/" + fixtureName
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func requireFileContent(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, len(want), "file length mismatch")
	require.Equal(t, digest.FromBytes(want), digest.FromBytes(got), "file digest mismatch")
}
