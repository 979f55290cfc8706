package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"acytel/cache"
	"acytel/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAudioCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	putErr  error
}

func newMemoryAudioCache() *memoryAudioCache {
	return &memoryAudioCache{entries: make(map[string][]byte)}
}

func (c *memoryAudioCache) Get(_ context.Context, trackID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[trackID], nil
}

func (c *memoryAudioCache) Put(_ context.Context, trackID string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[trackID] = data
	return nil
}

func (c *memoryAudioCache) Has(_ context.Context, trackID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[trackID]
	return ok, nil
}

var _ cache.AudioCache = (*memoryAudioCache)(nil)

// testBackend stands in for the catalog API and the delivery proxy on one
// httptest server.
type testBackend struct {
	mu           sync.Mutex
	audio        map[string][]byte
	linkCalls    int
	streamCalls  int
	linkStatus   int
	streamStatus int
	sawAuth      string
}

func newTestBackend(audio map[string][]byte) (*testBackend, *httptest.Server) {
	b := &testBackend{
		audio:        audio,
		linkStatus:   http.StatusOK,
		streamStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	mux.HandleFunc("GET /api/tracks", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.sawAuth = r.Header.Get("Authorization")
		b.mu.Unlock()
		var tracks []model.Track
		for id := range b.audio {
			tracks = append(tracks, model.Track{ID: id, Title: "Track " + id})
		}
		json.NewEncoder(w).Encode(tracks)
	})

	mux.HandleFunc("GET /api/tracks/{id}/secure-link", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.linkCalls++
		b.sawAuth = r.Header.Get("Authorization")
		status := b.linkStatus
		b.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		url := fmt.Sprintf("%s/stream?token=tok-%s", server.URL, r.PathValue("id"))
		json.NewEncoder(w).Encode(map[string]string{"url": url})
	})

	mux.HandleFunc("GET /stream", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.streamCalls++
		status := b.streamStatus
		var id string
		if tok := r.URL.Query().Get("token"); len(tok) > 4 {
			id = tok[4:]
		}
		data := b.audio[id]
		b.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write(data)
	})

	return b, server
}

func (b *testBackend) counts() (links, streams int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linkCalls, b.streamCalls
}

func TestFetchTrackCacheMissGoesThroughProxy(t *testing.T) {
	audio := map[string][]byte{"t1": []byte("mp3 frames for t1")}
	backend, server := newTestBackend(audio)
	defer server.Close()

	audioCache := newMemoryAudioCache()
	c := NewStreamClient(server.URL, "user-token", audioCache)

	data, err := c.FetchTrack(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, audio["t1"], data)

	links, streams := backend.counts()
	assert.Equal(t, 1, links)
	assert.Equal(t, 1, streams)
	assert.Equal(t, "Bearer user-token", backend.sawAuth)

	// The slow path writes through, so the copy is now local.
	cached, err := audioCache.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, audio["t1"], cached)
	assert.True(t, c.HasCached(context.Background(), "t1"))
}

func TestFetchTrackCacheHitSkipsNetwork(t *testing.T) {
	backend, server := newTestBackend(map[string][]byte{"t1": []byte("remote copy")})
	defer server.Close()

	audioCache := newMemoryAudioCache()
	require.NoError(t, audioCache.Put(context.Background(), "t1", []byte("local copy")))
	c := NewStreamClient(server.URL, "user-token", audioCache)

	data, err := c.FetchTrack(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []byte("local copy"), data)

	links, streams := backend.counts()
	assert.Zero(t, links, "a cache hit must not mint a token")
	assert.Zero(t, streams)
}

func TestFetchTrackWithoutCache(t *testing.T) {
	audio := map[string][]byte{"t1": []byte("bytes")}
	_, server := newTestBackend(audio)
	defer server.Close()

	c := NewStreamClient(server.URL, "user-token", nil)

	data, err := c.FetchTrack(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, audio["t1"], data)
	assert.False(t, c.HasCached(context.Background(), "t1"))
}

func TestFetchTrackSecureLinkDenied(t *testing.T) {
	backend, server := newTestBackend(map[string][]byte{"t1": []byte("bytes")})
	defer server.Close()
	backend.linkStatus = http.StatusNotFound

	c := NewStreamClient(server.URL, "user-token", nil)

	_, err := c.FetchTrack(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchTrackStreamRejected(t *testing.T) {
	backend, server := newTestBackend(map[string][]byte{"t1": []byte("bytes")})
	defer server.Close()
	backend.streamStatus = http.StatusUnauthorized

	c := NewStreamClient(server.URL, "user-token", nil)

	_, err := c.FetchTrack(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFetchTrackCacheWriteFailureIsNotFatal(t *testing.T) {
	audio := map[string][]byte{"t1": []byte("bytes")}
	_, server := newTestBackend(audio)
	defer server.Close()

	audioCache := newMemoryAudioCache()
	audioCache.putErr = errors.New("cache store down")
	c := NewStreamClient(server.URL, "user-token", audioCache)

	data, err := c.FetchTrack(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, audio["t1"], data)
}

func TestListTracks(t *testing.T) {
	_, server := newTestBackend(map[string][]byte{"t1": []byte("a")})
	defer server.Close()

	c := NewStreamClient(server.URL, "user-token", nil)

	tracks, err := c.ListTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "t1", tracks[0].ID)
}

func TestListTracksServerError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	c := NewStreamClient(failing.URL, "user-token", nil)
	_, err := c.ListTracks(context.Background())
	assert.Error(t, err)
}
