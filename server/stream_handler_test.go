package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"acytel/core/token"
	"acytel/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStreamSecret = "stream-test-secret"

// fakeObjectStore serves objects from memory, honoring byte ranges the way
// the real blob store does.
type fakeObjectStore struct {
	objects map[string][]byte
}

func (s *fakeObjectStore) Stat(_ context.Context, path string) (storage.ObjectInfo, error) {
	data, ok := s.objects[path]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Size: int64(len(data)), ContentType: "audio/mpeg"}, nil
}

func (s *fakeObjectStore) Read(_ context.Context, path string, br *storage.ByteRange) (io.ReadCloser, error) {
	data, ok := s.objects[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if br != nil {
		data = data[br.Start : br.End+1]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newTestStreamHandler(objects map[string][]byte) (*StreamHandler, *token.Issuer) {
	key := token.StaticKey(testStreamSecret)
	return NewStreamHandler(token.NewVerifier(key), &fakeObjectStore{objects: objects}),
		token.NewIssuer(key, time.Minute)
}

func testObject(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func doStream(h *StreamHandler, tok, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/stream?token="+tok, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStreamRejectsMissingToken(t *testing.T) {
	h, _ := newTestStreamHandler(nil)

	rec := doStream(h, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamRejectsInvalidToken(t *testing.T) {
	h, _ := newTestStreamHandler(map[string][]byte{"a.mp3": testObject(100)})

	rec := doStream(h, "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamRejectsExpiredToken(t *testing.T) {
	h, _ := newTestStreamHandler(map[string][]byte{"a.mp3": testObject(100)})

	claims := &token.StreamClaims{
		StoragePath: "a.mp3",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-3 * time.Second)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testStreamSecret))
	require.NoError(t, err)

	rec := doStream(h, expired, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Mint a token with a 2 second TTL, wait 3 seconds, expect 401.
func TestStreamTokenExpiresInRealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real-time expiry test in short mode")
	}

	key := token.StaticKey(testStreamSecret)
	h := NewStreamHandler(token.NewVerifier(key), &fakeObjectStore{
		objects: map[string][]byte{"a.mp3": testObject(100)},
	})
	issuer := token.NewIssuer(key, 2*time.Second)

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	rec := doStream(h, tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(3 * time.Second)

	rec = doStream(h, tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamFullObject(t *testing.T) {
	data := testObject(1000)
	h, issuer := newTestStreamHandler(map[string][]byte{"a.mp3": data})

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	rec := doStream(h, tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestStreamRangedRequest(t *testing.T) {
	data := testObject(1000)
	h, issuer := newTestStreamHandler(map[string][]byte{"a.mp3": data})

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	rec := doStream(h, tok, "bytes=10-19")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 10-19/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, data[10:20], rec.Body.Bytes())
}

func TestStreamOpenEndedRange(t *testing.T) {
	data := testObject(1000)
	h, issuer := newTestStreamHandler(map[string][]byte{"a.mp3": data})

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	rec := doStream(h, tok, "bytes=990-")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 990-999/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, data[990:], rec.Body.Bytes())
}

func TestStreamUnsatisfiableRange(t *testing.T) {
	h, issuer := newTestStreamHandler(map[string][]byte{"a.mp3": testObject(100)})

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	for _, header := range []string{
		"bytes=100-", "bytes=200-300", "bytes=0-100", "bytes=50-10", "bytes=-50", "items=0-10",
	} {
		rec := doStream(h, tok, header)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, "range %q", header)
	}
}

func TestStreamMissingObject(t *testing.T) {
	h, issuer := newTestStreamHandler(map[string][]byte{"a.mp3": testObject(100)})

	tok, err := issuer.Issue("missing.mp3")
	require.NoError(t, err)

	rec := doStream(h, tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamTokenOnlyAuthorizesItsOwnPath(t *testing.T) {
	h, issuer := newTestStreamHandler(map[string][]byte{
		"a.mp3": testObject(100),
		"b.mp3": testObject(200),
	})

	tok, err := issuer.Issue("a.mp3")
	require.NoError(t, err)

	// The token resolves to a.mp3 no matter what the caller hoped for;
	// the request carries no path of its own.
	rec := doStream(h, tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		start   int64
		end     int64
		wantErr bool
	}{
		{name: "bounded", header: "bytes=0-99", size: 1000, start: 0, end: 99},
		{name: "open ended", header: "bytes=10-", size: 1000, start: 10, end: 999},
		{name: "single byte", header: "bytes=5-5", size: 10, start: 5, end: 5},
		{name: "last byte", header: "bytes=9-9", size: 10, start: 9, end: 9},
		{name: "start at size", header: "bytes=10-", size: 10, wantErr: true},
		{name: "end past size", header: "bytes=0-10", size: 10, wantErr: true},
		{name: "inverted", header: "bytes=9-3", size: 10, wantErr: true},
		{name: "suffix range", header: "bytes=-5", size: 10, wantErr: true},
		{name: "wrong unit", header: "items=0-5", size: 10, wantErr: true},
		{name: "not a number", header: "bytes=a-b", size: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseRange(tt.header, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}
