package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"acytel/core/token"
	"acytel/logger"
	"acytel/storage"
)

// StreamHandler is the range-aware delivery proxy. The verified stream
// token is the entire authorization check; no session or user state is
// consulted. Each request is handled independently and statelessly.
type StreamHandler struct {
	verifier *token.Verifier
	store    storage.ObjectStore
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(verifier *token.Verifier, store storage.ObjectStore) *StreamHandler {
	return &StreamHandler{verifier: verifier, store: store}
}

// ServeHTTP handles GET /stream?token=... with an optional Range header.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	storagePath, err := h.verifier.Verify(tok)
	if err != nil {
		// Deliberately indistinguishable from a malformed token; a 401
		// must not reveal whether the object exists.
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	info, err := h.store.Stat(ctx, storagePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to stat backing object",
			logger.String("storagePath", storagePath),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var byteRange *storage.ByteRange
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, err := parseRange(rangeHeader, info.Size)
		if err != nil {
			http.Error(w, "Invalid range specified", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		byteRange = &storage.ByteRange{Start: start, End: end}
	}

	body, err := h.store.Read(ctx, storagePath, byteRange)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("failed to open backing object",
			logger.String("storagePath", storagePath),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	if byteRange != nil {
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", byteRange.Start, byteRange.End, info.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(byteRange.End-byteRange.Start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusOK)
	}

	// A mid-stream read error aborts the response; the client retries with
	// a fresh token rather than resuming a broken stream.
	if _, err := io.Copy(w, body); err != nil {
		logger.Error("aborting stream mid-response",
			logger.String("storagePath", storagePath),
			logger.ErrorField(err))
	}
}

// parseRange parses a "bytes=start-end" header against the object size.
// The end bound is optional and defaults to size-1. Suffix ranges
// ("bytes=-N") and spans extending past the object are rejected.
func parseRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit in %q", header)
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, fmt.Errorf("malformed range %q", header)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("invalid range start in %q", header)
	}

	end := size - 1
	if strings.TrimSpace(endStr) != "" {
		end, err = strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end in %q", header)
		}
	}

	if start > end || end >= size {
		return 0, 0, fmt.Errorf("unsatisfiable range %d-%d for size %d", start, end, size)
	}
	return start, end, nil
}
