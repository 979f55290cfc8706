package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"acytel/config"
	"acytel/core/token"
	"acytel/logger"
	"acytel/repository"

	"github.com/gorilla/mux"
)

// APIHandler serves the catalog-facing API: track listing and secure-link
// issuance.
type APIHandler struct {
	trackRepo repository.TrackRepository
	issuer    *token.Issuer
	cfg       *config.Config
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(trackRepo repository.TrackRepository, issuer *token.Issuer, cfg *config.Config) *APIHandler {
	return &APIHandler{
		trackRepo: trackRepo,
		issuer:    issuer,
		cfg:       cfg,
	}
}

// GetTracksHandler lists the caller's library.
// URL: GET /api/tracks
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tracks, err := h.trackRepo.GetAllTracksByUserID(userID)
	if err != nil {
		logger.Error("failed to list tracks",
			logger.Int64("userId", userID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tracks)
}

// SecureLinkHandler mints a short-lived stream URL for a track the caller
// owns. The minted token is the capability: it embeds only the storage path
// and an expiry, so the delivery proxy never re-checks ownership.
// URL: GET /api/tracks/{id}/secure-link
func (h *APIHandler) SecureLinkHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	trackID := mux.Vars(r)["id"]
	track, err := h.trackRepo.GetTrackByID(trackID)
	if err != nil {
		logger.Error("failed to look up track",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Absent and not-owned are indistinguishable to the caller.
	if track == nil || track.UserID != userID || track.StoragePath == "" {
		http.Error(w, "Track file not found", http.StatusNotFound)
		return
	}

	signed, err := h.issuer.Issue(track.StoragePath)
	if err != nil {
		// Signing-key unavailable is a server fault, never a caller error.
		logger.Error("failed to mint stream token",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	streamURL := fmt.Sprintf("%s/stream?token=%s", h.cfg.PublicStreamURL, url.QueryEscape(signed))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": streamURL})
}
