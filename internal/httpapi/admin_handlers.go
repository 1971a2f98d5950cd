package httpapi

import (
	"net/http"
	"strconv"

	"github.com/payasgoyal/voicenote-bridge/internal/store"
)

// handleAdminListTranscriptions returns the most recent saved
// transcriptions. Debug surface only; deployments keep /admin off the
// public ingress.
func (r *Router) handleAdminListTranscriptions(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	items, err := r.store.ListRecentTranscriptions(req.Context(), limit)
	if err != nil {
		captureError(req, err, "failed to list transcriptions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list transcriptions"})
		return
	}
	if items == nil {
		items = []store.Transcription{} // keep JSON as [] not null
	}

	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": items})
}

// handleAdminCountUserTranscriptions returns how many transcriptions a
// user has saved.
func (r *Router) handleAdminCountUserTranscriptions(w http.ResponseWriter, req *http.Request) {
	userID := req.PathValue("id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}

	count, err := r.store.CountTranscriptionsByUser(req.Context(), userID)
	if err != nil {
		captureError(req, err, "failed to count transcriptions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count transcriptions"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "count": count})
}
