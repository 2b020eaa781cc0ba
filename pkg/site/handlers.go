package site

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleGetSite serves GET /site/{did}: the tenant's resolved site as
// JSON. When the viewer is the tenant, a migration run is triggered in the
// background first; its outcome never affects this response.
func (a *App) handleGetSite(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["did"]
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "InvalidRequest", Message: "missing did"})
		return
	}

	a.maybeMigrate(tenant)

	resolved, err := a.resolve(r.Context(), tenant)
	if err != nil {
		a.log.Error().Err(err).Str("tenant", tenant).Msg("site resolution failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "UpstreamFailure"})
		return
	}
	if resolved == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "SiteNotConfigured"})
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
