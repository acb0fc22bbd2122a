package handlers

import (
	"encoding/json"
	"net/http"
)

// SettingsResponse reports feature flags the console UI consumes.
type SettingsResponse struct {
	SchemaComposition bool `json:"schemaComposition"`
}

// SettingsHandler serves GET /api/v2/settings.
type SettingsHandler struct {
	schemaComposition bool
}

// NewSettingsHandler creates a handler exposing the given feature flags.
func NewSettingsHandler(schemaComposition bool) *SettingsHandler {
	return &SettingsHandler{schemaComposition: schemaComposition}
}

func (h *SettingsHandler) Settings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SettingsResponse{
		SchemaComposition: h.schemaComposition,
	})
}
