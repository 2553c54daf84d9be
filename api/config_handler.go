package api

import (
	"net/http"

	"github.com/seenimoa/optionpulse/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config      config.Config      `json:"config"`
	Credentials []config.KeyStatus `json:"credentials"`
}

// handleGetConfig returns the running configuration with credentials masked.
// The endpoint is read-only; settings change through the config file.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:      s.deps.Config.Redacted(),
			Credentials: config.CheckAPIKeys(s.deps.Config),
		},
	})
}
