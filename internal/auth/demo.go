package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

type demoLoginRequest struct {
	LinkToken string `json:"link_token"`
	Password  string `json:"password"`
}

// DemoLogin handles the service-hosted login form submission for the
// reserved demo subdomain: a static password check standing in for the
// OTP-gated out-of-band approval real tenants go through. On success it
// delegates to the same approval path as a real tenant's tunnel gate.
func (s *Service) DemoLogin(w http.ResponseWriter, r *http.Request) {
	var req demoLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.LinkToken == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "link_token is required")
		return
	}

	approved := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.DemoPassword)) == 1

	redirect, status, code, description := s.approve(r.Context(), req.LinkToken, approved)
	if redirect == "" {
		writeOAuthError(w, status, code, description)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirect})
}
