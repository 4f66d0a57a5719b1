package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/rs/zerolog/log"
)

// DemoSubdomain is the reserved tenant used for IFTTT's own review flow.
// Its approval step is a static password check rather than an OTP-gated
// out-of-band call.
const DemoSubdomain = "demo"

// Config carries everything the OAuth flow needs beyond storage.
type Config struct {
	HMACSecret        string
	OAuthClientID     string
	OAuthClientSecret string
	DemoPassword      string
	// OriginHostTemplate formats a subdomain into the tenant's tunnel
	// host, e.g. "%s.tunnels.example.com".
	OriginHostTemplate string
	// DemoLoginURL is where /oauth/authorize redirects for the demo
	// subdomain instead of the tenant's own tunnel.
	DemoLoginURL string
}

// Service implements the authorization-code flow described by the
// dispatcher's /oauth/* routes.
type Service struct {
	cfg      Config
	global   store.GlobalStore
	registry store.Registry
	seedDemo func(ctx context.Context, subdomain string) error
}

// NewService builds an OAuth service. seedDemo is invoked once, right
// after the demo tenant's first successful approval, to populate sample
// data; it may be nil if demo seeding is wired elsewhere.
func NewService(cfg Config, global store.GlobalStore, registry store.Registry, seedDemo func(ctx context.Context, subdomain string) error) *Service {
	return &Service{cfg: cfg, global: global, registry: registry, seedDemo: seedDemo}
}

type authorizeRequest struct {
	Subdomain           string `json:"subdomain"`
	State               string `json:"state"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// Authorize handles POST /oauth/authorize: validates the tenant is
// eligible to link, mints a LinkToken, and returns the URL the
// collaborator front end should forward the user to for out-of-band
// approval.
func (s *Service) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Subdomain == "" || req.RedirectURI == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "subdomain and redirect_uri are required")
		return
	}
	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != "S256" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge_method must be S256")
		return
	}

	ctx := r.Context()
	token, err := randomToken()
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to generate link token")
		return
	}

	if req.Subdomain == DemoSubdomain {
		lt := store.LinkToken{
			Token:               token,
			Subdomain:           req.Subdomain,
			RedirectURI:         req.RedirectURI,
			State:               req.State,
			CreatedAt:           time.Now().UTC(),
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
		}
		if err := s.global.CreateLinkToken(ctx, lt); err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to persist link token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"redirect_url": s.cfg.DemoLoginURL + "?link_token=" + url.QueryEscape(token),
		})
		return
	}

	user, err := s.global.GetConnected(ctx, req.Subdomain)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to check connection state")
		return
	}
	if user.Connected {
		writeOAuthError(w, http.StatusConflict, "access_denied", "tenant is already connected")
		return
	}

	_, ok, err := s.registry.GetTenant(ctx, req.Subdomain)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "registry lookup failed")
		return
	}
	if !ok {
		writeOAuthError(w, http.StatusNotFound, "invalid_request", "unknown subdomain")
		return
	}

	hasOTP, err := s.registry.HasOTPEmail(ctx, req.Subdomain)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "registry lookup failed")
		return
	}
	if !hasOTP {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "tenant has no OTP email on file")
		return
	}

	lt := store.LinkToken{
		Token:               token,
		Subdomain:           req.Subdomain,
		RedirectURI:         req.RedirectURI,
		State:               req.State,
		CreatedAt:           time.Now().UTC(),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}
	if err := s.global.CreateLinkToken(ctx, lt); err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to persist link token")
		return
	}

	host := fmt.Sprintf(s.cfg.OriginHostTemplate, req.Subdomain)
	writeJSON(w, http.StatusOK, map[string]string{
		"redirect_url": "https://" + host + "/ifttt/authorize?link_token=" + url.QueryEscape(token),
	})
}

type approveRequest struct {
	LinkToken string `json:"link_token"`
	Approved  bool   `json:"approved"`
}

// Approve handles POST /oauth/approve, called by the tenant's tunnel
// gate (for real tenants) or the demo login page after a password
// check. On approval it mints an AuthCode and a fresh ActionSecret and
// returns the redirect target for the IFTTT side of the handshake.
func (s *Service) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.LinkToken == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "link_token is required")
		return
	}

	redirect, status, code, description := s.approve(r.Context(), req.LinkToken, req.Approved)
	if redirect == "" {
		writeOAuthError(w, status, code, description)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirect})
}

// approve consumes a link token and, if approved, mints the auth code
// and action secret and returns the IFTTT redirect target. It is shared
// by the tunnel gate's Approve endpoint and the demo login form.
func (s *Service) approve(ctx context.Context, linkToken string, approved bool) (redirect string, errStatus int, errCode, errDescription string) {
	lt, ok, err := s.global.ConsumeLinkToken(ctx, linkToken)
	if err != nil {
		return "", http.StatusInternalServerError, "server_error", "failed to consume link token"
	}
	if !ok {
		return "", http.StatusNotFound, "invalid_grant", "unknown or expired link token"
	}
	if !approved {
		return "", http.StatusOK, "access_denied", "user declined"
	}

	code, err := randomToken()
	if err != nil {
		return "", http.StatusInternalServerError, "server_error", "failed to generate auth code"
	}
	ac := store.AuthCode{
		Code:                code,
		Subdomain:           lt.Subdomain,
		RedirectURI:         lt.RedirectURI,
		CreatedAt:           time.Now().UTC(),
		CodeChallenge:       lt.CodeChallenge,
		CodeChallengeMethod: lt.CodeChallengeMethod,
	}
	if err := s.global.CreateAuthCode(ctx, ac); err != nil {
		return "", http.StatusInternalServerError, "server_error", "failed to persist auth code"
	}

	secret, err := randomToken()
	if err != nil {
		return "", http.StatusInternalServerError, "server_error", "failed to generate action secret"
	}
	if err := s.global.PutActionSecret(ctx, lt.Subdomain, secret); err != nil {
		return "", http.StatusInternalServerError, "server_error", "failed to persist action secret"
	}
	if err := s.registry.PutActionSecretCopy(ctx, lt.Subdomain, secret); err != nil {
		log.Error().Err(err).Str("subdomain", lt.Subdomain).Msg("failed to write registry action-secret copy")
	}

	if lt.Subdomain == DemoSubdomain && s.seedDemo != nil {
		// Seed only if the demo tenant has never connected before.
		if user, err := s.global.GetConnected(ctx, lt.Subdomain); err != nil {
			log.Error().Err(err).Msg("demo seed skipped: connection state lookup failed")
		} else if user.ConnectedAt == nil {
			if err := s.seedDemo(ctx, lt.Subdomain); err != nil {
				log.Error().Err(err).Msg("demo seed failed")
			}
		}
	}

	redirect = lt.RedirectURI + "?code=" + url.QueryEscape(code)
	if lt.State != "" {
		redirect += "&state=" + url.QueryEscape(lt.State)
	}
	return redirect, 0, "", ""
}

// Token handles POST /oauth/token: exchanges a one-time auth code (plus
// PKCE verifier, if the code was issued with a challenge) for a
// non-expiring bearer token.
func (s *Service) Token(w http.ResponseWriter, r *http.Request) {
	grantType, clientID, clientSecret, code, verifier, redirectURI, err := parseTokenRequest(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if grantType != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}
	if !VerifyClientCredentials(s.cfg.OAuthClientID, s.cfg.OAuthClientSecret, clientID, clientSecret) {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	ctx := r.Context()
	ac, ok, err := s.global.ConsumeAuthCode(ctx, code)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to consume auth code")
		return
	}
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown or expired code")
		return
	}
	if ac.RedirectURI != redirectURI {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if ac.CodeChallenge != "" {
		if !VerifyPKCE(ac.CodeChallengeMethod, ac.CodeChallenge, verifier) {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match code_challenge")
			return
		}
	}

	token, err := Mint(s.cfg.HMACSecret, ac.Subdomain)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to mint token")
		return
	}
	if err := s.global.SetConnected(ctx, ac.Subdomain, true); err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to mark tenant connected")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token_type":   "Bearer",
		"access_token": token,
	})
}

func parseTokenRequest(r *http.Request) (grantType, clientID, clientSecret, code, verifier, redirectURI string, err error) {
	ct := r.Header.Get("Content-Type")
	if ct == "application/json" {
		var body struct {
			GrantType    string `json:"grant_type"`
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
			Code         string `json:"code"`
			CodeVerifier string `json:"code_verifier"`
			RedirectURI  string `json:"redirect_uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", "", "", "", "", errors.New("malformed JSON body")
		}
		return body.GrantType, body.ClientID, body.ClientSecret, body.Code, body.CodeVerifier, body.RedirectURI, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", "", "", "", "", "", errors.New("malformed form body")
	}
	return r.Form.Get("grant_type"), r.Form.Get("client_id"), r.Form.Get("client_secret"),
		r.Form.Get("code"), r.Form.Get("code_verifier"), r.Form.Get("redirect_uri"), nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}
