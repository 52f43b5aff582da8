package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"trading-platform/authcore/internal/autherr"
	"trading-platform/authcore/internal/authz/engine"
	sessionsvc "trading-platform/authcore/internal/session/service"
)

type loginRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"device_fingerprint"`
	Country           string `json:"country"`
}

type tokenPairResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type mfaChallengeResponse struct {
	MFARequired    bool      `json:"mfa_required"`
	ChallengeToken string    `json:"challenge_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func pairResponse(p *sessionsvc.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		SessionID:        p.SessionID,
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dev := sessionsvc.Device{
		Fingerprint: req.DeviceFingerprint,
		IPAddress:   clientIP(r),
		Country:     req.Country,
	}
	pair, err := s.sessions.Login(r.Context(), req.Email, req.Password, dev)
	if err != nil {
		var mfaErr *sessionsvc.MFARequiredError
		if errors.As(err, &mfaErr) {
			writeJSON(w, http.StatusUnauthorized, mfaChallengeResponse{
				MFARequired:    true,
				ChallengeToken: mfaErr.Challenge.ChallengeToken,
				ExpiresAt:      mfaErr.Challenge.ExpiresAt,
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

type mfaCompleteRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

func (s *Server) handleMFAComplete(w http.ResponseWriter, r *http.Request) {
	var req mfaCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := s.sessions.CompleteMFA(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pair, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

type logoutRequest struct {
	AllDevices bool `json:"all_devices"`
}

type logoutResponse struct {
	SessionsRevoked int `json:"sessions_revoked"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	claims := ClaimsFromContext(r.Context())
	count, err := s.sessions.Logout(r.Context(), claims.SessionID, req.AllDevices)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logoutResponse{SessionsRevoked: count})
}

type mfaEnrollResponse struct {
	ProvisioningURL string `json:"provisioning_url"`
}

func (s *Server) handleMFAEnroll(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	url, err := s.sessions.EnrollMFA(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mfaEnrollResponse{ProvisioningURL: url})
}

type mfaActivateRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleMFAActivate(w http.ResponseWriter, r *http.Request) {
	var req mfaActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims := ClaimsFromContext(r.Context())
	if err := s.sessions.ActivateMFA(r.Context(), claims.Subject, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type authzCheckRequest struct {
	Subject  string `json:"subject"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

type authzCheckResponse struct {
	Allowed  bool   `json:"allowed"`
	PolicyID string `json:"policy_id,omitempty"`
	Reason   string `json:"reason"`
}

func (s *Server) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	var req authzCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	claims := ClaimsFromContext(r.Context())
	subject := req.Subject
	roles := claims.Roles
	if subject == "" {
		subject = "user:" + claims.Subject
	} else if subject != "user:"+claims.Subject && !claims.HasScope("credentials:read") {
		// Only service callers may ask about other subjects.
		writeServiceError(w, autherr.ErrPermissionDenied)
		return
	}
	d, err := s.engine.Check(r.Context(), engine.CheckInput{
		Subject:  subject,
		Action:   req.Action,
		Resource: req.Resource,
		Roles:    roles,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authzCheckResponse{Allowed: d.Allowed, PolicyID: d.PolicyID, Reason: d.Reason})
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active       bool       `json:"active"`
	Subject      string     `json:"sub,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	Roles        []string   `json:"roles,omitempty"`
	MFASatisfied bool       `json:"mfa_satisfied,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// handleIntrospect answers token validity queries for services that do not
// verify signatures locally. Always 200; invalid tokens are just inactive.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ins := s.tokens.Introspect(req.Token)
	if !ins.Active {
		writeJSON(w, http.StatusOK, introspectResponse{})
		return
	}
	resp := introspectResponse{
		Active:       true,
		Subject:      ins.Claims.Subject,
		SessionID:    ins.Claims.SessionID,
		Scopes:       ins.Claims.Scopes,
		Roles:        ins.Claims.Roles,
		MFASatisfied: ins.Claims.MFASatisfied,
	}
	if ins.Claims.ExpiresAt != nil {
		exp := ins.Claims.ExpiresAt.Time
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	jwks, err := s.tokens.JWKS()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jwks)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialFetchRequest struct {
	SecretID string `json:"secret_id"`
}

type credentialFetchResponse struct {
	SecretID  string `json:"secret_id"`
	Plaintext string `json:"plaintext"` // base64
}

// handleCredentialFetch returns sealed credential plaintext to service
// callers holding the credentials:read scope. The vault audits every fetch.
func (s *Server) handleCredentialFetch(w http.ResponseWriter, r *http.Request) {
	var req credentialFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SecretID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	plaintext, err := s.vault.Fetch(r.Context(), req.SecretID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialFetchResponse{
		SecretID:  req.SecretID,
		Plaintext: base64.StdEncoding.EncodeToString(plaintext),
	})
}
