package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amoret/amoret/internal/database"
	"github.com/amoret/amoret/internal/httputil"
	"github.com/amoret/amoret/internal/logging"
	"github.com/amoret/amoret/internal/permission"
	"github.com/amoret/amoret/internal/ratelimit"
)

// Handler contains the HTTP handlers for the identity endpoints.
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// LoginRequest represents the login request body. Both fields may be empty
// when the client logs in with the x-token header instead.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest represents requests keyed by email only.
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation. The nonce
// is consumed by the action-token gate before this body is decoded.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest represents the authenticated password change body.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// UnlockRequest represents the entitlement purchase body.
type UnlockRequest struct {
	ProductID string `json:"product_id"`
}

// Signup handles account creation
// @Summary      Create an account
// @Description  Creates the user with its permission record and sends the verification and moderation-review emails.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body SignupParams true "Signup fields"
// @Success      201 {object} httputil.Envelope
// @Failure      400 {object} httputil.Envelope "Validation error"
// @Failure      409 {object} httputil.Envelope "Email already registered"
// @Router       /v1/users/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.throttled(w, r, "signup") {
		return
	}

	var req SignupParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	u, err := h.service.Signup(r.Context(), req)
	if err != nil {
		logger.Warn("signup failed", "email", req.Email, "error", err.Error())
		httputil.RespondFault(w, err)
		return
	}

	logger.Info("account created", "user_id", u.ID)

	profile, err := h.service.LoadProfile(r.Context(), u.ID)
	if err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusCreated, "user", "api", 1000, profile)
}

// Login handles both credential flavors
// @Summary      Log in
// @Description  Authenticates with email/password from the body, or with the x-token header when the body carries no credentials.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest false "Credentials"
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.Envelope "Wrong credentials or invalid session"
// @Router       /v1/users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.throttled(w, r, "login") {
		return
	}

	var req LoginRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid login request body", "error", err.Error())
			httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1003)
			return
		}
	}

	var err error
	var userID string
	if req.Email != "" || req.Password != "" {
		u, loginErr := h.service.LoginWithPassword(r.Context(), strings.ToLower(req.Email), req.Password)
		if loginErr != nil {
			logger.Warn("password login failed", "error", loginErr.Error())
			httputil.RespondFault(w, loginErr)
			return
		}
		if !u.EmailVerified {
			httputil.RespondError(w, http.StatusUnauthorized, "user", "api", 1004)
			return
		}
		userID = u.ID.String()
		err = h.respondProfile(w, r, u.ID, 1001)
	} else if token := r.Header.Get(headerToken); token != "" {
		u, loginErr := h.service.LoginWithToken(r.Context(), token)
		if loginErr != nil {
			logger.Warn("token login failed", "error", loginErr.Error())
			httputil.RespondFault(w, loginErr)
			return
		}
		userID = u.ID.String()
		err = h.respondProfile(w, r, u.ID, 1001)
	} else {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1003)
		return
	}

	if err == nil {
		logger.Info("login success", "user_id", userID)
	}
}

// Logout clears the target's session token
// @Summary      Log out
// @Tags         users
// @Produce      json
// @Param        x-token header string true "Session token"
// @Param        x-user-id header string true "Acting user id"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	target := TargetUser(r.Context())
	if err := h.service.Logout(r.Context(), target); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1002, nil)
}

// VerifyEmail finalizes the verify-email token
// @Summary      Verify email address
// @Tags         users
// @Accept       json
// @Produce      json
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.Envelope "Invalid token"
// @Failure      409 {object} httputil.Envelope "Token already used"
// @Router       /v1/users/verify/email [post]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyEmail(r.Context(), NonceSubject(r.Context()), NonceRecord(r.Context())); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1003, nil)
}

// ResendVerification mints and mails a fresh verify-email token
// @Summary      Resend verification email
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Account email"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/resend/verify/email [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.ResendVerification(r.Context(), strings.ToLower(req.Email)); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1004, nil)
}

// ForgetPassword starts the password recovery flow
// @Summary      Request a password reset
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Account email"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/forget/password [post]
func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	if h.throttled(w, r, "forget-password") {
		return
	}

	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.ForgetPassword(r.Context(), strings.ToLower(req.Email)); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1005, nil)
}

// ResetPassword finalizes the forget-password token
// @Summary      Reset the password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "New password plus nonce"
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.Envelope "Invalid token"
// @Router       /v1/users/reset/password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.ResetPassword(r.Context(), NonceSubject(r.Context()), NonceRecord(r.Context()), req.Password); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1006, nil)
}

// Review records the moderator decision from the emailed link
// @Summary      Record a moderation decision
// @Tags         users
// @Produce      json
// @Param        mode  query string true "pass or unpass"
// @Param        nonce query string true "Review token"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/review [get]
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	mode := ReviewMode(r.URL.Query().Get("mode"))
	if mode == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1014)
		return
	}

	if err := h.service.Review(r.Context(), mode, NonceSubject(r.Context()), NonceRecord(r.Context())); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1011, nil)
}

// GetProfile returns the client-facing user payload
// @Summary      Load a profile
// @Tags         users
// @Produce      json
// @Param        userId path string true "User id"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/{userId} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	target, ok := h.routeTarget(w, r)
	if !ok {
		return
	}
	h.respondProfile(w, r, target.ID, 1007)
}

// Unlock debits candy and extends the entitlement horizon
// @Summary      Unlock an entitlement product
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        userId  path string true "User id"
// @Param        request body UnlockRequest true "Product to unlock"
// @Success      200 {object} httputil.Envelope
// @Failure      403 {object} httputil.Envelope "Not enough candy"
// @Router       /v1/users/{userId}/unlock [put]
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	target, ok := h.routeTarget(w, r)
	if !ok {
		return
	}

	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.Unlock(r.Context(), target, req.ProductID); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	h.respondProfile(w, r, target.ID, 1008)
}

// UpdatePreferences folds a partial preference patch into the stored blob
// @Summary      Update matching preferences
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        userId  path string true "User id"
// @Param        request body permission.Patch true "Fields to change"
// @Success      200 {object} httputil.Envelope
// @Router       /v1/users/{userId}/preferences [put]
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	target, ok := h.routeTarget(w, r)
	if !ok {
		return
	}

	var patch permission.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.UpdatePreferences(r.Context(), target.ID, patch); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1009, nil)
}

// ChangePassword rotates the digest after re-authenticating
// @Summary      Change the password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        userId  path string true "User id"
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} httputil.Envelope
// @Failure      401 {object} httputil.Envelope "Old password is wrong"
// @Router       /v1/users/{userId}/password [patch]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	target, ok := h.routeTarget(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user", "api", 1000)
		return
	}

	if err := h.service.ChangePassword(r.Context(), target, req.OldPassword, req.NewPassword); err != nil {
		httputil.RespondFault(w, err)
		return
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", 1010, nil)
}

// routeTarget returns the target user resolved by the login gate, refusing
// requests whose userId route param names someone else.
func (h *Handler) routeTarget(w http.ResponseWriter, r *http.Request) (*database.User, bool) {
	t := TargetUser(r.Context())
	if t == nil {
		httputil.RespondError(w, http.StatusUnauthorized, "auth", "middleware", 1009)
		return nil, false
	}
	if param := chi.URLParam(r, "userId"); param != "" && param != t.ID.String() {
		httputil.RespondError(w, http.StatusForbidden, "user", "api", 1018)
		return nil, false
	}
	return t, true
}

// respondProfile renders the user's profile payload under the given success
// code. The returned error only signals that a fault response was written.
func (h *Handler) respondProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID, successCode int) error {
	profile, err := h.service.LoadProfile(r.Context(), userID)
	if err != nil {
		httputil.RespondFault(w, err)
		return err
	}
	httputil.RespondSuccess(w, http.StatusOK, "user", "api", successCode, profile)
	return nil
}

// throttled applies the fixed-window IP rate limit for the given purpose.
// Limiter failures are logged but never block the request.
func (h *Handler) throttled(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := clientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("rate limit check failed", "purpose", purpose, "error", err.Error())
	} else if exceeded {
		logger.Warn("rate limit exceeded", "purpose", purpose, "ip", ip)
		httputil.RespondError(w, http.StatusTooManyRequests, "user", "api", 1029)
		return true
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, purpose); err != nil {
		logger.Error("rate limit record failed", "purpose", purpose, "error", err.Error())
	}
	return false
}

// clientIP resolves the caller address, preferring forwarding headers set by
// the proxy in front of the service.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
