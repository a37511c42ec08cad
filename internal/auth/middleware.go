package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amoret/amoret/internal/fault"
	"github.com/amoret/amoret/internal/httputil"
	"github.com/amoret/amoret/internal/logging"
	"github.com/amoret/amoret/internal/nonce"
	"github.com/amoret/amoret/internal/user"
)

const (
	headerToken  = "x-token"
	headerUserID = "x-user-id"

	nonceField = "nonce"
)

// Middleware provides the request gates: session authentication with
// ownership resolution, entitlement checks, and action-token verification.
type Middleware struct {
	auth   *Service
	users  *user.Repository
	nonces *nonce.Service
	logger *logging.Logger
}

func NewMiddleware(auth *Service, users *user.Repository, nonces *nonce.Service, logger *logging.Logger) *Middleware {
	return &Middleware{auth: auth, users: users, nonces: nonces, logger: logger}
}

// RequireLogin authenticates the session token from x-token, checks the
// account gates (verified email, no moderation flag), and resolves the
// target user from x-user-id. Members may only target themselves; admins
// may target any existing account.
func (m *Middleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerToken)
		claimed := r.Header.Get(headerUserID)
		if token == "" || claimed == "" {
			httputil.RespondError(w, http.StatusBadRequest, "auth", "middleware", 1000)
			return
		}

		claimedID, err := uuid.Parse(claimed)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "auth", "middleware", 1000)
			return
		}

		current, err := m.auth.LoginWithToken(r.Context(), token)
		if err != nil {
			if fault.IsKind(err, fault.KindUnauthorized) {
				httputil.RespondError(w, http.StatusUnauthorized, "auth", "middleware", 1001)
				return
			}
			m.logger.Error("session resolution failed", "error", err.Error())
			httputil.RespondError(w, http.StatusInternalServerError, "auth", "middleware", 1006)
			return
		}

		if !current.EmailVerified {
			httputil.RespondError(w, http.StatusUnauthorized, "auth", "middleware", 1002)
			return
		}
		if current.Permission != nil && current.Permission.Warning {
			httputil.RespondError(w, http.StatusForbidden, "auth", "middleware", 1003)
			return
		}

		target := current
		if claimedID != current.ID {
			if !current.Role.IsPrivileged() {
				httputil.RespondError(w, http.StatusForbidden, "auth", "middleware", 1004)
				return
			}
			target, err = m.users.GetByID(r.Context(), claimedID, "Permission")
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					httputil.RespondError(w, http.StatusBadRequest, "auth", "middleware", 1005)
					return
				}
				m.logger.Error("target resolution failed", "error", err.Error())
				httputil.RespondError(w, http.StatusInternalServerError, "auth", "middleware", 1006)
				return
			}
		}

		ctx := WithCurrentUser(r.Context(), current)
		ctx = WithTargetUser(ctx, target)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePaidAccess rejects requests whose target's entitlement horizon has
// passed. Runs after RequireLogin.
func (m *Middleware) RequirePaidAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := TargetUser(r.Context())
		if target == nil || target.Permission == nil {
			httputil.RespondError(w, http.StatusUnauthorized, "auth", "middleware", 1009)
			return
		}
		if !target.Permission.ExpiredAt.After(m.auth.now()) {
			httputil.RespondError(w, http.StatusForbidden, "auth", "middleware", 1010)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireNonce verifies a single-use action token before the handler runs.
// The token is taken from the JSON body first, then the query string, then
// the route parameter. On success the verified record and its subject are
// attached to the context; consumption stays with the handler so it happens
// in the same transaction as the workflow mutation.
func (m *Middleware) RequireNonce(mode nonce.VerifyAction) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := m.extractNonce(r)
			if value == "" {
				httputil.RespondError(w, http.StatusBadRequest, "auth", "middleware", 1019)
				return
			}

			result, err := m.nonces.Verify(r.Context(), value, mode)
			if err != nil {
				if fault.KindOf(err) == fault.KindInternal {
					m.logger.Error("token verification failed", "error", err.Error())
					httputil.RespondError(w, http.StatusInternalServerError, "auth", "middleware", 1021)
					return
				}
				httputil.RespondFault(w, err)
				return
			}
			if !result.Valid {
				httputil.RespondError(w, http.StatusUnauthorized, "auth", "middleware", 1020)
				return
			}

			ctx := WithNonce(r.Context(), result.Nonce, result.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractNonce reads the token value with body over query over route-param
// precedence. The body is restored so the handler can decode it again.
func (m *Middleware) extractNonce(r *http.Request) string {
	if r.Body != nil && r.Body != http.NoBody {
		raw, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err == nil {
			r.Body = io.NopCloser(bytes.NewReader(raw))
			var body struct {
				Nonce string `json:"nonce"`
			}
			if json.Unmarshal(raw, &body) == nil && body.Nonce != "" {
				return body.Nonce
			}
		}
	}
	if v := r.URL.Query().Get(nonceField); v != "" {
		return v
	}
	return chi.URLParam(r, nonceField)
}
