package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"go.uber.org/zap"
)

// UserLookup loads the account behind an authenticated request
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Middleware handles authentication for HTTP requests
type Middleware struct {
	tokens *TokenService
	users  UserLookup
	apiKey string
	logger *zap.Logger
}

// NewMiddleware creates a new authentication middleware. An empty apiKey disables x-api-key authentication.
func NewMiddleware(tokens *TokenService, users UserLookup, apiKey string, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		apiKey: apiKey,
		logger: logger,
	}
}

// Authenticate is the main authentication middleware.
// A valid x-api-key acts as the user named in X-User-ID, or as an admin without one.
// Otherwise a Bearer token is required.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userCtx := &UserContext{
				UserID: uuid.Nil,
				Email:  "system@invoicing.local",
				Role:   domain.UserRoleAdmin,
			}
			if header := r.Header.Get("X-User-ID"); header != "" {
				id, err := uuid.Parse(header)
				if err != nil {
					http.Error(w, "Unauthorized: invalid X-User-ID", http.StatusUnauthorized)
					return
				}
				userCtx, err = m.loadUser(r.Context(), id)
				if err != nil {
					http.Error(w, "Unauthorized: unknown user", http.StatusUnauthorized)
					return
				}
			}

			m.logger.Info("request authenticated",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.String("user_id", userCtx.UserID.String()),
				zap.Duration("auth_duration", time.Since(start)),
			)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		// role and business type may have changed since the token was issued
		userCtx, err := m.loadUser(r.Context(), claims.UserID)
		if err != nil {
			m.logger.Warn("token for unknown or inactive user",
				zap.String("user_id", claims.UserID.String()),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: unknown user", http.StatusUnauthorized)
			return
		}

		m.logger.Info("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("role", string(userCtx.Role)),
			zap.Duration("auth_duration", time.Since(start)),
		)
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireRole middleware ensures user has one of the roles
func (m *Middleware) RequireRole(roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "Forbidden: no user context", http.StatusForbidden)
				return
			}
			for _, role := range roles {
				if userCtx.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}

// RequireAdmin middleware ensures user has admin role or valid API key
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(domain.UserRoleAdmin)(next)
}

// RequireUser rejects requests that are not bound to a business owner, e.g. an API key without X-User-ID
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := FromContext(r.Context())
		if !ok || userCtx.UserID == uuid.Nil {
			http.Error(w, "Forbidden: requests must act as a user", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) loadUser(ctx context.Context, id uuid.UUID) (*UserContext, error) {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errInactiveUser
	}
	return &UserContext{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		BusinessType: user.BusinessType,
	}, nil
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}
