package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID       uuid.UUID
	Email        string
	Role         domain.UserRole
	BusinessType domain.BusinessType
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRole) bool {
	return u.Role == role
}

// IsAdmin reports whether the user may read data across users, e.g. the audit trail
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.UserRoleAdmin
}

// RequestMeta identifies the HTTP request behind an operation, for the audit trail
type RequestMeta struct {
	IPAddress string
	RequestID string
}

const requestMetaKey contextKey = "requestMeta"

// WithRequestMeta adds request metadata to the context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey, meta)
}

// RequestMetaFromContext returns the request metadata, zero when absent
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey).(RequestMeta)
	return meta
}
