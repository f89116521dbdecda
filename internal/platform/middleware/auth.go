package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator defines the interface for validating operator tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims represents the claims we expect from the token validator.
type OperatorClaims struct {
	OperatorID string
	Name       string
	Role       string
}

type contextKeyOperatorID struct{}
type contextKeyOperatorName struct{}
type contextKeyOperatorRole struct{}

// Context keys are exported for use in handlers and tests.
var (
	ContextKeyOperatorID   = contextKeyOperatorID{}
	ContextKeyOperatorName = contextKeyOperatorName{}
	ContextKeyOperatorRole = contextKeyOperatorRole{}
)

// GetOperatorID retrieves the authenticated operator ID from the context.
func GetOperatorID(ctx context.Context) string {
	operatorID, ok := ctx.Value(ContextKeyOperatorID).(string)
	if !ok {
		return ""
	}
	return operatorID
}

// GetOperatorName retrieves the operator display name from the context.
func GetOperatorName(ctx context.Context) string {
	name, ok := ctx.Value(ContextKeyOperatorName).(string)
	if !ok {
		return ""
	}
	return name
}

// GetOperatorRole retrieves the operator role from the context.
func GetOperatorRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyOperatorRole).(string)
	if !ok {
		return ""
	}
	return role
}

// RequireAuth validates the bearer token and stores operator identity in the
// request context. Every register mutation records which operator performed
// it, so the identity must be established before the domain handlers run.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, ContextKeyOperatorID, claims.OperatorID)
			ctx = context.WithValue(ctx, ContextKeyOperatorName, claims.Name)
			ctx = context.WithValue(ctx, ContextKeyOperatorRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
