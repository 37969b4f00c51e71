package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	DoctorIDKey  contextKey = "doctor_id"
)

// Claims are the token claims the scheduler reads. doctor_id links a doctor's
// login to their directory entry.
type Claims struct {
	jwt.RegisteredClaims
	Roles    []string `json:"roles"`
	DoctorID string   `json:"doctor_id,omitempty"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches validation to HS256 with a shared secret. Development
	// and tests only.
	SigningKey []byte
}

func (cfg JWTConfig) keyfunc() jwt.Keyfunc {
	if len(cfg.SigningKey) > 0 {
		return func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	}
	return NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL).Keyfunc
}

func (cfg JWTConfig) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

// JWTMiddleware validates the bearer token and stores the subject, roles and
// doctor id on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	keyfunc := cfg.keyfunc()
	opts := cfg.parserOptions()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, keyfunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setIdentity(c, claims.Subject, claims.Roles, claims.DoctorID)
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as an administrator.
// Requests that do carry a token are validated with cfg as usual.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	jwtMW := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return withToken(c)
			}
			setIdentity(c, "dev-user", []string{RoleAdmin}, "")
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, userID string, roles []string, doctorID string) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	ctx = context.WithValue(ctx, DoctorIDKey, doctorID)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

func DoctorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(DoctorIDKey).(string)
	return id
}

// WithIdentity returns a context carrying the given identity. Used by the CLI
// and tests.
func WithIdentity(ctx context.Context, userID string, roles []string, doctorID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	return context.WithValue(ctx, DoctorIDKey, doctorID)
}
