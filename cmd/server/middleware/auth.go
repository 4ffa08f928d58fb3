package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/cmd/server/config"
)

const userKey contextKey = "user"

// Auth enforces the configured authentication scheme on protected routes.
// With auth disabled it passes every request through.
func Auth(cfg config.AuthConfig, logger zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			var (
				user string
				err  error
			)
			switch cfg.Type {
			case "bearer":
				user, err = verifyStaticToken(cfg.BearerAuth, token)
			case "jwt":
				user, err = verifyJWT(cfg.JWTAuth, token)
			default:
				writeError(w, http.StatusInternalServerError, "INTERNAL", "unsupported auth type")
				return
			}
			if err != nil {
				logger.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Msg("authentication failed")
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func verifyStaticToken(cfg config.BearerAuthConfig, token string) (string, error) {
	user, ok := cfg.Tokens[token]
	if !ok {
		return "", jwt.ErrTokenUnverifiable
	}
	return user, nil
}

func verifyJWT(cfg config.JWTAuthConfig, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return "", err
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	return sub, nil
}
