package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/repository"

	"go.uber.org/zap"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error)
}

// TokenMiddleware authenticates by bearer header or, for clients that cannot
// set headers such as EventSource, by the token query parameter.
func TokenMiddleware(tokenRepo TokenRepo, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	lookup := func(r *http.Request, token, source string) *repository.PersonalAccessToken {
		if token == "" {
			return nil
		}
		p, err := tokenRepo.FindTokenByPlainToken(r.Context(), token)
		if err != nil {
			log.Debug("[AUTH] token lookup", zap.String("source", source), zap.Error(err))
			return nil
		}
		return p
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var pat *repository.PersonalAccessToken
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				pat = lookup(r, strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), "header")
			}
			if pat == nil {
				pat = lookup(r, r.URL.Query().Get("token"), "query")
			}

			if pat == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, strconv.FormatInt(pat.UserID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (string, error) {
	v, ok := ctx.Value(UserIDKey).(string)
	if !ok || v == "" {
		return "", errors.New("userID not found in context")
	}
	return v, nil
}
