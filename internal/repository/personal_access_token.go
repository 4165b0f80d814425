package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/config/connections/postgres"

	"go.uber.org/zap"
)

var ErrTokenNotFound = errors.New("token not found")

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

const staffTokenableType = "staff"

type PersonalAccessTokenRepository struct {
	pg  *postgres.Postgres
	log *zap.Logger
}

func NewPersonalAccessTokenRepository(pg *postgres.Postgres, log *zap.Logger) *PersonalAccessTokenRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersonalAccessTokenRepository{pg: pg, log: log}
}

// splitToken parses "<id>|<secret>" tokens; a bare secret has no id.
func splitToken(plain string) (id *int64, secret, hash string) {
	secret = plain
	if idx := strings.Index(plain, "|"); idx > 0 {
		if n, err := strconv.ParseInt(plain[:idx], 10, 64); err == nil {
			id = &n
		}
		secret = plain[idx+1:]
	}
	sum := sha256.Sum256([]byte(secret))
	return id, secret, fmt.Sprintf("%x", sum)
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*PersonalAccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	tokenID, secret, hashStr := splitToken(plainToken)
	var pat PersonalAccessToken

	if tokenID != nil {
		query := `
            SELECT id, token, tokenable_id, abilities, expires_at
            FROM personal_access_tokens
            WHERE id = $1
              AND tokenable_type = $2
              AND (expires_at IS NULL OR expires_at > $3)
        `
		err := r.pg.Pool.QueryRow(ctx, query, *tokenID, staffTokenableType, time.Now()).Scan(
			&pat.ID,
			&pat.TokenHash,
			&pat.UserID,
			&pat.Abilities,
			&pat.ExpiresAt,
		)
		if err != nil {
			r.log.Debug("[TOKEN] query by id", zap.Int64("id", *tokenID), zap.Error(err))
		} else if pat.TokenHash == hashStr || pat.TokenHash == secret {
			return &pat, nil
		}
	}

	query := `
        SELECT id, token, tokenable_id, abilities, expires_at
        FROM personal_access_tokens
        WHERE tokenable_type = $1
          AND token IN ($2, $3)
          AND (expires_at IS NULL OR expires_at > $4)
        ORDER BY created_at DESC
        LIMIT 1
    `
	err := r.pg.Pool.QueryRow(ctx, query, staffTokenableType, hashStr, secret, time.Now()).Scan(
		&pat.ID,
		&pat.TokenHash,
		&pat.UserID,
		&pat.Abilities,
		&pat.ExpiresAt,
	)
	if err != nil {
		r.log.Debug("[TOKEN] fallback query", zap.Error(err))
		return nil, ErrTokenNotFound
	}

	r.log.Debug("[TOKEN] found", zap.Int64("id", pat.ID), zap.Int64("user_id", pat.UserID))
	return &pat, nil
}

// StaticTokens serves tokens from configuration for the memory storage driver.
// The input is a comma separated list of "<token>:<user id>" pairs.
type StaticTokens map[string]int64

func ParseStaticTokens(list string) (StaticTokens, error) {
	out := StaticTokens{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tok, uid, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(tok) == "" {
			return nil, fmt.Errorf("static token %q: want <token>:<user id>", part)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(uid), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("static token %q: %w", part, err)
		}
		out[strings.TrimSpace(tok)] = n
	}
	return out, nil
}

func (s StaticTokens) FindTokenByPlainToken(_ context.Context, plainToken string) (*PersonalAccessToken, error) {
	uid, ok := s[strings.TrimSpace(plainToken)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &PersonalAccessToken{UserID: uid}, nil
}
