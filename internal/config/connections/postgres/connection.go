package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const appName = "lotting_ledger"

type ConnectionInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
	MaxConns int32
}

// DSN renders the info as a postgres:// URL with escaped credentials.
func (i ConnectionInfo) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(i.User, i.Password),
		Host:   i.Host + ":" + i.Port,
		Path:   "/" + i.DB,
	}
	q := url.Values{}
	if i.SSLMode != "" {
		q.Set("sslmode", i.SSLMode)
	}
	q.Set("application_name", appName)
	u.RawQuery = q.Encode()
	return u.String()
}

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(info.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if info.MaxConns > 0 {
		cfg.MaxConns = info.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
