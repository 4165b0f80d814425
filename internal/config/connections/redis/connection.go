package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type ConnectionInfo struct {
	Addr     string
	Username string
	Password string
	DB       int
}

type Redis struct {
	Client *redis.Client
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     info.Addr,
		Username: info.Username,
		Password: info.Password,
		DB:       info.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}
