package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"lotting_ledger/internal/config/connections/mongo"
	"lotting_ledger/internal/config/connections/postgres"
	"lotting_ledger/internal/config/connections/redis"
	"lotting_ledger/internal/config/connections/s3"
	"lotting_ledger/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Settings is everything read from the environment before any connection is made.
type Settings struct {
	Port                  string
	StorageDriver         string
	DefaultBuyerID        int
	LegacyFarFutureOffset bool
	ProgressBuffer        int
	APITokens             string
	LocalImportRoot       string
	Log                   logger.Config

	S3       s3.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	Postgres postgres.ConnectionInfo
	Redis    redis.ConnectionInfo
}

type Config struct {
	Settings

	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
}

func Load() (Settings, error) {
	_ = godotenv.Load()

	var errs []error
	st := Settings{
		Port:                  getenv("SERVER_PORT", "8070"),
		StorageDriver:         strings.ToLower(getenv("STORAGE_DRIVER", StoragePostgres)),
		DefaultBuyerID:        getint("DEFAULT_BUYER_ID", 1, &errs),
		LegacyFarFutureOffset: getenv("LEDGER_LEGACY_FAR_FUTURE_OFFSET", "false") == "true",
		ProgressBuffer:        getint("PROGRESS_BUFFER", 64, &errs),
		APITokens:             getenv("API_TOKENS", ""),
		LocalImportRoot:       getenv("LOCAL_IMPORT_ROOT", ""),
		Log: logger.Config{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  getenv("AWS_ENDPOINT", "localhost:9000"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "lotting"),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		Mongo: mongo.ConnectionInfo{
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", "root"),
			Password:   getenv("MONGO_PASSWORD", "secret"),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "import_db"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
		},
		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "lotting"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
			MaxConns: int32(getint("PG_MAX_CONNS", 0, &errs)),
		},
		Redis: redis.ConnectionInfo{
			Addr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Username: getenv("REDIS_USERNAME", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0, &errs),
		},
	}

	if st.StorageDriver != StorageMemory && st.StorageDriver != StoragePostgres {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMemory, StoragePostgres, st.StorageDriver))
	}
	if st.DefaultBuyerID <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_BUYER_ID must be positive, got %d", st.DefaultBuyerID))
	}

	return st, errors.Join(errs...)
}

// Init loads settings and opens every backend. Postgres is skipped with the
// memory storage driver. Any failure is fatal.
func Init(ctx context.Context, st Settings, log *zap.Logger) *Config {
	s3c, err := s3.NewConnection(st.S3)
	if err != nil {
		log.Fatal("S3 connect error", zap.Error(err))
	}

	if err := s3c.EnsureBucket(ctx); err != nil {
		log.Warn("S3 bucket not ensured", zap.String("bucket", st.S3.Bucket), zap.Error(err))
	}

	mg, err := mongo.NewConnection(ctx, st.Mongo)
	if err != nil {
		log.Fatal("Mongo connect error", zap.Error(err))
	}

	rd, err := redis.NewConnection(ctx, st.Redis)
	if err != nil {
		log.Fatal("Redis connect error", zap.Error(err))
	}

	var pg *postgres.Postgres
	if st.StorageDriver == StoragePostgres {
		pg, err = postgres.NewConnection(ctx, st.Postgres)
		if err != nil {
			log.Fatal("Postgres connect error", zap.Error(err))
		}
	}

	return &Config{
		Settings: st,
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
		Redis:    rd,
	}
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.StorageDriver == StoragePostgres {
		if c.Postgres == nil || c.Postgres.Pool == nil {
			errs = append(errs, errors.New("postgres not initialized"))
		} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
		}
	}

	if c.Mongo == nil || c.Mongo.Client == nil {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.Redis == nil || c.Redis.Client == nil {
		errs = append(errs, errors.New("redis not initialized"))
	} else if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
		errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	} else if !ok {
		errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
	}

	return errors.Join(errs...)
}

// Close releases every open backend.
func (c *Config) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Close(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}
