package mongo

import (
	"context"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const appName = "lotting_ledger"

type ConnectionInfo struct {
	Scheme     string
	User       string
	Password   string
	Host       string
	Port       string
	DB         string
	AuthSource string
}

// URI renders the connection string. Credentials are escaped; an empty
// scheme means plain mongodb.
func (i ConnectionInfo) URI() string {
	u := url.URL{Scheme: i.Scheme, Host: i.Host, Path: "/" + i.DB}
	if u.Scheme == "" {
		u.Scheme = "mongodb"
	}
	if i.Port != "" {
		u.Host += ":" + i.Port
	}
	if i.User != "" {
		if i.Password != "" {
			u.User = url.UserPassword(i.User, i.Password)
		} else {
			u.User = url.User(i.User)
		}
	}
	if i.AuthSource != "" {
		u.RawQuery = url.Values{"authSource": {i.AuthSource}}.Encode()
	}
	return u.String()
}

type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewConnection(ctx context.Context, info ConnectionInfo) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(info.URI()).
		SetAppName(appName).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Mongo{Client: client, Database: client.Database(info.DB)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client != nil {
		return m.Client.Disconnect(ctx)
	}
	return nil
}
