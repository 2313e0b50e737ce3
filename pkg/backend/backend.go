// Package backend opens every external handle once and wires the services
// on top of them.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"

	"lostfound/pkg/feed"
	"lostfound/pkg/item"
	"lostfound/pkg/live"
	"lostfound/pkg/logger"
	"lostfound/pkg/media"
	"lostfound/pkg/profile"
	"lostfound/pkg/sessions"
	"lostfound/pkg/thread"
	"lostfound/pkg/user"
)

type Config struct {
	ListenAddr  string
	PublicURL   string
	PostgresDSN string
	RedisAddr   string
	MongoURI    string
	MongoDB     string
	SecretKey   string
	LogLevel    string
}

type Backend struct {
	SQL   *sql.DB
	Redis *redis.Pool
	Mongo *mongo.Client

	Bus      *live.RedisBus
	Blobs    *media.GridFSStore
	Items    *item.Repo
	Users    *user.UserRepo
	Profiles *profile.Service
	Sessions *sessions.SessionManager
	Writer   *item.Writer
	Uploader *media.Uploader
	Feed     *feed.Subscriber
	Threads  *thread.Service
}

// Open connects to Postgres, Redis and MongoDB. open is handed to the media
// uploader for handles without inline bytes; nil rejects them.
func Open(ctx context.Context, cfg Config, open media.Opener) (*Backend, error) {
	b := &Backend{}
	if err := b.connect(ctx, cfg); err != nil {
		if closeErr := b.Close(context.Background()); closeErr != nil {
			logger.Log(ctx).Errorf("backend: cleanup after failed start: %v", closeErr)
		}
		return nil, err
	}

	db := b.Mongo.Database(cfg.MongoDB)
	blobs, err := media.NewGridFSStore(db, cfg.PublicURL)
	if err != nil {
		b.Close(context.Background())
		return nil, err
	}

	b.Bus = live.NewRedisBus(b.Redis)
	b.Blobs = blobs
	b.Items = item.NewItemRepo(db.Collection("items"))
	b.Users = user.NewUserRepo(b.SQL)
	b.Profiles = profile.NewService(db.Collection("users"), b.Users)
	b.Sessions = sessions.NewSessionManager(cfg.SecretKey, b.Redis)
	b.Writer = item.NewWriter(b.Items, b.Bus)
	b.Uploader = media.NewUploader(blobs, open)
	b.Feed = feed.NewSubscriber(b.Items, b.Bus)
	b.Threads = thread.NewService(b.Items, b.Bus)

	if err := b.Users.Migrate(ctx); err != nil {
		b.Close(context.Background())
		return nil, err
	}
	return b, nil
}

func (b *Backend) connect(ctx context.Context, cfg Config) error {
	var err error
	b.SQL, err = sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("backend: unable to open PostgreSQL: %w", err)
	}
	if err := b.SQL.PingContext(ctx); err != nil {
		return fmt.Errorf("backend: unable to reach PostgreSQL: %w", err)
	}

	b.Redis = &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, cfg.RedisAddr)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	conn, err := b.Redis.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("backend: can't connect to Redis: %w", err)
	}
	conn.Close()

	mongoCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	b.Mongo, err = mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("backend: can't connect to MongoDB: %w", err)
	}
	if err := b.Mongo.Ping(mongoCtx, nil); err != nil {
		return fmt.Errorf("backend: unable to reach MongoDB: %w", err)
	}
	return nil
}

// Close releases whatever Open managed to acquire.
func (b *Backend) Close(ctx context.Context) error {
	var err error
	if b.Mongo != nil {
		err = multierr.Append(err, b.Mongo.Disconnect(ctx))
	}
	if b.Redis != nil {
		err = multierr.Append(err, b.Redis.Close())
	}
	if b.SQL != nil {
		err = multierr.Append(err, b.SQL.Close())
	}
	if err != nil {
		return fmt.Errorf("backend: close: %w", err)
	}
	return nil
}
