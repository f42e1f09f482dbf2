package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// Options selects and configures a RunnerStore backend.
type Options struct {
	Backend string

	// DSN is the SQL data source name, the Redis URL (or host:port), or the
	// Mongo connection URI.
	DSN string

	// Prefix namespaces Redis keys.
	Prefix string

	// Database and Collection locate the Mongo collection.
	Database   string
	Collection string
}

// Open connects the configured backend. The returned close function
// releases the underlying connection and is never nil.
func Open(ctx context.Context, opts Options) (RunnerStore, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewInMemoryStore(), noop, nil

	case BackendSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, noop, err
		}
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
		store, err := NewSQLiteRunnerStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, db.Close, nil

	case BackendPostgres:
		db, err := sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		store, err := NewPostgresRunnerStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return store, db.Close, nil

	case BackendRedis:
		var ro *redis.Options
		if strings.Contains(opts.DSN, "://") {
			parsed, err := redis.ParseURL(opts.DSN)
			if err != nil {
				return nil, noop, err
			}
			ro = parsed
		} else {
			ro = &redis.Options{Addr: opts.DSN}
		}
		client := redis.NewClient(ro)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return NewRedisRunnerStore(client, opts.Prefix), client.Close, nil

	case BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.DSN))
		if err != nil {
			return nil, noop, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }
		return NewMongoRunnerStore(client, opts.Database, opts.Collection), closeFn, nil
	}
	return nil, noop, fmt.Errorf("unknown store backend %q", opts.Backend)
}
