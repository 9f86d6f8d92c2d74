package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/urbanknots/internal/api"
	"github.com/matzehuels/urbanknots/pkg/cache"
	"github.com/matzehuels/urbanknots/pkg/observability"
	"github.com/matzehuels/urbanknots/pkg/pipeline"
	"github.com/matzehuels/urbanknots/pkg/session"
)

// cleanupInterval is how often expired documents are swept.
const cleanupInterval = 10 * time.Minute

// serveFlags holds the flags of the serve command.
type serveFlags struct {
	addr      string
	redisAddr string
	mongoURI  string
	dataDir   string
	namespace string
	noCache   bool
	ttl       time.Duration
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	flags := serveFlags{
		addr:      ":8080",
		redisAddr: os.Getenv("URBANKNOTS_REDIS_ADDR"),
		mongoURI:  os.Getenv("URBANKNOTS_MONGO_URI"),
		namespace: os.Getenv("URBANKNOTS_CACHE_NAMESPACE"),
		ttl:       session.DefaultTTL,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Resolved documents are stored in MongoDB when --mongo is set, otherwise in
Redis when --redis is set, otherwise as files under the data directory. With
--redis, meshes and knot arrays are also cached in Redis so that several
instances share their work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", flags.addr, "listen address")
	cmd.Flags().StringVar(&flags.redisAddr, "redis", flags.redisAddr, "Redis address for cache and documents (env URBANKNOTS_REDIS_ADDR)")
	cmd.Flags().StringVar(&flags.mongoURI, "mongo", flags.mongoURI, "MongoDB URI for documents (env URBANKNOTS_MONGO_URI)")
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "document directory when neither Redis nor MongoDB is used")
	cmd.Flags().StringVar(&flags.namespace, "cache-namespace", flags.namespace, "prefix for cache keys so deployments can share one Redis (env URBANKNOTS_CACHE_NAMESPACE)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	cmd.Flags().DurationVar(&flags.ttl, "ttl", flags.ttl, "how long resolved documents are kept")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, flags serveFlags) error {
	observability.SetPipelineHooks(observability.NewLogHooks(c.Logger))
	observability.SetCacheHooks(observability.NewLogHooks(c.Logger))
	defer observability.Reset()

	var resultCache cache.Cache
	switch {
	case flags.noCache:
		resultCache = cache.NewNullCache()
	case flags.redisAddr != "":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: flags.redisAddr, Prefix: "urbanknots:cache:"})
		if err != nil {
			return err
		}
		resultCache = rc
	default:
		fc, err := newCache(false)
		if err != nil {
			return err
		}
		resultCache = fc
	}
	var keyer cache.Keyer
	if flags.namespace != "" {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), flags.namespace+":")
	}
	runner := pipeline.NewRunner(resultCache, keyer, c.Logger)
	defer runner.Close()

	store, backend, err := openStore(ctx, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	go sweep(ctx, store, c)

	srv := api.New(api.Config{Runner: runner, Store: store, Logger: c.Logger, TTL: flags.ttl})
	printInfo("Serving on %s", StyleHighlight.Render(flags.addr))
	printDetail("documents: %s", backend)
	return srv.ListenAndServe(ctx, flags.addr)
}

// openStore picks the document backend: MongoDB, then Redis, then files.
func openStore(ctx context.Context, flags serveFlags) (session.Store, string, error) {
	switch {
	case flags.mongoURI != "":
		store, err := session.NewMongoStore(ctx, session.MongoConfig{URI: flags.mongoURI})
		if err != nil {
			return nil, "", err
		}
		return store, "mongodb", nil
	case flags.redisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, "", fmt.Errorf("connect redis %s: %w", flags.redisAddr, err)
		}
		return session.NewRedisStore(client, session.DefaultRedisPrefix), "redis", nil
	}
	dir := flags.dataDir
	if dir == "" {
		d, err := dataDir()
		if err != nil {
			return nil, "", err
		}
		dir = d
	}
	store, err := session.NewFileStore(dir)
	if err != nil {
		return nil, "", err
	}
	return store, fmt.Sprintf("files in %s", dir), nil
}

// sweep removes expired documents until ctx ends.
func sweep(ctx context.Context, store session.Store, c *CLI) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx); err != nil {
				c.Logger.Warn("document cleanup failed", "err", err)
			}
		}
	}
}
