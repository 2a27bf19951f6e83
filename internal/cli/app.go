package cli

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/whatschanged/whatschanged/internal/config"
	"github.com/whatschanged/whatschanged/pkg/cache"
	"github.com/whatschanged/whatschanged/pkg/integrations/github"
	"github.com/whatschanged/whatschanged/pkg/integrations/npm"
	"github.com/whatschanged/whatschanged/pkg/resolver"
	"github.com/whatschanged/whatschanged/pkg/store"
)

// appOptions tune how a command wires the resolver.
type appOptions struct {
	Concurrency int  // overrides config when > 0
	Refresh     bool // bypass release store and registry cache
	SharedCache bool // prefer Redis for registry responses when configured
}

// app bundles the long-lived dependencies of a command. Close releases all
// of them.
type app struct {
	cfg       *config.Config
	releases  *store.ReleaseCache
	responses cache.Cache
	npm       *npm.Client
	github    *github.Client
	resolver  *resolver.Resolver
}

func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// openApp loads config and opens the store, response cache and clients.
func (c *CLI) openApp(ctx context.Context, opts appOptions) (*app, error) {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.GitHubToken == "" {
		logger.Warn("no GitHub token configured; unauthenticated requests are heavily rate limited",
			"env", config.EnvGitHubToken)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	responses := c.openResponseCache(ctx, cfg, opts.SharedCache, logger)

	concurrency := cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	a := &app{
		cfg:       cfg,
		releases:  store.NewReleaseCache(db),
		responses: responses,
		npm:       npm.NewClient(responses, cfg.CacheTTL, cfg.NpmRegistryURL),
		github:    github.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL),
	}
	a.resolver = resolver.New(a.releases, resolver.NewNpmLocator(a.npm, opts.Refresh), a.github, resolver.Options{
		Concurrency: concurrency,
		Logger:      logger,
		Refresh:     opts.Refresh,
	})
	return a, nil
}

func (a *app) Close() error {
	return errors.Join(a.releases.Close(), a.responses.Close())
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend == config.BackendMongo {
		return store.OpenMongo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	}
	return store.OpenSQLite(cfg.Store.Path)
}

// openResponseCache picks the registry response cache: none with --no-cache,
// Redis when shared is requested and configured, otherwise files under the
// user cache dir. Backends that fail to open degrade to no caching.
func (c *CLI) openResponseCache(ctx context.Context, cfg *config.Config, shared bool, logger *log.Logger) cache.Cache {
	if c.noCache {
		return cache.NewNullCache()
	}
	if shared && cfg.Serve.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.Serve.RedisAddr})
		if err == nil {
			return rc
		}
		logger.Warn("redis unavailable, falling back to file cache", "addr", cfg.Serve.RedisAddr, "err", err)
	}
	dir, err := config.CacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		logger.Warn("response cache disabled", "dir", dir, "err", err)
		return cache.NewNullCache()
	}
	return fc
}
