package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatschanged/whatschanged/internal/config"
	"github.com/whatschanged/whatschanged/pkg/cache"
	"github.com/whatschanged/whatschanged/pkg/store"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the release store and the registry response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())

	return cmd
}

// cacheClearCommand removes cached registry responses. Stored releases are
// kept since they are immutable once published.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear cached npm registry responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.CacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			count, err := fc.Clear()
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the response cache directory and release database path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.CacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			printKeyValue("responses", dir)
			if cfg.Store.Backend == config.BackendSQLite {
				printKeyValue("releases", cfg.Store.Path)
			} else {
				printKeyValue("releases", cfg.Store.MongoDatabase+" (mongo)")
			}
			return nil
		},
	}
}

// cacheStatsCommand reports the size of the release store and of the
// response cache.
func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many releases and registry responses are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			rc := store.NewReleaseCache(db)
			defer rc.Close()

			n, err := rc.Count(ctx)
			if err != nil {
				return err
			}
			printKeyValue("backend", cfg.Store.Backend)
			printKeyValue("releases", styleNumber.Render(fmt.Sprint(n)))

			dir, err := config.CacheDir()
			if err != nil {
				return nil
			}
			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return nil
			}
			entries, size, err := fc.Stats()
			if err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			printKeyValue("responses", fmt.Sprintf("%s (%d KiB)", styleNumber.Render(fmt.Sprint(entries)), size/1024))
			return nil
		},
	}
}
