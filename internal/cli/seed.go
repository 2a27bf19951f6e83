package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whatschanged/whatschanged/pkg/integrations/npm"
	"github.com/whatschanged/whatschanged/pkg/releases"
	"github.com/whatschanged/whatschanged/pkg/resolver"
)

const defaultSeedTop = 1000

// packageSearcher pages through registry search results by popularity.
type packageSearcher interface {
	Search(ctx context.Context, offset int) ([]npm.SearchResult, error)
}

type seedOptions struct {
	top int
}

// seedCommand creates the seed command.
func (c *CLI) seedCommand() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Pre-fill the release store with the most popular packages",
		Long: `Fetch the full GitHub release history of the most popular npm packages
and store it, so later checks of those packages need no GitHub requests.`,
		Example: `  whatschanged seed --top 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeed(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.top, "top", defaultSeedTop, "number of GitHub-hosted packages to seed")

	return cmd
}

func (c *CLI) runSeed(ctx context.Context, opts seedOptions) error {
	logger := loggerFromContext(ctx)
	if opts.top <= 0 {
		return fmt.Errorf("--top must be positive")
	}

	a, err := c.openApp(ctx, appOptions{Concurrency: resolver.SeedConcurrency})
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := newSpinner(ctx, "Searching the registry...")
	spinner.Start()
	defer spinner.Stop()

	prog := newProgress(logger)
	refs, err := collectSeedRefs(ctx, a.npm, opts.top)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Found %d GitHub-hosted packages", len(refs)))

	spinner.Update(fmt.Sprintf("Fetching release histories of %d repositories...", len(refs)))
	prog = newProgress(logger)
	n, err := a.resolver.Seed(ctx, refs)
	if err != nil {
		return describeBatchError(err)
	}
	prog.done("Seeded release store")

	spinner.StopWithSuccess(fmt.Sprintf("Stored %d new releases", n))
	return nil
}

// collectSeedRefs pages through search results until top packages with a
// GitHub repository are found or the results run out.
func collectSeedRefs(ctx context.Context, s packageSearcher, top int) ([]releases.RepositoryRef, error) {
	logger := loggerFromContext(ctx)
	seen := make(map[string]bool)
	var refs []releases.RepositoryRef

	for offset := 0; len(refs) < top; offset += npm.SearchPageSize {
		page, err := s.Search(ctx, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			key := releases.NormalizeName(p.Name)
			if seen[key] {
				continue
			}
			seen[key] = true

			dep := releases.Dependency{Name: p.Name, Version: p.Version}
			ref, ok := resolver.RefFromURL(dep, p.Repository)
			if !ok {
				logger.Debug("Skipping package without GitHub repository", "name", p.Name)
				continue
			}
			refs = append(refs, ref)
			if len(refs) == top {
				break
			}
		}
		if len(page) < npm.SearchPageSize {
			break
		}
	}
	return refs, nil
}
