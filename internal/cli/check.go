package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whatschanged/whatschanged/internal/config"
	errs "github.com/whatschanged/whatschanged/pkg/errors"
	"github.com/whatschanged/whatschanged/pkg/manifest"
	"github.com/whatschanged/whatschanged/pkg/releases"
)

const defaultManifest = "package.json"

type checkOptions struct {
	manifest    string
	json        bool
	concurrency int
	refresh     bool
}

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [name@version ...]",
		Short: "List releases newer than the installed versions",
		Long: `List GitHub releases newer than the installed version of each dependency.

Dependencies are given as name@version arguments, or read from the
dependencies and devDependencies of a package.json (./package.json when no
arguments are given). Range prefixes such as ^ and ~ are ignored.`,
		Example: `  whatschanged check react@18.2.0 @vitejs/plugin-legacy@5.3.0
  whatschanged check --manifest ./web/package.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "read dependencies from a package.json")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "concurrent registry and GitHub requests (1-50)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore stored releases and cached registry responses")

	return cmd
}

func (c *CLI) runCheck(ctx context.Context, args []string, opts checkOptions) error {
	logger := loggerFromContext(ctx)

	deps, skipped, err := collectDependencies(args, opts.manifest)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		logger.Debug("Skipping non-registry dependency", "name", name)
	}
	if len(deps) == 0 {
		printWarning("No dependencies to check")
		return nil
	}

	a, err := c.openApp(ctx, appOptions{Concurrency: opts.concurrency, Refresh: opts.refresh})
	if err != nil {
		return err
	}
	defer a.Close()

	prog := newProgress(logger)
	spinner := newSpinner(ctx, fmt.Sprintf("Checking %d dependencies...", len(deps)))
	if !opts.json {
		spinner.Start()
	}
	result, err := a.resolver.Resolve(ctx, deps)
	spinner.Stop()
	if err != nil {
		return describeBatchError(err)
	}
	prog.done(fmt.Sprintf("Resolved %d dependencies", len(deps)))

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Print(renderReport(result))
	return nil
}

// collectDependencies builds the batch from arguments, or from a manifest
// when no arguments are given. The second result names manifest entries that
// do not point at the registry.
func collectDependencies(args []string, manifestPath string) ([]releases.Dependency, []string, error) {
	if len(args) > 0 && manifestPath != "" {
		return nil, nil, errs.New(errs.ErrCodeInvalidInput, "pass either name@version arguments or --manifest, not both")
	}

	if len(args) > 0 {
		deps := make([]releases.Dependency, 0, len(args))
		for _, arg := range args {
			dep, err := manifest.ParseArg(arg)
			if err != nil {
				return nil, nil, err
			}
			deps = append(deps, dep)
		}
		return deps, nil, nil
	}

	if manifestPath == "" {
		manifestPath = defaultManifest
	}
	m, err := manifest.ParseFile(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	return m.Dependencies, m.Skipped, nil
}

// describeBatchError adds remediation hints to batch-fatal errors.
func describeBatchError(err error) error {
	if errs.Is(err, errs.ErrCodeRateLimited) {
		return fmt.Errorf("%w; set %s to raise the limit", err, config.EnvGitHubToken)
	}
	return err
}
